package agent

import (
	"context"
	"fmt"

	"datachat/dataset"
	"datachat/engine"
)

// SQLResult is the terminal value of one SQL generation. Query is preserved
// even on failure so the responder can show what was attempted.
type SQLResult struct {
	Success bool
	Query   string
	Frame   *dataset.Frame
	Err     string
}

// SQLGenerator asks the model for a DuckDB query and runs it against the
// materialized dataset registered under a fixed table name. Single attempt,
// no self-healing: any failure is terminal for this component's turn.
type SQLGenerator struct {
	models    ModelBuilder
	tableName string
	log       func(string)
}

// NewSQLGenerator creates a SQL generator using the given fixed table name.
func NewSQLGenerator(models ModelBuilder, tableName string, log func(string)) *SQLGenerator {
	return &SQLGenerator{models: models, tableName: tableName, log: log}
}

// Generate issues exactly one model call and at most one query execution.
func (g *SQLGenerator) Generate(ctx context.Context, question string, h dataset.Handle) *SQLResult {
	schema, err := h.Schema()
	if err != nil {
		return &SQLResult{Err: fmt.Sprintf("failed to inspect dataset schema: %v", err)}
	}

	cm, err := g.models.Build(ctx, false)
	if err != nil {
		return &SQLResult{Err: fmt.Sprintf("failed to build chat model: %v", err)}
	}

	g.log(fmt.Sprintf("[sqlgen] generating SQL for table %s", g.tableName))

	resp, err := generate(ctx, cm,
		fmt.Sprintf(sqlSystemPrompt, g.tableName),
		buildSQLPrompt(question, schema.Describe(), g.tableName))
	if err != nil {
		return &SQLResult{Err: err.Error()}
	}

	query := ExtractTag(resp, "sql")
	if query == "" {
		return &SQLResult{Err: fmt.Sprintf("model did not return a <sql> block. Raw response: %s", truncate(resp, 300))}
	}

	frame, err := h.Materialize()
	if err != nil {
		return &SQLResult{Query: query, Err: fmt.Sprintf("failed to materialize dataset: %v", err)}
	}

	eng, err := engine.Open(ctx)
	if err != nil {
		return &SQLResult{Query: query, Err: err.Error()}
	}
	defer eng.Close()

	if err := eng.RegisterFrame(ctx, g.tableName, frame); err != nil {
		return &SQLResult{Query: query, Err: err.Error()}
	}

	out, err := eng.Query(ctx, query)
	if err != nil {
		return &SQLResult{Query: query, Err: err.Error()}
	}

	g.log("[sqlgen] SQL executed successfully")
	return &SQLResult{Success: true, Query: query, Frame: out}
}
