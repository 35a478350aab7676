// Package engine embeds DuckDB as the analytical query engine behind the
// SQL generation path. A materialized frame is registered under a fixed
// table name and queried with model-written SQL.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver

	"datachat/dataset"
)

// Engine wraps one in-memory DuckDB database.
type Engine struct {
	db *sql.DB
}

// Open creates an in-memory DuckDB instance.
func Open(ctx context.Context) (*Engine, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping duckdb: %w", err)
	}
	return &Engine{db: db}, nil
}

// Close releases the database.
func (e *Engine) Close() error {
	if e.db != nil {
		return e.db.Close()
	}
	return nil
}

// RegisterFrame creates a table with the frame's schema and loads its rows.
func (e *Engine) RegisterFrame(ctx context.Context, name string, f *dataset.Frame) error {
	if len(f.Columns) == 0 {
		return fmt.Errorf("cannot register a frame with no columns")
	}

	defs := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		defs[i] = fmt.Sprintf("%s %s", quoteIdent(c.Name), duckType(c.Type))
	}
	createStmt := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(name), strings.Join(defs, ", "))
	if _, err := e.db.ExecContext(ctx, createStmt); err != nil {
		return fmt.Errorf("failed to create table %s: %w", name, err)
	}

	if len(f.Rows) == 0 {
		return nil
	}

	placeholders := "(" + strings.TrimSuffix(strings.Repeat("?,", len(f.Columns)), ",") + ")"
	insertStmt := fmt.Sprintf("INSERT INTO %s VALUES %s", quoteIdent(name), placeholders)

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin load transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, insertStmt)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	for _, row := range f.Rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			return fmt.Errorf("failed to load row: %w", err)
		}
	}
	if err := stmt.Close(); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to close insert statement: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit load: %w", err)
	}
	return nil
}

// Query runs one SQL statement and returns the result as a frame.
func (e *Engine) Query(ctx context.Context, query string) (*dataset.Frame, error) {
	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read result column types: %w", err)
	}

	schema := make(dataset.Schema, len(names))
	for i, n := range names {
		schema[i] = dataset.Column{Name: n, Type: sqlTypeTag(colTypes[i].DatabaseTypeName())}
	}

	frame := &dataset.Frame{Columns: schema}
	for rows.Next() {
		cells := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		for i, v := range cells {
			cells[i] = normalizeCell(v)
		}
		frame.Rows = append(frame.Rows, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("result iteration failed: %w", err)
	}
	return frame, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func duckType(colType string) string {
	switch colType {
	case dataset.TypeInteger:
		return "BIGINT"
	case dataset.TypeReal:
		return "DOUBLE"
	case dataset.TypeBoolean:
		return "BOOLEAN"
	default:
		return "VARCHAR"
	}
}

func sqlTypeTag(dbType string) string {
	t := strings.ToUpper(dbType)
	switch {
	case strings.Contains(t, "INT"):
		return dataset.TypeInteger
	case strings.Contains(t, "DOUBLE"), strings.Contains(t, "FLOAT"),
		strings.Contains(t, "DECIMAL"), strings.Contains(t, "HUGEINT"):
		return dataset.TypeReal
	case strings.Contains(t, "BOOL"):
		return dataset.TypeBoolean
	default:
		return dataset.TypeText
	}
}

// normalizeCell folds driver-specific scan types into the frame cell set.
func normalizeCell(v any) any {
	switch n := v.(type) {
	case []byte:
		return string(n)
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}
