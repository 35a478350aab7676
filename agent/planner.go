package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"datachat/dataset"
)

// Plan is the planner's structured decision about intent and routing.
// Immutable once produced.
type Plan struct {
	Intent      string `json:"intent"`
	PrimaryTask string `json:"primary_task"`
	RequiresSQL bool   `json:"requires_sql"`
	RequiresViz bool   `json:"requires_viz"`
	ChartType   string `json:"chart_type"`
	Complexity  string `json:"complexity"`
	Routing     string `json:"routing"`
}

// NextNode maps the plan's routing onto a graph node. "multi" means
// analysis first, then chart: the analysis node chains into visualization
// through RequiresViz, so it starts at the executor. Unknown values default
// to the executor.
func (p *Plan) NextNode() string {
	switch p.Routing {
	case nodeExecutor, nodeSQL, nodeViz, nodeResponder:
		return p.Routing
	case "multi":
		return nodeExecutor
	default:
		return nodeExecutor
	}
}

// Planner classifies the question into an intent and a routing decision
// with one model call. Any failure degrades to the fixed default plan;
// planner trouble never fails the pipeline.
type Planner struct {
	models ModelBuilder
	log    func(string)
}

// NewPlanner creates a planner.
func NewPlanner(models ModelBuilder, log func(string)) *Planner {
	return &Planner{models: models, log: log}
}

// Plan produces the plan for one question. The schema, when available,
// grounds the model's decision in real column names.
func (p *Planner) Plan(ctx context.Context, question string, h dataset.Handle) *Plan {
	schemaInfo := ""
	if h != nil {
		if schema, err := h.Schema(); err == nil {
			schemaInfo = "\n" + schema.Describe()
		}
	}

	cm, err := p.models.Build(ctx, false)
	if err != nil {
		p.log(fmt.Sprintf("[planner] failed to build chat model: %v, using default plan", err))
		return defaultPlan(question)
	}

	resp, err := generate(ctx, cm, plannerSystemPrompt, "User Question: "+question+schemaInfo)
	if err != nil {
		p.log(fmt.Sprintf("[planner] model call failed: %v, using default plan", err))
		return defaultPlan(question)
	}

	raw := ExtractTag(resp, "plan")
	if raw == "" {
		raw = strings.TrimSpace(resp)
	}

	var plan Plan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		p.log("[planner] could not parse plan JSON, using default plan")
		return defaultPlan(question)
	}
	if plan.PrimaryTask == "" {
		plan.PrimaryTask = question
	}

	p.log(fmt.Sprintf("[planner] intent=%s route=%s viz=%v", plan.Intent, plan.NextNode(), plan.RequiresViz))
	return &plan
}

// defaultPlan is the deterministic degrade-gracefully plan: just try a
// direct analysis.
func defaultPlan(question string) *Plan {
	return &Plan{
		Intent:      "analysis",
		PrimaryTask: question,
		Complexity:  "low",
		Routing:     nodeExecutor,
	}
}
