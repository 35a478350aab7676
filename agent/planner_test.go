package agent

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanParsesStructuredResponse(t *testing.T) {
	cm := &scriptedModel{script: []scripted{
		{text: `<thinking>chart it</thinking>` + planResponse("multi", true, "bar")},
	}}
	p := NewPlanner(&fakeBuilder{cm: cm}, noLog)

	plan := p.Plan(context.Background(), "bar chart of revenue", suppliersHandle(t))

	assert.Equal(t, "analysis", plan.Intent)
	assert.True(t, plan.RequiresViz)
	assert.Equal(t, "bar", plan.ChartType)
	assert.Equal(t, "multi", plan.Routing)
	// "multi" starts at the analysis node.
	assert.Equal(t, nodeExecutor, plan.NextNode())

	// The schema reaches the planner prompt.
	require.Len(t, cm.prompts, 1)
	assert.Contains(t, cm.prompts[0], "supplier_name")
}

func TestPlanAcceptsBareJSON(t *testing.T) {
	cm := &scriptedModel{script: []scripted{
		{text: `{"intent":"sql","routing":"sql_node","primary_task":"query"}`},
	}}
	p := NewPlanner(&fakeBuilder{cm: cm}, noLog)

	plan := p.Plan(context.Background(), "sql for orders", suppliersHandle(t))
	assert.Equal(t, nodeSQL, plan.NextNode())
}

func TestPlanUnparseableFallsBackToDefault(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"prose", "I think you want an analysis."},
		{"broken json", `<plan>{"intent": }</plan>`},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cm := &scriptedModel{script: []scripted{{text: tt.text}}}
			p := NewPlanner(&fakeBuilder{cm: cm}, noLog)

			plan := p.Plan(context.Background(), "what about revenue?", suppliersHandle(t))

			assert.Equal(t, "analysis", plan.Intent)
			assert.Equal(t, nodeExecutor, plan.Routing)
			assert.False(t, plan.RequiresSQL)
			assert.False(t, plan.RequiresViz)
			assert.Equal(t, "what about revenue?", plan.PrimaryTask)
		})
	}
}

func TestPlanModelErrorFallsBackToDefault(t *testing.T) {
	cm := &scriptedModel{script: []scripted{{err: fmt.Errorf("timeout")}}}
	p := NewPlanner(&fakeBuilder{cm: cm}, noLog)

	plan := p.Plan(context.Background(), "anything", suppliersHandle(t))
	assert.Equal(t, nodeExecutor, plan.NextNode())
}

func TestPlanBuilderErrorFallsBackToDefault(t *testing.T) {
	p := NewPlanner(&fakeBuilder{buildErr: fmt.Errorf("no key")}, noLog)

	plan := p.Plan(context.Background(), "anything", nil)
	assert.Equal(t, nodeExecutor, plan.NextNode())
}

func TestNextNodeMapping(t *testing.T) {
	tests := []struct {
		routing string
		want    string
	}{
		{"executor", nodeExecutor},
		{"sql_node", nodeSQL},
		{"viz_node", nodeViz},
		{"responder", nodeResponder},
		{"multi", nodeExecutor},
		{"garbage", nodeExecutor},
		{"", nodeExecutor},
	}
	for _, tt := range tests {
		t.Run("routing "+tt.routing, func(t *testing.T) {
			p := &Plan{Routing: tt.routing}
			assert.Equal(t, tt.want, p.NextNode())
		})
	}
}
