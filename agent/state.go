package agent

import (
	"datachat/dataset"
	"datachat/viz"
)

// PipelineState is the single mutable state carried through the graph.
// Each node reads what prior nodes produced and writes via Apply.
type PipelineState struct {
	Question string
	Dataset  dataset.Handle

	Plan *Plan

	AnalysisResult *dataset.Frame
	AnalysisCode   string
	SQLQuery       string
	SQLResult      *dataset.Frame
	Chart          *viz.Chart
	ChartCode      string

	Answer string
	Errors []string
}

// StateUpdate is a partial write to PipelineState. Nil fields are left
// untouched, so a node only declares what it produced.
type StateUpdate struct {
	Plan           *Plan
	AnalysisResult *dataset.Frame
	AnalysisCode   *string
	SQLQuery       *string
	SQLResult      *dataset.Frame
	Chart          *viz.Chart
	ChartCode      *string
	Answer         *string
	Errors         []string
}

// Apply merges the update into the state.
func (st *PipelineState) Apply(u StateUpdate) {
	if u.Plan != nil {
		st.Plan = u.Plan
	}
	if u.AnalysisResult != nil {
		st.AnalysisResult = u.AnalysisResult
	}
	if u.AnalysisCode != nil {
		st.AnalysisCode = *u.AnalysisCode
	}
	if u.SQLQuery != nil {
		st.SQLQuery = *u.SQLQuery
	}
	if u.SQLResult != nil {
		st.SQLResult = u.SQLResult
	}
	if u.Chart != nil {
		st.Chart = u.Chart
	}
	if u.ChartCode != nil {
		st.ChartCode = *u.ChartCode
	}
	if u.Answer != nil {
		st.Answer = *u.Answer
	}
	st.Errors = append(st.Errors, u.Errors...)
}

func strPtr(s string) *string { return &s }
