package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"datachat/dataset"
	"datachat/viz"
)

func TestApplyMergesPartialUpdates(t *testing.T) {
	st := &PipelineState{Question: "q"}

	st.Apply(StateUpdate{Plan: &Plan{Routing: "executor"}})
	st.Apply(StateUpdate{
		AnalysisResult: &dataset.Frame{},
		AnalysisCode:   strPtr("result = lf.collect()"),
	})
	st.Apply(StateUpdate{Errors: []string{"first"}})
	st.Apply(StateUpdate{
		Chart:  &viz.Chart{Type: "bar"},
		Errors: []string{"second"},
	})

	assert.Equal(t, "executor", st.Plan.Routing)
	assert.NotNil(t, st.AnalysisResult)
	assert.Equal(t, "result = lf.collect()", st.AnalysisCode)
	assert.Equal(t, "bar", st.Chart.Type)
	assert.Equal(t, []string{"first", "second"}, st.Errors)
}

func TestApplyNilFieldsLeaveStateUntouched(t *testing.T) {
	st := &PipelineState{
		Question: "q",
		Answer:   "kept",
		SQLQuery: "SELECT 1",
	}

	st.Apply(StateUpdate{})

	assert.Equal(t, "kept", st.Answer)
	assert.Equal(t, "SELECT 1", st.SQLQuery)
	assert.Empty(t, st.Errors)
}
