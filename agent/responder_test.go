package agent

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datachat/viz"
)

func TestRespondIncludesResultsInContext(t *testing.T) {
	cm := &scriptedModel{script: []scripted{
		{text: "Stark leads with 700 in revenue."},
	}}
	r := NewResponder(&fakeBuilder{cm: cm}, 150, 10, noLog)

	st := &PipelineState{
		Question:       "Who leads?",
		AnalysisResult: suppliersHandle(t).frame,
		Chart:          &viz.Chart{Type: "bar", Title: "Revenue"},
	}
	answer := r.Respond(context.Background(), st)

	assert.Equal(t, "Stark leads with 700 in revenue.", answer)

	require.Len(t, cm.prompts, 1)
	prompt := cm.prompts[0]
	assert.Contains(t, prompt, "Who leads?")
	assert.Contains(t, prompt, "stark")
	assert.Contains(t, prompt, `bar chart titled "Revenue"`)
}

func TestRespondIncludesErrors(t *testing.T) {
	cm := &scriptedModel{script: []scripted{
		{text: "I could not analyze the data because no dataset is loaded."},
	}}
	r := NewResponder(&fakeBuilder{cm: cm}, 150, 10, noLog)

	st := &PipelineState{Question: "Anything?", Errors: []string{"no dataset is loaded"}}
	answer := r.Respond(context.Background(), st)

	assert.NotEmpty(t, answer)
	assert.Contains(t, cm.prompts[0], "no dataset is loaded")
}

func TestRespondModelFailureFallsBack(t *testing.T) {
	cm := &scriptedModel{script: []scripted{{err: fmt.Errorf("down")}}}
	r := NewResponder(&fakeBuilder{cm: cm}, 150, 10, noLog)

	st := &PipelineState{Question: "Q", AnalysisResult: suppliersHandle(t).frame}
	answer := r.Respond(context.Background(), st)
	assert.Equal(t, "The analysis completed. Results are shown in the attached table.", answer)

	st = &PipelineState{Question: "Q", Errors: []string{"analysis failed"}}
	answer = r.Respond(context.Background(), st)
	assert.Contains(t, answer, "analysis failed")

	st = &PipelineState{Question: "Q"}
	answer = r.Respond(context.Background(), st)
	assert.Equal(t, "I could not produce an answer for this question.", answer)
}

func TestRespondBuilderFailureFallsBack(t *testing.T) {
	r := NewResponder(&fakeBuilder{buildErr: fmt.Errorf("no key")}, 150, 10, noLog)

	answer := r.Respond(context.Background(), &PipelineState{Question: "Q"})
	assert.NotEmpty(t, answer)
}
