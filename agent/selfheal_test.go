package agent

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noLog(string) {}

const goodAnalysisCode = `result = lf.sort("total_revenue", descending=True).head(5).collect()`

func TestAnalyzeSucceedsFirstAttempt(t *testing.T) {
	cm := &scriptedModel{script: []scripted{
		{text: codeResponse(goodAnalysisCode)},
	}}
	models := &fakeBuilder{cm: cm}

	res := NewAnalyst(models, 3, noLog).Analyze(context.Background(), "top 5", suppliersHandle(t))

	require.True(t, res.Success, res.Err)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, []bool{false}, models.fallbackCalls)
	require.NotNil(t, res.Frame)
	assert.Len(t, res.Frame.Rows, 5)
	assert.Equal(t, 700.0, res.Frame.Rows[0][1])
	assert.Equal(t, goodAnalysisCode, res.Code)
}

func TestAnalyzeRecoversOnThirdAttempt(t *testing.T) {
	cm := &scriptedModel{script: []scripted{
		// No <code> block, then an execution error, then success.
		{text: "I cannot write code today"},
		{text: codeResponse(`result = lf.select("missing").collect()`)},
		{text: codeResponse(goodAnalysisCode)},
	}}
	models := &fakeBuilder{cm: cm}

	res := NewAnalyst(models, 3, noLog).Analyze(context.Background(), "top 5", suppliersHandle(t))

	require.True(t, res.Success, res.Err)
	assert.Equal(t, 3, res.Attempts)
	// All three attempts stay within the primary budget.
	assert.Equal(t, []bool{false, false, false}, models.fallbackCalls)

	// The third prompt carries both prior failures verbatim.
	require.Len(t, cm.prompts, 3)
	last := cm.prompts[2]
	assert.Contains(t, last, "YOUR PREVIOUS CODE FAILED")
	assert.Contains(t, last, "Attempt 1 failed.")
	assert.Contains(t, last, "Error type: GenerationError")
	assert.Contains(t, last, "Attempt 2 failed.")
	assert.Contains(t, last, "Error type: ExecutionError")
	assert.Contains(t, last, `unknown column "missing"`)

	// The first prompt has no failure preamble.
	assert.NotContains(t, cm.prompts[0], "YOUR PREVIOUS CODE FAILED")
}

func TestAnalyzeFallbackModelOnFinalAttempt(t *testing.T) {
	cm := &scriptedModel{script: []scripted{
		{text: "nope"},
		{text: "still nope"},
		{text: codeResponse(goodAnalysisCode)},
	}}
	models := &fakeBuilder{cm: cm}

	res := NewAnalyst(models, 2, noLog).Analyze(context.Background(), "top 5", suppliersHandle(t))

	require.True(t, res.Success, res.Err)
	assert.Equal(t, 3, res.Attempts)
	// Attempts 1..R on the primary, attempt R+1 on the fallback.
	assert.Equal(t, []bool{false, false, true}, models.fallbackCalls)
}

func TestAnalyzeExhaustsBudget(t *testing.T) {
	cm := &scriptedModel{script: []scripted{
		{text: "a"}, {text: "b"}, {text: "c"}, {text: "d"},
	}}
	models := &fakeBuilder{cm: cm}

	res := NewAnalyst(models, 3, noLog).Analyze(context.Background(), "top 5", suppliersHandle(t))

	require.False(t, res.Success)
	assert.Equal(t, 4, res.Attempts)
	assert.Equal(t, []bool{false, false, false, true}, models.fallbackCalls)
	assert.Contains(t, res.Err, "did not return a <code> block")
}

func TestAnalyzeZeroRetriesGoesStraightToFallback(t *testing.T) {
	cm := &scriptedModel{script: []scripted{
		{text: codeResponse(goodAnalysisCode)},
	}}
	models := &fakeBuilder{cm: cm}

	res := NewAnalyst(models, 0, noLog).Analyze(context.Background(), "top 5", suppliersHandle(t))

	require.True(t, res.Success, res.Err)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, []bool{true}, models.fallbackCalls)
}

func TestAnalyzeMissingCollectIsValidationError(t *testing.T) {
	cm := &scriptedModel{script: []scripted{
		{text: codeResponse(`result = lf.head(3)`)}, // forgot collect()
		{text: codeResponse(goodAnalysisCode)},
	}}
	models := &fakeBuilder{cm: cm}

	res := NewAnalyst(models, 3, noLog).Analyze(context.Background(), "top 5", suppliersHandle(t))

	require.True(t, res.Success, res.Err)
	assert.Equal(t, 2, res.Attempts)
	assert.Contains(t, cm.prompts[1], "Error type: ValidationError")
	assert.Contains(t, cm.prompts[1], "Did you forget .collect()")
}

func TestAnalyzeWrongResultTypeIsValidationError(t *testing.T) {
	cm := &scriptedModel{script: []scripted{
		{text: codeResponse(`result = 42`)},
	}}
	models := &fakeBuilder{cm: cm}

	res := NewAnalyst(models, 0, noLog).Analyze(context.Background(), "top 5", suppliersHandle(t))

	require.False(t, res.Success)
	assert.Contains(t, res.Err, "`result` must be a DataFrame, got int")
}

func TestAnalyzeModelErrorsAreRetried(t *testing.T) {
	cm := &scriptedModel{script: []scripted{
		{err: fmt.Errorf("rate limited")},
		{text: codeResponse(goodAnalysisCode)},
	}}
	models := &fakeBuilder{cm: cm}

	res := NewAnalyst(models, 3, noLog).Analyze(context.Background(), "top 5", suppliersHandle(t))

	require.True(t, res.Success, res.Err)
	assert.Equal(t, 2, res.Attempts)
	assert.Contains(t, cm.prompts[1], "Error type: ModelError")
	assert.Contains(t, cm.prompts[1], "rate limited")
}

func TestAnalyzeSchemaFailureSkipsLoop(t *testing.T) {
	h := &memHandle{schemaErr: fmt.Errorf("file vanished")}
	cm := &scriptedModel{}
	models := &fakeBuilder{cm: cm}

	res := NewAnalyst(models, 3, noLog).Analyze(context.Background(), "top 5", h)

	require.False(t, res.Success)
	assert.Contains(t, res.Err, "failed to inspect dataset schema")
	assert.Zero(t, cm.calls, "no model call happens without a schema")
}

func TestAnalyzeKeepsLastCodeOnFailure(t *testing.T) {
	badCode := `result = lf.select("missing").collect()`
	cm := &scriptedModel{script: []scripted{
		{text: codeResponse(badCode)},
	}}
	models := &fakeBuilder{cm: cm}

	res := NewAnalyst(models, 0, noLog).Analyze(context.Background(), "top 5", suppliersHandle(t))

	require.False(t, res.Success)
	assert.Equal(t, badCode, res.Code)
}

func TestVizGeneratorSelfHeals(t *testing.T) {
	frame := suppliersHandle(t).frame
	cm := &scriptedModel{script: []scripted{
		{text: codeResponse(`fig = chart.bar(df, x="supplier_name", y="nope")`)},
		{text: codeResponse(`fig = chart.bar(df, x="supplier_name", y="total_revenue", title="Revenue")`)},
	}}
	models := &fakeBuilder{cm: cm}

	res := NewVizGenerator(models, 3, noLog).Generate(context.Background(), "bar of revenue", frame)

	require.True(t, res.Success, res.Err)
	assert.Equal(t, 2, res.Attempts)
	require.NotNil(t, res.Chart)
	assert.Equal(t, "bar", res.Chart.Type)
	assert.Equal(t, "Revenue", res.Chart.Title)
	assert.Contains(t, cm.prompts[1], `unknown column "nope"`)
}

func TestVizGeneratorMissingFig(t *testing.T) {
	frame := suppliersHandle(t).frame
	cm := &scriptedModel{script: []scripted{
		{text: codeResponse(`x = 1`)},
	}}
	models := &fakeBuilder{cm: cm}

	res := NewVizGenerator(models, 0, noLog).Generate(context.Background(), "chart", frame)

	require.False(t, res.Success)
	assert.Contains(t, res.Err, "did not define a `fig` variable")
}
