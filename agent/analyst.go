package agent

import (
	"context"
	"fmt"

	"go.starlark.net/starlark"

	"datachat/dataset"
	"datachat/sandbox"
)

// Analyst answers a question by asking the model for Starlark pipeline
// code, running it against the lazy dataset handle, and self-healing on
// failure.
type Analyst struct {
	models     ModelBuilder
	maxRetries int
	log        func(string)
}

// NewAnalyst creates an analyst with the given self-healing budget.
func NewAnalyst(models ModelBuilder, maxRetries int, log func(string)) *Analyst {
	return &Analyst{models: models, maxRetries: maxRetries, log: log}
}

// Analyze runs the full self-healing loop for one question. The generated
// code only sees the lazy frame and the aggregation builders.
func (a *Analyst) Analyze(ctx context.Context, question string, h dataset.Handle) *GenerationResult {
	schema, err := h.Schema()
	if err != nil {
		return &GenerationResult{Success: false, Err: fmt.Sprintf("failed to inspect dataset schema: %v", err)}
	}

	task := codeTask{
		name:       "analyst",
		system:     analystSystemPrompt,
		basePrompt: buildAnalysisPrompt(question, schema.Describe()),
		fixHints:   analysisFixHints,
		buildGlobals: func() (starlark.StringDict, error) {
			return sandbox.AnalysisGlobals(h), nil
		},
		validate: validateAnalysisResult,
	}
	return runSelfHealing(ctx, a.models, a.maxRetries, a.log, task)
}

// validateAnalysisResult requires `result` bound to a materialized
// DataFrame. A LazyFrame means the terminal collect() is missing; that is a
// validation failure even though the code executed cleanly.
func validateAnalysisResult(globals starlark.StringDict) (artifact, error) {
	v, ok := globals["result"]
	if !ok {
		return artifact{}, fmt.Errorf("code did not define a `result` variable. " +
			"Make sure your code ends with: result = lf.[...].collect()")
	}
	switch rv := v.(type) {
	case *sandbox.FrameValue:
		return artifact{frame: rv.Frame}, nil
	case *sandbox.LazyFrameValue:
		return artifact{}, fmt.Errorf("`result` must be a DataFrame, got LazyFrame. " +
			"Did you forget .collect() at the end?")
	default:
		return artifact{}, fmt.Errorf("`result` must be a DataFrame, got %s", v.Type())
	}
}
