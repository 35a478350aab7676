package agent

import (
	"context"
	"fmt"

	"go.starlark.net/starlark"

	"datachat/dataset"
	"datachat/sandbox"
)

// VizGenerator turns a chart request plus a materialized frame into a chart
// artifact, self-healing on errors just like the analyst. It never sees the
// lazy dataset handle, only the concrete table to draw.
type VizGenerator struct {
	models     ModelBuilder
	maxRetries int
	log        func(string)
}

// NewVizGenerator creates a chart generator with the given self-healing
// budget.
func NewVizGenerator(models ModelBuilder, maxRetries int, log func(string)) *VizGenerator {
	return &VizGenerator{models: models, maxRetries: maxRetries, log: log}
}

// Generate runs the self-healing loop for one chart request.
func (g *VizGenerator) Generate(ctx context.Context, question string, f *dataset.Frame) *GenerationResult {
	task := codeTask{
		name:       "chart",
		system:     vizSystemPrompt,
		basePrompt: buildChartPrompt(question, f),
		fixHints:   chartFixHints,
		buildGlobals: func() (starlark.StringDict, error) {
			return sandbox.ChartGlobals(f), nil
		},
		validate: validateChartResult,
	}
	return runSelfHealing(ctx, g.models, g.maxRetries, g.log, task)
}

// validateChartResult requires `fig` bound to a chart object.
func validateChartResult(globals starlark.StringDict) (artifact, error) {
	v, ok := globals["fig"]
	if !ok {
		return artifact{}, fmt.Errorf("code did not define a `fig` variable. " +
			"Assign the chart: fig = chart.bar(df, ...)")
	}
	cv, ok := v.(*sandbox.ChartValue)
	if !ok {
		return artifact{}, fmt.Errorf("`fig` must be a Chart, got %s", v.Type())
	}
	return artifact{chart: cv.Chart}, nil
}
