package sandbox

import (
	"fmt"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"datachat/dataset"
	"datachat/viz"
)

// ChartValue wraps a viz.Chart as the value chart builders return; chart
// code must assign one to `fig`.
type ChartValue struct {
	Chart *viz.Chart
}

var _ starlark.Value = (*ChartValue)(nil)

func (v *ChartValue) String() string        { return fmt.Sprintf("<Chart %s %q>", v.Chart.Type, v.Chart.Title) }
func (v *ChartValue) Type() string          { return "Chart" }
func (v *ChartValue) Freeze()               {}
func (v *ChartValue) Truth() starlark.Bool  { return starlark.True }
func (v *ChartValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: Chart") }

// ChartModule returns the `chart` namespace with bar/line/pie/scatter
// builders.
func ChartModule() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "chart",
		Members: starlark.StringDict{
			"bar":     starlark.NewBuiltin("chart.bar", axisChart(viz.TypeBar)),
			"line":    starlark.NewBuiltin("chart.line", axisChart(viz.TypeLine)),
			"pie":     starlark.NewBuiltin("chart.pie", pieChart),
			"scatter": starlark.NewBuiltin("chart.scatter", scatterChart),
		},
	}
}

func axisChart(chartType string) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var df *FrameValue
		var x, y, title, xlabel, ylabel string
		if err := starlark.UnpackArgs(b.Name(), args, kwargs,
			"df", &df, "x", &x, "y", &y, "title?", &title, "xlabel?", &xlabel, "ylabel?", &ylabel); err != nil {
			return nil, err
		}

		labels, err := columnLabels(df.Frame, x)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		values, err := columnFloats(df.Frame, y)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}

		return &ChartValue{Chart: &viz.Chart{
			Type:   chartType,
			Title:  title,
			XLabel: orDefault(xlabel, x),
			YLabel: orDefault(ylabel, y),
			Labels: labels,
			Series: []viz.Series{{Name: y, Data: values}},
		}}, nil
	}
}

func pieChart(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var df *FrameValue
	var names, values, title string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"df", &df, "names", &names, "values", &values, "title?", &title); err != nil {
		return nil, err
	}

	labels, err := columnLabels(df.Frame, names)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	data, err := columnFloats(df.Frame, values)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}

	return &ChartValue{Chart: &viz.Chart{
		Type:   viz.TypePie,
		Title:  title,
		Labels: labels,
		Series: []viz.Series{{Name: values, Data: data}},
	}}, nil
}

func scatterChart(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var df *FrameValue
	var x, y, title string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"df", &df, "x", &x, "y", &y, "title?", &title); err != nil {
		return nil, err
	}

	xs, err := columnFloats(df.Frame, x)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	ys, err := columnFloats(df.Frame, y)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}

	return &ChartValue{Chart: &viz.Chart{
		Type:    viz.TypeScatter,
		Title:   title,
		XLabel:  x,
		YLabel:  y,
		XValues: xs,
		Series:  []viz.Series{{Name: y, Data: ys}},
	}}, nil
}

func columnLabels(f *dataset.Frame, column string) ([]string, error) {
	j := f.ColumnIndex(column)
	if j < 0 {
		return nil, fmt.Errorf("unknown column %q, available: %s", column, strings.Join(f.Columns.Names(), ", "))
	}
	labels := make([]string, len(f.Rows))
	for i, row := range f.Rows {
		labels[i] = fmt.Sprintf("%v", row[j])
	}
	return labels, nil
}

func columnFloats(f *dataset.Frame, column string) ([]float64, error) {
	j := f.ColumnIndex(column)
	if j < 0 {
		return nil, fmt.Errorf("unknown column %q, available: %s", column, strings.Join(f.Columns.Names(), ", "))
	}
	values := make([]float64, len(f.Rows))
	for i, row := range f.Rows {
		switch n := row[j].(type) {
		case int64:
			values[i] = float64(n)
		case float64:
			values[i] = n
		case nil:
			values[i] = 0
		default:
			return nil, fmt.Errorf("column %q is not numeric (row %d holds %T)", column, i+1, row[j])
		}
	}
	return values, nil
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
