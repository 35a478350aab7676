package sandbox

import (
	"fmt"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"datachat/dataset"
)

// LazyFrameValue wraps a dataset.LazyFrame as the `lf` binding of analysis
// code. Its methods mirror the pipeline verbs and each returns a new value.
type LazyFrameValue struct {
	LF *dataset.LazyFrame
}

var (
	_ starlark.Value    = (*LazyFrameValue)(nil)
	_ starlark.HasAttrs = (*LazyFrameValue)(nil)
)

func (v *LazyFrameValue) String() string        { return "<LazyFrame>" }
func (v *LazyFrameValue) Type() string          { return "LazyFrame" }
func (v *LazyFrameValue) Freeze()               {}
func (v *LazyFrameValue) Truth() starlark.Bool  { return starlark.True }
func (v *LazyFrameValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: LazyFrame") }

func (v *LazyFrameValue) AttrNames() []string {
	return []string{"collect", "filter", "group_by", "head", "select", "sort"}
}

func (v *LazyFrameValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "select":
		return starlark.NewBuiltin("select", lazySelect).BindReceiver(v), nil
	case "filter":
		return starlark.NewBuiltin("filter", lazyFilter).BindReceiver(v), nil
	case "group_by":
		return starlark.NewBuiltin("group_by", lazyGroupBy).BindReceiver(v), nil
	case "sort":
		return starlark.NewBuiltin("sort", lazySort).BindReceiver(v), nil
	case "head":
		return starlark.NewBuiltin("head", lazyHead).BindReceiver(v), nil
	case "collect":
		return starlark.NewBuiltin("collect", lazyCollect).BindReceiver(v), nil
	}
	return nil, nil
}

func lazySelect(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	recv := b.Receiver().(*LazyFrameValue)
	cols, err := stringArgs(b.Name(), args, kwargs)
	if err != nil {
		return nil, err
	}
	return &LazyFrameValue{LF: recv.LF.Select(cols...)}, nil
}

func lazyFilter(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	recv := b.Receiver().(*LazyFrameValue)
	var column, op string
	var value starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "column", &column, "op", &op, "value", &value); err != nil {
		return nil, err
	}
	goVal, err := starToGo(value)
	if err != nil {
		return nil, err
	}
	return &LazyFrameValue{LF: recv.LF.Filter(column, op, goVal)}, nil
}

func lazyGroupBy(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	recv := b.Receiver().(*LazyFrameValue)
	keys, err := stringArgs(b.Name(), args, kwargs)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("group_by: at least one key column is required")
	}
	return &GroupByValue{lf: recv.LF, keys: keys}, nil
}

func lazySort(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	recv := b.Receiver().(*LazyFrameValue)
	var column string
	descending := false
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "column", &column, "descending?", &descending); err != nil {
		return nil, err
	}
	return &LazyFrameValue{LF: recv.LF.Sort(column, descending)}, nil
}

func lazyHead(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	recv := b.Receiver().(*LazyFrameValue)
	var n int
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "n", &n); err != nil {
		return nil, err
	}
	return &LazyFrameValue{LF: recv.LF.Head(n)}, nil
}

// GroupByValue is the intermediate returned by group_by; only agg is legal.
type GroupByValue struct {
	lf   *dataset.LazyFrame
	keys []string
}

var (
	_ starlark.Value    = (*GroupByValue)(nil)
	_ starlark.HasAttrs = (*GroupByValue)(nil)
)

func (v *GroupByValue) String() string        { return "<GroupBy>" }
func (v *GroupByValue) Type() string          { return "GroupBy" }
func (v *GroupByValue) Freeze()               {}
func (v *GroupByValue) Truth() starlark.Bool  { return starlark.True }
func (v *GroupByValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: GroupBy") }
func (v *GroupByValue) AttrNames() []string   { return []string{"agg"} }

func (v *GroupByValue) Attr(name string) (starlark.Value, error) {
	if name == "agg" {
		return starlark.NewBuiltin("agg", groupByAgg).BindReceiver(v), nil
	}
	return nil, nil
}

func groupByAgg(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	recv := b.Receiver().(*GroupByValue)
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("agg: use agg.sum(...)/agg.count() builders as positional arguments")
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("agg: at least one aggregation is required, e.g. agg.sum(\"revenue\")")
	}
	aggs := make([]dataset.Agg, len(args))
	for i, a := range args {
		av, ok := a.(*AggValue)
		if !ok {
			return nil, fmt.Errorf("agg: argument %d is %s, expected an agg.* builder", i+1, a.Type())
		}
		aggs[i] = av.Agg
	}
	return &LazyFrameValue{LF: recv.lf.GroupAgg(recv.keys, aggs)}, nil
}

// AggValue is a single aggregation built by the agg module.
type AggValue struct {
	Agg dataset.Agg
}

func (v *AggValue) String() string        { return fmt.Sprintf("<agg.%s(%s)>", v.Agg.Op, v.Agg.Col) }
func (v *AggValue) Type() string          { return "Agg" }
func (v *AggValue) Freeze()               {}
func (v *AggValue) Truth() starlark.Bool  { return starlark.True }
func (v *AggValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: Agg") }

// AggModule returns the `agg` namespace with sum/mean/min/max/count builders.
func AggModule() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "agg",
		Members: starlark.StringDict{
			"sum":   starlark.NewBuiltin("agg.sum", aggBuilder("sum")),
			"mean":  starlark.NewBuiltin("agg.mean", aggBuilder("mean")),
			"min":   starlark.NewBuiltin("agg.min", aggBuilder("min")),
			"max":   starlark.NewBuiltin("agg.max", aggBuilder("max")),
			"count": starlark.NewBuiltin("agg.count", aggCount),
		},
	}
}

func aggBuilder(op string) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var column, alias string
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "column", &column, "alias?", &alias); err != nil {
			return nil, err
		}
		if alias == "" {
			alias = column
		}
		return &AggValue{Agg: dataset.Agg{Op: op, Col: column, As: alias}}, nil
	}
}

func aggCount(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	alias := "count"
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "alias?", &alias); err != nil {
		return nil, err
	}
	return &AggValue{Agg: dataset.Agg{Op: "count", As: alias}}, nil
}

// FrameValue wraps a materialized dataset.Frame as the `df` binding of chart
// code and as the value a terminal collect() produces.
type FrameValue struct {
	Frame *dataset.Frame
}

var (
	_ starlark.Value    = (*FrameValue)(nil)
	_ starlark.HasAttrs = (*FrameValue)(nil)
)

func (v *FrameValue) String() string {
	return fmt.Sprintf("<DataFrame %d rows x %d cols>", len(v.Frame.Rows), len(v.Frame.Columns))
}
func (v *FrameValue) Type() string          { return "DataFrame" }
func (v *FrameValue) Freeze()               {}
func (v *FrameValue) Truth() starlark.Bool  { return starlark.Bool(len(v.Frame.Rows) > 0) }
func (v *FrameValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: DataFrame") }
func (v *FrameValue) AttrNames() []string   { return []string{"columns", "head"} }

func (v *FrameValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "columns":
		names := v.Frame.Columns.Names()
		items := make([]starlark.Value, len(names))
		for i, n := range names {
			items[i] = starlark.String(n)
		}
		return starlark.NewList(items), nil
	case "head":
		return starlark.NewBuiltin("head", frameHead).BindReceiver(v), nil
	}
	return nil, nil
}

func frameHead(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	recv := b.Receiver().(*FrameValue)
	var n int
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "n", &n); err != nil {
		return nil, err
	}
	return &FrameValue{Frame: recv.Frame.Head(n)}, nil
}

// lazyCollect is installed on LazyFrameValue via Attr below; defined here so
// the terminal verb lives next to FrameValue.
func lazyCollect(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	recv := b.Receiver().(*LazyFrameValue)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	frame, err := recv.LF.Collect()
	if err != nil {
		return nil, err
	}
	return &FrameValue{Frame: frame}, nil
}

// AnalysisGlobals builds the namespace for analysis code: the lazy frame as
// `lf` plus the `agg` builders. Called fresh per attempt.
func AnalysisGlobals(h dataset.Handle) starlark.StringDict {
	return starlark.StringDict{
		"lf":  &LazyFrameValue{LF: dataset.NewLazyFrame(h)},
		"agg": AggModule(),
	}
}

// ChartGlobals builds the namespace for chart code: the materialized frame
// as `df` plus the `chart` builders. Called fresh per attempt.
func ChartGlobals(f *dataset.Frame) starlark.StringDict {
	return starlark.StringDict{
		"df":    &FrameValue{Frame: f},
		"chart": ChartModule(),
	}
}

// starToGo converts a scalar Starlark value to its Go cell form.
func starToGo(v starlark.Value) (any, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.String:
		return string(val), nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		if n, ok := val.Int64(); ok {
			return n, nil
		}
		return nil, fmt.Errorf("integer out of range: %s", val.String())
	case starlark.Float:
		return float64(val), nil
	}
	return nil, fmt.Errorf("unsupported value type: %s", v.Type())
}

// stringArgs unpacks a varargs call into plain strings.
func stringArgs(name string, args starlark.Tuple, kwargs []starlark.Tuple) ([]string, error) {
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("%s: unexpected keyword arguments", name)
	}
	out := make([]string, len(args))
	for i, a := range args {
		s, ok := starlark.AsString(a)
		if !ok {
			return nil, fmt.Errorf("%s: argument %d is %s, expected a column name string", name, i+1, a.Type())
		}
		out[i] = s
	}
	return out, nil
}
