package dataset

// LazyFrame is a handle plus a pending operation pipeline. Nothing touches
// row data until Collect. Every builder returns a new LazyFrame; the
// receiver is never mutated, so generated code can branch freely.
type LazyFrame struct {
	handle Handle
	ops    []frameOp
}

type frameOp func(*Frame) (*Frame, error)

// NewLazyFrame wraps a handle with an empty pipeline.
func NewLazyFrame(h Handle) *LazyFrame {
	return &LazyFrame{handle: h}
}

// Handle returns the underlying source handle.
func (lf *LazyFrame) Handle() Handle { return lf.handle }

// Schema delegates to the handle; the pipeline does not change what the
// prompt needs to see.
func (lf *LazyFrame) Schema() (Schema, error) { return lf.handle.Schema() }

func (lf *LazyFrame) with(op frameOp) *LazyFrame {
	ops := make([]frameOp, len(lf.ops), len(lf.ops)+1)
	copy(ops, lf.ops)
	return &LazyFrame{handle: lf.handle, ops: append(ops, op)}
}

// Select keeps only the named columns.
func (lf *LazyFrame) Select(names ...string) *LazyFrame {
	return lf.with(func(f *Frame) (*Frame, error) { return f.selectColumns(names) })
}

// Filter keeps rows where column <op> value holds.
func (lf *LazyFrame) Filter(column, op string, value any) *LazyFrame {
	return lf.with(func(f *Frame) (*Frame, error) { return f.filterRows(column, op, value) })
}

// GroupAgg groups by the key columns and computes the aggregations.
func (lf *LazyFrame) GroupAgg(keys []string, aggs []Agg) *LazyFrame {
	return lf.with(func(f *Frame) (*Frame, error) { return f.groupAgg(keys, aggs) })
}

// Sort orders rows by one column.
func (lf *LazyFrame) Sort(column string, descending bool) *LazyFrame {
	return lf.with(func(f *Frame) (*Frame, error) { return f.sortRows(column, descending) })
}

// Head truncates to the first n rows.
func (lf *LazyFrame) Head(n int) *LazyFrame {
	return lf.with(func(f *Frame) (*Frame, error) { return f.Head(n), nil })
}

// Collect materializes the handle and runs the pipeline.
func (lf *LazyFrame) Collect() (*Frame, error) {
	frame, err := lf.handle.Materialize()
	if err != nil {
		return nil, err
	}
	for _, op := range lf.ops {
		frame, err = op(frame)
		if err != nil {
			return nil, err
		}
	}
	return frame, nil
}
