package dataset

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Frame is a fully materialized in-memory table. Cells hold nil, int64,
// float64, bool or string.
type Frame struct {
	Columns Schema
	Rows    [][]any
}

// ColumnIndex returns the position of the named column, or -1.
func (f *Frame) ColumnIndex(name string) int {
	for i, c := range f.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Head returns a frame with at most n rows. Rows are shared, not copied.
func (f *Frame) Head(n int) *Frame {
	if n < 0 {
		n = 0
	}
	if n > len(f.Rows) {
		n = len(f.Rows)
	}
	return &Frame{Columns: f.Columns, Rows: f.Rows[:n]}
}

// Preview returns the first n rows as maps, for prompt payloads.
func (f *Frame) Preview(n int) []map[string]any {
	head := f.Head(n)
	out := make([]map[string]any, 0, len(head.Rows))
	for _, row := range head.Rows {
		m := make(map[string]any, len(f.Columns))
		for i, c := range f.Columns {
			m[c.Name] = row[i]
		}
		out = append(out, m)
	}
	return out
}

// Render draws the first maxRows rows as a fixed-width text table.
func (f *Frame) Render(maxRows int) string {
	w := table.NewWriter()
	w.SetStyle(table.StyleLight)

	header := make(table.Row, len(f.Columns))
	for i, c := range f.Columns {
		header[i] = c.Name
	}
	w.AppendHeader(header)

	for _, row := range f.Head(maxRows).Rows {
		r := make(table.Row, len(row))
		for i, cell := range row {
			r[i] = cell
		}
		w.AppendRow(r)
	}
	rendered := w.Render()
	if len(f.Rows) > maxRows {
		rendered += fmt.Sprintf("\n(%d more rows)", len(f.Rows)-maxRows)
	}
	return rendered
}

// selectColumns keeps only the named columns, in the given order.
func (f *Frame) selectColumns(names []string) (*Frame, error) {
	idx := make([]int, len(names))
	cols := make(Schema, len(names))
	for i, name := range names {
		j := f.ColumnIndex(name)
		if j < 0 {
			return nil, fmt.Errorf("unknown column %q, available: %s", name, strings.Join(f.Columns.Names(), ", "))
		}
		idx[i] = j
		cols[i] = f.Columns[j]
	}
	out := &Frame{Columns: cols}
	for _, row := range f.Rows {
		r := make([]any, len(idx))
		for i, j := range idx {
			r[i] = row[j]
		}
		out.Rows = append(out.Rows, r)
	}
	return out, nil
}

// filterRows keeps rows where column <op> value holds. Supported operators:
// ==, !=, >, >=, <, <=, contains.
func (f *Frame) filterRows(column, op string, value any) (*Frame, error) {
	j := f.ColumnIndex(column)
	if j < 0 {
		return nil, fmt.Errorf("unknown column %q, available: %s", column, strings.Join(f.Columns.Names(), ", "))
	}

	out := &Frame{Columns: f.Columns}
	for _, row := range f.Rows {
		keep, err := compareCells(row[j], op, value)
		if err != nil {
			return nil, err
		}
		if keep {
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

// sortRows orders rows by one column.
func (f *Frame) sortRows(column string, descending bool) (*Frame, error) {
	j := f.ColumnIndex(column)
	if j < 0 {
		return nil, fmt.Errorf("unknown column %q, available: %s", column, strings.Join(f.Columns.Names(), ", "))
	}

	out := &Frame{Columns: f.Columns, Rows: make([][]any, len(f.Rows))}
	copy(out.Rows, f.Rows)
	sort.SliceStable(out.Rows, func(a, b int) bool {
		less := cellLess(out.Rows[a][j], out.Rows[b][j])
		if descending {
			return cellLess(out.Rows[b][j], out.Rows[a][j])
		}
		return less
	})
	return out, nil
}

// Agg is one aggregation in a group-by: Op over Col, output column As.
type Agg struct {
	Op  string // sum, mean, min, max, count
	Col string // empty for count
	As  string
}

// groupAgg groups rows by the key columns and computes the aggregations.
// Output column order is keys first, then aggregations.
func (f *Frame) groupAgg(keys []string, aggs []Agg) (*Frame, error) {
	if len(aggs) == 0 {
		return nil, fmt.Errorf("group_by requires at least one aggregation")
	}
	keyIdx := make([]int, len(keys))
	for i, k := range keys {
		j := f.ColumnIndex(k)
		if j < 0 {
			return nil, fmt.Errorf("unknown column %q, available: %s", k, strings.Join(f.Columns.Names(), ", "))
		}
		keyIdx[i] = j
	}
	aggIdx := make([]int, len(aggs))
	for i, a := range aggs {
		if a.Op == "count" {
			aggIdx[i] = -1
			continue
		}
		j := f.ColumnIndex(a.Col)
		if j < 0 {
			return nil, fmt.Errorf("unknown column %q, available: %s", a.Col, strings.Join(f.Columns.Names(), ", "))
		}
		aggIdx[i] = j
	}

	cols := make(Schema, 0, len(keys)+len(aggs))
	for _, j := range keyIdx {
		cols = append(cols, f.Columns[j])
	}
	for _, a := range aggs {
		t := TypeReal
		if a.Op == "count" {
			t = TypeInteger
		}
		cols = append(cols, Column{Name: a.As, Type: t})
	}

	type bucket struct {
		keyVals []any
		accs    []*accumulator
	}
	order := make([]string, 0)
	buckets := make(map[string]*bucket)

	for _, row := range f.Rows {
		var kb strings.Builder
		keyVals := make([]any, len(keyIdx))
		for i, j := range keyIdx {
			keyVals[i] = row[j]
			fmt.Fprintf(&kb, "%v\x00", row[j])
		}
		key := kb.String()

		b, ok := buckets[key]
		if !ok {
			b = &bucket{keyVals: keyVals, accs: make([]*accumulator, len(aggs))}
			for i, a := range aggs {
				b.accs[i] = &accumulator{op: a.Op}
			}
			buckets[key] = b
			order = append(order, key)
		}
		for i, j := range aggIdx {
			if j < 0 {
				b.accs[i].add(nil)
				continue
			}
			b.accs[i].add(row[j])
		}
	}

	out := &Frame{Columns: cols}
	for _, key := range order {
		b := buckets[key]
		row := make([]any, 0, len(cols))
		row = append(row, b.keyVals...)
		for _, acc := range b.accs {
			row = append(row, acc.result())
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

// accumulator folds one aggregation over a group. count tracks rows,
// numCount only the numeric cells so mean excludes nulls.
type accumulator struct {
	op       string
	count    int64
	numCount int64
	sum      float64
	min      float64
	max      float64
	seen     bool
}

func (a *accumulator) add(v any) {
	a.count++
	f, ok := toFloat(v)
	if !ok {
		return
	}
	a.numCount++
	a.sum += f
	if !a.seen || f < a.min {
		a.min = f
	}
	if !a.seen || f > a.max {
		a.max = f
	}
	a.seen = true
}

func (a *accumulator) result() any {
	switch a.op {
	case "count":
		return a.count
	case "mean":
		if a.numCount == 0 {
			return nil
		}
		return a.sum / float64(a.numCount)
	case "sum":
		return a.sum
	case "min":
		if !a.seen {
			return nil
		}
		return a.min
	case "max":
		if !a.seen {
			return nil
		}
		return a.max
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

// cellLess orders two cells: numbers numerically, everything else as strings.
// nil sorts first.
func cellLess(a, b any) bool {
	if a == nil {
		return b != nil
	}
	if b == nil {
		return false
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af < bf
	}
	return fmt.Sprintf("%v", a) < fmt.Sprintf("%v", b)
}

// compareCells evaluates "cell <op> value".
func compareCells(cell any, op string, value any) (bool, error) {
	switch op {
	case "==":
		return cellEqual(cell, value), nil
	case "!=":
		return !cellEqual(cell, value), nil
	case ">":
		return cellLess(value, cell), nil
	case "<":
		return cellLess(cell, value), nil
	case ">=":
		return !cellLess(cell, value), nil
	case "<=":
		return !cellLess(value, cell), nil
	case "contains":
		return strings.Contains(
			strings.ToLower(fmt.Sprintf("%v", cell)),
			strings.ToLower(fmt.Sprintf("%v", value)),
		), nil
	default:
		return false, fmt.Errorf("unsupported filter operator %q (use ==, !=, >, >=, <, <=, contains)", op)
	}
}

func cellEqual(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}
