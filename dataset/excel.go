package dataset

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ExcelHandle is a lazy handle over one sheet of an .xlsx workbook. Schema
// inspection streams only the header plus a bounded sample of rows.
type ExcelHandle struct {
	path  string
	sheet string // empty means first sheet

	schema Schema
}

// NewExcelHandle creates a handle for the given workbook. If sheet is empty
// the first sheet is used.
func NewExcelHandle(path, sheet string) *ExcelHandle {
	return &ExcelHandle{path: path, sheet: sheet}
}

// Source returns the workbook path plus sheet name.
func (h *ExcelHandle) Source() string {
	if h.sheet == "" {
		return h.path
	}
	return h.path + "#" + h.sheet
}

func (h *ExcelHandle) open() (*excelize.File, string, error) {
	f, err := excelize.OpenFile(h.path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open excel file: %w", err)
	}
	sheet := h.sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			f.Close()
			return nil, "", fmt.Errorf("no sheets found in excel file")
		}
		sheet = sheets[0]
	}
	return f, sheet, nil
}

// Schema streams the header row and a sample of data rows.
func (h *ExcelHandle) Schema() (Schema, error) {
	if h.schema != nil {
		return h.schema, nil
	}

	f, sheet, err := h.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, io.ErrUnexpectedEOF
	}
	header, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}
	if !isHeaderRow(header) {
		return nil, fmt.Errorf("sheet %s has no header row", sheet)
	}

	types := make([]string, len(header))
	for i := 0; i < sampleRows && rows.Next(); i++ {
		row, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("failed to sample rows: %w", err)
		}
		for j, cell := range row {
			if j >= len(types) || cell == "" {
				continue
			}
			types[j] = mergeType(types[j], InferType(cell))
		}
	}

	schema := make(Schema, len(header))
	for i, name := range header {
		t := types[i]
		if t == "" {
			t = TypeText
		}
		schema[i] = Column{Name: name, Type: t}
	}
	h.schema = schema
	return schema, nil
}

// Materialize loads the full sheet into a frame.
func (h *ExcelHandle) Materialize() (*Frame, error) {
	schema, err := h.Schema()
	if err != nil {
		return nil, err
	}

	f, sheet, err := h.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	defer rows.Close()

	if !rows.Next() { // skip header
		return &Frame{Columns: schema}, nil
	}

	frame := &Frame{Columns: schema}
	for rows.Next() {
		record, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		row := make([]any, len(schema))
		for i := range schema {
			if i < len(record) {
				row[i] = parseCell(record[i], schema[i].Type)
			}
		}
		frame.Rows = append(frame.Rows, row)
	}
	return frame, nil
}
