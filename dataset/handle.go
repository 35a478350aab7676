package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Handle is a lazy reference to a tabular source. Schema inspection never
// loads row data; Materialize loads everything into memory.
type Handle interface {
	// Schema returns the ordered column name/type pairs.
	Schema() (Schema, error)

	// Materialize loads the full source into an in-memory frame.
	Materialize() (*Frame, error)

	// Source describes the underlying source for logs.
	Source() string
}

// sampleRows is how many data rows schema inference reads before stopping.
const sampleRows = 200

// CSVHandle is a lazy handle over a CSV file.
type CSVHandle struct {
	path string

	schema Schema // cached after first inspection
}

// NewCSVHandle creates a handle for the given CSV file path. The file is not
// opened until the schema or the data is requested.
func NewCSVHandle(path string) *CSVHandle {
	return &CSVHandle{path: path}
}

// Source returns the file path.
func (h *CSVHandle) Source() string { return h.path }

// Schema reads the header and a bounded sample of rows to infer column types.
func (h *CSVHandle) Schema() (Schema, error) {
	if h.schema != nil {
		return h.schema, nil
	}

	f, err := os.Open(h.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	if !isHeaderRow(header) {
		return nil, fmt.Errorf("csv file %s has no header row", h.path)
	}

	types := make([]string, len(header))
	for i := 0; i < sampleRows; i++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to sample csv rows: %w", err)
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
		schema[i] = Column{Name: strings.TrimSpace(name), Type: t}
	}
	h.schema = schema
	return schema, nil
}

// Materialize loads the whole CSV into a frame, typing cells per the
// inferred schema.
func (h *CSVHandle) Materialize() (*Frame, error) {
	schema, err := h.Schema()
	if err != nil {
		return nil, err
	}

	f, err := os.Open(h.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	if _, err := r.Read(); err != nil { // skip header
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	frame := &Frame{Columns: schema}
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv row: %w", err)
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

// Open picks a handle implementation from the file extension.
// Supported: .csv, .xlsx.
func Open(path string) (Handle, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return NewCSVHandle(path), nil
	case ".xlsx":
		return NewExcelHandle(path, ""), nil
	default:
		return nil, fmt.Errorf("unsupported file type: %s", path)
	}
}
