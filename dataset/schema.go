// Package dataset provides lazy handles over tabular sources and an
// in-memory frame the rest of the pipeline computes on. A handle exposes
// its schema without loading row data; materialization is an explicit step.
package dataset

import (
	"fmt"
	"strconv"
	"strings"
)

// Column type tags, SQLite-style.
const (
	TypeInteger = "INTEGER"
	TypeReal    = "REAL"
	TypeText    = "TEXT"
	TypeBoolean = "BOOLEAN"
)

// Column is a named, typed column.
type Column struct {
	Name string
	Type string
}

// Schema is the ordered column list of a tabular source.
type Schema []Column

// Has reports whether the schema contains a column with the given name.
func (s Schema) Has(name string) bool {
	for _, c := range s {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Names returns the column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// Describe renders the schema as the prompt-facing column listing.
func (s Schema) Describe() string {
	var sb strings.Builder
	sb.WriteString("Dataset columns:")
	for _, c := range s {
		sb.WriteString(fmt.Sprintf("\n  - %s: %s", c.Name, c.Type))
	}
	return sb.String()
}

// InferType guesses the column type of a single cell value.
func InferType(val string) string {
	if val == "" {
		return TypeText
	}
	if _, err := strconv.ParseInt(val, 10, 64); err == nil {
		return TypeInteger
	}
	if _, err := strconv.ParseFloat(val, 64); err == nil {
		return TypeReal
	}
	if _, err := strconv.ParseBool(val); err == nil {
		return TypeBoolean
	}
	return TypeText
}

// mergeType widens an already-inferred column type with evidence from one
// more cell. INTEGER widens to REAL, anything conflicting collapses to TEXT.
func mergeType(current, next string) string {
	if current == next {
		return current
	}
	if current == "" {
		return next
	}
	if (current == TypeInteger && next == TypeReal) || (current == TypeReal && next == TypeInteger) {
		return TypeReal
	}
	return TypeText
}

// parseCell converts a raw string cell to a typed Go value according to the
// column type. Unparseable cells fall back to the raw string.
func parseCell(val, colType string) any {
	if val == "" {
		return nil
	}
	switch colType {
	case TypeInteger:
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			return n
		}
	case TypeReal:
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	case TypeBoolean:
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return val
}

// isHeaderRow checks if the row is likely a header row: any numeric cell
// means it is data.
func isHeaderRow(row []string) bool {
	if len(row) == 0 {
		return false
	}
	for _, cell := range row {
		if cell == "" {
			continue
		}
		if _, err := strconv.ParseFloat(cell, 64); err == nil {
			return false
		}
	}
	return true
}
