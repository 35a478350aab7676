package dataset

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"     // mysql driver
	_ "github.com/snowflakedb/gosnowflake" // snowflake driver
)

// SQLHandle is a lazy handle over one table of a remote database. The schema
// is probed with a zero-row query; Materialize pulls the whole table.
type SQLHandle struct {
	driver string // "mysql" or "snowflake"
	dsn    string
	table  string

	schema Schema
}

// NewSQLHandle creates a handle over driver/dsn/table. Supported drivers are
// "mysql" (also used for Doris) and "snowflake".
func NewSQLHandle(driver, dsn, table string) (*SQLHandle, error) {
	switch driver {
	case "mysql", "snowflake":
	default:
		return nil, fmt.Errorf("unsupported sql driver: %s", driver)
	}
	return &SQLHandle{driver: driver, dsn: dsn, table: table}, nil
}

// MySQLDSN builds a mysql DSN the way the import path expects it.
func MySQLDSN(user, password, host, port, database string) string {
	if port == "" {
		port = "3306"
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?allowNativePasswords=true", user, password, host, port, database)
}

// Source returns driver and table, never the DSN (it carries credentials).
func (h *SQLHandle) Source() string {
	return fmt.Sprintf("%s:%s", h.driver, h.table)
}

func (h *SQLHandle) connect() (*sql.DB, error) {
	db, err := sql.Open(h.driver, h.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", h.driver, err)
	}
	return db, nil
}

// Schema probes the table with a zero-row select so no data is transferred.
func (h *SQLHandle) Schema() (Schema, error) {
	if h.schema != nil {
		return h.schema, nil
	}

	db, err := h.connect()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(fmt.Sprintf("SELECT * FROM %s LIMIT 0", h.table))
	if err != nil {
		return nil, fmt.Errorf("failed to probe table %s: %w", h.table, err)
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read column types: %w", err)
	}

	schema := make(Schema, len(colTypes))
	for i, ct := range colTypes {
		schema[i] = Column{Name: ct.Name(), Type: mapDBType(ct.DatabaseTypeName())}
	}
	h.schema = schema
	return schema, nil
}

// Materialize pulls the whole table into a frame.
func (h *SQLHandle) Materialize() (*Frame, error) {
	schema, err := h.Schema()
	if err != nil {
		return nil, err
	}

	db, err := h.connect()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(fmt.Sprintf("SELECT * FROM %s", h.table))
	if err != nil {
		return nil, fmt.Errorf("failed to read table %s: %w", h.table, err)
	}
	defer rows.Close()

	frame := &Frame{Columns: schema}
	for rows.Next() {
		cells := make([]any, len(schema))
		ptrs := make([]any, len(schema))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range cells {
			if b, ok := v.([]byte); ok {
				cells[i] = parseCell(string(b), schema[i].Type)
			}
		}
		frame.Rows = append(frame.Rows, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}
	return frame, nil
}

// mapDBType folds driver-specific type names into the schema vocabulary.
func mapDBType(dbType string) string {
	t := strings.ToUpper(dbType)
	switch {
	case strings.Contains(t, "INT"):
		return TypeInteger
	case strings.Contains(t, "FLOAT"), strings.Contains(t, "DOUBLE"),
		strings.Contains(t, "DECIMAL"), strings.Contains(t, "REAL"),
		strings.Contains(t, "NUMBER"), strings.Contains(t, "NUMERIC"):
		return TypeReal
	case strings.Contains(t, "BOOL"):
		return TypeBoolean
	default:
		return TypeText
	}
}
