// Package table holds raw tabular data read from bronze CSV files,
// before any schema normalization is applied.
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Table is an in-memory CSV frame: one header row and zero or more data
// rows. Ragged rows are padded or truncated to the header width on read.
type Table struct {
	Headers []string
	Rows    [][]string
}

// ReadCSV loads a whole CSV file into memory. A missing file surfaces as
// an error satisfying errors.Is(err, os.ErrNotExist) so callers can give
// remediation instructions instead of crashing.
func ReadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("table: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // tolerate ragged rows
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("table: read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("table: %s has no header row", path)
	}

	headers := records[0]
	if len(headers) > 0 {
		// Strip a UTF-8 BOM left by spreadsheet exports.
		headers[0] = strings.TrimPrefix(headers[0], "\uFEFF")
	}

	rows := make([][]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make([]string, len(headers))
		copy(row, rec)
		rows = append(rows, row)
	}
	return &Table{Headers: headers, Rows: rows}, nil
}

// WriteCSV writes the table to path, creating parent directories.
func (t *Table) WriteCSV(path string) error {
	if err := os.MkdirAll(dirOf(path), 0750); err != nil {
		return fmt.Errorf("table: mkdir for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("table: create %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write(t.Headers); err != nil {
		return fmt.Errorf("table: write header: %w", err)
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("table: write rows: %w", err)
	}
	w.Flush()
	return w.Error()
}

// MarshalCSV renders the table as CSV bytes.
func (t *Table) MarshalCSV() ([]byte, error) {
	var buf strings.Builder
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Headers); err != nil {
		return nil, fmt.Errorf("table: marshal header: %w", err)
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return nil, fmt.Errorf("table: marshal rows: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("table: marshal: %w", err)
	}
	return []byte(buf.String()), nil
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Index returns the position of a header, or -1.
func (t *Table) Index(name string) int {
	for i, h := range t.Headers {
		if h == name {
			return i
		}
	}
	return -1
}

// Column returns all values of the named column.
func (t *Table) Column(name string) ([]string, error) {
	idx := t.Index(name)
	if idx < 0 {
		return nil, errors.New("table: no such column " + name)
	}
	values := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[idx]
	}
	return values, nil
}

func dirOf(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i <= 0 {
		return "."
	}
	return path[:i]
}
