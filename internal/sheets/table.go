// Package sheets reads and writes single-sheet tables to local .xlsx files or
// Google Sheets.
package sheets

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingColumns is returned when an input table lacks a required column.
var ErrMissingColumns = errors.New("missing required columns")

// Table is one worksheet: a header row followed by data rows.
type Table struct {
	Name   string
	Header []string
	Rows   [][]interface{}
}

// NewTable creates an empty table with the given header.
func NewTable(name string, header ...string) *Table {
	return &Table{Name: name, Header: header}
}

// Append adds one row.
func (t *Table) Append(values ...interface{}) {
	t.Rows = append(t.Rows, values)
}

// Column returns the index of the named column, or -1.
// Names are compared after trimming surrounding spaces.
func (t *Table) Column(name string) int {
	name = strings.TrimSpace(name)
	for i, h := range t.Header {
		if strings.TrimSpace(h) == name {
			return i
		}
	}
	return -1
}

// RequireColumns fails with ErrMissingColumns naming every absent column.
func (t *Table) RequireColumns(names ...string) error {
	var missing []string
	for _, n := range names {
		if t.Column(n) < 0 {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return nil
}

// Value returns the cell at row and col as a string; missing cells are empty.
func (t *Table) Value(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	v := t.Rows[row][col]
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// AddColumn appends a column, returning its index. An existing column of the
// same name is reused so re-running a step overwrites its previous output.
func (t *Table) AddColumn(name string) int {
	if i := t.Column(name); i >= 0 {
		return i
	}
	t.Header = append(t.Header, name)
	return len(t.Header) - 1
}

// Set stores v at row and col, growing the row as needed.
func (t *Table) Set(row, col int, v interface{}) {
	for len(t.Rows[row]) <= col {
		t.Rows[row] = append(t.Rows[row], "")
	}
	t.Rows[row][col] = v
}
