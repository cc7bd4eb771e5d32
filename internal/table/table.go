// Package table implements the rectangular, column-named dataset that flows
// through every pipeline stage.
//
// A Table is immutable once constructed: transforms build new tables instead
// of editing the one they were given, so a table handed to a validator or an
// uploader can never change underneath it. Cells hold one of:
//
//	nil      missing value
//	string   text
//	int64    integer
//	float64  real
//	bool     boolean
package table

import (
	"fmt"
	"strings"
)

// Value is a single cell.
type Value = any

// Table is an ordered set of uniquely named columns over rows of equal width.
type Table struct {
	cols []string
	idx  map[string]int
	rows [][]Value
}

// New builds a Table. Column names must be unique and every row must have
// exactly len(columns) cells. New takes ownership of rows; callers must not
// modify them afterwards.
func New(columns []string, rows [][]Value) (*Table, error) {
	idx := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := idx[c]; dup {
			return nil, fmt.Errorf("table: duplicate column %q", c)
		}
		idx[c] = i
	}
	for i, r := range rows {
		if len(r) != len(columns) {
			return nil, fmt.Errorf("table: row %d has %d cells, want %d", i, len(r), len(columns))
		}
	}
	cols := append([]string(nil), columns...)
	if rows == nil {
		rows = [][]Value{}
	}
	return &Table{cols: cols, idx: idx, rows: rows}, nil
}

// MustNew is New for literals in tests and built-in fixtures. It panics on a
// malformed table.
func MustNew(columns []string, rows ...[]Value) *Table {
	t, err := New(columns, rows)
	if err != nil {
		panic(err)
	}
	return t
}

// Columns returns a copy of the column names in order.
func (t *Table) Columns() []string { return append([]string(nil), t.cols...) }

// Width is the number of columns.
func (t *Table) Width() int { return len(t.cols) }

// Len is the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Has reports whether the table has a column called name.
func (t *Table) Has(name string) bool {
	_, ok := t.idx[name]
	return ok
}

// ColumnIndex returns the position of name.
func (t *Table) ColumnIndex(name string) (int, bool) {
	i, ok := t.idx[name]
	return i, ok
}

// At returns the cell at (row, col) by position.
func (t *Table) At(row, col int) Value { return t.rows[row][col] }

// Get returns the cell in row for the named column.
func (t *Table) Get(row int, name string) (Value, bool) {
	i, ok := t.idx[name]
	if !ok {
		return nil, false
	}
	return t.rows[row][i], true
}

// Row returns a copy of row i.
func (t *Table) Row(i int) []Value { return append([]Value(nil), t.rows[i]...) }

// Column returns a copy of the named column's cells.
func (t *Table) Column(name string) ([]Value, bool) {
	i, ok := t.idx[name]
	if !ok {
		return nil, false
	}
	out := make([]Value, len(t.rows))
	for r, row := range t.rows {
		out[r] = row[i]
	}
	return out, true
}

// Equal reports whether both tables have the same columns in the same order
// and identical cells, including cell types.
func (t *Table) Equal(o *Table) bool {
	if t == nil || o == nil {
		return t == o
	}
	if len(t.cols) != len(o.cols) || len(t.rows) != len(o.rows) {
		return false
	}
	for i := range t.cols {
		if t.cols[i] != o.cols[i] {
			return false
		}
	}
	for r := range t.rows {
		for c := range t.rows[r] {
			if t.rows[r][c] != o.rows[r][c] {
				return false
			}
		}
	}
	return true
}

// String renders a small, human-readable dump. Intended for test failures and
// verbose logs, not for serialization.
func (t *Table) String() string {
	var b strings.Builder
	b.WriteString(strings.Join(t.cols, " | "))
	for _, r := range t.rows {
		b.WriteString("\n")
		for i, v := range r {
			if i > 0 {
				b.WriteString(" | ")
			}
			fmt.Fprintf(&b, "%#v", v)
		}
	}
	return b.String()
}
