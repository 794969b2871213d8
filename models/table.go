package models

import "fmt"

// RawRow maps a column header to its unprocessed cell text.
type RawRow map[string]string

// RawTable holds tabular data exactly as it was loaded from a file or page.
// The normalizer never mutates it.
type RawTable struct {
	Name    string
	Headers []string
	Rows    []RawRow
}

// CleanTable is the result of normalization: typed cells aligned with Columns.
// Every row has len(Columns) cells and column names are unique and non-empty.
type CleanTable struct {
	Name    string
	Columns []string
	Rows    [][]Value
}

// NewCleanTable returns an empty table with a copy of the given columns.
func NewCleanTable(name string, columns []string) *CleanTable {
	return &CleanTable{
		Name:    name,
		Columns: append([]string(nil), columns...),
		Rows:    make([][]Value, 0),
	}
}

// ColumnIndex returns the position of a column, or -1 if it is absent.
func (t *CleanTable) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// MustColumn is ColumnIndex returning ErrUnknownColumn for absent columns.
func (t *CleanTable) MustColumn(name string) (int, error) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return -1, fmt.Errorf("%w: %q in table %q", ErrUnknownColumn, name, t.Name)
	}
	return idx, nil
}

// Column returns every cell of the named column in row order.
func (t *CleanTable) Column(name string) []Value {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil
	}
	out := make([]Value, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out
}

// Len returns the number of rows.
func (t *CleanTable) Len() int { return len(t.Rows) }

// ToRaw renders the table back into raw text form. Missing cells become "".
func (t *CleanTable) ToRaw() *RawTable {
	raw := &RawTable{
		Name:    t.Name,
		Headers: append([]string(nil), t.Columns...),
		Rows:    make([]RawRow, len(t.Rows)),
	}
	for i, row := range t.Rows {
		r := make(RawRow, len(t.Columns))
		for j, col := range t.Columns {
			r[col] = row[j].String()
		}
		raw.Rows[i] = r
	}
	return raw
}

// Equal reports whether both tables have the same columns and cells.
func (t *CleanTable) Equal(o *CleanTable) bool {
	if t == nil || o == nil {
		return t == o
	}
	if len(t.Columns) != len(o.Columns) || len(t.Rows) != len(o.Rows) {
		return false
	}
	for i := range t.Columns {
		if t.Columns[i] != o.Columns[i] {
			return false
		}
	}
	for i := range t.Rows {
		for j := range t.Rows[i] {
			if !t.Rows[i][j].Equal(o.Rows[i][j]) {
				return false
			}
		}
	}
	return true
}
