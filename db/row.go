package db

import (
	"github.com/nickyhof/crossdb/core"
)

// RowBuffer is one row fetched from a ResultSet. It stays readable until
// the result set is released.
type RowBuffer struct {
	result *ResultSet
	cells  []core.Value
}

func (row *RowBuffer) cell(i int) (core.Value, error) {
	if row == nil {
		return core.Value{}, core.Errorf(core.UseAfterRelease, "row is nil")
	}
	if _, err := row.result.data(); err != nil {
		return core.Value{}, err
	}
	if i < 0 || i >= len(row.cells) {
		return core.Value{}, core.Errorf(core.ColumnIndexOutOfRange, "column index %d out of range [0, %d)", i, len(row.cells))
	}
	return row.cells[i], nil
}

// Len returns the number of columns in the row.
func (row *RowBuffer) Len() int {
	return len(row.cells)
}

// Value returns the typed cell at column i.
func (row *RowBuffer) Value(i int) (core.Value, error) {
	return row.cell(i)
}

// Int returns column i as an integer. NULL reads as 0; text fails with
// TypeMismatch.
func (row *RowBuffer) Int(i int) (int64, error) {
	v, err := row.cell(i)
	if err != nil {
		return 0, err
	}
	return v.Int()
}

// Text returns column i as text. Integers are rendered in decimal. The
// boolean is false for NULL.
func (row *RowBuffer) Text(i int) (string, bool, error) {
	v, err := row.cell(i)
	if err != nil {
		return "", false, err
	}
	s, ok := v.Text()
	return s, ok, nil
}
