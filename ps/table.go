package ps

import (
	"iter"
	"strings"

	"github.com/nickyhof/crossdb/core"
)

// TableData holds the schema and the rows of one table. Rows keep
// insertion order. Cell slices are never modified in place once stored,
// so clones may share them.
type TableData struct {
	Schema core.Table
	rows   [][]core.Value
	keys   map[string]int // primary key encoding -> row position
}

func NewTableData(schema core.Table) *TableData {
	return &TableData{
		Schema: schema,
		keys:   make(map[string]int),
	}
}

// tableKey normalizes a table name; names are case-insensitive.
func tableKey(name string) string {
	return strings.ToLower(name)
}

func (t *TableData) Name() string {
	return t.Schema.Name
}

func (t *TableData) Len() int {
	return len(t.rows)
}

// Clone returns a copy whose row list and key map can be changed without
// affecting t.
func (t *TableData) Clone() *TableData {
	clone := &TableData{
		Schema: t.Schema,
		rows:   make([][]core.Value, len(t.rows)),
		keys:   make(map[string]int, len(t.keys)),
	}
	copy(clone.rows, t.rows)
	for k, v := range t.keys {
		clone.keys[k] = v
	}
	return clone
}

// Row returns the cells at position i. Callers must not modify them.
func (t *TableData) Row(i int) []core.Value {
	return t.rows[i]
}

// Scan yields every row in insertion order.
func (t *TableData) Scan() iter.Seq2[int, []core.Value] {
	return func(yield func(int, []core.Value) bool) {
		for i, row := range t.rows {
			if !yield(i, row) {
				return
			}
		}
	}
}

// Lookup finds a row by primary key value.
func (t *TableData) Lookup(pk core.Value) (int, bool) {
	i, ok := t.keys[pk.Key()]
	return i, ok
}

func (t *TableData) primaryKey(cells []core.Value) (string, bool) {
	pk := t.Schema.PrimaryKey()
	if pk < 0 {
		return "", false
	}
	return cells[pk].Key(), true
}

// Insert appends a row. A duplicate primary key fails with
// ConstraintViolation and leaves the table unchanged.
func (t *TableData) Insert(cells []core.Value) error {
	if len(cells) != len(t.Schema.Columns) {
		return core.Errorf(core.TypeMismatch, "table %s has %d columns, got %d values", t.Name(), len(t.Schema.Columns), len(cells))
	}

	key, hasKey := t.primaryKey(cells)
	if hasKey {
		if _, exists := t.keys[key]; exists {
			pkCol := t.Schema.Columns[t.Schema.PrimaryKey()].Name
			return core.Errorf(core.ConstraintViolation, "duplicate primary key %s = %s in table %s",
				pkCol, cells[t.Schema.PrimaryKey()], t.Name())
		}
		t.keys[key] = len(t.rows)
	}

	t.rows = append(t.rows, cells)
	return nil
}

// Replace swaps the row at position i for cells, keeping its position.
func (t *TableData) Replace(i int, cells []core.Value) error {
	oldKey, hasKey := t.primaryKey(t.rows[i])
	if hasKey {
		newKey, _ := t.primaryKey(cells)
		if newKey != oldKey {
			if _, exists := t.keys[newKey]; exists {
				pkCol := t.Schema.Columns[t.Schema.PrimaryKey()].Name
				return core.Errorf(core.ConstraintViolation, "duplicate primary key %s = %s in table %s",
					pkCol, cells[t.Schema.PrimaryKey()], t.Name())
			}
			delete(t.keys, oldKey)
			t.keys[newKey] = i
		}
	}

	t.rows[i] = cells
	return nil
}

// DeleteFunc removes every row for which match returns true and reports
// how many rows were removed. Remaining rows keep their relative order.
func (t *TableData) DeleteFunc(match func(cells []core.Value) (bool, error)) (int, error) {
	kept := make([][]core.Value, 0, len(t.rows))
	for _, row := range t.rows {
		ok, err := match(row)
		if err != nil {
			return 0, err
		}
		if !ok {
			kept = append(kept, row)
		}
	}

	deleted := len(t.rows) - len(kept)
	if deleted == 0 {
		return 0, nil
	}

	t.rows = kept
	t.reindex()
	return deleted, nil
}

func (t *TableData) reindex() {
	t.keys = make(map[string]int, len(t.rows))
	for i, row := range t.rows {
		if key, ok := t.primaryKey(row); ok {
			t.keys[key] = i
		}
	}
}
