package core

import "strings"

type ColumnType int

const (
	IntType ColumnType = iota
	TextType
)

func (t ColumnType) String() string {
	switch t {
	case IntType:
		return "INT"
	case TextType:
		return "TEXT"
	default:
		return "UNKNOWN"
	}
}

type Column struct {
	Name       string     `json:"name"`
	Type       ColumnType `json:"type"`
	PrimaryKey bool       `json:"primaryKey"`
	Width      int        `json:"width,omitempty"` // declared CHAR(n) width, informational only
}

type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// ColumnIndex returns the position of the named column, matched
// case-insensitively, or -1.
func (table Table) ColumnIndex(name string) int {
	for i, col := range table.Columns {
		if strings.EqualFold(col.Name, name) {
			return i
		}
	}
	return -1
}

// PrimaryKey returns the position of the primary key column, or -1 if the
// table has none.
func (table Table) PrimaryKey() int {
	for i, col := range table.Columns {
		if col.PrimaryKey {
			return i
		}
	}
	return -1
}

func (table Table) ColumnNames() []string {
	names := make([]string, len(table.Columns))
	for i, col := range table.Columns {
		names[i] = col.Name
	}
	return names
}
