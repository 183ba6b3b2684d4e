package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

type ValueKind uint8

const (
	NullKind ValueKind = iota
	IntKind
	TextKind
)

func (kind ValueKind) String() string {
	switch kind {
	case NullKind:
		return "NULL"
	case IntKind:
		return "INT"
	case TextKind:
		return "TEXT"
	default:
		return "UNKNOWN"
	}
}

// Value is a single typed cell. The zero Value is NULL.
type Value struct {
	kind ValueKind
	i64  int64
	str  string
}

func Null() Value {
	return Value{}
}

func Int(n int64) Value {
	return Value{kind: IntKind, i64: n}
}

func Text(s string) Value {
	return Value{kind: TextKind, str: s}
}

func (v Value) Kind() ValueKind {
	return v.kind
}

func (v Value) IsNull() bool {
	return v.kind == NullKind
}

// Int reads the cell as an integer. NULL reads as 0; text fails with
// TypeMismatch.
func (v Value) Int() (int64, error) {
	switch v.kind {
	case IntKind:
		return v.i64, nil
	case NullKind:
		return 0, nil
	default:
		return 0, Errorf(TypeMismatch, "cannot read text value %q as integer", v.str)
	}
}

// Text reads the cell as a string. Integers render in decimal. The second
// result is false for NULL, which is distinct from the empty string.
func (v Value) Text() (string, bool) {
	switch v.kind {
	case TextKind:
		return v.str, true
	case IntKind:
		return strconv.FormatInt(v.i64, 10), true
	default:
		return "", false
	}
}

// String renders the value for display; NULL renders as "NULL".
func (v Value) String() string {
	if s, ok := v.Text(); ok {
		return s
	}
	return "NULL"
}

// Key encodes the value for primary key uniqueness checks. Integers and
// text never collide.
func (v Value) Key() string {
	switch v.kind {
	case IntKind:
		return "i:" + strconv.FormatInt(v.i64, 10)
	case TextKind:
		return "t:" + v.str
	default:
		return "n:"
	}
}

// Check validates the value against a column definition.
func (v Value) Check(col Column) error {
	switch v.kind {
	case NullKind:
		if col.PrimaryKey {
			return Errorf(ConstraintViolation, "primary key column %s cannot be NULL", col.Name)
		}
		return nil
	case IntKind:
		if col.Type != IntType {
			return Errorf(TypeMismatch, "column %s is %s, got integer %d", col.Name, col.Type, v.i64)
		}
	case TextKind:
		if col.Type != TextType {
			return Errorf(TypeMismatch, "column %s is %s, got text %q", col.Name, col.Type, v.str)
		}
	}
	return nil
}

// Compare orders two values. NULL sorts before everything else; an
// integer compared with text fails with TypeMismatch.
func Compare(a, b Value) (int, error) {
	switch {
	case a.kind == NullKind && b.kind == NullKind:
		return 0, nil
	case a.kind == NullKind:
		return -1, nil
	case b.kind == NullKind:
		return 1, nil
	case a.kind != b.kind:
		return 0, Errorf(TypeMismatch, "cannot compare %s with %s", a.kind, b.kind)
	case a.kind == IntKind:
		switch {
		case a.i64 < b.i64:
			return -1, nil
		case a.i64 > b.i64:
			return 1, nil
		}
		return 0, nil
	default:
		switch {
		case a.str < b.str:
			return -1, nil
		case a.str > b.str:
			return 1, nil
		}
		return 0, nil
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case IntKind:
		return []byte(strconv.FormatInt(v.i64, 10)), nil
	case TextKind:
		return json.Marshal(v.str)
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*v = Null()
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Text(s)
	default:
		n, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer cell %s: %w", data, err)
		}
		*v = Int(n)
	}
	return nil
}
