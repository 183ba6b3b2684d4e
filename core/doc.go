// Package core provides core types used throughout crossdb.
//
// The package defines the typed cell (Value), the table schema types
// (Table, Column, ColumnType), the commit author (Identity) and the
// error kinds every other package reports.
//
// # Values
//
// A Value is NULL, an integer or a text string:
//
//	v := core.Int(42)
//	n, err := v.Int()          // 42, nil
//	s, ok := v.Text()          // "42", true
//	_, ok = core.Null().Text() // "", false: NULL is not the empty string
//
// # Column Types
//
// Supported column types:
//   - IntType: 64-bit signed integers (INT, INTEGER, BIGINT)
//   - TextType: strings (TEXT, STRING, CHAR(n), VARCHAR(n))
//
// # Errors
//
// Every failure carries an ErrorKind. Match kinds with errors.Is against
// the Err* sentinels, or extract the kind with KindOf:
//
//	if errors.Is(err, core.ErrConstraintViolation) {
//	    // duplicate primary key
//	}
package core
