// Package sql provides SQL lexing and parsing for crossdb.
//
// The package includes a lexer that tokenizes SQL strings and a parser
// that produces statements for the executor in package db.
//
// # Parser Usage
//
//	statement, err := sql.Parse("SELECT * FROM users WHERE id = 1")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Classify only looks at the leading keyword:
//
//	kind, err := sql.Classify("insert into users values (1, 'a')") // InsertStatementType
//
// # Supported Statements
//
//   - CREATE TABLE [IF NOT EXISTS] t (col INT|TEXT|CHAR(n) [PRIMARY KEY], ...)
//   - DROP TABLE [IF EXISTS] t
//   - INSERT INTO t [(cols)] VALUES (...)[, (...)]
//   - SELECT *|cols|COUNT(*) FROM t [WHERE ...] [ORDER BY ...] [LIMIT n [OFFSET m]]
//   - UPDATE t SET col = v[, ...] [WHERE ...]
//   - DELETE FROM t [WHERE ...]
//   - BEGIN, COMMIT, ROLLBACK
//
// Every parse failure is a core.SyntaxError.
package sql
