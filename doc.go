// Package crossdb provides a small embeddable relational database engine.
//
// A Connection executes SQL statements and hands back result sets whose
// rows are read through typed column access. Statements commit on their
// own unless a transaction is open.
//
// # Quick Start
//
//	conn, err := crossdb.Open(":memory:")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Close()
//
//	for _, stmt := range []string{
//	    "CREATE TABLE student (id INT PRIMARY KEY, name CHAR(16), age INT)",
//	    "INSERT INTO student (id, name, age) VALUES (1, 'jack', 10)",
//	} {
//	    rs, err := conn.Execute(stmt)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    rs.Release()
//	}
//
//	rs, err := conn.Execute("SELECT * FROM student")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rs.Release()
//	for row, _ := rs.Next(); row != nil; row, _ = rs.Next() {
//	    id, _ := row.Int(0)
//	    name, _, _ := row.Text(1)
//	    fmt.Println(id, name)
//	}
//
// Every result set must be released, including the empty ones returned
// by DDL and DML statements.
//
// # Persistence
//
// Opening a directory path instead of ":memory:" keeps committed data in
// a git repository there. Every committed transaction, and every
// statement run outside a transaction that changes data, becomes one
// commit.
//
// # Supported SQL
//
//   - CREATE TABLE [IF NOT EXISTS], DROP TABLE [IF EXISTS]
//   - INSERT with optional column list and multiple rows
//   - SELECT columns or COUNT(*) with WHERE, ORDER BY, LIMIT, OFFSET
//   - UPDATE and DELETE with WHERE
//   - WHERE with comparison operators, IS [NOT] NULL, AND, OR
//   - Transactions: BEGIN, COMMIT, ROLLBACK
package crossdb
