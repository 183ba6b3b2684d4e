// Package db provides the SQL execution engine for crossdb.
//
// The Engine type is the main entry point for executing SQL statements.
// It parses SQL, runs the statement against the table store and returns
// a ResultSet.
//
// # Engine Usage
//
//	engine, err := db.NewEngine(nil, identity, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	rs, err := engine.Execute("SELECT id, name FROM users WHERE id > 1")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rs.Release()
//
//	for {
//	    row, err := rs.Next()
//	    if err != nil || row == nil {
//	        break
//	    }
//	    id, _ := row.Int(0)
//	    name, ok, _ := row.Text(1) // ok is false for NULL
//	}
//
// # Result Sets
//
// A ResultSet is a generation-checked handle into the engine's arena.
// Releasing it, or closing the engine, frees its rows; any later use of
// the result set or of a row fetched from it fails with UseAfterRelease.
//
// # Transactions
//
// Outside a transaction every statement commits on its own. Begin opens a
// transaction whose changes stay invisible to the base store until
// Commit; Rollback discards them. A failing statement never leaves
// partial changes behind, inside or outside a transaction.
package db
