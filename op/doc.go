// Package op provides typed table operations for crossdb.
//
// The op package sits between the SQL engine (db/) and table storage
// (ps/). It resolves column names, checks values against the schema and
// applies inserts, updates and deletes to a copy-on-write overlay.
//
//	overlay := ps.NewOverlay(store)
//	users, err := op.OpenTable("users", overlay)
//	n, err := users.Insert([]string{"id", "name"}, [][]core.Value{
//	    {core.Int(1), core.Text("alice")},
//	})
//	_, rows, err := users.Select(op.Query{Limit: -1})
//
// # Architecture
//
// The layering is:
//
//	SQL Parser (sql/)
//	     ↓
//	SQL Engine (db/)
//	     ↓
//	Operations (op/)     ← This package
//	     ↓
//	Storage (ps/)
//	     ↓
//	Git Storage (go-git)
package op
