// Package ps provides table storage for crossdb.
//
// Committed tables live in a Store. Writes never touch the Store
// directly: they go to an Overlay, which copies a table on first write
// and is applied to its parent in one step when the statement or the
// transaction commits.
//
//	overlay := ps.NewOverlay(store)
//	users, _ := overlay.Mutable("users")
//	_ = users.Insert([]core.Value{core.Int(1), core.Text("alice")})
//	store.Apply(overlay.Changes())
//
// # Persistence
//
// A Persistence keeps committed snapshots in a git repository, backed by
// go-git. Each committed transaction becomes one commit that rewrites the
// touched tables under tables/<name>/ as schema.json and rows.json.
//
//	persistence, err := ps.NewFilePersistence("/path/to/data")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	tables, err := persistence.LoadTables()
package ps
