package ps

import (
	"encoding/json"
	"fmt"
	"path"

	"github.com/go-git/go-git/v6/plumbing/filemode"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/nickyhof/crossdb/core"
)

const (
	tablesDir  = "tables"
	schemaFile = "schema.json"
	rowsFile   = "rows.json"
)

func tablePath(name string) string {
	return path.Join(tablesDir, tableKey(name))
}

// SaveTables writes the changed tables as one commit. Dropped tables
// (nil Table) lose their directory. Nothing is committed when changes is
// empty.
func (p *Persistence) SaveTables(changes []Change, identity core.Identity, message string) (Transaction, error) {
	if err := p.ensureInitialized(); err != nil {
		return Transaction{}, err
	}
	if len(changes) == 0 {
		return Transaction{}, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	currentTree, err := p.getCurrentTree()
	if err != nil {
		return Transaction{}, err
	}

	treeChanges := make([]TreeChange, 0, 2*len(changes))
	for _, change := range changes {
		dir := tablePath(change.Name)
		if change.Table == nil {
			treeChanges = append(treeChanges, TreeChange{Path: dir, IsDelete: true})
			continue
		}

		schema, err := json.Marshal(change.Table.Schema)
		if err != nil {
			return Transaction{}, fmt.Errorf("failed to encode schema of %s: %w", change.Name, err)
		}
		rows, err := json.Marshal(change.Table.rows)
		if err != nil {
			return Transaction{}, fmt.Errorf("failed to encode rows of %s: %w", change.Name, err)
		}

		for file, data := range map[string][]byte{schemaFile: schema, rowsFile: rows} {
			blobHash, err := p.createBlob(data)
			if err != nil {
				return Transaction{}, fmt.Errorf("failed to create blob for %s: %w", change.Name, err)
			}
			treeChanges = append(treeChanges, TreeChange{
				Path:     path.Join(dir, file),
				BlobHash: blobHash,
			})
		}
	}

	newTree, err := p.batchUpdateTree(currentTree, treeChanges)
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to update tree: %w", err)
	}

	txn, err := p.createCommit(newTree, identity, message)
	if err != nil {
		return Transaction{}, err
	}

	if err := p.syncWorktree(); err != nil {
		return Transaction{}, fmt.Errorf("failed to sync worktree: %w", err)
	}

	return txn, nil
}

// LoadTables reads every table of the latest snapshot.
func (p *Persistence) LoadTables() ([]*TableData, error) {
	if err := p.ensureInitialized(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	root, err := p.headTree()
	if err != nil || root == nil {
		return nil, err
	}

	dir, err := root.Tree(tablesDir)
	if err != nil {
		// no table was ever committed
		return nil, nil
	}

	var tables []*TableData
	for _, entry := range dir.Entries {
		if entry.Mode != filemode.Dir {
			continue
		}

		t, err := loadTable(dir, entry.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to load table %s: %w", entry.Name, err)
		}
		tables = append(tables, t)
	}

	return tables, nil
}

func loadTable(dir *object.Tree, name string) (*TableData, error) {
	var schema core.Table
	if err := readJSON(dir, path.Join(name, schemaFile), &schema); err != nil {
		return nil, err
	}

	var rows [][]core.Value
	if err := readJSON(dir, path.Join(name, rowsFile), &rows); err != nil {
		return nil, err
	}

	t := NewTableData(schema)
	for _, cells := range rows {
		if err := t.Insert(cells); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func readJSON(tree *object.Tree, filePath string, v any) error {
	file, err := tree.File(filePath)
	if err != nil {
		return fmt.Errorf("file not found: %w", err)
	}

	content, err := file.Contents()
	if err != nil {
		return fmt.Errorf("failed to read contents: %w", err)
	}

	return json.Unmarshal([]byte(content), v)
}
