package ps

import (
	"sort"
	"sync"
)

// View is read access to a set of tables.
type View interface {
	Table(name string) (*TableData, bool)
	TableNames() []string
}

// Change is the new version of one table, or a drop when Table is nil.
type Change struct {
	Name  string
	Table *TableData
}

// Applier receives the changes of a committed overlay.
type Applier interface {
	View
	Apply(changes []Change)
}

// Store is the base table store of a connection. It is only mutated by
// Apply, which swaps whole table versions under the write lock, so readers
// never observe a partially applied commit.
type Store struct {
	mu     sync.RWMutex
	tables map[string]*TableData
}

func NewStore() *Store {
	return &Store{tables: make(map[string]*TableData)}
}

func (s *Store) Table(name string) (*TableData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[tableKey(name)]
	return t, ok
}

// TableNames returns the table names in sorted order.
func (s *Store) TableNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.tables))
	for _, t := range s.tables {
		names = append(names, t.Name())
	}
	sort.Strings(names)
	return names
}

func (s *Store) Apply(changes []Change) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, change := range changes {
		if change.Table == nil {
			delete(s.tables, tableKey(change.Name))
			continue
		}
		s.tables[tableKey(change.Name)] = change.Table
	}
}

// Reset drops every table.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tables = make(map[string]*TableData)
}
