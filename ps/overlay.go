package ps

import (
	"sort"

	"github.com/nickyhof/crossdb/core"
)

// Overlay stages changes on top of a parent view. The first write to a
// table copies it from the parent; reads fall through to the parent for
// untouched tables. Overlays nest: a statement overlay sits on top of a
// transaction overlay, which sits on top of the Store.
type Overlay struct {
	parent View
	tables map[string]*TableData // nil value marks a dropped table
	order  []string
}

func NewOverlay(parent View) *Overlay {
	return &Overlay{
		parent: parent,
		tables: make(map[string]*TableData),
	}
}

func (o *Overlay) Table(name string) (*TableData, bool) {
	key := tableKey(name)
	if t, staged := o.tables[key]; staged {
		return t, t != nil
	}
	return o.parent.Table(name)
}

func (o *Overlay) TableNames() []string {
	set := make(map[string]string)
	for _, name := range o.parent.TableNames() {
		set[tableKey(name)] = name
	}
	for key, t := range o.tables {
		if t == nil {
			delete(set, key)
		} else {
			set[key] = t.Name()
		}
	}

	names := make([]string, 0, len(set))
	for _, name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (o *Overlay) stage(key string, t *TableData) {
	if _, staged := o.tables[key]; !staged {
		o.order = append(o.order, key)
	}
	o.tables[key] = t
}

// Mutable returns a private copy of the named table that may be changed
// freely.
func (o *Overlay) Mutable(name string) (*TableData, error) {
	key := tableKey(name)
	if t, staged := o.tables[key]; staged {
		if t == nil {
			return nil, core.Errorf(core.UnknownTable, "table %s does not exist", name)
		}
		return t, nil
	}

	base, ok := o.parent.Table(name)
	if !ok {
		return nil, core.Errorf(core.UnknownTable, "table %s does not exist", name)
	}

	t := base.Clone()
	o.stage(key, t)
	return t, nil
}

// Create stages a new empty table. It fails with TableExists if the name
// is visible through the overlay.
func (o *Overlay) Create(schema core.Table) (*TableData, error) {
	if _, exists := o.Table(schema.Name); exists {
		return nil, core.Errorf(core.TableExists, "table %s already exists", schema.Name)
	}

	t := NewTableData(schema)
	o.stage(tableKey(schema.Name), t)
	return t, nil
}

// Drop stages the removal of a table.
func (o *Overlay) Drop(name string) error {
	if _, exists := o.Table(name); !exists {
		return core.Errorf(core.UnknownTable, "table %s does not exist", name)
	}
	o.stage(tableKey(name), nil)
	return nil
}

// Changes lists the staged tables in the order they were first touched.
func (o *Overlay) Changes() []Change {
	changes := make([]Change, 0, len(o.order))
	for _, key := range o.order {
		t := o.tables[key]
		name := key
		if t != nil {
			name = t.Name()
		}
		changes = append(changes, Change{Name: name, Table: t})
	}
	return changes
}

func (o *Overlay) Empty() bool {
	return len(o.order) == 0
}

// Apply merges changes into the overlay; it lets a statement overlay be
// committed into a transaction overlay.
func (o *Overlay) Apply(changes []Change) {
	for _, change := range changes {
		o.stage(tableKey(change.Name), change.Table)
	}
}

// Discard drops every staged change.
func (o *Overlay) Discard() {
	o.tables = make(map[string]*TableData)
	o.order = nil
}
