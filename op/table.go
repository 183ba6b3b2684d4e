package op

import (
	"sort"

	"github.com/nickyhof/crossdb/core"
	"github.com/nickyhof/crossdb/ps"
)

// Filter reports whether a row takes part in an operation. A nil Filter
// matches every row.
type Filter func(cells []core.Value) (bool, error)

func (f Filter) match(cells []core.Value) (bool, error) {
	if f == nil {
		return true, nil
	}
	return f(cells)
}

// Assignment sets one column in an UPDATE.
type Assignment struct {
	Column string
	Value  core.Value
}

// Order sorts a selection by one column.
type Order struct {
	Column     string
	Descending bool
}

// Query describes a row selection. Limit < 0 means no limit.
type Query struct {
	Columns []string // empty selects all columns
	Where   Filter
	OrderBy []Order
	Limit   int
	Offset  int
}

// TableOp runs typed operations against one table. Writes go to the
// overlay; a TableOp opened from a plain view is read-only.
type TableOp struct {
	Table   core.Table
	view    ps.View
	overlay *ps.Overlay
}

// GetTable opens a table for reading.
func GetTable(name string, view ps.View) (*TableOp, error) {
	t, ok := view.Table(name)
	if !ok {
		return nil, core.Errorf(core.UnknownTable, "table %s does not exist", name)
	}

	return &TableOp{Table: t.Schema, view: view}, nil
}

// OpenTable opens a table for reading and writing through overlay.
func OpenTable(name string, overlay *ps.Overlay) (*TableOp, error) {
	op, err := GetTable(name, overlay)
	if err != nil {
		return nil, err
	}
	op.overlay = overlay
	return op, nil
}

func CreateTable(table core.Table, overlay *ps.Overlay) (*TableOp, error) {
	if len(table.Columns) == 0 {
		return nil, core.Errorf(core.SyntaxError, "table %s has no columns", table.Name)
	}

	if _, err := overlay.Create(table); err != nil {
		return nil, err
	}

	return &TableOp{Table: table, view: overlay, overlay: overlay}, nil
}

func DropTable(name string, overlay *ps.Overlay) error {
	return overlay.Drop(name)
}

func (op *TableOp) data() *ps.TableData {
	t, _ := op.view.Table(op.Table.Name)
	return t
}

func (op *TableOp) mutable() (*ps.TableData, error) {
	if op.overlay == nil {
		return nil, core.Errorf(core.StorageError, "table %s is opened read-only", op.Table.Name)
	}
	return op.overlay.Mutable(op.Table.Name)
}

// ColumnIndex resolves a column name or fails with UnknownColumn.
func (op *TableOp) ColumnIndex(name string) (int, error) {
	i := op.Table.ColumnIndex(name)
	if i < 0 {
		return -1, core.Errorf(core.UnknownColumn, "column %s does not exist in table %s", name, op.Table.Name)
	}
	return i, nil
}

func (op *TableOp) columnIndexes(names []string) ([]int, error) {
	indexes := make([]int, len(names))
	for i, name := range names {
		idx, err := op.ColumnIndex(name)
		if err != nil {
			return nil, err
		}
		indexes[i] = idx
	}
	return indexes, nil
}

// Insert adds rows. With a column list, values map to those columns and
// the rest are NULL; without one, each row must supply every column in
// table order. Rows are checked and inserted in order; on error the
// overlay holds a partial result and must be discarded.
func (op *TableOp) Insert(columns []string, rows [][]core.Value) (int, error) {
	positions := make([]int, len(op.Table.Columns))
	for i := range positions {
		positions[i] = i
	}
	if len(columns) > 0 {
		var err error
		if positions, err = op.columnIndexes(columns); err != nil {
			return 0, err
		}
		seen := make(map[int]bool, len(positions))
		for i, pos := range positions {
			if seen[pos] {
				return 0, core.Errorf(core.SyntaxError, "column %s listed twice", columns[i])
			}
			seen[pos] = true
		}
	}

	t, err := op.mutable()
	if err != nil {
		return 0, err
	}

	for _, values := range rows {
		if len(values) != len(positions) {
			return 0, core.Errorf(core.TypeMismatch, "expected %d values, got %d", len(positions), len(values))
		}

		cells := make([]core.Value, len(op.Table.Columns))
		for i, pos := range positions {
			cells[pos] = values[i]
		}
		for i, col := range op.Table.Columns {
			if err := cells[i].Check(col); err != nil {
				return 0, err
			}
		}

		if err := t.Insert(cells); err != nil {
			return 0, err
		}
	}

	return len(rows), nil
}

// Update applies the assignments to every matching row and returns how
// many rows changed.
func (op *TableOp) Update(assignments []Assignment, where Filter) (int, error) {
	positions := make([]int, len(assignments))
	for i, a := range assignments {
		pos, err := op.ColumnIndex(a.Column)
		if err != nil {
			return 0, err
		}
		if err := a.Value.Check(op.Table.Columns[pos]); err != nil {
			return 0, err
		}
		positions[i] = pos
	}

	t, err := op.mutable()
	if err != nil {
		return 0, err
	}

	updated := 0
	for i := 0; i < t.Len(); i++ {
		row := t.Row(i)
		ok, err := where.match(row)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}

		cells := make([]core.Value, len(row))
		copy(cells, row)
		for j, pos := range positions {
			cells[pos] = assignments[j].Value
		}

		if err := t.Replace(i, cells); err != nil {
			return 0, err
		}
		updated++
	}

	return updated, nil
}

// Delete removes every matching row and returns how many were removed.
func (op *TableOp) Delete(where Filter) (int, error) {
	t, err := op.mutable()
	if err != nil {
		return 0, err
	}
	return t.DeleteFunc(where.match)
}

// Count returns the number of matching rows.
func (op *TableOp) Count(where Filter) (int, error) {
	count := 0
	for _, row := range op.data().Scan() {
		ok, err := where.match(row)
		if err != nil {
			return 0, err
		}
		if ok {
			count++
		}
	}
	return count, nil
}

// Select returns the projected rows of a query. The returned cells are
// fresh slices owned by the caller.
func (op *TableOp) Select(query Query) ([]core.Column, [][]core.Value, error) {
	projection := make([]int, len(op.Table.Columns))
	for i := range projection {
		projection[i] = i
	}
	if len(query.Columns) > 0 {
		var err error
		if projection, err = op.columnIndexes(query.Columns); err != nil {
			return nil, nil, err
		}
	}

	orderBy := make([]int, len(query.OrderBy))
	for i, o := range query.OrderBy {
		pos, err := op.ColumnIndex(o.Column)
		if err != nil {
			return nil, nil, err
		}
		orderBy[i] = pos
	}

	var matched [][]core.Value
	for _, row := range op.data().Scan() {
		ok, err := query.Where.match(row)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			matched = append(matched, row)
		}
	}

	if len(orderBy) > 0 {
		var sortErr error
		sort.SliceStable(matched, func(a, b int) bool {
			for i, pos := range orderBy {
				c, err := core.Compare(matched[a][pos], matched[b][pos])
				if err != nil {
					sortErr = err
					return false
				}
				if c == 0 {
					continue
				}
				if query.OrderBy[i].Descending {
					return c > 0
				}
				return c < 0
			}
			return false
		})
		if sortErr != nil {
			return nil, nil, sortErr
		}
	}

	if query.Offset > 0 {
		if query.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[query.Offset:]
		}
	}
	if query.Limit >= 0 && query.Limit < len(matched) {
		matched = matched[:query.Limit]
	}

	columns := make([]core.Column, len(projection))
	for i, pos := range projection {
		columns[i] = op.Table.Columns[pos]
	}

	rows := make([][]core.Value, len(matched))
	for i, row := range matched {
		cells := make([]core.Value, len(projection))
		for j, pos := range projection {
			cells[j] = row[pos]
		}
		rows[i] = cells
	}

	return columns, rows, nil
}
