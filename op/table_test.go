package op

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickyhof/crossdb/core"
	"github.com/nickyhof/crossdb/ps"
)

func newUsers(t *testing.T) (*ps.Store, *TableOp) {
	t.Helper()

	store := ps.NewStore()
	overlay := ps.NewOverlay(store)
	users, err := CreateTable(core.Table{
		Name: "users",
		Columns: []core.Column{
			{Name: "id", Type: core.IntType, PrimaryKey: true},
			{Name: "name", Type: core.TextType},
			{Name: "age", Type: core.IntType},
		},
	}, overlay)
	require.NoError(t, err)

	_, err = users.Insert(nil, [][]core.Value{
		{core.Int(1), core.Text("alice"), core.Int(30)},
		{core.Int(2), core.Text("bob"), core.Int(25)},
		{core.Int(3), core.Text("carol"), core.Null()},
	})
	require.NoError(t, err)

	store.Apply(overlay.Changes())
	return store, users
}

func nameIs(name string) Filter {
	return func(cells []core.Value) (bool, error) {
		s, _ := cells[1].Text()
		return s == name, nil
	}
}

func TestInsertWithColumnList(t *testing.T) {
	store, _ := newUsers(t)
	overlay := ps.NewOverlay(store)

	users, err := OpenTable("USERS", overlay)
	require.NoError(t, err)

	n, err := users.Insert([]string{"name", "id"}, [][]core.Value{{core.Text("dave"), core.Int(4)}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, rows, err := users.Select(Query{Where: nameIs("dave"), Limit: -1})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0][2].IsNull())
}

func TestInsertErrors(t *testing.T) {
	store, _ := newUsers(t)

	tests := []struct {
		name    string
		columns []string
		rows    [][]core.Value
		want    error
	}{
		{"duplicate key", nil, [][]core.Value{{core.Int(1), core.Text("x"), core.Null()}}, core.ErrConstraintViolation},
		{"duplicate within statement", nil, [][]core.Value{
			{core.Int(9), core.Text("x"), core.Null()},
			{core.Int(9), core.Text("y"), core.Null()},
		}, core.ErrConstraintViolation},
		{"null key", []string{"name"}, [][]core.Value{{core.Text("x")}}, core.ErrConstraintViolation},
		{"wrong arity", nil, [][]core.Value{{core.Int(5)}}, core.ErrTypeMismatch},
		{"wrong type", nil, [][]core.Value{{core.Text("5"), core.Text("x"), core.Null()}}, core.ErrTypeMismatch},
		{"unknown column", []string{"id", "email"}, [][]core.Value{{core.Int(5), core.Text("x")}}, core.ErrUnknownColumn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users, err := OpenTable("users", ps.NewOverlay(store))
			require.NoError(t, err)

			_, err = users.Insert(tt.columns, tt.rows)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	base, _ := store.Table("users")
	assert.Equal(t, 3, base.Len())
}

func TestUpdate(t *testing.T) {
	store, _ := newUsers(t)
	overlay := ps.NewOverlay(store)
	users, err := OpenTable("users", overlay)
	require.NoError(t, err)

	n, err := users.Update([]Assignment{{Column: "age", Value: core.Int(31)}}, nameIs("alice"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = users.Update([]Assignment{{Column: "id", Value: core.Int(2)}}, nameIs("alice"))
	assert.ErrorIs(t, err, core.ErrConstraintViolation)

	_, err = users.Update([]Assignment{{Column: "email", Value: core.Text("x")}}, nil)
	assert.ErrorIs(t, err, core.ErrUnknownColumn)

	n, err = users.Update([]Assignment{{Column: "name", Value: core.Text("zed")}}, nameIs("nobody"))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestDeleteAndCount(t *testing.T) {
	store, _ := newUsers(t)
	users, err := OpenTable("users", ps.NewOverlay(store))
	require.NoError(t, err)

	n, err := users.Delete(nameIs("bob"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	count, err := users.Count(nil)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	n, err = users.Delete(nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSelectOrderLimitOffset(t *testing.T) {
	store, _ := newUsers(t)
	users, err := GetTable("users", store)
	require.NoError(t, err)

	columns, rows, err := users.Select(Query{
		Columns: []string{"name", "age"},
		OrderBy: []Order{{Column: "age", Descending: true}},
		Limit:   2,
		Offset:  1,
	})
	require.NoError(t, err)
	require.Len(t, columns, 2)
	assert.Equal(t, "name", columns[0].Name)
	require.Len(t, rows, 2)
	assert.Equal(t, core.Text("bob"), rows[0][0])
	assert.Equal(t, core.Text("carol"), rows[1][0])

	_, rows, err = users.Select(Query{Limit: -1, Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, _, err = users.Select(Query{Columns: []string{"email"}, Limit: -1})
	assert.ErrorIs(t, err, core.ErrUnknownColumn)
}

func TestReadOnlyTable(t *testing.T) {
	store, _ := newUsers(t)
	users, err := GetTable("users", store)
	require.NoError(t, err)

	_, err = users.Delete(nil)
	assert.Error(t, err)

	_, err = GetTable("missing", store)
	assert.ErrorIs(t, err, core.ErrUnknownTable)
}

func TestCreateAndDropTable(t *testing.T) {
	store, _ := newUsers(t)
	overlay := ps.NewOverlay(store)

	_, err := CreateTable(core.Table{Name: "Users", Columns: []core.Column{{Name: "id"}}}, overlay)
	assert.ErrorIs(t, err, core.ErrTableExists)

	require.NoError(t, DropTable("users", overlay))
	assert.ErrorIs(t, DropTable("users", overlay), core.ErrUnknownTable)
}
