package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickyhof/crossdb/core"
	"github.com/nickyhof/crossdb/ps"
)

var testIdentity = core.Identity{Name: "test", Email: "test@test.com"}

func setupTestEngine(t *testing.T) *Engine {
	t.Helper()

	engine, err := NewEngine(nil, testIdentity, nil)
	require.NoError(t, err)

	mustExec(t, engine, "CREATE TABLE users (id INT PRIMARY KEY, name STRING, age INT)")
	return engine
}

func insertTestData(t *testing.T, engine *Engine) {
	t.Helper()

	mustExec(t, engine, "INSERT INTO users (id, name, age) VALUES (1, 'Alice', 30)")
	mustExec(t, engine, "INSERT INTO users (id, name, age) VALUES (2, 'Bob', 25)")
	mustExec(t, engine, "INSERT INTO users (id, name, age) VALUES (3, 'Charlie', 35)")
}

// mustExec runs a statement and releases its result set.
func mustExec(t *testing.T, engine *Engine, query string) {
	t.Helper()

	rs, err := engine.Execute(query)
	require.NoError(t, err, query)
	require.NoError(t, rs.Release())
}

// queryRows collects every row of a query as text, with "NULL" for NULL.
func queryRows(t *testing.T, engine *Engine, query string) [][]string {
	t.Helper()

	rs, err := engine.Execute(query)
	require.NoError(t, err, query)
	defer rs.Release()

	var rows [][]string
	for {
		row, err := rs.Next()
		require.NoError(t, err)
		if row == nil {
			return rows
		}

		cells := make([]string, row.Len())
		for i := range cells {
			s, ok, err := row.Text(i)
			require.NoError(t, err)
			if !ok {
				s = "NULL"
			}
			cells[i] = s
		}
		rows = append(rows, cells)
	}
}

func TestEngineSelect(t *testing.T) {
	engine := setupTestEngine(t)
	insertTestData(t, engine)

	rows := queryRows(t, engine, "SELECT * FROM users")
	assert.Equal(t, [][]string{
		{"1", "Alice", "30"},
		{"2", "Bob", "25"},
		{"3", "Charlie", "35"},
	}, rows)
}

func TestEngineSelectWithWhere(t *testing.T) {
	engine := setupTestEngine(t)
	insertTestData(t, engine)

	rows := queryRows(t, engine, "SELECT name FROM users WHERE age > 28")
	assert.Equal(t, [][]string{{"Alice"}, {"Charlie"}}, rows)

	rows = queryRows(t, engine, "SELECT name FROM users WHERE age < 28 OR name = 'Charlie'")
	assert.Equal(t, [][]string{{"Bob"}, {"Charlie"}}, rows)

	rows = queryRows(t, engine, "SELECT name FROM users WHERE age >= 25 AND name != 'Bob'")
	assert.Equal(t, [][]string{{"Alice"}, {"Charlie"}}, rows)
}

func TestEngineSelectOrderBy(t *testing.T) {
	engine := setupTestEngine(t)
	insertTestData(t, engine)

	rows := queryRows(t, engine, "SELECT name FROM users ORDER BY age DESC")
	assert.Equal(t, [][]string{{"Charlie"}, {"Alice"}, {"Bob"}}, rows)
}

func TestEngineSelectLimit(t *testing.T) {
	engine := setupTestEngine(t)
	insertTestData(t, engine)

	rows := queryRows(t, engine, "SELECT id FROM users ORDER BY id LIMIT 2 OFFSET 1")
	assert.Equal(t, [][]string{{"2"}, {"3"}}, rows)
}

func TestEngineCount(t *testing.T) {
	engine := setupTestEngine(t)
	insertTestData(t, engine)

	rows := queryRows(t, engine, "SELECT COUNT(*) FROM users WHERE age > 26")
	assert.Equal(t, [][]string{{"2"}}, rows)
}

func TestEngineUpdate(t *testing.T) {
	engine := setupTestEngine(t)
	insertTestData(t, engine)

	rs, err := engine.Execute("UPDATE users SET age = 31, name = 'Alicia' WHERE id = 1")
	require.NoError(t, err)
	affected, err := rs.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, 1, affected)
	require.NoError(t, rs.Release())

	rows := queryRows(t, engine, "SELECT name, age FROM users WHERE id = 1")
	assert.Equal(t, [][]string{{"Alicia", "31"}}, rows)
}

func TestEngineDelete(t *testing.T) {
	engine := setupTestEngine(t)
	insertTestData(t, engine)

	mustExec(t, engine, "DELETE FROM users WHERE id = 2")
	rows := queryRows(t, engine, "SELECT id FROM users")
	assert.Equal(t, [][]string{{"1"}, {"3"}}, rows)
}

func TestEngineNullHandling(t *testing.T) {
	engine := setupTestEngine(t)
	mustExec(t, engine, "INSERT INTO users (id, name) VALUES (1, 'Alice')")
	mustExec(t, engine, "INSERT INTO users VALUES (2, NULL, 40)")

	rows := queryRows(t, engine, "SELECT id FROM users WHERE age IS NULL")
	assert.Equal(t, [][]string{{"1"}}, rows)

	rows = queryRows(t, engine, "SELECT id FROM users WHERE name IS NOT NULL")
	assert.Equal(t, [][]string{{"1"}}, rows)

	rows = queryRows(t, engine, "SELECT id FROM users WHERE age < 100")
	assert.Equal(t, [][]string{{"2"}}, rows)
}

func TestEngineErrors(t *testing.T) {
	engine := setupTestEngine(t)
	insertTestData(t, engine)

	tests := []struct {
		query string
		want  error
	}{
		{"SELEC * FROM users", core.ErrSyntax},
		{"EXPLAIN SELECT * FROM users", core.ErrSyntax},
		{"SELECT * FROM missing", core.ErrUnknownTable},
		{"INSERT INTO missing VALUES (1)", core.ErrUnknownTable},
		{"SELECT email FROM users", core.ErrUnknownColumn},
		{"SELECT * FROM users WHERE email = 'x'", core.ErrUnknownColumn},
		{"SELECT * FROM users WHERE age = 'x'", core.ErrTypeMismatch},
		{"CREATE TABLE users (id INT)", core.ErrTableExists},
		{"INSERT INTO users VALUES (1, 'Dup', 1)", core.ErrConstraintViolation},
		{"INSERT INTO users VALUES (NULL, 'NoKey', 1)", core.ErrConstraintViolation},
		{"INSERT INTO users VALUES (4, 'Short')", core.ErrTypeMismatch},
		{"INSERT INTO users VALUES ('4', 'Text', 1)", core.ErrTypeMismatch},
		{"UPDATE users SET id = 2 WHERE id = 1", core.ErrConstraintViolation},
		{"DROP TABLE missing", core.ErrUnknownTable},
		{"COMMIT", core.ErrNoActiveTransaction},
		{"ROLLBACK", core.ErrNoActiveTransaction},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rs, err := engine.Execute(tt.query)
			assert.Nil(t, rs)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	// failures leave the data untouched
	rows := queryRows(t, engine, "SELECT COUNT(*) FROM users")
	assert.Equal(t, [][]string{{"3"}}, rows)
}

func TestEngineMultiRowInsertIsAtomic(t *testing.T) {
	engine := setupTestEngine(t)
	insertTestData(t, engine)

	_, err := engine.Execute("INSERT INTO users VALUES (4, 'Dave', 20), (1, 'Again', 20)")
	assert.ErrorIs(t, err, core.ErrConstraintViolation)

	rows := queryRows(t, engine, "SELECT COUNT(*) FROM users")
	assert.Equal(t, [][]string{{"3"}}, rows)

	rs, err := engine.Execute("INSERT INTO users VALUES (4, 'Dave', 20), (5, 'Eve', 21)")
	require.NoError(t, err)
	affected, _ := rs.RowsAffected()
	assert.Equal(t, 2, affected)
	require.NoError(t, rs.Release())
}

func TestEngineCreateDropIfExists(t *testing.T) {
	engine := setupTestEngine(t)

	mustExec(t, engine, "CREATE TABLE IF NOT EXISTS users (id INT)")
	mustExec(t, engine, "DROP TABLE IF EXISTS missing")
	mustExec(t, engine, "CREATE TABLE items (sku CHAR(12) PRIMARY KEY, qty INTEGER)")

	names, err := engine.TableNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"items", "users"}, names)

	mustExec(t, engine, "DROP TABLE items")
	names, _ = engine.TableNames()
	assert.Equal(t, []string{"users"}, names)
}

func TestEngineDDLResultIsEmpty(t *testing.T) {
	engine := setupTestEngine(t)

	rs, err := engine.Execute("CREATE TABLE t (a INT)")
	require.NoError(t, err)
	defer rs.Release()

	count, err := rs.ColumnCount()
	require.NoError(t, err)
	assert.Zero(t, count)

	row, err := rs.Next()
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestEngineClose(t *testing.T) {
	engine := setupTestEngine(t)
	insertTestData(t, engine)

	rs, err := engine.Execute("SELECT * FROM users")
	require.NoError(t, err)
	row, err := rs.Next()
	require.NoError(t, err)

	require.NoError(t, engine.Begin())
	require.NoError(t, engine.Close())

	_, err = rs.Next()
	assert.ErrorIs(t, err, core.ErrUseAfterRelease)
	_, err = row.Int(0)
	assert.ErrorIs(t, err, core.ErrUseAfterRelease)
	assert.ErrorIs(t, rs.Release(), core.ErrUseAfterRelease)

	_, err = engine.Execute("SELECT * FROM users")
	assert.ErrorIs(t, err, core.ErrAlreadyClosed)
	assert.ErrorIs(t, engine.Begin(), core.ErrAlreadyClosed)
	assert.ErrorIs(t, engine.Close(), core.ErrAlreadyClosed)
	assert.False(t, engine.InTransaction())
}

func TestEnginePersistence(t *testing.T) {
	persistence, err := ps.NewMemoryPersistence()
	require.NoError(t, err)

	engine, err := NewEngine(persistence, testIdentity, nil)
	require.NoError(t, err)

	mustExec(t, engine, "CREATE TABLE users (id INT PRIMARY KEY, name TEXT)")
	rs, err := engine.Execute("INSERT INTO users VALUES (1, 'Alice')")
	require.NoError(t, err)
	txn, err := rs.Transaction()
	require.NoError(t, err)
	assert.NotEmpty(t, txn.Id)
	assert.Equal(t, "test <test@test.com>", txn.Author)
	require.NoError(t, rs.Release())

	latest, err := engine.LatestTransaction()
	require.NoError(t, err)
	assert.Equal(t, txn.Id, latest.Id)

	// a second engine over the same repository sees the committed state
	reopened, err := NewEngine(persistence, testIdentity, nil)
	require.NoError(t, err)
	rows := queryRows(t, reopened, "SELECT name FROM users")
	assert.Equal(t, [][]string{{"Alice"}}, rows)
}
