package crossdb

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nickyhof/crossdb/core"
	"github.com/nickyhof/crossdb/db"
)

// TestFunc is the signature for test functions that work with any persistence
type TestFunc func(t *testing.T, conn *Connection)

// runWithBothPersistence runs a test function against an in-memory
// connection and a git-backed one.
func runWithBothPersistence(t *testing.T, testFunc TestFunc) {
	t.Run("Memory", func(t *testing.T) {
		conn, err := Open(MemoryIdentifier, WithLogger(zaptest.NewLogger(t)))
		require.NoError(t, err)
		defer conn.Close()
		testFunc(t, conn)
	})

	t.Run("File", func(t *testing.T) {
		conn, err := Open(t.TempDir(),
			WithLogger(zaptest.NewLogger(t)),
			WithIdentity(core.Identity{Name: "test", Email: "test@test.com"}))
		require.NoError(t, err)
		defer conn.Close()
		testFunc(t, conn)
	})
}

func exec(t *testing.T, conn *Connection, query string) {
	t.Helper()

	rs, err := conn.Execute(query)
	require.NoError(t, err, query)
	require.NoError(t, rs.Release())
}

// fetchAll reads every row of a query, rendering NULL as "NULL".
func fetchAll(t *testing.T, conn *Connection, query string) [][]string {
	t.Helper()

	rs, err := conn.Execute(query)
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

func TestIntegrationScenario(t *testing.T) {
	runWithBothPersistence(t, func(t *testing.T, conn *Connection) {
		exec(t, conn, "CREATE TABLE t (id INT PRIMARY KEY, name TEXT)")
		exec(t, conn, "INSERT INTO t VALUES (1,'a'),(2,'b')")

		rs, err := conn.Execute("SELECT * FROM t")
		require.NoError(t, err)

		row, err := rs.Next()
		require.NoError(t, err)
		id, err := row.Int(0)
		require.NoError(t, err)
		name, ok, err := row.Text(1)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.EqualValues(t, 1, id)
		assert.Equal(t, "a", name)

		row, err = rs.Next()
		require.NoError(t, err)
		id, _ = row.Int(0)
		name, _, _ = row.Text(1)
		assert.EqualValues(t, 2, id)
		assert.Equal(t, "b", name)

		row, err = rs.Next()
		require.NoError(t, err)
		assert.Nil(t, row)
		require.NoError(t, rs.Release())

		exec(t, conn, "DELETE FROM t WHERE id = 1")
		assert.Equal(t, [][]string{{"2", "b"}}, fetchAll(t, conn, "SELECT * FROM t"))
	})
}

// TestIntegrationWorkflow follows the usage example of the C interface.
func TestIntegrationNulByteIsSyntaxError(t *testing.T) {
	runWithBothPersistence(t, func(t *testing.T, conn *Connection) {
		exec(t, conn, "CREATE TABLE t (id INT PRIMARY KEY, name TEXT)")
		exec(t, conn, "INSERT INTO t VALUES (1,'a'),(2,'b')")

		_, err := conn.Execute("DELETE FROM t\x00 WHERE id = 1")
		require.Error(t, err)
		assert.Equal(t, core.SyntaxError, core.KindOf(err))

		assert.Equal(t, [][]string{{"1", "a"}, {"2", "b"}}, fetchAll(t, conn, "SELECT * FROM t ORDER BY id"))
	})
}

func TestIntegrationWorkflow(t *testing.T) {
	runWithBothPersistence(t, func(t *testing.T, conn *Connection) {
		exec(t, conn, "CREATE TABLE users (id INT PRIMARY KEY, name CHAR(50), age INT)")
		exec(t, conn, "INSERT INTO users (id, name, age) VALUES (1, 'Alice', 30), (2, 'Bob', 25), (3, 'Charlie', 35)")

		exec(t, conn, "UPDATE users SET age = 31 WHERE id = 1")
		assert.Equal(t, [][]string{{"1", "Alice", "31"}}, fetchAll(t, conn, "SELECT * FROM users WHERE id = 1"))

		exec(t, conn, "DELETE FROM users WHERE id = 2")
		assert.Equal(t, [][]string{{"1", "Alice", "31"}, {"3", "Charlie", "35"}},
			fetchAll(t, conn, "SELECT * FROM users"))

		require.NoError(t, conn.Begin())
		exec(t, conn, "INSERT INTO users (id, name, age) VALUES (4, 'David', 40)")
		_, err := conn.Commit()
		require.NoError(t, err)

		assert.Equal(t, [][]string{{"4", "David", "40"}}, fetchAll(t, conn, "SELECT * FROM users WHERE id = 4"))
	})
}

func TestIntegrationInsertOrder(t *testing.T) {
	runWithBothPersistence(t, func(t *testing.T, conn *Connection) {
		exec(t, conn, "CREATE TABLE t (id INT PRIMARY KEY, v TEXT)")

		keys := []int{42, 7, 19, -3, 100, 0}
		for _, k := range keys {
			exec(t, conn, fmt.Sprintf("INSERT INTO t VALUES (%d, 'v%d')", k, k))
		}

		rows := fetchAll(t, conn, "SELECT id FROM t")
		require.Len(t, rows, len(keys))
		for i, k := range keys {
			assert.Equal(t, fmt.Sprint(k), rows[i][0])
		}
	})
}

func TestIntegrationDuplicateKey(t *testing.T) {
	runWithBothPersistence(t, func(t *testing.T, conn *Connection) {
		exec(t, conn, "CREATE TABLE t (id INT PRIMARY KEY, v TEXT)")
		exec(t, conn, "INSERT INTO t VALUES (1, 'a')")

		_, err := conn.Execute("INSERT INTO t VALUES (1, 'b')")
		assert.ErrorIs(t, err, core.ErrConstraintViolation)
		assert.Equal(t, core.ConstraintViolation, core.KindOf(err))

		assert.Equal(t, [][]string{{"1", "a"}}, fetchAll(t, conn, "SELECT * FROM t"))
	})
}

func TestIntegrationTransactions(t *testing.T) {
	runWithBothPersistence(t, func(t *testing.T, conn *Connection) {
		exec(t, conn, "CREATE TABLE t (id INT PRIMARY KEY, v TEXT)")
		exec(t, conn, "INSERT INTO t VALUES (1, 'a')")
		before := fetchAll(t, conn, "SELECT * FROM t")

		require.NoError(t, conn.Begin())
		assert.ErrorIs(t, conn.Begin(), core.ErrTransactionAlreadyActive)
		exec(t, conn, "INSERT INTO t VALUES (2, 'b')")
		require.NoError(t, conn.Rollback())
		assert.Equal(t, before, fetchAll(t, conn, "SELECT * FROM t"))

		require.NoError(t, conn.Begin())
		exec(t, conn, "INSERT INTO t VALUES (2, 'b')")
		_, err := conn.Commit()
		require.NoError(t, err)
		assert.False(t, conn.InTransaction())
		assert.Equal(t, [][]string{{"1", "a"}, {"2", "b"}}, fetchAll(t, conn, "SELECT * FROM t"))

		_, err = conn.Commit()
		assert.ErrorIs(t, err, core.ErrNoActiveTransaction)
		assert.ErrorIs(t, conn.Rollback(), core.ErrNoActiveTransaction)

		// SQL transaction statements drive the same controller
		exec(t, conn, "BEGIN TRANSACTION")
		assert.True(t, conn.InTransaction())
		exec(t, conn, "DELETE FROM t")
		exec(t, conn, "ROLLBACK")
		assert.Len(t, fetchAll(t, conn, "SELECT * FROM t"), 2)
	})
}

func TestIntegrationNullText(t *testing.T) {
	runWithBothPersistence(t, func(t *testing.T, conn *Connection) {
		exec(t, conn, "CREATE TABLE t (id INT PRIMARY KEY, name TEXT)")
		exec(t, conn, "INSERT INTO t (id) VALUES (1)")
		exec(t, conn, "INSERT INTO t VALUES (2, '')")

		rs, err := conn.Execute("SELECT name FROM t")
		require.NoError(t, err)
		defer rs.Release()

		row, _ := rs.Next()
		s, ok, err := row.Text(0)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, s)

		row, _ = rs.Next()
		s, ok, err = row.Text(0)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Empty(t, s)
	})
}

func TestIntegrationClose(t *testing.T) {
	conn, err := Open("")
	require.NoError(t, err)

	exec(t, conn, "CREATE TABLE t (id INT)")
	rs, err := conn.Execute("SELECT * FROM t")
	require.NoError(t, err)

	require.NoError(t, conn.Close())
	assert.ErrorIs(t, conn.Close(), core.ErrAlreadyClosed)

	_, err = conn.Execute("SELECT * FROM t")
	assert.ErrorIs(t, err, core.ErrAlreadyClosed)
	assert.ErrorIs(t, conn.Begin(), core.ErrAlreadyClosed)
	_, err = conn.TableNames()
	assert.ErrorIs(t, err, core.ErrAlreadyClosed)

	_, err = rs.Next()
	assert.ErrorIs(t, err, core.ErrUseAfterRelease)
	assert.ErrorIs(t, db.FreeResult(rs), core.ErrUseAfterRelease)
}

func TestIntegrationIndependentConnections(t *testing.T) {
	a, err := Open(MemoryIdentifier)
	require.NoError(t, err)
	defer a.Close()
	b, err := Open(MemoryIdentifier)
	require.NoError(t, err)
	defer b.Close()

	exec(t, a, "CREATE TABLE t (id INT)")
	require.NoError(t, a.Begin())
	assert.False(t, b.InTransaction())

	_, err = b.Execute("SELECT * FROM t")
	assert.ErrorIs(t, err, core.ErrUnknownTable)
}

// TestFilePersistenceReopen checks that committed data survives reopening
// and that uncommitted data does not.
func TestFilePersistenceReopen(t *testing.T) {
	dir := t.TempDir()

	conn, err := Open(dir)
	require.NoError(t, err)
	exec(t, conn, "CREATE TABLE data (id INT PRIMARY KEY, val STRING)")
	exec(t, conn, "INSERT INTO data (id, val) VALUES (1, 'hello'), (2, 'world')")

	latest, err := conn.LatestTransaction()
	require.NoError(t, err)
	assert.NotEmpty(t, latest.Id)

	require.NoError(t, conn.Begin())
	exec(t, conn, "INSERT INTO data VALUES (3, 'lost')")
	require.NoError(t, conn.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, [][]string{{"1", "hello"}, {"2", "world"}}, fetchAll(t, reopened, "SELECT * FROM data"))

	again, err := reopened.LatestTransaction()
	require.NoError(t, err)
	assert.Equal(t, latest.Id, again.Id)

	history, err := reopened.History(time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestVersion(t *testing.T) {
	assert.NotEmpty(t, Version())
}
