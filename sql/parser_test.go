package sql

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickyhof/crossdb/core"
)

func TestParser(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		expected Statement
	}{
		{
			"select wildcard",
			"SELECT * FROM test",
			SelectStatement{Table: "test", Limit: -1},
		},
		{
			"select columns",
			"select col_1, col_2 from test;",
			SelectStatement{Table: "test", Columns: []string{"col_1", "col_2"}, Limit: -1},
		},
		{
			"select with where int",
			"SELECT * FROM test WHERE id = 10",
			SelectStatement{
				Table: "test",
				Where: WhereClause{Conditions: []WhereCondition{{Column: "id", Operator: EqualsOperator, Value: core.Int(10)}}},
				Limit: -1,
			},
		},
		{
			"select with where string and int",
			"SELECT * FROM test WHERE name = 'green' OR id >= -5",
			SelectStatement{
				Table: "test",
				Where: WhereClause{
					Conditions: []WhereCondition{
						{Column: "name", Operator: EqualsOperator, Value: core.Text("green")},
						{Column: "id", Operator: GreaterThanOrEqualOperator, Value: core.Int(-5)},
					},
					LogicalOps: []LogicalOperator{LogicalOr},
				},
				Limit: -1,
			},
		},
		{
			"select is not null order limit offset",
			"SELECT * FROM test WHERE name IS NOT NULL ORDER BY id DESC LIMIT 10 OFFSET 2",
			SelectStatement{
				Table:   "test",
				Where:   WhereClause{Conditions: []WhereCondition{{Column: "name", Operator: IsNotNullOperator}}},
				OrderBy: []OrderByClause{{Column: "id", Descending: true}},
				Limit:   10,
				Offset:  2,
			},
		},
		{
			"select count",
			"SELECT COUNT(*) FROM test",
			SelectStatement{Table: "test", CountAll: true, Limit: -1},
		},
		{
			"create table",
			"CREATE TABLE users (id INT PRIMARY KEY, name CHAR(50), age INT)",
			CreateTableStatement{
				Table: "users",
				Columns: []core.Column{
					{Name: "id", Type: core.IntType, PrimaryKey: true},
					{Name: "name", Type: core.TextType, Width: 50},
					{Name: "age", Type: core.IntType},
				},
			},
		},
		{
			"create table if not exists",
			"create table if not exists t (id integer primary key)",
			CreateTableStatement{
				Table:       "t",
				Columns:     []core.Column{{Name: "id", Type: core.IntType, PrimaryKey: true}},
				IfNotExists: true,
			},
		},
		{
			"drop table if exists",
			"DROP TABLE IF EXISTS t",
			DropTableStatement{Table: "t", IfExists: true},
		},
		{
			"insert with columns and multiple rows",
			"INSERT INTO users (id, name, age) VALUES (1, 'Alice', 30), (2, 'O''Brien', NULL)",
			InsertStatement{
				Table:   "users",
				Columns: []string{"id", "name", "age"},
				Rows: [][]core.Value{
					{core.Int(1), core.Text("Alice"), core.Int(30)},
					{core.Int(2), core.Text("O'Brien"), core.Null()},
				},
			},
		},
		{
			"insert without columns",
			"INSERT INTO t VALUES (1,'a'),(2,'b')",
			InsertStatement{
				Table: "t",
				Rows: [][]core.Value{
					{core.Int(1), core.Text("a")},
					{core.Int(2), core.Text("b")},
				},
			},
		},
		{
			"update",
			"UPDATE users SET age = 31, name = 'Al' WHERE id = 1",
			UpdateStatement{
				Table: "users",
				Updates: []SetClause{
					{Column: "age", Value: core.Int(31)},
					{Column: "name", Value: core.Text("Al")},
				},
				Where: WhereClause{Conditions: []WhereCondition{{Column: "id", Operator: EqualsOperator, Value: core.Int(1)}}},
			},
		},
		{
			"delete",
			"DELETE FROM t WHERE id <> 1",
			DeleteStatement{
				Table: "t",
				Where: WhereClause{Conditions: []WhereCondition{{Column: "id", Operator: NotEqualsOperator, Value: core.Int(1)}}},
			},
		},
		{"begin", "BEGIN TRANSACTION", BeginStatement{}},
		{"commit", "commit;", CommitStatement{}},
		{"rollback", "ROLLBACK", RollbackStatement{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			statement, err := Parse(tt.sql)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, statement)
		})
	}
}

func TestParserErrors(t *testing.T) {
	tests := []struct {
		name string
		sql  string
	}{
		{"empty", "   "},
		{"unknown keyword", "EXPLAIN SELECT * FROM t"},
		{"missing from", "SELECT * t"},
		{"unterminated string", "INSERT INTO t VALUES ('abc)"},
		{"trailing garbage", "SELECT * FROM t garbage"},
		{"bad type", "CREATE TABLE t (id FLOAT)"},
		{"two primary keys", "CREATE TABLE t (a INT PRIMARY KEY, b INT PRIMARY KEY)"},
		{"duplicate column", "CREATE TABLE t (a INT, A TEXT)"},
		{"equals null", "SELECT * FROM t WHERE a = NULL"},
		{"negative limit", "SELECT * FROM t LIMIT -1"},
		{"nul before where", "DELETE FROM t\x00 WHERE id = 1"},
		{"nul after statement", "SELECT * FROM t;\x00"},
		{"nul in unterminated string", "INSERT INTO t VALUES ('a\x00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.sql)
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrSyntax)
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		sql      string
		expected StatementType
		class    Class
	}{
		{"CREATE TABLE t (id INT)", CreateTableStatementType, DDL},
		{"insert into t values (1)", InsertStatementType, DML},
		{"  Select * from t", SelectStatementType, Query},
		{"UPDATE t SET a = 1", UpdateStatementType, DML},
		{"delete from t", DeleteStatementType, DML},
		{"begin", BeginStatementType, TransactionControl},
	}

	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			kind, err := Classify(tt.sql)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, kind)
			assert.Equal(t, tt.class, kind.Class())
		})
	}

	_, err := Classify("VACUUM")
	assert.ErrorIs(t, err, core.ErrSyntax)
}

func TestLexer(t *testing.T) {
	tokens := tokenize("SELECT name FROM t WHERE id <= -3 AND name != 'it''s';")

	types := make([]TokenType, len(tokens))
	for i, token := range tokens {
		types[i] = token.Type
	}

	assert.Equal(t, []TokenType{
		Select, Identifier, From, Identifier, Where,
		Identifier, LessThanOrEqual, Int, And,
		Identifier, NotEquals, String, Semicolon, EOF,
	}, types)
	assert.Equal(t, "-3", tokens[7].Value)
	assert.Equal(t, "it's", tokens[11].Value)
}

func TestLexerNul(t *testing.T) {
	tokens := tokenize("DELETE FROM t\x00 WHERE id = 1")
	require.Len(t, tokens, 9)
	assert.Equal(t, Unknown, tokens[3].Type)
	assert.Equal(t, Where, tokens[4].Type)
	assert.Equal(t, EOF, tokens[8].Type)

	tokens = tokenize("'a\x00b'")
	require.Len(t, tokens, 2)
	assert.Equal(t, String, tokens[0].Type)
	assert.Equal(t, "a\x00b", tokens[0].Value)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abc...", truncate("abcdefghij", 6))

	s := truncate("ééééééééé", 6)
	assert.True(t, utf8.ValidString(s))
	assert.Equal(t, "ééé...", s)
}
