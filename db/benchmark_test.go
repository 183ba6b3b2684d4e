package db

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"
)

// setupBenchmarkEngine creates an in-memory engine holding 1000 users
func setupBenchmarkEngine(b *testing.B) *Engine {
	engine, err := NewEngine(nil, testIdentity, nil)
	if err != nil {
		b.Fatalf("Failed to create engine: %v", err)
	}
	b.Cleanup(func() { engine.Close() })

	benchExec(b, engine, "CREATE TABLE users (id INT PRIMARY KEY, name STRING, age INT, city STRING)")

	if err := engine.Begin(); err != nil {
		b.Fatalf("Begin error: %v", err)
	}
	for i := 1; i <= 1000; i++ {
		benchExec(b, engine, "INSERT INTO users (id, name, age, city) VALUES ("+
			strconv.Itoa(i)+", 'User"+strconv.Itoa(i)+"', "+strconv.Itoa(20+i%50)+", 'City"+strconv.Itoa(i%10)+"')")
	}
	if _, err := engine.Commit(); err != nil {
		b.Fatalf("Commit error: %v", err)
	}

	return engine
}

func benchExec(b *testing.B, engine *Engine, query string) {
	rs, err := engine.Execute(query)
	if err != nil {
		b.Fatalf("Execute error: %v", err)
	}
	rs.Release()
}

func BenchmarkSelect(b *testing.B) {
	queries := []struct {
		name  string
		query string
	}{
		{"All", "SELECT * FROM users"},
		{"Where", "SELECT * FROM users WHERE age > 30"},
		{"OrderBy", "SELECT * FROM users ORDER BY age DESC"},
		{"Limit", "SELECT * FROM users LIMIT 10"},
		{"Count", "SELECT COUNT(*) FROM users"},
		{"Complex", "SELECT id, name FROM users WHERE age > 25 AND city = 'City5' ORDER BY name LIMIT 10"},
	}

	engine := setupBenchmarkEngine(b)

	for _, q := range queries {
		b.Run(q.name, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				benchExec(b, engine, q.query)
			}
		})
	}
}

func BenchmarkInsert(b *testing.B) {
	engine := setupBenchmarkEngine(b)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		benchExec(b, engine, fmt.Sprintf("INSERT INTO users (id, name, age, city) VALUES (%d, 'New', 30, 'NYC')", 1001+i))
	}
}

func BenchmarkUpdate(b *testing.B) {
	engine := setupBenchmarkEngine(b)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		benchExec(b, engine, fmt.Sprintf("UPDATE users SET age = %d WHERE id = 500", i%100))
	}
}

// BenchmarkBulkInsert benchmarks INSERT with a 100 row VALUES list
func BenchmarkBulkInsert(b *testing.B) {
	engine := setupBenchmarkEngine(b)
	benchExec(b, engine, "CREATE TABLE bulk (id INT PRIMARY KEY, name STRING, value INT)")
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		var values strings.Builder
		for j := 0; j < 100; j++ {
			if j > 0 {
				values.WriteString(", ")
			}
			id := i*100 + j
			fmt.Fprintf(&values, "(%d, 'Name%d', %d)", id, id, id*10)
		}
		benchExec(b, engine, "INSERT INTO bulk (id, name, value) VALUES "+values.String())
	}
}

func BenchmarkExportImport(b *testing.B) {
	engine := setupBenchmarkEngine(b)
	path := b.TempDir() + "/users.csv"
	ctx := context.Background()

	b.Run("Export", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if _, err := engine.ExportTable(ctx, "users", path, nil); err != nil {
				b.Fatalf("Export error: %v", err)
			}
		}
	})

	b.Run("Import", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			table := fmt.Sprintf("import_%d", i)
			benchExec(b, engine, "CREATE TABLE "+table+" (id INT PRIMARY KEY, name STRING, age INT, city STRING)")
			if _, err := engine.ImportTable(ctx, table, path, nil); err != nil {
				b.Fatalf("Import error: %v", err)
			}
		}
	})
}
