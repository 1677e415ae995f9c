package store

import (
	"context"
	"testing"
)

func openTestDB(t *testing.T) *GormStore {
	t.Helper()
	db, err := Open(SQLite, "file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := db.Execute(context.Background(),
		`CREATE TABLE widgets (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL, tags TEXT)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

func TestExecuteAndQuery(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	n, err := db.Execute(ctx, `INSERT INTO widgets (name, tags) VALUES (?, ?)`, "gizmo", TagSet{"gpu"})
	if err != nil {
		t.Fatalf("execute insert: %v", err)
	}
	if n != 1 {
		t.Fatalf("want 1 row affected, got %d", n)
	}

	rows, err := db.Query(ctx, `SELECT name, tags FROM widgets`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rows.Close()

	if !rows.Next() {
		t.Fatal("expected one row, got none")
	}
	var name string
	var tags TagSet
	if err := rows.Scan(&name, &tags); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if name != "gizmo" {
		t.Fatalf("want name=gizmo got=%s", name)
	}
	if len(tags) != 1 || tags[0] != "gpu" {
		t.Fatalf("want tags=[gpu] got=%v", tags)
	}
}

func TestFetchOneNoRows(t *testing.T) {
	db := openTestDB(t)
	v, err := db.FetchOne(context.Background(), `SELECT name FROM widgets WHERE id = ?`, 999)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != nil {
		t.Fatalf("want nil for no rows, got %v", v)
	}
}

func TestExecuteManyRollsBackOnFailure(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.ExecuteMany(ctx, []Statement{
		{SQL: `INSERT INTO widgets (name) VALUES (?)`, Args: []any{"ok"}},
		{SQL: `INSERT INTO nonexistent_table (name) VALUES (?)`, Args: []any{"boom"}},
	})
	if err == nil {
		t.Fatal("expected error from batch containing a bad statement")
	}

	v, err := db.FetchOne(ctx, `SELECT COUNT(*) FROM widgets`)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	count, ok := v.(int64)
	if !ok {
		t.Fatalf("want int64 count, got %T", v)
	}
	if count != 0 {
		t.Fatalf("want rollback to leave 0 rows, got %d", count)
	}
}
