package migrate

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/duckdb/duckdb-go/v2"
)

const latestVersion = 2

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatalf("open duckdb: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunAppliesAllMigrations(t *testing.T) {
	db := openTestDB(t)

	n, err := NewRunner(db).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != latestVersion {
		t.Errorf("applied %d migrations, want %d", n, latestVersion)
	}

	for _, table := range []string{"entries", "exports", "schema_migrations"} {
		var name string
		err := db.QueryRow("SELECT table_name FROM information_schema.tables WHERE table_name = ?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	r := NewRunner(openTestDB(t))

	if _, err := r.Run(ctx); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	n, err := r.Run(ctx)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if n != 0 {
		t.Errorf("second Run applied %d migrations", n)
	}
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	r := NewRunner(openTestDB(t))

	cur, pending, err := r.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if cur != 0 || pending != latestVersion {
		t.Errorf("before run: version=%d pending=%d, want 0/%d", cur, pending, latestVersion)
	}

	if _, err := r.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	cur, pending, err = r.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if cur != latestVersion || pending != 0 {
		t.Errorf("after run: version=%d pending=%d, want %d/0", cur, pending, latestVersion)
	}
}

func TestLoadMigrationsSorted(t *testing.T) {
	migs, err := loadMigrations()
	if err != nil {
		t.Fatalf("loadMigrations: %v", err)
	}
	for i, m := range migs {
		if m.version != i+1 {
			t.Errorf("migration %d is %s (version %d)", i, m.name, m.version)
		}
	}
}
