package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/frecency-dev/frecency/internal/store/storedefs"
)

func TestOpenMemory(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	if db.Path != ":memory:" {
		t.Errorf("Path = %q, want :memory:", db.Path)
	}
}

func TestOpenCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frecency.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestOpenPathWithSpecialCharacters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "my dir?#", "frecency.db")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if err := db.AddVisit("/a", 1000); err != nil {
		t.Fatalf("AddVisit: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("database not written at %s: %v", path, err)
	}
}

func TestOpenUnwritableDirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}
	dir := t.TempDir()
	if err := os.Chmod(dir, 0o500); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(dir, 0o700) })

	_, err := Open(filepath.Join(dir, "frecency.db"))
	if !errors.Is(err, storedefs.ErrStorageUnavailable) {
		t.Errorf("err = %v, want ErrStorageUnavailable", err)
	}
}

func TestOpenDoesNotCreateSchema(t *testing.T) {
	db := testDB(t)

	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != 0 {
		t.Errorf("SchemaVersion = %d, want 0", v)
	}
}

func TestSchemaVersion(t *testing.T) {
	db := readyDB(t)

	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != len(migrations) {
		t.Errorf("SchemaVersion = %d, want %d", v, len(migrations))
	}
}

func TestTablesExist(t *testing.T) {
	db := readyDB(t)

	for _, table := range []string{"schema_versions", "paths"} {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}

	var index string
	err := db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name='idx_paths_last_visit'",
	).Scan(&index)
	if err != nil {
		t.Errorf("index idx_paths_last_visit not found: %v", err)
	}
}

func TestPathsConstraints(t *testing.T) {
	db := readyDB(t)

	// Valid insert
	_, err := db.Exec(`INSERT INTO paths (path, visit_count, last_visit_millis) VALUES ('/a', 1, 1000)`)
	if err != nil {
		t.Fatalf("valid insert failed: %v", err)
	}

	// Duplicate path
	_, err = db.Exec(`INSERT INTO paths (path, visit_count, last_visit_millis) VALUES ('/a', 1, 2000)`)
	if err == nil {
		t.Error("expected error for duplicate path, got nil")
	}

	// Zero visit count
	_, err = db.Exec(`INSERT INTO paths (path, visit_count, last_visit_millis) VALUES ('/b', 0, 1000)`)
	if err == nil {
		t.Error("expected error for visit_count 0, got nil")
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	db := readyDB(t)

	// Running migrate again should be a no-op
	if err := db.migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_versions").Scan(&count); err != nil {
		t.Fatalf("count schema_versions: %v", err)
	}
	if count != len(migrations) {
		t.Errorf("schema_versions rows = %d, want %d", count, len(migrations))
	}
}

func TestWALMode(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "frecency.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestBusyTimeout(t *testing.T) {
	db := testDB(t)

	var ms int
	if err := db.QueryRow("PRAGMA busy_timeout").Scan(&ms); err != nil {
		t.Fatalf("PRAGMA busy_timeout: %v", err)
	}
	if ms != 5000 {
		t.Errorf("busy_timeout = %d, want 5000", ms)
	}
}

// testDB returns an uninitialized in-memory store.
func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// readyDB returns an in-memory store with the schema applied and a fixed
// clock.
func readyDB(t *testing.T) *DB {
	t.Helper()
	db := testDB(t)
	if err := db.EnsureSchema(); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	db.Clock = func() time.Time { return time.UnixMilli(testNow) }
	return db
}

func TestPragmasSurviveReconnect(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "frecency.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	// With no idle connections kept, every query runs on a fresh connection.
	db.SetMaxIdleConns(0)
	for i := 0; i < 3; i++ {
		var ms, sync int
		if err := db.QueryRow("PRAGMA busy_timeout").Scan(&ms); err != nil {
			t.Fatalf("PRAGMA busy_timeout: %v", err)
		}
		if err := db.QueryRow("PRAGMA synchronous").Scan(&sync); err != nil {
			t.Fatalf("PRAGMA synchronous: %v", err)
		}
		if ms != 5000 || sync != 1 {
			t.Errorf("query %d: busy_timeout = %d, synchronous = %d, want 5000, 1 (NORMAL)", i, ms, sync)
		}
	}
}
