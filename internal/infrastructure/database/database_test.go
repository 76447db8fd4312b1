package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nerrad567/focuserd/internal/infrastructure/config"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), config.DatabaseConfig{Path: ":memory:", BusyTimeout: 1})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	return db
}

func TestOpen(t *testing.T) {
	t.Run("creates file and directory", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "nested", "focuserd.db")

		db, err := Open(context.Background(), config.DatabaseConfig{Path: dbPath, WALMode: true, BusyTimeout: 5})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close() //nolint:errcheck // Test cleanup

		if _, err := db.ExecContext(context.Background(), "CREATE TABLE t (x INTEGER)"); err != nil {
			t.Fatalf("ExecContext() error = %v", err)
		}
		if _, err := os.Stat(dbPath); err != nil {
			t.Errorf("database file not created: %v", err)
		}
		if db.Path() != dbPath {
			t.Errorf("Path() = %q, want %q", db.Path(), dbPath)
		}
	})

	t.Run("in memory", func(t *testing.T) {
		db := openTestDB(t)
		if db.Path() != ":memory:" {
			t.Errorf("Path() = %q, want :memory:", db.Path())
		}
	})

	t.Run("unwritable directory", func(t *testing.T) {
		blocker := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(blocker, nil, 0o600); err != nil {
			t.Fatal(err)
		}
		_, err := Open(context.Background(), config.DatabaseConfig{Path: filepath.Join(blocker, "db.sqlite")})
		if err == nil {
			t.Error("Open() error = nil, want error")
		}
	})
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)
	if err := db.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	db.Close() //nolint:errcheck // Test setup
	if err := db.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() on closed database error = nil, want error")
	}
}
