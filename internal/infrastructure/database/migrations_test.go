package database

import (
	"context"
	"io/fs"
	"os"
	"testing"
	"testing/fstest"
)

func testMigrations(t *testing.T) fs.FS {
	t.Helper()
	return os.DirFS("testdata")
}

func TestMigrate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx, testMigrations(t)); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	var name string
	err := db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='index' AND name='idx_test_items_name'",
	).Scan(&name)
	if err != nil {
		t.Fatalf("index from second migration missing: %v", err)
	}

	applied, pending, err := db.MigrationStatus(ctx, testMigrations(t))
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 2 || len(pending) != 0 {
		t.Errorf("applied = %d, pending = %d, want 2, 0", len(applied), len(pending))
	}
	if applied[0].Version != "20260101_000000" {
		t.Errorf("applied[0].Version = %q", applied[0].Version)
	}

	if err := db.Migrate(ctx, testMigrations(t)); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrate_Pending(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, pending, err := db.MigrationStatus(ctx, testMigrations(t))
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	if pending[0].Name != "test_table" || pending[1].Name != "test_index" {
		t.Errorf("pending names = %q, %q", pending[0].Name, pending[1].Name)
	}
}

func TestMigrate_FailureRollsBack(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	fsys := fstest.MapFS{
		"20260101_000000_ok.up.sql":     {Data: []byte("CREATE TABLE ok_table (x INTEGER);")},
		"20260102_000000_broken.up.sql": {Data: []byte("CREATE TABLE broken (x INTEGER); NOT SQL;")},
	}
	if err := db.Migrate(ctx, fsys); err == nil {
		t.Fatal("Migrate() error = nil, want error")
	}

	applied, pending, err := db.MigrationStatus(ctx, fsys)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 1 || len(pending) != 1 {
		t.Errorf("applied = %d, pending = %d, want 1, 1", len(applied), len(pending))
	}

	var count int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='broken'",
	).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Error("table from failed migration was committed")
	}
}

func TestMigrate_NilFS(t *testing.T) {
	db := openTestDB(t)
	if err := db.Migrate(context.Background(), nil); err != nil {
		t.Errorf("Migrate(nil) error = %v", err)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion string
		wantName    string
		wantOK      bool
	}{
		{"20260301_120000_command_history.up.sql", "20260301_120000", "command_history", true},
		{"20260301_120000.up.sql", "20260301_120000", "", true},
		{"20260301_120000_command_history.down.sql", "", "", false},
		{"README.txt", "", "", false},
		{"nounderscore.up.sql", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, ok := parseMigrationFilename(tt.filename)
			if version != tt.wantVersion || name != tt.wantName || ok != tt.wantOK {
				t.Errorf("parseMigrationFilename() = %q, %q, %v, want %q, %q, %v",
					version, name, ok, tt.wantVersion, tt.wantName, tt.wantOK)
			}
		})
	}
}
