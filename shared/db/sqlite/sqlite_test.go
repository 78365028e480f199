package sqlite

import (
	"path/filepath"
	"testing"
)

func TestConnect_RunsMigrations(t *testing.T) {
	database := NewSQLiteDB(&SQLiteConfig{
		Path: filepath.Join(t.TempDir(), "test.db"),
	})
	if err := database.Connect(); err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer database.Close()

	for _, table := range []string{"pictures", "picture_binaries", "product_pictures", "settings", "schema_migrations"} {
		var name string
		err := database.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("Table %q missing after migrations: %v", table, err)
		}
	}
}

func TestConnect_Twice(t *testing.T) {
	database := NewSQLiteDB(&SQLiteConfig{
		Path: filepath.Join(t.TempDir(), "test.db"),
	})
	if err := database.Connect(); err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}

	if err := database.Connect(); err == nil {
		database.Close()
		t.Fatal("Second Connect on an open database succeeded, want error")
	}

	database.Close()
}

func TestMigrations_Rerunnable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	database := NewSQLiteDB(&SQLiteConfig{Path: path})
	if err := database.Connect(); err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	if err := database.Close(); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}

	// reopening an already-migrated database applies nothing and succeeds
	database = NewSQLiteDB(&SQLiteConfig{Path: path})
	if err := database.Connect(); err != nil {
		t.Fatalf("Failed to reconnect: %v", err)
	}
	defer database.Close()

	var count int
	err := database.DB().QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	if err != nil {
		t.Fatalf("Failed to count migrations: %v", err)
	}
	if count != len(migrations) {
		t.Errorf("schema_migrations has %d rows, want %d", count, len(migrations))
	}
}

func TestNewSQLiteConfig_Default(t *testing.T) {
	t.Setenv("SQLITE_DB_PATH", "")

	cfg := NewSQLiteConfig()
	if cfg.Path != defaultPath {
		t.Errorf("Path = %q, want %q", cfg.Path, defaultPath)
	}

	t.Setenv("SQLITE_DB_PATH", "/tmp/custom.db")
	cfg = NewSQLiteConfig()
	if cfg.Path != "/tmp/custom.db" {
		t.Errorf("Path = %q, want %q", cfg.Path, "/tmp/custom.db")
	}
}
