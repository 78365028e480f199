package sqlite

import (
	"database/sql"
	"fmt"
)

// migration represents a single database migration
type migration struct {
	version int
	name    string
	up      string
}

// migrations is the ordered list of all database migrations
// Each migration should be idempotent and safe to run multiple times
var migrations = []migration{
	{
		version: 1,
		name:    "create_pictures_tables",
		up: `
			CREATE TABLE IF NOT EXISTS pictures (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				mime_type TEXT NOT NULL,
				seo_filename TEXT NOT NULL DEFAULT '',
				alt_attribute TEXT,
				title_attribute TEXT,
				is_new INTEGER NOT NULL DEFAULT 0,
				virtual_path TEXT NOT NULL DEFAULT ''
			);

			CREATE TABLE IF NOT EXISTS picture_binaries (
				picture_id INTEGER PRIMARY KEY,
				binary_data BLOB NOT NULL DEFAULT x'',
				FOREIGN KEY (picture_id) REFERENCES pictures(id)
			);
		`,
	},
	{
		version: 2,
		name:    "create_product_pictures_table",
		up: `
			CREATE TABLE IF NOT EXISTS product_pictures (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				product_id INTEGER NOT NULL,
				picture_id INTEGER NOT NULL,
				display_order INTEGER NOT NULL DEFAULT 0,
				FOREIGN KEY (picture_id) REFERENCES pictures(id)
			);

			CREATE INDEX IF NOT EXISTS idx_product_pictures_product
			ON product_pictures(product_id, display_order);
		`,
	},
	{
		version: 3,
		name:    "create_settings_table",
		up: `
			CREATE TABLE IF NOT EXISTS settings (
				name TEXT PRIMARY KEY,
				value TEXT NOT NULL
			);
		`,
	},
}

// runMigrations executes all pending migrations
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	currentVersion := 0
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	// Run pending migrations
	for _, m := range migrations {
		if m.version <= currentVersion {
			continue // Already applied
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", m.version, err)
		}

		_, err = tx.Exec(m.up)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d (%s): %w", m.version, m.name, err)
		}

		_, err = tx.Exec(
			"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
			m.version,
			m.name,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
		}
	}

	return nil
}
