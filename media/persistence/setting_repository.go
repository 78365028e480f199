package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mediakit/picserve/shared/db"
)

// SQLiteSettingRepository persists named configuration values in the settings
// table. Typed access and caching live in the application layer.
type SQLiteSettingRepository struct {
	db *sql.DB
}

// NewSettingRepository creates a new SQLiteSettingRepository from a standard
// sql.DB
func NewSettingRepository(sqlDB *sql.DB) *SQLiteSettingRepository {
	return &SQLiteSettingRepository{
		db: sqlDB,
	}
}

const getSettingQuery = `
	SELECT value FROM settings WHERE name = ?
`

// GetSetting returns the raw value for a setting name. The second return
// value reports whether the setting exists.
func (r *SQLiteSettingRepository) GetSetting(ctx context.Context, name string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx, getSettingQuery, name).Scan(&value)

	if err == sql.ErrNoRows {
		return "", false, nil
	}

	if err != nil {
		return "", false, fmt.Errorf("failed to get setting %q: %w", name, err)
	}

	return value, true, nil
}

const upsertSettingQuery = `
	INSERT INTO settings (name, value)
	VALUES (?, ?)
	ON CONFLICT(name) DO UPDATE SET
		value = excluded.value
`

// SetSetting inserts or replaces a setting value
func (r *SQLiteSettingRepository) SetSetting(ctx context.Context, name, value string) error {
	executor := db.GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, upsertSettingQuery, name, value)
	if err != nil {
		return fmt.Errorf("failed to set setting %q: %w", name, err)
	}

	return nil
}
