package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/xvierd/focus-cli/internal/ports"
)

type preferenceRepository struct {
	db *sql.DB
}

func newPreferenceRepository(db *sql.DB) ports.PreferenceRepository {
	return &preferenceRepository{db: db}
}

// Get returns the stored value and whether it exists.
func (r *preferenceRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM preferences WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read preference %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores a value.
func (r *preferenceRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO preferences (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write preference %s: %w", key, err)
	}
	return nil
}
