// Package storage provides SQLite implementations of the storage ports.
package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/xvierd/focus-cli/internal/ports"
	"modernc.org/sqlite"
)

// sqliteStorage implements the ports.Storage interface using SQLite.
type sqliteStorage struct {
	db          *sql.DB
	ruleRepo    ports.RuleRepository
	sessionRepo ports.SessionRepository
	prefRepo    ports.PreferenceRepository
}

// Ensure sqliteStorage implements ports.Storage.
var _ ports.Storage = (*sqliteStorage)(nil)

// New creates a new SQLite storage instance.
func New(dbPath string) (ports.Storage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return newStorage(db)
}

// NewMemory creates a new in-memory SQLite storage instance for testing.
func NewMemory() (ports.Storage, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// every pooled connection would otherwise get its own empty database
	db.SetMaxOpenConns(1)
	return newStorage(db)
}

func newStorage(db *sql.DB) (ports.Storage, error) {
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	storage := &sqliteStorage{
		db:          db,
		ruleRepo:    newRuleRepository(db),
		sessionRepo: newSessionRepository(db),
		prefRepo:    newPreferenceRepository(db),
	}

	if err := storage.Migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return storage, nil
}

// Rules returns the rule repository.
func (s *sqliteStorage) Rules() ports.RuleRepository {
	return s.ruleRepo
}

// Sessions returns the session history repository.
func (s *sqliteStorage) Sessions() ports.SessionRepository {
	return s.sessionRepo
}

// Preferences returns the preference repository.
func (s *sqliteStorage) Preferences() ports.PreferenceRepository {
	return s.prefRepo
}

// Close closes the database connection.
func (s *sqliteStorage) Close() error {
	return s.db.Close()
}

// Migrate creates the database schema.
func (s *sqliteStorage) Migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS rules (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		duration_minutes INTEGER NOT NULL CHECK (duration_minutes > 0),
		blocked_apps TEXT NOT NULL DEFAULT '[]',
		allowed_apps TEXT NOT NULL DEFAULT '[]',
		minimized_apps TEXT NOT NULL DEFAULT '[]',
		strict_mode INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS displayed_rules (
		position INTEGER PRIMARY KEY,
		rule_id TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS session_records (
		id TEXT PRIMARY KEY,
		rule_id TEXT NOT NULL,
		rule_name TEXT NOT NULL,
		outcome TEXT NOT NULL,
		planned_seconds INTEGER NOT NULL,
		focused_seconds INTEGER NOT NULL,
		started_at INTEGER NOT NULL,
		ended_at INTEGER NOT NULL,
		git_branch TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_session_records_ended ON session_records(ended_at);

	CREATE TABLE IF NOT EXISTS preferences (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

// isUniqueConstraintError checks if an error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	return errors.As(err, &sqliteErr) && (sqliteErr.Code() == 2067 || sqliteErr.Code() == 1555)
}
