package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/xvierd/focus-cli/internal/domain"
	"github.com/xvierd/focus-cli/internal/ports"
)

// sessionRepository implements ports.SessionRepository using SQLite.
// Timestamps are stored as unix milliseconds so range queries compare numbers.
type sessionRepository struct {
	db *sql.DB
}

// newSessionRepository creates a new session repository.
func newSessionRepository(db *sql.DB) ports.SessionRepository {
	return &sessionRepository{db: db}
}

// Record appends a finished session.
func (r *sessionRepository) Record(ctx context.Context, rec *domain.SessionRecord) error {
	query := `
		INSERT INTO session_records (
			id, rule_id, rule_name, outcome, planned_seconds, focused_seconds,
			started_at, ended_at, git_branch
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID,
		rec.RuleID,
		rec.RuleName,
		string(rec.Outcome),
		rec.PlannedSeconds,
		rec.FocusedSeconds,
		rec.StartedAt.UnixMilli(),
		rec.EndedAt.UnixMilli(),
		rec.GitBranch,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("session %s already recorded: %w", rec.ID, err)
		}
		return fmt.Errorf("failed to record session: %w", err)
	}
	return nil
}

// FindRecent returns the newest records first.
func (r *sessionRepository) FindRecent(ctx context.Context, limit int) ([]*domain.SessionRecord, error) {
	query := `
		SELECT id, rule_id, rule_name, outcome, planned_seconds, focused_seconds,
			started_at, ended_at, git_branch
		FROM session_records
		ORDER BY ended_at DESC
		LIMIT ?
	`
	return r.query(ctx, query, limit)
}

// FindSince returns records that ended at or after since, newest first.
func (r *sessionRepository) FindSince(ctx context.Context, since time.Time) ([]*domain.SessionRecord, error) {
	query := `
		SELECT id, rule_id, rule_name, outcome, planned_seconds, focused_seconds,
			started_at, ended_at, git_branch
		FROM session_records
		WHERE ended_at >= ?
		ORDER BY ended_at DESC
	`
	return r.query(ctx, query, since.UnixMilli())
}

func (r *sessionRepository) query(ctx context.Context, query string, args ...any) ([]*domain.SessionRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*domain.SessionRecord
	for rows.Next() {
		var (
			rec            domain.SessionRecord
			outcome        string
			started, ended int64
			branch         sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.RuleID, &rec.RuleName, &outcome,
			&rec.PlannedSeconds, &rec.FocusedSeconds, &started, &ended, &branch); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		rec.Outcome = domain.SessionOutcome(outcome)
		rec.StartedAt = time.UnixMilli(started)
		rec.EndedAt = time.UnixMilli(ended)
		rec.GitBranch = branch.String
		records = append(records, &rec)
	}
	return records, rows.Err()
}
