package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/xvierd/focus-cli/internal/domain"
	"github.com/xvierd/focus-cli/internal/ports"
)

// ruleRepository implements ports.RuleRepository using SQLite.
type ruleRepository struct {
	db *sql.DB
}

// newRuleRepository creates a new rule repository.
func newRuleRepository(db *sql.DB) ports.RuleRepository {
	return &ruleRepository{db: db}
}

// Save inserts or replaces a rule by ID.
func (r *ruleRepository) Save(ctx context.Context, rule *domain.FocusRule) error {
	query := `
		INSERT INTO rules (id, name, duration_minutes, blocked_apps, allowed_apps, minimized_apps, strict_mode)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			duration_minutes = excluded.duration_minutes,
			blocked_apps = excluded.blocked_apps,
			allowed_apps = excluded.allowed_apps,
			minimized_apps = excluded.minimized_apps,
			strict_mode = excluded.strict_mode
	`

	_, err := r.db.ExecContext(ctx, query,
		rule.ID,
		rule.Name,
		rule.DurationMinutes,
		encodeApps(rule.BlockedApps),
		encodeApps(rule.AllowedApps),
		encodeApps(rule.MinimizedApps),
		rule.StrictMode,
	)
	if err != nil {
		return fmt.Errorf("failed to save rule: %w", err)
	}
	return nil
}

// FindByID retrieves a rule by its ID.
func (r *ruleRepository) FindByID(ctx context.Context, id string) (*domain.FocusRule, error) {
	query := `
		SELECT id, name, duration_minutes, blocked_apps, allowed_apps, minimized_apps, strict_mode
		FROM rules
		WHERE id = ?
	`
	rule, err := scanRule(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find rule: %w", err)
	}
	return rule, nil
}

// FindAll retrieves every rule ordered by ID.
func (r *ruleRepository) FindAll(ctx context.Context) ([]*domain.FocusRule, error) {
	query := `
		SELECT id, name, duration_minutes, blocked_apps, allowed_apps, minimized_apps, strict_mode
		FROM rules
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []*domain.FocusRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// Delete removes a rule and its displayed entry.
func (r *ruleRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, "DELETE FROM rules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	if n == 0 {
		return domain.ErrRuleNotFound
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM displayed_rules WHERE rule_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete displayed rule: %w", err)
	}
	return tx.Commit()
}

// LoadDisplayed returns the ordered displayed rule IDs.
func (r *ruleRepository) LoadDisplayed(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT rule_id FROM displayed_rules ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("failed to query displayed rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan displayed rule: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SaveDisplayed replaces the displayed rule IDs.
func (r *ruleRepository) SaveDisplayed(ctx context.Context, ids []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM displayed_rules"); err != nil {
		return fmt.Errorf("failed to clear displayed rules: %w", err)
	}
	for i, id := range ids {
		if _, err := tx.ExecContext(ctx, "INSERT INTO displayed_rules (position, rule_id) VALUES (?, ?)", i, id); err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("rule %q displayed twice: %w", id, err)
			}
			return fmt.Errorf("failed to save displayed rule: %w", err)
		}
	}
	return tx.Commit()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*domain.FocusRule, error) {
	var (
		rule                        domain.FocusRule
		blocked, allowed, minimized string
	)
	if err := row.Scan(&rule.ID, &rule.Name, &rule.DurationMinutes, &blocked, &allowed, &minimized, &rule.StrictMode); err != nil {
		return nil, err
	}
	rule.BlockedApps = decodeApps(blocked)
	rule.AllowedApps = decodeApps(allowed)
	rule.MinimizedApps = decodeApps(minimized)
	return &rule, nil
}

func encodeApps(apps []string) string {
	if apps == nil {
		apps = []string{}
	}
	data, _ := json.Marshal(apps)
	return string(data)
}

func decodeApps(data string) []string {
	var apps []string
	if err := json.Unmarshal([]byte(data), &apps); err != nil || apps == nil {
		return []string{}
	}
	return apps
}
