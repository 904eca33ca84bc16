package ports

import (
	"context"
	"time"

	"github.com/xvierd/focus-cli/internal/domain"
)

// RuleRepository defines the interface for focus rule persistence.
// This is a driven port (implemented by adapters).
type RuleRepository interface {
	// Save inserts or replaces a rule by ID.
	Save(ctx context.Context, rule *domain.FocusRule) error

	// FindByID retrieves a rule by its ID.
	FindByID(ctx context.Context, id string) (*domain.FocusRule, error)

	// FindAll retrieves every rule ordered by ID.
	FindAll(ctx context.Context) ([]*domain.FocusRule, error)

	// Delete removes a rule. Deleting a missing rule returns ErrRuleNotFound.
	Delete(ctx context.Context, id string) error

	// LoadDisplayed returns the ordered displayed rule IDs.
	LoadDisplayed(ctx context.Context) ([]string, error)

	// SaveDisplayed replaces the displayed rule IDs.
	SaveDisplayed(ctx context.Context, ids []string) error
}

// SessionRepository defines the interface for the session history log.
// This is a driven port (implemented by adapters).
type SessionRepository interface {
	// Record appends a finished session.
	Record(ctx context.Context, record *domain.SessionRecord) error

	// FindRecent returns the newest records first.
	FindRecent(ctx context.Context, limit int) ([]*domain.SessionRecord, error)

	// FindSince returns records that ended at or after since, newest first.
	FindSince(ctx context.Context, since time.Time) ([]*domain.SessionRecord, error)
}

// PreferenceRepository stores small key/value client preferences such as
// the selected rule.
// This is a driven port (implemented by adapters).
type PreferenceRepository interface {
	// Get returns the stored value and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores a value.
	Set(ctx context.Context, key, value string) error
}

// Preference keys.
const (
	PrefSelectedRule = "selected_rule"
	PrefSeeded       = "defaults_seeded"
)

// Storage combines all repositories.
type Storage interface {
	// Rules returns the rule repository.
	Rules() RuleRepository

	// Sessions returns the session history repository.
	Sessions() SessionRepository

	// Preferences returns the preference repository.
	Preferences() PreferenceRepository

	// Close closes the storage connection.
	Close() error

	// Migrate runs any pending database migrations.
	Migrate() error
}
