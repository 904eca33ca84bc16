package ports

import (
	"context"

	"github.com/xvierd/focus-cli/internal/domain"
)

// MCPHandler defines the interface for MCP server operations.
// This is a driving port (called by the application layer).
type MCPHandler interface {
	// Start begins serving MCP requests.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the server.
	Stop() error

	// IsRunning returns true if the server is active.
	IsRunning() bool
}

// MCPStateProvider exposes the focus client to the MCP server.
// This is a driven port (implemented by services layer).
type MCPStateProvider interface {
	// GetCurrentState returns the dashboard snapshot.
	GetCurrentState(ctx context.Context) (*domain.CurrentState, error)

	// ListRules returns every rule and the displayed IDs.
	ListRules(ctx context.Context) ([]*domain.FocusRule, []string, error)

	// SelectRule selects a rule by ID or fuzzy name.
	SelectRule(ctx context.Context, query string) (*domain.FocusRule, error)

	// StartFocus starts or resumes a session.
	StartFocus(ctx context.Context) (*domain.CurrentState, error)

	// PauseFocus pauses the running session.
	PauseFocus(ctx context.Context) (*domain.CurrentState, error)

	// ResumeFocus resumes a paused session.
	ResumeFocus(ctx context.Context) (*domain.CurrentState, error)

	// StopFocus stops the active session.
	StopFocus(ctx context.Context) (*domain.CurrentState, error)

	// ToggleRuleDisplay adds or removes a rule from the displayed subset.
	ToggleRuleDisplay(ctx context.Context, id string) (bool, error)

	// RecentSessions returns finished sessions, newest first.
	RecentSessions(ctx context.Context, limit int) ([]*domain.SessionRecord, error)
}
