package services

import (
	"context"

	"github.com/xvierd/focus-cli/internal/domain"
	"github.com/xvierd/focus-cli/internal/ports"
)

// StateService implements the MCPStateProvider interface on top of the
// rule store and session controller.
type StateService struct {
	rules      *RuleStore
	controller *SessionController
	sessions   ports.SessionRepository
}

// NewStateService creates a new state service.
func NewStateService(storage ports.Storage, rules *RuleStore, controller *SessionController) *StateService {
	return &StateService{
		rules:      rules,
		controller: controller,
		sessions:   storage.Sessions(),
	}
}

// Ensure StateService implements ports.MCPStateProvider.
var _ ports.MCPStateProvider = (*StateService)(nil)

// GetCurrentState implements ports.MCPStateProvider.
func (s *StateService) GetCurrentState(ctx context.Context) (*domain.CurrentState, error) {
	return s.controller.CurrentState(), nil
}

// ListRules implements ports.MCPStateProvider.
func (s *StateService) ListRules(ctx context.Context) ([]*domain.FocusRule, []string, error) {
	return s.rules.List(), s.rules.DisplayedIDs(), nil
}

// SelectRule implements ports.MCPStateProvider.
func (s *StateService) SelectRule(ctx context.Context, query string) (*domain.FocusRule, error) {
	rule, err := s.rules.Find(query)
	if err != nil {
		return nil, err
	}
	if err := s.controller.SelectRule(ctx, rule.ID); err != nil {
		return nil, err
	}
	return rule, nil
}

// StartFocus implements ports.MCPStateProvider. A paused session is resumed.
func (s *StateService) StartFocus(ctx context.Context) (*domain.CurrentState, error) {
	if err := s.controller.StartOrResume(ctx); err != nil {
		return nil, err
	}
	return s.controller.CurrentState(), nil
}

// PauseFocus implements ports.MCPStateProvider.
func (s *StateService) PauseFocus(ctx context.Context) (*domain.CurrentState, error) {
	if err := s.controller.Pause(); err != nil {
		return nil, err
	}
	return s.controller.CurrentState(), nil
}

// ResumeFocus implements ports.MCPStateProvider.
func (s *StateService) ResumeFocus(ctx context.Context) (*domain.CurrentState, error) {
	if err := s.controller.Resume(); err != nil {
		return nil, err
	}
	return s.controller.CurrentState(), nil
}

// StopFocus implements ports.MCPStateProvider.
func (s *StateService) StopFocus(ctx context.Context) (*domain.CurrentState, error) {
	if err := s.controller.Stop(ctx); err != nil {
		return s.controller.CurrentState(), err
	}
	return s.controller.CurrentState(), nil
}

// ToggleRuleDisplay implements ports.MCPStateProvider.
func (s *StateService) ToggleRuleDisplay(ctx context.Context, id string) (bool, error) {
	return s.controller.ToggleDisplay(ctx, id)
}

// RecentSessions implements ports.MCPStateProvider.
func (s *StateService) RecentSessions(ctx context.Context, limit int) ([]*domain.SessionRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.sessions.FindRecent(ctx, limit)
}
