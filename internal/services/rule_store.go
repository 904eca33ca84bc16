package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sahilm/fuzzy"
	"go.uber.org/zap"

	"github.com/xvierd/focus-cli/internal/domain"
	"github.com/xvierd/focus-cli/internal/ports"
)

// RuleInput carries the user-editable fields of a rule.
type RuleInput struct {
	Name            string
	DurationMinutes int
	BlockedApps     []string
	AllowedApps     []string
	MinimizedApps   []string
	StrictMode      bool
}

// RuleStore is the local source of truth for focus rules and the displayed
// subset. Rules are cached in memory and written through to the repository.
type RuleStore struct {
	mu        sync.RWMutex
	repo      ports.RuleRepository
	prefs     ports.PreferenceRepository
	backend   ports.ModesBackend
	logger    *zap.Logger
	rules     map[string]*domain.FocusRule
	displayed domain.DisplayedSubset
}

// NewRuleStore creates a rule store backed by storage. Call Load before use.
func NewRuleStore(storage ports.Storage, backend ports.ModesBackend, logger *zap.Logger) *RuleStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RuleStore{
		repo:    storage.Rules(),
		prefs:   storage.Preferences(),
		backend: backend,
		logger:  logger,
		rules:   make(map[string]*domain.FocusRule),
	}
}

// Load reads every rule and the displayed subset from the repository.
// Displayed IDs that no longer resolve to a rule are dropped.
func (s *RuleStore) Load(ctx context.Context) error {
	rules, err := s.repo.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}
	ids, err := s.repo.LoadDisplayed(ctx)
	if err != nil {
		return fmt.Errorf("failed to load displayed rules: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = make(map[string]*domain.FocusRule, len(rules))
	for _, r := range rules {
		s.rules[r.ID] = r
	}
	s.displayed = domain.NewDisplayedSubset(ids...)
	s.displayed.Retain(func(id string) bool { return s.rules[id] != nil })
	return nil
}

// SeedDefaults inserts the default rules and displayed subset the first
// time the store is used. A store the user emptied on purpose stays empty.
func (s *RuleStore) SeedDefaults(ctx context.Context) (bool, error) {
	if _, seeded, err := s.prefs.Get(ctx, ports.PrefSeeded); err != nil {
		return false, fmt.Errorf("failed to read seed marker: %w", err)
	} else if seeded {
		return false, nil
	}

	s.mu.Lock()
	empty := len(s.rules) == 0
	s.mu.Unlock()

	if empty {
		for _, rule := range domain.DefaultRules() {
			if err := s.repo.Save(ctx, rule); err != nil {
				return false, fmt.Errorf("failed to seed rule %s: %w", rule.ID, err)
			}
		}
		if err := s.repo.SaveDisplayed(ctx, domain.DefaultDisplayedRuleIDs()); err != nil {
			return false, fmt.Errorf("failed to seed displayed rules: %w", err)
		}
		if err := s.prefs.Set(ctx, ports.PrefSelectedRule, domain.DefaultSelectedRuleID); err != nil {
			return false, fmt.Errorf("failed to seed selection: %w", err)
		}
	}
	if err := s.prefs.Set(ctx, ports.PrefSeeded, "true"); err != nil {
		return false, fmt.Errorf("failed to write seed marker: %w", err)
	}
	if !empty {
		return false, nil
	}

	s.logger.Info("seeded default rules", zap.Int("count", len(domain.DefaultRules())))
	return true, s.Load(ctx)
}

// Get returns a copy of the rule with the given ID.
func (s *RuleStore) Get(id string) (*domain.FocusRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rule, ok := s.rules[id]
	if !ok {
		return nil, domain.ErrRuleNotFound
	}
	return rule.Clone(), nil
}

// Exists reports whether a rule with the given ID is stored.
func (s *RuleStore) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rules[id] != nil
}

// List returns copies of every rule sorted by ID.
func (s *RuleStore) List() []*domain.FocusRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.FocusRule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IDs returns every rule ID in sorted order.
func (s *RuleStore) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.rules))
	for id := range s.rules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Create derives the ID from the name and stores a new rule. A name whose
// slug is already taken fails with ErrRuleIDConflict.
func (s *RuleStore) Create(ctx context.Context, in RuleInput) (*domain.FocusRule, error) {
	rule := &domain.FocusRule{
		ID:              domain.Slugify(in.Name),
		Name:            in.Name,
		DurationMinutes: in.DurationMinutes,
		BlockedApps:     in.BlockedApps,
		AllowedApps:     in.AllowedApps,
		MinimizedApps:   in.MinimizedApps,
		StrictMode:      in.StrictMode,
	}
	rule.Normalize()
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rules[rule.ID] != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrRuleIDConflict, rule.ID)
	}
	if err := s.repo.Save(ctx, rule); err != nil {
		return nil, err
	}
	s.rules[rule.ID] = rule
	s.logger.Info("rule created", zap.String("rule", rule.ID))
	return rule.Clone(), nil
}

// Upsert validates the rule and inserts or replaces it by ID.
func (s *RuleStore) Upsert(ctx context.Context, rule *domain.FocusRule) error {
	rule = rule.Clone()
	rule.Normalize()
	if err := rule.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.Save(ctx, rule); err != nil {
		return err
	}
	s.rules[rule.ID] = rule
	return nil
}

// Remove deletes the rule and drops it from the displayed subset.
func (s *RuleStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rules[id] == nil {
		return domain.ErrRuleNotFound
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	delete(s.rules, id)
	s.displayed.Remove(id)
	s.logger.Info("rule removed", zap.String("rule", id))
	return nil
}

// ToggleDisplay adds or removes id from the displayed subset and reports
// whether it is now displayed.
func (s *RuleStore) ToggleDisplay(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rules[id] == nil {
		return false, domain.ErrRuleNotFound
	}

	next := domain.NewDisplayedSubset(s.displayed.IDs()...)
	shown, err := next.Toggle(id)
	if err != nil {
		return false, err
	}
	if err := s.repo.SaveDisplayed(ctx, next.IDs()); err != nil {
		return false, err
	}
	s.displayed = next
	return shown, nil
}

// SetDisplayed replaces the displayed subset. Every id must exist and at
// most MaxDisplayedRules may be given.
func (s *RuleStore) SetDisplayed(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := domain.NewDisplayedSubset()
	for _, id := range ids {
		if s.rules[id] == nil {
			return fmt.Errorf("%w: %s", domain.ErrRuleNotFound, id)
		}
		if next.Contains(id) {
			continue
		}
		if _, err := next.Toggle(id); err != nil {
			return err
		}
	}
	if err := s.repo.SaveDisplayed(ctx, next.IDs()); err != nil {
		return err
	}
	s.displayed = next
	return nil
}

// DisplayedIDs returns the displayed subset in order.
func (s *RuleStore) DisplayedIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.displayed.IDs()
}

// Displayed returns copies of the displayed rules in order.
func (s *RuleStore) Displayed() []*domain.FocusRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.FocusRule, 0, s.displayed.Len())
	for _, id := range s.displayed.IDs() {
		if r := s.rules[id]; r != nil {
			out = append(out, r.Clone())
		}
	}
	return out
}

// Find resolves a user query to a rule: exact ID, then case-insensitive
// name or slug, then the best fuzzy match over IDs and names.
func (s *RuleStore) Find(query string) (*domain.FocusRule, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ErrRuleNotFound
	}
	if rule, err := s.Get(query); err == nil {
		return rule, nil
	}

	rules := s.List()
	slug := domain.Slugify(query)
	for _, r := range rules {
		if strings.EqualFold(r.Name, query) || r.ID == slug {
			return r, nil
		}
	}

	// Each rule contributes its ID and name as candidates.
	candidates := make([]string, 0, len(rules)*2)
	for _, r := range rules {
		candidates = append(candidates, r.ID, r.Name)
	}
	matches := fuzzy.Find(query, candidates)
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %q", domain.ErrRuleNotFound, query)
	}
	return rules[matches[0].Index/2], nil
}

// FetchFromBackend reads the backend's stored settings for rule id and
// returns the local rule with them merged in. Fields the backend returns
// override local values. Backend failures and rejected settings are logged
// and reported as ok=false; nothing is saved.
func (s *RuleStore) FetchFromBackend(ctx context.Context, id string) (*domain.FocusRule, bool, error) {
	rule, err := s.Get(id)
	if err != nil {
		return nil, false, err
	}

	settings, err := s.backend.GetSettings(ctx, rule.ModeKey())
	if err != nil {
		s.logger.Warn("failed to load rule settings from backend",
			zap.String("rule", id),
			zap.String("mode_key", rule.ModeKey()),
			zap.Error(err),
		)
		return nil, false, nil
	}

	merged := mergeSettings(rule, settings)
	if err := merged.Validate(); err != nil {
		s.logger.Warn("backend settings rejected", zap.String("rule", id), zap.Error(err))
		return nil, false, nil
	}
	return merged, true, nil
}

func mergeSettings(rule *domain.FocusRule, settings *ports.ModeSettings) *domain.FocusRule {
	merged := rule.Clone()
	if settings == nil {
		return merged
	}
	if settings.AllowedApps != nil {
		merged.AllowedApps = settings.AllowedApps
	}
	if settings.BlockedApps != nil {
		merged.BlockedApps = settings.BlockedApps
	}
	if settings.MinimizedApps != nil {
		merged.MinimizedApps = settings.MinimizedApps
	}
	if settings.Duration != nil {
		merged.DurationMinutes = *settings.Duration
	}
	if settings.DistractionBlocker != nil {
		merged.StrictMode = *settings.DistractionBlocker
	}
	merged.Normalize()
	return merged
}

// SaveToBackend pushes every setting of rule id to the backend in
// parallel. Failures are joined and returned; the local rule is kept as is.
func (s *RuleStore) SaveToBackend(ctx context.Context, id string) error {
	rule, err := s.Get(id)
	if err != nil {
		return err
	}

	modeKey := rule.ModeKey()
	updates := []struct {
		setting string
		value   any
	}{
		{ports.SettingAllowedApps, nonNil(rule.AllowedApps)},
		{ports.SettingBlockedApps, nonNil(rule.BlockedApps)},
		{ports.SettingMinimizedApps, nonNil(rule.MinimizedApps)},
		{ports.SettingDuration, rule.DurationMinutes},
		{ports.SettingDistractionBlocker, rule.StrictMode},
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, u := range updates {
		wg.Add(1)
		go func(setting string, value any) {
			defer wg.Done()
			if err := s.backend.UpdateSetting(ctx, modeKey, setting, value); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", setting, err))
				mu.Unlock()
			}
		}(u.setting, u.value)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		s.logger.Warn("failed to save rule settings to backend",
			zap.String("rule", id),
			zap.String("mode_key", modeKey),
			zap.Int("failed", len(errs)),
			zap.Error(err),
		)
		return fmt.Errorf("failed to save %s to backend: %w", id, err)
	}
	return nil
}

func nonNil(apps []string) []string {
	if apps == nil {
		return []string{}
	}
	return apps
}
