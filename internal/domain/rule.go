// Package domain contains the core entities of the focus client.
// Rules, the displayed subset, session state and statistics live here and
// are independent of the backend, storage and UI adapters.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Common domain errors.
var (
	ErrRuleNotFound        = errors.New("focus rule not found")
	ErrEmptyRuleName       = errors.New("rule name cannot be empty")
	ErrInvalidRuleDuration = errors.New("rule duration must be a positive number of minutes")
	ErrRuleIDConflict      = errors.New("another rule already uses this id")
	ErrDisplayFull         = errors.New("displayed rules are limited to 3")
	ErrSessionLocked       = errors.New("not allowed while a focus session is active")
	ErrInvalidTransition   = errors.New("invalid session transition")
	ErrNoRuleSelected      = errors.New("no focus rule selected")
)

// ValidationError reports a rejected rule field.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// FocusRule is a named profile of app restrictions plus a session length.
type FocusRule struct {
	ID              string
	Name            string
	DurationMinutes int
	BlockedApps     []string
	AllowedApps     []string
	MinimizedApps   []string
	StrictMode      bool
}

// NewFocusRule builds a rule whose ID is derived from its name.
func NewFocusRule(name string, durationMinutes int) (*FocusRule, error) {
	rule := &FocusRule{
		ID:              Slugify(name),
		Name:            strings.TrimSpace(name),
		DurationMinutes: durationMinutes,
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return rule, nil
}

// Validate checks the invariants every stored rule must satisfy.
func (r *FocusRule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return &ValidationError{Field: "name", Err: ErrEmptyRuleName}
	}
	if r.DurationMinutes <= 0 {
		return &ValidationError{Field: "duration", Err: ErrInvalidRuleDuration}
	}
	if r.ID == "" {
		return &ValidationError{Field: "id", Err: ErrEmptyRuleName}
	}
	return nil
}

// Normalize trims the name and collapses every app list into a set.
func (r *FocusRule) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.BlockedApps = NormalizeApps(r.BlockedApps)
	r.AllowedApps = NormalizeApps(r.AllowedApps)
	r.MinimizedApps = NormalizeApps(r.MinimizedApps)
}

// Clone returns a deep copy so callers never share slices with the store.
func (r *FocusRule) Clone() *FocusRule {
	if r == nil {
		return nil
	}
	c := *r
	c.BlockedApps = append([]string(nil), r.BlockedApps...)
	c.AllowedApps = append([]string(nil), r.AllowedApps...)
	c.MinimizedApps = append([]string(nil), r.MinimizedApps...)
	return &c
}

// TotalSeconds returns the session length in seconds.
func (r *FocusRule) TotalSeconds() int {
	return r.DurationMinutes * 60
}

// FocusType is the backend profile name: the ID with every '-' turned into '_'.
func (r *FocusRule) FocusType() string {
	return FocusTypeFor(r.ID)
}

// ModeKey is the settings key the backend stores app lists under.
func (r *FocusRule) ModeKey() string {
	return ModeKeyFor(r.ID)
}

// FocusTypeFor converts a rule ID into a backend focus type.
func FocusTypeFor(id string) string {
	return strings.ReplaceAll(id, "-", "_")
}

// ModeKeyFor returns standard_focus_{first segment of id}.
func ModeKeyFor(id string) string {
	first, _, _ := strings.Cut(id, "-")
	return "standard_focus_" + first
}

// Slugify lowercases a free-text name and joins its words with '-'.
// Distinct names can collapse to the same slug ("Deep Work" and "deep  work").
func Slugify(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}

// ParseAppList splits a comma-separated form value into a normalized app list.
func ParseAppList(s string) []string {
	return NormalizeApps(strings.Split(s, ","))
}

// NormalizeApps trims entries, drops empties and removes duplicates while
// keeping the first occurrence.
func NormalizeApps(apps []string) []string {
	out := make([]string, 0, len(apps))
	seen := make(map[string]bool, len(apps))
	for _, app := range apps {
		app = strings.TrimSpace(app)
		if app == "" || seen[app] {
			continue
		}
		seen[app] = true
		out = append(out, app)
	}
	return out
}

// FormatAppList joins an app list back into its form representation.
func FormatAppList(apps []string) string {
	return strings.Join(apps, ", ")
}
