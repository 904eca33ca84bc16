// Package ports defines the interfaces between the focus services and the
// adapters that talk to the outside world.
package ports

import "context"

// Setting names accepted by the backend settings endpoint.
const (
	SettingAllowedApps        = "allowed_apps"
	SettingBlockedApps        = "blocked_apps"
	SettingMinimizedApps      = "minimized_apps"
	SettingDuration           = "duration"
	SettingDistractionBlocker = "distraction_blocker"
)

// TimerStatus is the backend's authoritative timer reading.
type TimerStatus struct {
	IsTiming       bool    `json:"is_timing"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	// TimeLimit is expressed in minutes.
	TimeLimit float64 `json:"time_limit"`
}

// ModeSettings mirrors the per-rule settings stored by the backend.
// Nil fields were absent from the response.
type ModeSettings struct {
	AllowedApps        []string `json:"allowed_apps,omitempty"`
	BlockedApps        []string `json:"blocked_apps,omitempty"`
	MinimizedApps      []string `json:"minimized_apps,omitempty"`
	Duration           *int     `json:"duration,omitempty"`
	DistractionBlocker *bool    `json:"distraction_blocker,omitempty"`
}

// ModesBackend is the remote modes and timer service.
// This is a driven port (implemented by adapters).
type ModesBackend interface {
	// SwitchFocus activates the focus profile named focusType.
	SwitchFocus(ctx context.Context, focusType string) error

	// SwitchStandard reverts the machine to standard mode.
	SwitchStandard(ctx context.Context) error

	// StartTimer starts the backend countdown for the given minutes.
	StartTimer(ctx context.Context, minutes int) error

	// StopTimer stops the backend countdown.
	StopTimer(ctx context.Context) error

	// TimerStatus reads the current backend countdown.
	TimerStatus(ctx context.Context) (*TimerStatus, error)

	// GetSettings reads the stored settings for a mode key.
	GetSettings(ctx context.Context, modeKey string) (*ModeSettings, error)

	// UpdateSetting writes a single setting for a mode key.
	UpdateSetting(ctx context.Context, modeKey, setting string, value any) error
}
