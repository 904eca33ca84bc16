package domain

import (
	"fmt"
	"time"
)

// SessionPhase is the explicit state of the focus session state machine.
type SessionPhase string

const (
	PhaseIdle       SessionPhase = "idle"
	PhaseStarting   SessionPhase = "starting"
	PhaseRunning    SessionPhase = "running"
	PhasePaused     SessionPhase = "paused"
	PhaseStopping   SessionPhase = "stopping"
	PhaseCompleting SessionPhase = "completing"
)

// sessionTransitions lists every allowed phase change.
var sessionTransitions = map[SessionPhase][]SessionPhase{
	PhaseIdle:       {PhaseStarting},
	PhaseStarting:   {PhaseRunning, PhaseIdle},
	PhaseRunning:    {PhasePaused, PhaseStopping, PhaseCompleting, PhaseIdle},
	PhasePaused:     {PhaseRunning, PhaseStopping},
	PhaseStopping:   {PhaseIdle, PhaseRunning, PhasePaused},
	PhaseCompleting: {PhaseIdle},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to SessionPhase) bool {
	for _, next := range sessionTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionError builds an ErrInvalidTransition naming both phases.
func TransitionError(from, to SessionPhase) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// IsActive reports whether a session exists in this phase.
func (p SessionPhase) IsActive() bool {
	switch p {
	case PhaseRunning, PhasePaused, PhaseStopping, PhaseCompleting:
		return true
	}
	return false
}

// GetPhaseLabel returns a human-readable label for a phase.
func GetPhaseLabel(p SessionPhase) string {
	switch p {
	case PhaseIdle:
		return "Ready"
	case PhaseStarting:
		return "Starting"
	case PhaseRunning:
		return "Focusing"
	case PhasePaused:
		return "Paused"
	case PhaseStopping:
		return "Stopping"
	case PhaseCompleting:
		return "Completing"
	default:
		return "Unknown"
	}
}

// SessionState is a snapshot of the controller's session.
type SessionState struct {
	Phase            SessionPhase
	SelectedRuleID   string
	RemainingSeconds int
	TotalSeconds     int
	// Generation increments on every start and stop; poll results carry the
	// generation they were issued under.
	Generation uint64
	SessionID  string
	StartedAt  time.Time
	GitBranch  string
}

// NewIdleState returns the initial state for the given rule (nil means none).
func NewIdleState(rule *FocusRule) SessionState {
	s := SessionState{Phase: PhaseIdle}
	s.ResetCountdown(rule)
	return s
}

// Active reports whether a session is in progress.
func (s SessionState) Active() bool {
	return s.Phase.IsActive()
}

// Running reports whether the countdown is advancing.
func (s SessionState) Running() bool {
	return s.Phase == PhaseRunning
}

// ResetCountdown selects rule and sets both counters to its full length.
func (s *SessionState) ResetCountdown(rule *FocusRule) {
	if rule == nil {
		s.SelectedRuleID = ""
		s.TotalSeconds = DefaultCountdownSeconds
		s.RemainingSeconds = DefaultCountdownSeconds
		return
	}
	s.SelectedRuleID = rule.ID
	s.TotalSeconds = rule.TotalSeconds()
	s.RemainingSeconds = s.TotalSeconds
}

// Remaining returns the remaining time as a duration.
func (s SessionState) Remaining() time.Duration {
	return time.Duration(s.RemainingSeconds) * time.Second
}

// Elapsed returns how much of the countdown has been consumed.
func (s SessionState) Elapsed() time.Duration {
	return time.Duration(s.TotalSeconds-s.RemainingSeconds) * time.Second
}

// Progress returns the completion fraction (0.0 to 1.0).
func (s SessionState) Progress() float64 {
	if s.TotalSeconds <= 0 {
		return 0
	}
	p := float64(s.TotalSeconds-s.RemainingSeconds) / float64(s.TotalSeconds)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// RemainingFromStatus converts a backend timer reading into remaining
// seconds, clamped at zero.
func RemainingFromStatus(elapsedSeconds, timeLimitMinutes float64) int {
	remaining := timeLimitMinutes*60 - elapsedSeconds
	if remaining <= 0 {
		return 0
	}
	return int(remaining)
}
