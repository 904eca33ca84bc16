package domain

import (
	"testing"
	"time"
)

func TestCurrentState_IsSessionActive(t *testing.T) {
	tests := []struct {
		name  string
		phase SessionPhase
		want  bool
	}{
		{"idle", PhaseIdle, false},
		{"starting", PhaseStarting, false},
		{"running", PhaseRunning, true},
		{"paused", PhasePaused, true},
		{"stopping", PhaseStopping, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs := CurrentState{Session: SessionState{Phase: tt.phase}}
			if got := cs.IsSessionActive(); got != tt.want {
				t.Errorf("IsSessionActive() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCurrentState_CanStart(t *testing.T) {
	rule := &FocusRule{ID: "x", Name: "X", DurationMinutes: 1}

	if cs := (CurrentState{Session: SessionState{Phase: PhaseIdle}}); cs.CanStart() {
		t.Error("CanStart() should be false without a selected rule")
	}
	if cs := (CurrentState{Session: SessionState{Phase: PhaseIdle}, SelectedRule: rule}); !cs.CanStart() {
		t.Error("CanStart() should be true when idle with a rule")
	}
	if cs := (CurrentState{Session: SessionState{Phase: PhasePaused}, SelectedRule: rule}); cs.CanStart() || cs.CanSelectRule() {
		t.Error("paused session should lock start and selection")
	}
}

func TestComputeStats(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	yesterday := now.Add(-24 * time.Hour)

	records := []*SessionRecord{
		{Outcome: OutcomeCompleted, FocusedSeconds: 3600, EndedAt: now.Add(-time.Hour)},
		{Outcome: OutcomeCompleted, FocusedSeconds: 1800, EndedAt: now.Add(-3 * time.Hour)},
		{Outcome: OutcomeStopped, FocusedSeconds: 600, EndedAt: now.Add(-5 * time.Hour)},
		{Outcome: OutcomeCompleted, FocusedSeconds: 2700, EndedAt: yesterday},
	}

	stats := ComputeStats(records, now)
	if stats.TodaySessions != 2 {
		t.Errorf("TodaySessions = %d, want 2", stats.TodaySessions)
	}
	if stats.CurrentStreak != 2 {
		t.Errorf("CurrentStreak = %d, want 2", stats.CurrentStreak)
	}
	if stats.TotalFocusTime != 100*time.Minute {
		t.Errorf("TotalFocusTime = %v, want 1h40m", stats.TotalFocusTime)
	}
	if got := stats.FocusTimeLabel(); got != "1h 40m" {
		t.Errorf("FocusTimeLabel() = %q, want %q", got, "1h 40m")
	}
}

func TestNewSessionRecord(t *testing.T) {
	end := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	s := SessionState{SelectedRuleID: "deep-work", TotalSeconds: 5400, RemainingSeconds: 5000, SessionID: "abc"}

	stopped := NewSessionRecord(s, "Deep Work", OutcomeStopped, end)
	if stopped.FocusedSeconds != 400 {
		t.Errorf("stopped FocusedSeconds = %d, want 400", stopped.FocusedSeconds)
	}
	if stopped.ID != "abc" {
		t.Errorf("ID = %q, want session id", stopped.ID)
	}

	completed := NewSessionRecord(s, "Deep Work", OutcomeCompleted, end)
	if completed.FocusedSeconds != 5400 {
		t.Errorf("completed FocusedSeconds = %d, want 5400", completed.FocusedSeconds)
	}
}
