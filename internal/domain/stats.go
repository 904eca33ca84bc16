package domain

import (
	"fmt"
	"time"
)

// SessionOutcome records how a session left the active state.
type SessionOutcome string

const (
	OutcomeCompleted SessionOutcome = "completed"
	OutcomeStopped   SessionOutcome = "stopped"
	// OutcomeEnded means the backend timer stopped before the target.
	OutcomeEnded SessionOutcome = "ended"
)

// SessionRecord is one finished session in the history log.
type SessionRecord struct {
	ID             string
	RuleID         string
	RuleName       string
	Outcome        SessionOutcome
	PlannedSeconds int
	FocusedSeconds int
	StartedAt      time.Time
	EndedAt        time.Time
	GitBranch      string
}

// NewSessionRecord closes out a session snapshot.
func NewSessionRecord(s SessionState, ruleName string, outcome SessionOutcome, endedAt time.Time) *SessionRecord {
	focused := s.TotalSeconds - s.RemainingSeconds
	if outcome == OutcomeCompleted {
		focused = s.TotalSeconds
	}
	if focused < 0 {
		focused = 0
	}
	id := s.SessionID
	if id == "" {
		id = generateID()
	}
	started := s.StartedAt
	if started.IsZero() {
		started = endedAt.Add(-time.Duration(focused) * time.Second)
	}
	return &SessionRecord{
		ID:             id,
		RuleID:         s.SelectedRuleID,
		RuleName:       ruleName,
		Outcome:        outcome,
		PlannedSeconds: s.TotalSeconds,
		FocusedSeconds: focused,
		StartedAt:      started,
		EndedAt:        endedAt,
		GitBranch:      s.GitBranch,
	}
}

// SessionStats summarizes today's focus work.
type SessionStats struct {
	TodaySessions  int
	TotalFocusTime time.Duration
	CurrentStreak  int
}

// FocusTimeLabel renders TotalFocusTime as "Xh Ym".
func (s SessionStats) FocusTimeLabel() string {
	total := int(s.TotalFocusTime.Minutes())
	return fmt.Sprintf("%dh %dm", total/60, total%60)
}

// ComputeStats derives statistics from records ordered newest first.
func ComputeStats(records []*SessionRecord, now time.Time) SessionStats {
	var stats SessionStats
	y, m, d := now.Date()
	startOfDay := time.Date(y, m, d, 0, 0, 0, 0, now.Location())

	streakOpen := true
	for _, r := range records {
		if streakOpen {
			if r.Outcome == OutcomeCompleted {
				stats.CurrentStreak++
			} else {
				streakOpen = false
			}
		}
		if r.EndedAt.Before(startOfDay) {
			continue
		}
		if r.Outcome == OutcomeCompleted {
			stats.TodaySessions++
		}
		stats.TotalFocusTime += time.Duration(r.FocusedSeconds) * time.Second
	}
	return stats
}
