package ports

import (
	"context"

	"github.com/xvierd/focus-cli/internal/domain"
)

// TimerCommand represents a user action in the dashboard.
type TimerCommand string

const (
	// CmdStart starts a session, or resumes a paused one.
	CmdStart TimerCommand = "start"

	// CmdPause freezes the local countdown.
	CmdPause TimerCommand = "pause"

	// CmdStop ends the session and reverts to standard mode.
	CmdStop TimerCommand = "stop"

	// CmdRevert retries the switch back to standard mode.
	CmdRevert TimerCommand = "revert"

	// CmdQuit exits the dashboard.
	CmdQuit TimerCommand = "quit"
)

// Dashboard is the interactive focus UI.
// This is a driving port (called by the application layer).
type Dashboard interface {
	// Run starts the interface and blocks until the user quits or ctx ends.
	Run(ctx context.Context, initialState *domain.CurrentState) error

	// Stop gracefully stops the interface.
	Stop()

	// SetFetchState sets the function polled on every tick for a fresh snapshot.
	SetFetchState(fetch func() *domain.CurrentState)

	// SetCommandCallback sets the handler for session commands.
	SetCommandCallback(callback func(cmd TimerCommand) error)

	// SetSelectCallback sets the handler for picker selections.
	SetSelectCallback(callback func(ruleID string) error)

	// SetTickCallback sets the handler for the local one-second tick.
	SetTickCallback(callback func())
}
