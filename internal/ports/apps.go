package ports

import "context"

// AppLister discovers application names running on this machine so rule
// editors can pick real names.
// This is a driven port (implemented by adapters).
type AppLister interface {
	// RunningApps returns distinct process names sorted alphabetically.
	RunningApps(ctx context.Context) ([]string, error)
}

// Notifier announces session events to the desktop.
// This is a driven port (implemented by adapters).
type Notifier interface {
	// NotifyFocusComplete announces a naturally completed session.
	NotifyFocusComplete(ruleName string, minutes int) error

	// IsEnabled returns true if notifications are enabled.
	IsEnabled() bool
}
