// Package notification provides desktop notification utilities.
package notification

import (
	"fmt"

	"github.com/gen2brain/beeep"

	"github.com/xvierd/focus-cli/internal/config"
	"github.com/xvierd/focus-cli/internal/ports"
)

// Notifier handles desktop notifications.
type Notifier struct {
	cfg    *config.NotificationConfig
	notify func(title, message string) error
	beep   func() error
}

// New creates a new notifier with the given configuration.
func New(cfg *config.NotificationConfig) *Notifier {
	return &Notifier{
		cfg: cfg,
		notify: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
		beep: func() error {
			return beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration)
		},
	}
}

// Ensure Notifier implements ports.Notifier.
var _ ports.Notifier = (*Notifier)(nil)

// Notify displays a desktop notification if enabled, beeping as well when
// sound is on.
func (n *Notifier) Notify(title, message string) error {
	if !n.IsEnabled() {
		return nil
	}
	if err := n.notify(title, message); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	if n.cfg.Sound {
		return n.beep()
	}
	return nil
}

// NotifyFocusComplete announces the natural end of a focus session.
func (n *Notifier) NotifyFocusComplete(ruleName string, minutes int) error {
	title := "Focus session complete"
	message := fmt.Sprintf("%s finished after %d minutes. Standard mode is back on.", ruleName, minutes)
	return n.Notify(title, message)
}

// IsEnabled returns true if notifications are enabled.
func (n *Notifier) IsEnabled() bool {
	return n.cfg != nil && n.cfg.Enabled
}
