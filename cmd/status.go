package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/xvierd/focus-cli/internal/adapters/tui"
	"github.com/xvierd/focus-cli/internal/domain"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current status",
	Long:  `Display the current focus session, the selected rule and today's statistics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		backendErr := recoverSession(context.Background())

		state := app.controller.CurrentState()
		if jsonOutput {
			result := stateJSON(state)
			result["backend_reachable"] = backendErr == nil
			return printJSON(cmd.OutOrStdout(), result)
		}

		if err := tui.ShowStatus(cmd.OutOrStdout(), state); err != nil {
			return err
		}
		if backendErr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: backend unreachable at %s\n", app.backend.BaseURL())
		}
		return nil
	},
}

// stateJSON converts a snapshot into the --json layout.
func stateJSON(state *domain.CurrentState) map[string]interface{} {
	session := state.Session
	sessionData := map[string]interface{}{
		"phase":             string(session.Phase),
		"label":             domain.GetPhaseLabel(session.Phase),
		"remaining_seconds": session.RemainingSeconds,
		"total_seconds":     session.TotalSeconds,
		"progress":          session.Progress(),
	}
	if session.Active() {
		sessionData["id"] = session.SessionID
		sessionData["started_at"] = session.StartedAt.Format(time.RFC3339)
		sessionData["git_branch"] = session.GitBranch
	}

	displayed := make([]string, 0, len(state.Displayed))
	for _, r := range state.Displayed {
		displayed = append(displayed, r.ID)
	}

	result := map[string]interface{}{
		"session":       sessionData,
		"selected_rule": nil,
		"displayed":     displayed,
		"today_stats": map[string]interface{}{
			"sessions":       state.Stats.TodaySessions,
			"focus_time":     state.Stats.TotalFocusTime.String(),
			"current_streak": state.Stats.CurrentStreak,
		},
	}
	if state.SelectedRule != nil {
		result["selected_rule"] = ruleJSON(state.SelectedRule)
	}
	return result
}
