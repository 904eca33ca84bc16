package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xvierd/focus-cli/internal/adapters/tui"
	"github.com/xvierd/focus-cli/internal/domain"
)

var startWatch bool

// selectCmd represents the select command
var selectCmd = &cobra.Command{
	Use:   "select [rule]",
	Short: "Choose the rule for the next session",
	Long: `Select the focus rule the next session will use. The rule can be given
by id or name; partial names are matched fuzzily. Without an argument an
interactive picker is shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		_ = recoverSession(ctx)

		var id string
		if len(args) == 1 {
			rule, err := app.rules.Find(args[0])
			if err != nil {
				return err
			}
			id = rule.ID
		} else {
			res := tui.RunPicker("Select a focus rule",
				tui.RuleItems(app.rules.List(), app.rules.DisplayedIDs()),
				"★ shown in the dashboard",
				app.controller.Snapshot().SelectedRuleID,
				&app.config.Theme)
			if res.Aborted {
				return nil
			}
			id = res.ID
		}

		if err := app.controller.SelectRule(ctx, id); err != nil {
			if errors.Is(err, domain.ErrSessionLocked) {
				return fmt.Errorf("cannot change the rule while a session is running; run `focus stop` first")
			}
			return fmt.Errorf("failed to select rule: %w", err)
		}

		rule, _ := app.rules.Get(id)
		fmt.Fprintf(cmd.OutOrStdout(), "▸ Selected %s (%s)\n", rule.Name, durationLabel(rule))
		return nil
	},
}

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start [rule]",
	Short: "Start a focus session",
	Long: `Switch the backend into the selected rule's focus mode and start its
timer. Give a rule to select it first. The session keeps running on the
backend after this command exits; use --watch to follow it in the
dashboard, and "focus stop" to end it early.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := setupSignalHandler()
		_ = recoverSession(ctx)

		if session := app.controller.Snapshot(); session.Active() {
			return fmt.Errorf("a focus session is already running (%s left); run `focus stop` first",
				formatCountdown(session.RemainingSeconds))
		}

		if len(args) == 1 {
			rule, err := app.rules.Find(args[0])
			if err != nil {
				return err
			}
			if err := app.controller.SelectRule(ctx, rule.ID); err != nil {
				return fmt.Errorf("failed to select rule: %w", err)
			}
		}

		if err := app.controller.Start(ctx); err != nil {
			if errors.Is(err, domain.ErrNoRuleSelected) {
				return fmt.Errorf("no focus rule selected; run `focus select` or `focus start <rule>`")
			}
			return err
		}

		state := app.controller.CurrentState()
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), stateJSON(state))
		}

		out := cmd.OutOrStdout()
		rule := state.SelectedRule
		fmt.Fprintf(out, "◎ Focus started: %s (%s)\n", rule.Name, durationLabel(rule))
		if rule.StrictMode {
			fmt.Fprintln(out, "   Strict mode is on")
		}
		if state.Session.GitBranch != "" {
			fmt.Fprintf(out, "   Git: %s\n", state.Session.GitBranch)
		}

		if startWatch {
			return runDashboard(cmd)
		}
		return nil
	},
}

func init() {
	startCmd.Flags().BoolVarP(&startWatch, "watch", "w", false, "Open the dashboard after starting")
}
