package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xvierd/focus-cli/internal/adapters/tui"
	"github.com/xvierd/focus-cli/internal/domain"
	"github.com/xvierd/focus-cli/internal/services"
)

var (
	ruleDuration  int
	ruleName      string
	ruleBlocked   string
	ruleAllowed   string
	ruleMinimized string
	ruleStrict    bool
	ruleShow      bool
	ruleLocalOnly bool
)

// rulesCmd groups rule management
var rulesCmd = &cobra.Command{
	Use:     "rules",
	Aliases: []string{"rule"},
	Short:   "Manage focus rules",
	Long: `Focus rules name a focus mode: how long a session lasts and which apps
are blocked, allowed or minimized while it runs. Up to three rules are
shown in the dashboard picker.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listRules(cmd)
	},
}

var rulesListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all focus rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listRules(cmd)
	},
}

var rulesShowCmd = &cobra.Command{
	Use:   "show <rule>",
	Short: "Show one rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rule, err := app.rules.Find(args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), ruleJSON(rule))
		}
		printRule(cmd.OutOrStdout(), rule)
		return nil
	},
}

var rulesAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Create a focus rule",
	Long: `Create a focus rule. The rule id is derived from the name ("Deep Work"
becomes deep-work). App lists are comma-separated.

The rule is pushed to the backend unless --local is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		name := strings.Join(args, " ")
		if name == "" {
			res := tui.RunTextPrompt("Rule name:", "e.g. Deep Work", "", &app.config.Theme)
			if res.Aborted {
				return nil
			}
			name = res.Value
		}

		rule, err := app.controller.CreateRule(ctx, services.RuleInput{
			Name:            name,
			DurationMinutes: ruleDuration,
			BlockedApps:     domain.ParseAppList(ruleBlocked),
			AllowedApps:     domain.ParseAppList(ruleAllowed),
			MinimizedApps:   domain.ParseAppList(ruleMinimized),
			StrictMode:      ruleStrict,
		})
		if err != nil {
			return fmt.Errorf("failed to create rule: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✅ Rule created: %s (%s)\n", rule.Name, rule.ID)

		if ruleShow {
			if _, err := app.controller.ToggleDisplay(ctx, rule.ID); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: not added to the picker: %v\n", err)
			}
		}
		pushRule(cmd, rule.ID)
		return nil
	},
}

var rulesEditCmd = &cobra.Command{
	Use:   "edit <rule>",
	Short: "Change a focus rule",
	Long: `Change the fields given as flags. The id never changes, even when the
name does. The selected rule cannot be edited during a session.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		// a session started by another process locks its rule too
		_ = recoverSession(ctx)

		rule, err := app.rules.Find(args[0])
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		changed := false
		if flags.Changed("name") {
			rule.Name = ruleName
			changed = true
		}
		if flags.Changed("duration") {
			rule.DurationMinutes = ruleDuration
			changed = true
		}
		if flags.Changed("blocked") {
			rule.BlockedApps = domain.ParseAppList(ruleBlocked)
			changed = true
		}
		if flags.Changed("allowed") {
			rule.AllowedApps = domain.ParseAppList(ruleAllowed)
			changed = true
		}
		if flags.Changed("minimized") {
			rule.MinimizedApps = domain.ParseAppList(ruleMinimized)
			changed = true
		}
		if flags.Changed("strict") {
			rule.StrictMode = ruleStrict
			changed = true
		}
		if !changed {
			return fmt.Errorf("nothing to change; see `focus rules edit --help`")
		}

		if err := app.controller.UpdateRule(ctx, rule); err != nil {
			return ruleChangeError(rule.ID, "update", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Rule updated: %s (%s)\n", rule.Name, rule.ID)
		pushRule(cmd, rule.ID)
		return nil
	},
}

var rulesDeleteCmd = &cobra.Command{
	Use:     "delete <rule>",
	Aliases: []string{"rm"},
	Short:   "Delete a focus rule",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		_ = recoverSession(ctx)

		rule, err := app.rules.Find(args[0])
		if err != nil {
			return err
		}
		if err := app.controller.DeleteRule(ctx, rule.ID); err != nil {
			return ruleChangeError(rule.ID, "delete", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "🗑️  Rule deleted: %s\n", rule.ID)
		return nil
	},
}

var rulesDisplayCmd = &cobra.Command{
	Use:   "display <rule>",
	Short: "Add a rule to the picker, or remove it",
	Long:  fmt.Sprintf("Toggle a rule in the dashboard picker. At most %d rules are shown.", domain.MaxDisplayedRules),
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rule, err := app.rules.Find(args[0])
		if err != nil {
			return err
		}
		shown, err := app.controller.ToggleDisplay(context.Background(), rule.ID)
		if err != nil {
			return fmt.Errorf("failed to toggle %s: %w", rule.ID, err)
		}
		if shown {
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now shown in the picker\n", rule.Name)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s is no longer shown in the picker\n", rule.Name)
		}
		return nil
	},
}

func init() {
	rulesAddCmd.Flags().IntVarP(&ruleDuration, "duration", "d", 25, "Session length in minutes")
	rulesAddCmd.Flags().StringVarP(&ruleBlocked, "blocked", "b", "", "Comma-separated apps to block")
	rulesAddCmd.Flags().StringVarP(&ruleAllowed, "allowed", "a", "", "Comma-separated apps to allow")
	rulesAddCmd.Flags().StringVarP(&ruleMinimized, "minimized", "m", "", "Comma-separated apps to minimize")
	rulesAddCmd.Flags().BoolVar(&ruleStrict, "strict", false, "Enable the distraction blocker")
	rulesAddCmd.Flags().BoolVar(&ruleShow, "show", false, "Also show the rule in the picker")
	rulesAddCmd.Flags().BoolVar(&ruleLocalOnly, "local", false, "Do not push the rule to the backend")

	rulesEditCmd.Flags().StringVarP(&ruleName, "name", "n", "", "New display name")
	rulesEditCmd.Flags().IntVarP(&ruleDuration, "duration", "d", 25, "Session length in minutes")
	rulesEditCmd.Flags().StringVarP(&ruleBlocked, "blocked", "b", "", "Comma-separated apps to block")
	rulesEditCmd.Flags().StringVarP(&ruleAllowed, "allowed", "a", "", "Comma-separated apps to allow")
	rulesEditCmd.Flags().StringVarP(&ruleMinimized, "minimized", "m", "", "Comma-separated apps to minimize")
	rulesEditCmd.Flags().BoolVar(&ruleStrict, "strict", false, "Enable the distraction blocker")
	rulesEditCmd.Flags().BoolVar(&ruleLocalOnly, "local", false, "Do not push the rule to the backend")

	rulesSyncCmd.Flags().BoolVar(&rulesPull, "pull", false, "Load settings from the backend instead of pushing")
	rulesImportCmd.Flags().BoolVarP(&rulesWatch, "watch", "w", false, "Keep importing whenever the file changes")

	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesShowCmd)
	rulesCmd.AddCommand(rulesAddCmd)
	rulesCmd.AddCommand(rulesEditCmd)
	rulesCmd.AddCommand(rulesDeleteCmd)
	rulesCmd.AddCommand(rulesDisplayCmd)
	rulesCmd.AddCommand(rulesSyncCmd)
	rulesCmd.AddCommand(rulesExportCmd)
	rulesCmd.AddCommand(rulesImportCmd)
}

// pushRule saves a rule to the backend unless --local was given. A backend
// failure only warns; the local copy is already stored.
func pushRule(cmd *cobra.Command, id string) {
	if ruleLocalOnly {
		return
	}
	if err := app.rules.SaveToBackend(context.Background(), id); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
		fmt.Fprintln(cmd.ErrOrStderr(), "   Run `focus rules sync` once the backend is reachable.")
	}
}

func listRules(cmd *cobra.Command) error {
	rules := app.rules.List()
	displayed := app.rules.DisplayedIDs()
	selected := app.controller.Snapshot().SelectedRuleID

	if jsonOutput {
		items := make([]map[string]interface{}, 0, len(rules))
		for _, r := range rules {
			items = append(items, ruleJSON(r))
		}
		return printJSON(cmd.OutOrStdout(), map[string]interface{}{
			"rules":     items,
			"displayed": displayed,
			"selected":  selected,
		})
	}

	out := cmd.OutOrStdout()
	if len(rules) == 0 {
		fmt.Fprintln(out, "No rules. Create one with `focus rules add <name>`.")
		return nil
	}

	shown := make(map[string]int, len(displayed))
	for i, id := range displayed {
		shown[id] = i + 1
	}

	fmt.Fprintf(out, "Focus rules (%d):\n\n", len(rules))
	for _, r := range rules {
		marker := " "
		if r.ID == selected {
			marker = "▸"
		}
		slot := "   "
		if n, ok := shown[r.ID]; ok {
			slot = fmt.Sprintf("[%d]", n)
		}
		line := fmt.Sprintf("%s %s %-18s %-20s %6s", marker, slot, r.ID, r.Name, durationLabel(r))
		if r.StrictMode {
			line += "  strict"
		}
		fmt.Fprintln(out, strings.TrimRight(line, " "))
	}
	return nil
}

// ruleChangeError explains a refused edit of the rule a session is using.
func ruleChangeError(id, action string, err error) error {
	if errors.Is(err, domain.ErrSessionLocked) {
		return fmt.Errorf("cannot %s %s while its focus session is running; run `focus stop` first: %w", action, id, err)
	}
	return fmt.Errorf("failed to %s rule: %w", action, err)
}

func printRule(w io.Writer, rule *domain.FocusRule) {
	fmt.Fprintf(w, "%s (%s)\n", rule.Name, rule.ID)
	fmt.Fprintf(w, "   Duration:  %s\n", durationLabel(rule))
	strict := "off"
	if rule.StrictMode {
		strict = "on"
	}
	fmt.Fprintf(w, "   Strict:    %s\n", strict)
	fmt.Fprintf(w, "   Blocked:   %s\n", appsOrNone(rule.BlockedApps))
	fmt.Fprintf(w, "   Allowed:   %s\n", appsOrNone(rule.AllowedApps))
	fmt.Fprintf(w, "   Minimized: %s\n", appsOrNone(rule.MinimizedApps))
	fmt.Fprintf(w, "   Mode:      %s\n", rule.ModeKey())
}

func appsOrNone(apps []string) string {
	if len(apps) == 0 {
		return "none"
	}
	return domain.FormatAppList(apps)
}

func ruleJSON(rule *domain.FocusRule) map[string]interface{} {
	return map[string]interface{}{
		"id":               rule.ID,
		"name":             rule.Name,
		"duration_minutes": rule.DurationMinutes,
		"strict_mode":      rule.StrictMode,
		"blocked_apps":     nonNilApps(rule.BlockedApps),
		"allowed_apps":     nonNilApps(rule.AllowedApps),
		"minimized_apps":   nonNilApps(rule.MinimizedApps),
		"mode_key":         rule.ModeKey(),
	}
}

func nonNilApps(apps []string) []string {
	if apps == nil {
		return []string{}
	}
	return apps
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v interface{}) error {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(jsonData))
	return err
}
