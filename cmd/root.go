// Package cmd provides the CLI commands for the focus application.
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xvierd/focus-cli/internal/adapters/tui"
	"github.com/xvierd/focus-cli/internal/domain"
	"github.com/xvierd/focus-cli/internal/ports"
)

var (
	// Version info (set at build time via ldflags)
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"

	// Global flags
	configFile string
	dbPath     string
	backendURL string
	jsonOutput bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "focus",
	Short: "Focus - drive focus sessions on your screen-time tracker",
	Long: `Focus switches the screen-time tracker into a focus mode built from one
of your rules, starts its timer and counts down until the session ends.

Run "focus" with no arguments to open the dashboard.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeServices()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return cleanupServices()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDashboard(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// PersistentPostRunE is skipped when RunE fails.
		_ = cleanupServices()
		tui.ShowError(err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to the config file (default: ~/.focus/config.toml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the database file (default: ~/.focus/focus.db)")
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend", "", "Tracker backend URL (overrides backend.base_url)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output results in JSON format")

	// Set version - cobra handles --version automatically
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("Focus CLI\nVersion: {{.Version}}\n")

	// Add subcommands
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(selectCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(appsCmd)
	rootCmd.AddCommand(backendCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(configCmd)
}

// runDashboard opens the full-screen dashboard wired to the controller.
func runDashboard(cmd *cobra.Command) error {
	ctx := setupSignalHandler()
	_ = recoverSession(ctx)

	dashboard := tui.NewDashboard(&app.config.Theme)
	dashboard.SetFetchState(app.controller.CurrentState)
	dashboard.SetTickCallback(app.controller.Tick)
	dashboard.SetSelectCallback(func(ruleID string) error {
		return app.controller.SelectRule(ctx, ruleID)
	})
	dashboard.SetCommandCallback(func(c ports.TimerCommand) error {
		return dispatchCommand(ctx, c)
	})

	if err := dashboard.Run(ctx, app.controller.CurrentState()); err != nil {
		return err
	}

	if session := app.controller.Snapshot(); session.Active() {
		fmt.Fprintf(cmd.OutOrStdout(), "Session still running (%s left). Run `focus stop` to end it.\n",
			formatCountdown(session.RemainingSeconds))
	}
	return nil
}

// dispatchCommand maps a dashboard key to the controller.
func dispatchCommand(ctx context.Context, c ports.TimerCommand) error {
	var err error
	switch c {
	case ports.CmdStart:
		err = app.controller.StartOrResume(ctx)
	case ports.CmdPause:
		err = app.controller.Pause()
	case ports.CmdStop:
		err = app.controller.Stop(ctx)
	case ports.CmdRevert:
		err = app.controller.RevertMode(ctx)
	case ports.CmdQuit:
		return nil
	default:
		return fmt.Errorf("unknown command %q", c)
	}
	if err != nil {
		app.logger.Warn("dashboard command failed", zap.String("command", string(c)), zap.Error(err))
	}
	return err
}

// formatMinutes formats a duration as a human-friendly string like "25m" or "1h30m".
func formatMinutes(d time.Duration) string {
	if d >= time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m == 0 {
			return fmt.Sprintf("%dh", h)
		}
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", int(d.Minutes()))
}

// formatCountdown formats seconds as MM:SS.
func formatCountdown(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// durationLabel renders a rule's length for listings.
func durationLabel(rule *domain.FocusRule) string {
	return formatMinutes(time.Duration(rule.DurationMinutes) * time.Minute)
}
