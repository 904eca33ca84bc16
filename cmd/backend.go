package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xvierd/focus-cli/internal/adapters/devserver"
)

var serveAddr string

// backendCmd groups commands that talk to the tracker backend directly.
var backendCmd = &cobra.Command{
	Use:   "backend",
	Short: "Check or stand in for the tracker backend",
}

var backendServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run an in-memory stand-in backend",
	Long: `Serve the modes and timer API from memory so focus can be tried without
the screen-time tracker. Nothing is blocked; the server only records the
requested mode and runs the timer.`,
	// The stand-in needs no local database.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return cleanupServices()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := setupSignalHandler()
		srv := devserver.New(devserver.WithLogger(app.logger))

		fmt.Fprintf(cmd.OutOrStdout(), "🚀 Stand-in backend listening on http://%s\n", serveAddr)
		fmt.Fprintln(cmd.OutOrStdout(), "   Press Ctrl+C to stop")
		if err := srv.ListenAndServe(ctx, serveAddr); err != nil {
			return fmt.Errorf("backend server error: %w", err)
		}
		return nil
	},
}

var backendCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the backend is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		out := cmd.OutOrStdout()

		if err := app.backend.Health(ctx); err != nil {
			return fmt.Errorf("backend at %s is not reachable: %w", app.backend.BaseURL(), err)
		}

		mode, err := app.backend.ModeStatus(ctx)
		if err != nil {
			return fmt.Errorf("failed to read mode: %w", err)
		}
		timer, err := app.backend.TimerStatus(ctx)
		if err != nil {
			return fmt.Errorf("failed to read timer: %w", err)
		}

		if jsonOutput {
			return printJSON(out, map[string]interface{}{
				"base_url": app.backend.BaseURL(),
				"mode":     mode,
				"timer": map[string]interface{}{
					"is_timing":       timer.IsTiming,
					"elapsed_seconds": timer.ElapsedSeconds,
					"time_limit":      timer.TimeLimit,
				},
			})
		}

		currentMode, _ := mode["mode"].(string)
		focusType, _ := mode["focus_type"].(string)
		fmt.Fprintf(out, "✅ Backend reachable at %s\n", app.backend.BaseURL())
		fmt.Fprintf(out, "   Mode:  %s\n", devserver.Describe(currentMode, focusType))
		if timer.IsTiming {
			remaining := int(timer.TimeLimit*60 - timer.ElapsedSeconds)
			fmt.Fprintf(out, "   Timer: running, %s left\n", formatCountdown(remaining))
		} else {
			fmt.Fprintln(out, "   Timer: stopped")
		}
		return nil
	},
}

func init() {
	backendServeCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:5000", "Address to listen on")

	backendCmd.AddCommand(backendServeCmd)
	backendCmd.AddCommand(backendCheckCmd)
}
