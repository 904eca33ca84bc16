package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// stopCmd represents the stop command
var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the current focus session",
	Long: `Stop the backend timer and switch back to standard mode. If the timer
cannot be stopped the session keeps running.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		if err := recoverSession(ctx); err != nil {
			return fmt.Errorf("failed to reach backend: %w", err)
		}

		session := app.controller.Snapshot()
		if !session.Active() {
			fmt.Fprintln(cmd.OutOrStdout(), "No active focus session.")
			return nil
		}

		if err := app.controller.Stop(ctx); err != nil {
			return err
		}

		focused := session.TotalSeconds - session.RemainingSeconds
		fmt.Fprintf(cmd.OutOrStdout(), "⏹️  Focus session stopped after %s\n", formatCountdown(focused))
		return nil
	},
}

// revertCmd represents the revert command
var revertCmd = &cobra.Command{
	Use:   "revert",
	Short: "Switch the backend back to standard mode",
	Long: `Ask the backend to leave focus mode. Use this when a stop left the
backend in focus mode. A running session is not touched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.controller.RevertMode(context.Background()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Standard mode restored.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(revertCmd)
}
