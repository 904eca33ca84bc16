package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xvierd/focus-cli/internal/adapters/apps"
)

var appsLimit int

// appsCmd represents the apps command
var appsCmd = &cobra.Command{
	Use:   "apps [query]",
	Short: "List running apps to use in rules",
	Long: `List the applications running on this machine, optionally filtered by a
fuzzy query. Use the names in --blocked, --allowed and --minimized.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")

		names, err := apps.NewLister().Suggest(context.Background(), query, appsLimit)
		if err != nil {
			return fmt.Errorf("failed to list running apps: %w", err)
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"query": query,
				"apps":  nonNilApps(names),
			})
		}

		out := cmd.OutOrStdout()
		if len(names) == 0 {
			fmt.Fprintln(out, "No matching apps.")
			return nil
		}
		for _, name := range names {
			fmt.Fprintln(out, name)
		}
		return nil
	},
}

func init() {
	appsCmd.Flags().IntVarP(&appsLimit, "limit", "n", 20, "Maximum number of apps to list (0 for all)")
}
