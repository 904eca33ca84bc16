package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xvierd/focus-cli/internal/adapters/rulesfile"
	"github.com/xvierd/focus-cli/internal/config"
	"github.com/xvierd/focus-cli/internal/domain"
)

var (
	rulesPull  bool
	rulesWatch bool
)

var rulesSyncCmd = &cobra.Command{
	Use:   "sync [rule]",
	Short: "Push rules to the backend, or pull them with --pull",
	Long: `Push the settings of one rule, or of every rule, to the backend.
With --pull the backend's stored settings are merged into the local rules
instead; fields the backend does not return are left alone.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		out := cmd.OutOrStdout()

		ids := app.rules.IDs()
		if len(args) == 1 {
			rule, err := app.rules.Find(args[0])
			if err != nil {
				return err
			}
			ids = []string{rule.ID}
		}

		if rulesPull {
			_ = recoverSession(ctx)

			var merged int
			if len(args) == 0 {
				res, err := app.controller.PullAllRules(ctx)
				if err != nil {
					return err
				}
				for _, skipped := range res.Skipped {
					fmt.Fprintf(cmd.ErrOrStderr(), "Skipped %v\n", skipped)
				}
				merged = res.Updated
			} else if ok, err := app.controller.PullRule(ctx, ids[0]); err != nil {
				return ruleChangeError(ids[0], "pull", err)
			} else if ok {
				merged = 1
			}
			fmt.Fprintf(out, "⬇️  Pulled %d of %d rules from %s\n", merged, len(ids), app.backend.BaseURL())
			return nil
		}

		failed := 0
		for _, id := range ids {
			if err := app.rules.SaveToBackend(ctx, id); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
				failed++
			}
		}
		fmt.Fprintf(out, "⬆️  Pushed %d of %d rules to %s\n", len(ids)-failed, len(ids), app.backend.BaseURL())
		if failed > 0 {
			return fmt.Errorf("%d rules could not be pushed", failed)
		}
		return nil
	},
}

var rulesExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write all rules to a YAML file",
	Long: `Write every rule, the picker set and the selection to a YAML file.
The default path is rules.file from the config. Use "-" for stdout.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc := rulesfile.NewDocument(app.rules.List(), app.rules.DisplayedIDs(), app.controller.Snapshot().SelectedRuleID)

		path := rulesPath(args)
		if path == "-" {
			return rulesfile.Encode(cmd.OutOrStdout(), doc)
		}
		if err := rulesfile.Write(path, doc); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "📤 Exported %d rules to %s\n", len(doc.Rules), path)
		return nil
	},
}

var rulesImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Load rules from a YAML file",
	Long: `Create or replace rules from a YAML file written by "focus rules export".
Rules are matched by id. Invalid entries are reported and skipped.

With --watch the file is imported again every time it is saved, until
interrupted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := rulesPath(args)

		if path == "-" {
			doc, err := rulesfile.Decode(cmd.InOrStdin())
			if err != nil {
				return err
			}
			return importDocument(context.Background(), cmd.OutOrStdout(), cmd.ErrOrStderr(), doc)
		}

		doc, err := rulesfile.Read(path)
		if err != nil {
			return err
		}
		if err := importDocument(context.Background(), cmd.OutOrStdout(), cmd.ErrOrStderr(), doc); err != nil {
			return err
		}
		if !rulesWatch {
			return nil
		}

		ctx := setupSignalHandler()
		fmt.Fprintf(cmd.OutOrStdout(), "👀 Watching %s (Ctrl+C to stop)\n", path)
		return rulesfile.Watch(ctx, path, func(doc *rulesfile.Document, err error) {
			if err != nil {
				app.logger.Warn("rules file reload failed", zap.String("path", path), zap.Error(err))
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
				return
			}
			if err := importDocument(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), doc); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
			}
		})
	},
}

// rulesPath resolves the optional file argument against the config.
func rulesPath(args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	return config.GetRulesFile(app.config)
}

// importDocument applies doc through the controller. Entries that fail
// validation or are locked by a running session are reported, not fatal.
func importDocument(ctx context.Context, out, errOut io.Writer, doc *rulesfile.Document) error {
	_ = recoverSession(ctx)

	rules, parseErr := doc.FocusRules()
	if parseErr != nil {
		fmt.Fprintf(errOut, "Warning: %v\n", parseErr)
	}

	res, err := app.controller.ImportRules(ctx, rules, doc.Displayed)
	if err != nil {
		return err
	}
	for _, skipped := range res.Skipped {
		fmt.Fprintf(errOut, "Skipped %v\n", skipped)
	}

	if doc.Selected != "" && app.controller.Snapshot().Phase == domain.PhaseIdle {
		if err := app.controller.SelectRule(ctx, doc.Selected); err != nil {
			fmt.Fprintf(errOut, "Warning: could not select %s: %v\n", doc.Selected, err)
		}
	}

	fmt.Fprintf(out, "📥 Imported rules: %d created, %d updated, %d skipped\n", res.Created, res.Updated, len(res.Skipped))
	return nil
}
