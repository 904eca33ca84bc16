package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/xvierd/focus-cli/internal/domain"
)

var (
	statsDays  int
	statsLimit int
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show focus history",
	Long:  `Show today's totals, your streak of completed sessions and recent history.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		now := time.Now()

		y, m, d := now.Date()
		since := time.Date(y, m, d, 0, 0, 0, 0, now.Location()).AddDate(0, 0, -(statsDays - 1))

		records, err := app.storage.Sessions().FindSince(ctx, since)
		if err != nil {
			return fmt.Errorf("failed to load sessions: %w", err)
		}
		stats := app.controller.Stats()

		if jsonOutput {
			sessions := make([]map[string]interface{}, 0, len(records))
			for _, r := range limitRecords(records, statsLimit) {
				sessions = append(sessions, recordJSON(r))
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"today": map[string]interface{}{
					"sessions":       stats.TodaySessions,
					"focus_time":     stats.TotalFocusTime.String(),
					"current_streak": stats.CurrentStreak,
				},
				"days":     dailyTotals(records, since, statsDays),
				"sessions": sessions,
			})
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "📊 Today")
		fmt.Fprintf(out, "   Completed sessions: %d\n", stats.TodaySessions)
		fmt.Fprintf(out, "   Focus time:         %s\n", stats.FocusTimeLabel())
		fmt.Fprintf(out, "   Current streak:     %d\n", stats.CurrentStreak)

		if statsDays > 1 {
			fmt.Fprintf(out, "\n📅 Last %d days\n", statsDays)
			for _, day := range dailyTotals(records, since, statsDays) {
				fmt.Fprintf(out, "   %s  %2d sessions  %s\n", day["date"], day["sessions"], day["focus_time"])
			}
		}

		if len(records) == 0 {
			fmt.Fprintln(out, "\nNo sessions yet.")
			return nil
		}

		fmt.Fprintln(out, "\n🕘 Recent sessions")
		for _, r := range limitRecords(records, statsLimit) {
			fmt.Fprintf(out, "   %s  %-20s %-9s %s\n",
				r.EndedAt.Local().Format("Jan 02 15:04"),
				r.RuleName,
				r.Outcome,
				formatMinutes(time.Duration(r.FocusedSeconds)*time.Second))
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().IntVar(&statsDays, "days", 7, "Number of days of history to include")
	statsCmd.Flags().IntVarP(&statsLimit, "limit", "n", 10, "Maximum number of sessions to list")
}

func limitRecords(records []*domain.SessionRecord, limit int) []*domain.SessionRecord {
	if limit > 0 && len(records) > limit {
		return records[:limit]
	}
	return records
}

// dailyTotals buckets records by local calendar day, oldest day first.
func dailyTotals(records []*domain.SessionRecord, since time.Time, days int) []map[string]interface{} {
	if days < 1 {
		days = 1
	}
	counts := make([]int, days)
	focused := make([]time.Duration, days)
	for _, r := range records {
		idx := int(r.EndedAt.Sub(since).Hours() / 24)
		if idx < 0 || idx >= days {
			continue
		}
		if r.Outcome == domain.OutcomeCompleted {
			counts[idx]++
		}
		focused[idx] += time.Duration(r.FocusedSeconds) * time.Second
	}

	out := make([]map[string]interface{}, 0, days)
	for i := 0; i < days; i++ {
		out = append(out, map[string]interface{}{
			"date":       since.AddDate(0, 0, i).Format("2006-01-02"),
			"sessions":   counts[i],
			"focus_time": formatMinutes(focused[i]),
		})
	}
	return out
}

func recordJSON(r *domain.SessionRecord) map[string]interface{} {
	return map[string]interface{}{
		"id":              r.ID,
		"rule_id":         r.RuleID,
		"rule_name":       r.RuleName,
		"outcome":         string(r.Outcome),
		"planned_seconds": r.PlannedSeconds,
		"focused_seconds": r.FocusedSeconds,
		"started_at":      r.StartedAt.Format(time.RFC3339),
		"ended_at":        r.EndedAt.Format(time.RFC3339),
		"git_branch":      r.GitBranch,
	}
}
