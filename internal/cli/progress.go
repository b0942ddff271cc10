package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JamesPrial/tasksync/internal/progress"
	"github.com/JamesPrial/tasksync/internal/session"
	"github.com/JamesPrial/tasksync/internal/task"
)

func (a *app) progressCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Show today's progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(ctx context.Context, sess *session.Session) error {
				report, err := sess.Progress(ctx)
				if err != nil {
					return userError(err)
				}
				if asJSON {
					return writeJSON(a.out, report)
				}
				a.printReport(report)
				return nil
			})
		},
	}
	cmd.PersistentFlags().BoolVar(&asJSON, "json", false, "Print JSON")

	history := &cobra.Command{
		Use:   "history",
		Short: "List stored daily progress records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(ctx context.Context, sess *session.Session) error {
				records, err := sess.History(ctx)
				if err != nil {
					return userError(err)
				}
				if asJSON {
					return writeJSON(a.out, records)
				}
				if len(records) == 0 {
					fmt.Fprintln(a.out, "No progress recorded yet.")
					return nil
				}
				for _, r := range records {
					fmt.Fprintf(a.out, "%s  %d/%d done  goal %d\n", r.Date, r.CompletedTasks, r.TotalTasks, r.DailyGoal)
				}
				return nil
			})
		},
	}
	cmd.AddCommand(history)
	return cmd
}

func (a *app) printReport(r progress.Report) {
	fmt.Fprintf(a.out, "Today (%s): %d of %d done (%.0f%%)\n", r.Today, r.CompletedToday, r.TotalToday, r.TodayRate*100)
	fmt.Fprintf(a.out, "Daily goal: %d  %s %.0f%%\n", r.Daily.DailyGoal, progressBar(r.GoalProgress, 20), r.GoalProgress*100)
	fmt.Fprintf(a.out, "All tasks: %d total, %d completed, %d pending (%.0f%% complete)\n",
		r.TotalTasks, r.CompletedTasks, r.PendingTasks, r.CompletionRate*100)

	parts := make([]string, 0, len(task.Priorities))
	for _, p := range task.Priorities {
		parts = append(parts, fmt.Sprintf("%s %d", p, r.ByPriority[p]))
	}
	fmt.Fprintf(a.out, "By priority: %s\n", strings.Join(parts, ", "))

	if len(r.Recent) > 0 {
		fmt.Fprintln(a.out, "Recent:")
		for _, t := range r.Recent {
			fmt.Fprintf(a.out, "  %s %s\n", statusMark(t), t.Title)
		}
	}
}

func progressBar(fraction float64, width int) string {
	filled := int(fraction * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}

func statusMark(t task.Task) string {
	if t.Completed() {
		return "[x]"
	}
	return "[ ]"
}
