package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JamesPrial/tasksync/internal/session"
	"github.com/JamesPrial/tasksync/internal/syncengine"
	"github.com/JamesPrial/tasksync/internal/task"
)

func (a *app) addCmd() *cobra.Command {
	var draft task.Draft
	var priority, due string

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			draft.Title = strings.Join(args, " ")
			draft.Priority = task.Priority(priority)
			draft.DueDate = task.Date(due)

			return a.withSession(cmd.Context(), func(ctx context.Context, sess *session.Session) error {
				created, err := sess.Engine().AddTask(ctx, draft)
				if err != nil {
					return userError(err)
				}
				fmt.Fprintf(a.out, "Added %s  %s\n", created.ID, created.Title)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&draft.Description, "description", "d", "", "Task description")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "Priority: high, medium or low (default medium)")
	cmd.Flags().StringVar(&due, "due", "", "Due date as YYYY-MM-DD")
	return cmd
}

func (a *app) listCmd() *cobra.Command {
	var status string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := task.Status(status)
			if filter != "" && !filter.Valid() {
				return fmt.Errorf("--status must be 'pending' or 'completed'")
			}

			return a.withSession(cmd.Context(), func(ctx context.Context, sess *session.Session) error {
				tasks := make([]task.Task, 0)
				for _, t := range sess.Engine().CurrentTasks() {
					if filter == "" || t.Status == filter {
						tasks = append(tasks, t)
					}
				}
				if asJSON {
					return writeJSON(a.out, tasks)
				}
				if len(tasks) == 0 {
					fmt.Fprintln(a.out, "No tasks.")
					return nil
				}
				return writeTaskTable(a.out, tasks)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only list pending or completed tasks")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func (a *app) updateCmd() *cobra.Command {
	var title, description, status, priority, due string

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var f task.Fields
			flags := cmd.Flags()
			if flags.Changed("title") {
				f.Title = &title
			}
			if flags.Changed("description") {
				f.Description = &description
			}
			if flags.Changed("status") {
				s := task.Status(status)
				f.Status = &s
			}
			if flags.Changed("priority") {
				p := task.Priority(priority)
				f.Priority = &p
			}
			if flags.Changed("due") {
				d := task.Date(due)
				f.DueDate = &d
			}

			return a.withSession(cmd.Context(), func(ctx context.Context, sess *session.Session) error {
				updated, err := sess.Engine().UpdateTask(ctx, args[0], f)
				if err != nil {
					return userError(err)
				}
				fmt.Fprintf(a.out, "Updated %s  %s\n", updated.ID, updated.Title)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "New description")
	cmd.Flags().StringVar(&status, "status", "", "New status: pending or completed")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "New priority: high, medium or low")
	cmd.Flags().StringVar(&due, "due", "", "New due date as YYYY-MM-DD, empty to clear")
	return cmd
}

func (a *app) toggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Flip a task between pending and completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(ctx context.Context, sess *session.Session) error {
				toggled, err := sess.Engine().ToggleStatus(ctx, args[0])
				if err != nil {
					return userError(err)
				}
				fmt.Fprintf(a.out, "%s is now %s\n", toggled.Title, toggled.Status)
				return nil
			})
		},
	}
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(ctx context.Context, sess *session.Session) error {
				if err := sess.Engine().DeleteTask(ctx, args[0]); err != nil {
					return userError(err)
				}
				fmt.Fprintf(a.out, "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}

// userError keeps err matchable but prints the user-facing message.
func userError(err error) error {
	return &describedError{err: err}
}

type describedError struct{ err error }

func (e *describedError) Error() string { return syncengine.Describe(e.err) }
func (e *describedError) Unwrap() error { return e.err }

func writeTaskTable(w io.Writer, tasks []task.Task) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPRIORITY\tDUE\tTITLE")
	for _, t := range tasks {
		due := t.DueDate.String()
		if due == "" {
			due = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", t.ID, statusMark(t), t.Priority, due, t.Title)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
