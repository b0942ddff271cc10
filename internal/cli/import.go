package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/JamesPrial/tasksync/internal/hook"
	"github.com/JamesPrial/tasksync/internal/session"
	"github.com/JamesPrial/tasksync/internal/syncengine"
)

func (a *app) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [file]",
		Short: "Import an agent's todo list from a hook event",
		Long: "Reads a TodoWrite or TaskCreate hook event from file, or from stdin when\n" +
			"no file is given, and adds its tasks. Titles that already exist are skipped.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			ev, err := hook.ReadEvent(r)
			if err != nil {
				return err
			}
			if ev == nil {
				// Not a task event: nothing to do.
				return nil
			}
			items, err := ev.Items()
			if err != nil {
				return err
			}

			return a.withSession(cmd.Context(), func(ctx context.Context, sess *session.Session) error {
				added, skipped, err := importItems(ctx, sess.Engine(), items)
				if err != nil {
					return userError(err)
				}
				fmt.Fprintf(a.out, "Imported %d task(s), skipped %d\n", added, skipped)
				return nil
			})
		},
	}
}

// importItems adds each item, toggling completed ones. Duplicate titles are
// counted as skipped; any other error stops the import.
func importItems(ctx context.Context, engine *syncengine.Engine, items []hook.Item) (added, skipped int, err error) {
	for _, item := range items {
		created, err := engine.AddTask(ctx, item.Draft)
		if errors.Is(err, syncengine.ErrDuplicateTask) {
			skipped++
			continue
		}
		if err != nil {
			return added, skipped, err
		}
		added++

		if item.Completed {
			if _, err := engine.ToggleStatus(ctx, created.ID); err != nil {
				return added, skipped, err
			}
		}
	}
	return added, skipped, nil
}
