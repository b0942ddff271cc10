package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JamesPrial/tasksync/internal/prefs"
	"github.com/JamesPrial/tasksync/internal/session"
)

func (a *app) prefsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show or change preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(ctx context.Context, sess *session.Session) error {
				p, err := sess.Preferences()
				if err != nil {
					return userError(err)
				}
				a.printPrefs(p)
				return nil
			})
		},
	}

	var (
		theme                 string
		goal                  int
		dailyReminders, email bool
	)
	set := &cobra.Command{
		Use:   "set",
		Short: "Change preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch prefs.Patch
			flags := cmd.Flags()
			if flags.Changed("theme") {
				t := prefs.Theme(theme)
				patch.Theme = &t
			}
			if flags.Changed("goal") {
				patch.DailyGoal = &goal
			}
			if flags.Changed("daily-reminders") {
				patch.DailyReminders = &dailyReminders
			}
			if flags.Changed("email-reminders") {
				patch.EmailReminders = &email
			}

			return a.withSession(cmd.Context(), func(ctx context.Context, sess *session.Session) error {
				p, err := sess.UpdatePreferences(ctx, patch)
				if err != nil {
					return err
				}
				a.printPrefs(p)
				return nil
			})
		},
	}
	set.Flags().StringVar(&theme, "theme", "", "Theme: light or dark")
	set.Flags().IntVar(&goal, "goal", prefs.DefaultDailyGoal, "Tasks to complete per day")
	set.Flags().BoolVar(&dailyReminders, "daily-reminders", true, "Daily reminder preference")
	set.Flags().BoolVar(&email, "email-reminders", false, "Email reminder preference")

	cmd.AddCommand(set)
	return cmd
}

func (a *app) printPrefs(p prefs.Preferences) {
	fmt.Fprintf(a.out, "Theme:           %s\n", p.Theme)
	fmt.Fprintf(a.out, "Daily goal:      %d\n", p.DailyGoal)
	fmt.Fprintf(a.out, "Daily reminders: %t\n", p.Notifications.DailyReminders)
	fmt.Fprintf(a.out, "Email reminders: %t\n", p.Notifications.EmailReminders)
	if !p.AccountCreated.IsZero() {
		fmt.Fprintf(a.out, "Member since:    %s\n", p.AccountCreated.Format("2006-01-02"))
	}
}
