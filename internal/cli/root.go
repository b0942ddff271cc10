// Package cli implements the tasksync command line.
package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/JamesPrial/tasksync/internal/config"
)

// app carries the global flags and output streams shared by every command.
type app struct {
	out    io.Writer
	errOut io.Writer

	configPath string
	owner      string
	verbose    bool
	timeout    time.Duration
}

// NewRootCmd builds the command tree writing to out and errOut.
func NewRootCmd(version string, out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "tasksync",
		Short: "tasksync - a task list that stays in sync",
		Long: `tasksync keeps a personal task list in sync with a shared store.

Changes show up immediately and are saved in the background. If a save
fails the change is undone and the error is reported.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Config file (default: ~/.tasksync/config.yaml then ./.tasksync/config.yaml)")
	root.PersistentFlags().StringVar(&a.owner, "owner", "", "Owner id, overriding owner_id from the config")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log sync activity to stderr")
	root.PersistentFlags().DurationVar(&a.timeout, "timeout", 15*time.Second, "How long to wait for the first sync")

	root.AddCommand(
		a.addCmd(),
		a.listCmd(),
		a.updateCmd(),
		a.toggleCmd(),
		a.deleteCmd(),
		a.importCmd(),
		a.progressCmd(),
		a.prefsCmd(),
		a.serveCmd(),
		a.mcpCmd(),
		a.configCmd(),
	)
	return root
}

// Execute runs the command line against os.Args.
func Execute(version string) error {
	root := NewRootCmd(version, os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// loadConfig reads the explicit --config file or the default search path,
// then applies --owner.
func (a *app) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if a.configPath != "" {
		if _, statErr := os.Stat(a.configPath); statErr != nil {
			return nil, fmt.Errorf("config file: %w", statErr)
		}
		cfg, err = config.LoadFiles(a.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if a.owner != "" {
		cfg.OwnerID = a.owner
	}
	return cfg, nil
}
