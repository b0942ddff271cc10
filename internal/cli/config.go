package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JamesPrial/tasksync/internal/config"
)

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage tasksync configuration",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show merged configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			data, err := config.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			fmt.Fprintln(a.out, "# Merged configuration (defaults + files + environment)")
			fmt.Fprint(a.out, string(data))
			return nil
		},
	}

	var global, force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.ProjectConfigPath()
			if global {
				p, err := config.GlobalConfigPath()
				if err != nil {
					return fmt.Errorf("failed to locate home directory: %w", err)
				}
				path = p
			}
			if err := config.WriteDefault(path, force); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&global, "global", false, "Write ~/.tasksync/config.yaml instead of the project file")
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	path := &cobra.Command{
		Use:   "path",
		Short: "Show configuration file paths",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if global, err := config.GlobalConfigPath(); err == nil {
				fmt.Fprintf(a.out, "Global:  %s\n", global)
			}
			fmt.Fprintf(a.out, "Project: %s\n", config.ProjectConfigPath())
		},
	}

	cmd.AddCommand(show, initCmd, path)
	return cmd
}
