package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

// =============================================================================
// SETTINGS COMMANDS
// =============================================================================

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or edit settings",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print current settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", app.settings.GetConfigPath())
			return writeJSON(cmd.OutOrStdout(), app.settings.GetSettings())
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "add-project <path>",
		Short: "Restrict listings to a project (repeatable)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			abs, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve project path: %w", err)
			}
			return app.settings.AddProject(abs)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "remove-project <path>",
		Short: "Remove a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			abs, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve project path: %w", err)
			}
			return app.settings.RemoveProject(abs)
		},
	})
	return cmd
}
