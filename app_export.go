package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sessionvault/internal/store"
)

// =============================================================================
// EXPORT COMMAND
// =============================================================================

// defaultExportFile lives in the config directory
const defaultExportFile = "sessions.db"

func newExportCmd() *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every session to a SQLite database",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := dbPath
			if path == "" {
				path = filepath.Join(app.settings.GetConfigPath(), defaultExportFile)
			}
			st, err := store.Open(path)
			if err != nil {
				return err
			}
			defer st.Close()

			sessions := app.sessions.GetAllSessions(cmd.Context())
			if err := st.ExportSessions(cmd.Context(), sessions); err != nil {
				return fmt.Errorf("failed to export sessions: %w", err)
			}
			app.logger.Info("Exported sessions",
				zap.Int("sessions", len(sessions)),
				zap.String("db", st.Path()))
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d sessions to %s\n", len(sessions), st.Path())
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "database path (default <config>/sessions.db)")
	return cmd
}
