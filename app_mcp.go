package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sessionvault/internal/mcpserver"
	"sessionvault/internal/watcher"
)

// =============================================================================
// MCP SERVER COMMAND
// =============================================================================

const shutdownTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve sessions to MCP clients over SSE",
		RunE: func(cmd *cobra.Command, args []string) error {
			if port == 0 {
				port = app.settings.GetSettings().MCPPort
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return app.serve(ctx, port)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default from settings)")
	return cmd
}

// serve watches project directories and runs the MCP server until ctx ends
func (a *App) serve(ctx context.Context, port int) error {
	w, err := a.startWatching()
	if err != nil {
		return err
	}
	defer w.Close()

	mcp := mcpserver.NewMCPService(port, a.sessions, a.logger)
	if err := mcp.Start(); err != nil {
		return fmt.Errorf("failed to start MCP server: %w", err)
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return mcp.Stop(shutdownCtx)
}

// startWatching watches every project log directory so edits invalidate
// the cache immediately. Directories that cannot be watched fall back to
// modification-time validation.
func (a *App) startWatching() (*watcher.DirWatcher, error) {
	s := a.settings.GetSettings()
	w, err := watcher.New(a.sessions.Cache(),
		watcher.WithReservedPrefix(s.ReservedPrefix),
		watcher.WithLogger(a.logger),
		watcher.WithOnChange(func(dir string) {
			a.logger.Debug("Session logs changed", zap.String("dir", dir))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	for _, dir := range a.sessions.ProjectDirs() {
		if err := w.Watch(dir); err != nil {
			a.logger.Warn("Failed to watch project directory",
				zap.String("dir", dir),
				zap.Error(err))
		}
	}
	return w, nil
}
