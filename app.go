package main

import (
	"fmt"

	"go.uber.org/zap"

	"sessionvault/internal/logging"
	"sessionvault/internal/session"
	"sessionvault/internal/settings"
)

// App holds the state shared by every command
type App struct {
	settings *settings.Manager
	logger   *zap.Logger
	sessions *session.Service
}

// NewApp loads settings from configDir (empty for the default location)
// and builds the logger and session service from them.
func NewApp(configDir string, debug bool) (*App, error) {
	a := &App{}

	// Step 1: Load persisted settings
	var err error
	if configDir == "" {
		a.settings, err = settings.NewManager()
	} else {
		a.settings, err = settings.NewManagerAt(configDir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	s := a.settings.GetSettings()

	// Step 2: Logger
	a.logger, err = logging.New(debug || s.DebugLogging)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	// Step 3: Session service
	a.sessions = newSessionService(s, a.logger)
	return a, nil
}

// newSessionService builds a session service from settings
func newSessionService(s settings.Settings, logger *zap.Logger) *session.Service {
	return session.NewService(s.ProjectsDir,
		session.WithProjects(s.Projects...),
		session.WithLogger(logger),
		session.WithReservedPrefix(s.ReservedPrefix),
		session.WithParseConcurrency(s.ParseConcurrency),
	)
}

// Close flushes the logger
func (a *App) Close() {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}
