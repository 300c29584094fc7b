// Package session provides the read-only session service used by the UI.
// It maps projects to agent log directories and composes the history cache.
package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"sessionvault/internal/history"
	"sessionvault/internal/types"
)

// ErrNotFound is returned by outer surfaces when a session id is unknown.
var ErrNotFound = errors.New("session not found")

// Service provides session lookup over one or more project directories.
type Service struct {
	claudeProjectsPath string
	projects           []string
	fs                 history.FileSystem
	cache              *history.Cache
	logger             *zap.Logger
}

// Option configures a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	projects       []string
	fs             history.FileSystem
	logger         *zap.Logger
	reservedPrefix string
	concurrency    int
}

// WithProjects restricts the service to the given absolute project paths.
// Without it every directory under the projects path is a project.
func WithProjects(paths ...string) Option {
	return func(o *serviceOptions) { o.projects = append(o.projects, paths...) }
}

// WithFileSystem replaces the host filesystem.
func WithFileSystem(fsys history.FileSystem) Option {
	return func(o *serviceOptions) { o.fs = fsys }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *serviceOptions) { o.logger = logger }
}

// WithReservedPrefix sets the prefix of agent-internal logs to skip.
func WithReservedPrefix(prefix string) Option {
	return func(o *serviceOptions) { o.reservedPrefix = prefix }
}

// WithParseConcurrency bounds concurrent file parses per directory.
func WithParseConcurrency(n int) Option {
	return func(o *serviceOptions) { o.concurrency = n }
}

// DefaultProjectsPath returns ~/.claude/projects.
func DefaultProjectsPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".claude", "projects")
}

// NewService creates a Service over projectsPath (see DefaultProjectsPath).
func NewService(projectsPath string, opts ...Option) *Service {
	o := serviceOptions{
		fs:             history.OSFileSystem{},
		reservedPrefix: history.DefaultReservedPrefix,
		concurrency:    history.DefaultParseConcurrency,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	loader := history.NewLoader(
		history.WithLoaderFileSystem(o.fs),
		history.WithLoaderLogger(o.logger),
		history.WithReservedPrefix(o.reservedPrefix),
		history.WithParseConcurrency(o.concurrency),
	)
	return &Service{
		claudeProjectsPath: projectsPath,
		projects:           o.projects,
		fs:                 o.fs,
		cache:              history.NewCache(loader),
		logger:             o.logger,
	}
}

// Cache exposes the directory cache, e.g. for watcher-driven invalidation.
func (s *Service) Cache() *history.Cache {
	return s.cache
}

// ProjectsPath returns the root holding per-project log directories.
func (s *Service) ProjectsPath() string {
	return s.claudeProjectsPath
}

// ProjectDir returns the log directory of an absolute project path.
func (s *Service) ProjectDir(projectPath string) string {
	return filepath.Join(s.claudeProjectsPath, EncodeFolder(projectPath))
}

// ProjectDirs returns the log directories to scan: one per configured
// project, or every subdirectory of the projects path when none are set.
func (s *Service) ProjectDirs() []string {
	if len(s.projects) > 0 {
		dirs := make([]string, 0, len(s.projects))
		for _, p := range s.projects {
			dirs = append(dirs, s.ProjectDir(p))
		}
		return dirs
	}

	entries, err := s.fs.ReadDir(s.claudeProjectsPath)
	if err != nil {
		s.logger.Debug("Projects path not readable",
			zap.String("path", s.claudeProjectsPath),
			zap.Error(err))
		return nil
	}
	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, filepath.Join(s.claudeProjectsPath, entry.Name()))
		}
	}
	return dirs
}

// GetAllSessions returns the sessions of every project, most recent first.
// It never fails: unreadable directories contribute nothing. When ctx is
// cancelled, sessions from directories already completed are returned.
func (s *Service) GetAllSessions(ctx context.Context) []types.Session {
	return s.collect(ctx, s.ProjectDirs())
}

// GetProjectSessions returns the sessions of one project path.
func (s *Service) GetProjectSessions(ctx context.Context, projectPath string) []types.Session {
	return s.collect(ctx, []string{s.ProjectDir(projectPath)})
}

// GetSession looks a session up by id across all projects.
func (s *Service) GetSession(ctx context.Context, id string) (types.Session, bool) {
	for _, sess := range s.GetAllSessions(ctx) {
		if sess.ID == id {
			return sess, true
		}
	}
	return types.Session{}, false
}

func (s *Service) collect(ctx context.Context, dirs []string) []types.Session {
	all := []types.Session{}
	for _, dir := range dirs {
		if ctx.Err() != nil {
			s.logger.Debug("Session query cancelled; returning partial results",
				zap.Int("sessions", len(all)))
			break
		}
		sessions, err := s.cache.Sessions(ctx, dir)
		if err != nil {
			break
		}
		all = append(all, sessions...)
	}
	history.SortSessions(all)
	return all
}
