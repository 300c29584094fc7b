// Package watcher provides file system watching for agent log directories.
// It invalidates cached sessions as soon as a log is created, appended to,
// or removed, so the next query does not wait on validation to notice.
package watcher

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"sessionvault/internal/history"
)

// Invalidator drops cached state for a directory.
type Invalidator interface {
	Invalidate(dir string)
}

// =============================================================================
// DIRECTORY WATCHER
// =============================================================================

// DirWatcher watches project log directories and invalidates their cache
// entries on change.
type DirWatcher struct {
	watcher        *fsnotify.Watcher
	cache          Invalidator
	reservedPrefix string
	onChange       func(dir string)
	logger         *zap.Logger
	watchedDirs    map[string]bool
	mu             sync.RWMutex
	ctx            context.Context
	cancel         context.CancelFunc
	done           chan struct{}
}

// Option configures a DirWatcher.
type Option func(*DirWatcher)

// WithReservedPrefix ignores events for logs with this name prefix.
func WithReservedPrefix(prefix string) Option {
	return func(w *DirWatcher) { w.reservedPrefix = prefix }
}

// WithOnChange registers a callback run after a directory is invalidated.
// It runs on the watcher goroutine and must not block.
func WithOnChange(fn func(dir string)) Option {
	return func(w *DirWatcher) { w.onChange = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(w *DirWatcher) { w.logger = logger }
}

// New creates a watcher and starts its event loop.
func New(cache Invalidator, opts ...Option) (*DirWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	dw := &DirWatcher{
		watcher:        w,
		cache:          cache,
		reservedPrefix: history.DefaultReservedPrefix,
		logger:         zap.NewNop(),
		watchedDirs:    make(map[string]bool),
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(dw)
	}
	if dw.logger == nil {
		dw.logger = zap.NewNop()
	}

	go dw.run()
	return dw, nil
}

// Watch starts watching dir. Watching an already watched dir is a no-op.
func (w *DirWatcher) Watch(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watchedDirs[dir] {
		return nil
	}
	if err := w.watcher.Add(dir); err != nil {
		return err
	}
	w.watchedDirs[dir] = true
	w.logger.Debug("Watching project directory", zap.String("dir", dir))
	return nil
}

// Unwatch stops watching dir.
func (w *DirWatcher) Unwatch(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.watchedDirs[dir] {
		return
	}
	_ = w.watcher.Remove(dir)
	delete(w.watchedDirs, dir)
}

// WatchedDirs returns the directories currently watched.
func (w *DirWatcher) WatchedDirs() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	dirs := make([]string, 0, len(w.watchedDirs))
	for dir := range w.watchedDirs {
		dirs = append(dirs, dir)
	}
	return dirs
}

// =============================================================================
// EVENT LOOP
// =============================================================================

// run processes file system events until Close.
func (w *DirWatcher) run() {
	defer close(w.done)
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("File watcher error", zap.Error(err))
		}
	}
}

// handleEvent invalidates the directory of a changed session log.
func (w *DirWatcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	if !history.IsLogFile(filepath.Base(event.Name), w.reservedPrefix) {
		return
	}

	dir := filepath.Dir(event.Name)
	w.mu.RLock()
	watched := w.watchedDirs[dir]
	w.mu.RUnlock()
	if !watched {
		return
	}

	w.cache.Invalidate(dir)
	if w.onChange != nil {
		w.onChange(dir)
	}
}

// =============================================================================
// CLEANUP
// =============================================================================

// Close stops the event loop and releases the underlying watcher.
func (w *DirWatcher) Close() error {
	w.cancel()
	err := w.watcher.Close()
	<-w.done
	return err
}
