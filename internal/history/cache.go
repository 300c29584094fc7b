package history

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"sessionvault/internal/types"
)

// Cache serves reconstructed sessions per project directory and reloads a
// directory only when its set of log files or their mtimes changed.
//
// Entries are replaced whole, never patched. Concurrent misses on the same
// directory share a single reload.
type Cache struct {
	loader         *Loader
	fs             FileSystem
	reservedPrefix string
	logger         *zap.Logger

	mu      sync.RWMutex
	entries map[string]*cacheEntry

	reloads singleflight.Group
}

type cacheEntry struct {
	modTimes map[string]time.Time
	sessions []types.Session
	loadedAt time.Time
}

// NewCache creates a cache backed by loader. Directory listings for
// validation use the loader's filesystem and reserved prefix.
func NewCache(loader *Loader) *Cache {
	return &Cache{
		loader:         loader,
		fs:             loader.fs,
		reservedPrefix: loader.reservedPrefix,
		logger:         loader.logger,
		entries:        make(map[string]*cacheEntry),
	}
}

// Sessions returns the sessions of dir, reloading if the cached entry is
// stale. The returned slice is shared with other callers and must not be
// modified. The only error is ctx's, when it is done before a reload
// finishes; the reload itself still completes and is stored.
func (c *Cache) Sessions(ctx context.Context, dir string) ([]types.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	entry := c.entries[dir]
	c.mu.RUnlock()

	if entry != nil && c.isValid(dir, entry) {
		return entry.sessions, nil
	}

	ch := c.reloads.DoChan(dir, func() (any, error) {
		// Detached: one caller giving up must not cut short a reload others
		// are waiting on.
		result := c.loader.Load(context.WithoutCancel(ctx), dir)
		fresh := &cacheEntry{
			modTimes: result.ModTimes,
			sessions: result.Sessions,
			loadedAt: time.Now(),
		}
		c.mu.Lock()
		c.entries[dir] = fresh
		c.mu.Unlock()
		return fresh, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val.(*cacheEntry).sessions, nil
	}
}

// isValid reports whether entry still matches the files in dir: no file
// added, removed, or modified since it was stored. An empty or unlistable
// directory is never valid.
func (c *Cache) isValid(dir string, entry *cacheEntry) bool {
	names, err := ListLogFiles(c.fs, dir, c.reservedPrefix)
	if err != nil || len(names) == 0 {
		return false
	}

	present := make(map[string]struct{}, len(names))
	for _, name := range names {
		present[name] = struct{}{}
		cached, known := entry.modTimes[name]
		if !known {
			return false
		}
		info, err := c.fs.Stat(logPath(dir, name))
		if err != nil {
			return false
		}
		if info.ModTime().After(cached) {
			return false
		}
	}
	for name := range entry.modTimes {
		if _, ok := present[name]; !ok {
			return false
		}
	}
	return true
}

// Invalidate drops the entry for dir so the next query reloads it.
func (c *Cache) Invalidate(dir string) {
	c.mu.Lock()
	delete(c.entries, dir)
	c.mu.Unlock()
	c.logger.Debug("Cache entry invalidated", zap.String("dir", dir))
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*cacheEntry)
	c.mu.Unlock()
}

// LoadedAt returns when dir was last reloaded, or zero if not cached.
func (c *Cache) LoadedAt(dir string) time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if entry := c.entries[dir]; entry != nil {
		return entry.loadedAt
	}
	return time.Time{}
}
