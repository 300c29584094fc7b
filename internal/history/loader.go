package history

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sessionvault/internal/types"
)

const (
	initialScanBufSize = 64 * 1024        // 64KB
	maxLineSize        = 10 * 1024 * 1024 // 10MB, base64 images inline in records
	logLineTruncate    = 200

	// DefaultParseConcurrency bounds parallel file parses per directory.
	DefaultParseConcurrency = 8
)

// Loader reads every session log of a directory and reconstructs sessions.
type Loader struct {
	fs             FileSystem
	logger         *zap.Logger
	reservedPrefix string
	concurrency    int
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLoaderFileSystem replaces the host filesystem.
func WithLoaderFileSystem(fsys FileSystem) LoaderOption {
	return func(l *Loader) { l.fs = fsys }
}

// WithLoaderLogger sets the logger.
func WithLoaderLogger(logger *zap.Logger) LoaderOption {
	return func(l *Loader) { l.logger = logger }
}

// WithReservedPrefix sets the file name prefix of logs to skip.
func WithReservedPrefix(prefix string) LoaderOption {
	return func(l *Loader) { l.reservedPrefix = prefix }
}

// WithParseConcurrency bounds concurrent file parses. n < 1 is ignored.
func WithParseConcurrency(n int) LoaderOption {
	return func(l *Loader) {
		if n >= 1 {
			l.concurrency = n
		}
	}
}

// NewLoader creates a Loader reading the host filesystem.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		fs:             OSFileSystem{},
		logger:         zap.NewNop(),
		reservedPrefix: DefaultReservedPrefix,
		concurrency:    DefaultParseConcurrency,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = zap.NewNop()
	}
	return l
}

// LoadResult is the outcome of one full directory reload.
type LoadResult struct {
	Sessions []types.Session
	// ModTimes holds the mtime observed before each successfully read file.
	// Files that could not be stat'ed or read are absent.
	ModTimes map[string]time.Time
}

// fileResult is what one parse task contributes.
type fileResult struct {
	name    string
	modTime time.Time
	ok      bool
	records []*types.ClassifiedRecord
}

// Load reloads dir from scratch. Files are parsed concurrently; a file that
// fails contributes nothing and is logged. A missing or unreadable directory
// yields an empty result. If ctx is cancelled, files not yet started are
// skipped.
func (l *Loader) Load(ctx context.Context, dir string) LoadResult {
	log := l.logger.With(zap.String("dir", dir), zap.String("reload", uuid.NewString()))
	result := LoadResult{ModTimes: make(map[string]time.Time)}

	names, err := ListLogFiles(l.fs, dir, l.reservedPrefix)
	if err != nil {
		log.Warn("Failed to list project directory", zap.Error(err))
		return result
	}
	if len(names) == 0 {
		return result
	}

	start := time.Now()
	files := make([]fileResult, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, name := range names {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			files[i] = l.parseFile(log, dir, name)
			return nil
		})
	}
	_ = g.Wait() // tasks never fail; per-file errors are logged

	graph := NewGraph()
	for _, f := range files {
		if !f.ok {
			continue
		}
		result.ModTimes[f.name] = f.modTime
		for _, rec := range f.records {
			graph.Add(rec)
		}
	}

	sessions := Dedup(Assemble(graph, log))
	for i := range sessions {
		sessions[i].ProjectDir = dir
	}
	SortSessions(sessions)
	result.Sessions = sessions

	log.Debug("Directory reloaded",
		zap.Int("files", len(names)),
		zap.Int("records", graph.Len()),
		zap.Int("sessions", len(sessions)),
		zap.Duration("elapsed", time.Since(start)))
	return result
}

// parseFile stats then reads one log. The mtime is taken before reading so a
// write racing the read shows up as newer on the next validation.
func (l *Loader) parseFile(log *zap.Logger, dir, name string) fileResult {
	path := logPath(dir, name)
	res := fileResult{name: name}

	info, err := l.fs.Stat(path)
	if err != nil {
		log.Warn("Failed to stat session log", zap.String("path", path), zap.Error(err))
		return res
	}

	records, err := l.readRecords(log, path)
	if err != nil {
		log.Warn("Failed to read session log", zap.String("path", path), zap.Error(err))
		return res
	}

	res.modTime = info.ModTime()
	res.records = records
	res.ok = true
	return res
}

// readRecords classifies every line of path. Malformed lines are logged and
// skipped. An oversized line stops the scan; records read so far are kept.
func (l *Loader) readRecords(log *zap.Logger, path string) ([]*types.ClassifiedRecord, error) {
	file, err := l.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, initialScanBufSize), maxLineSize)

	var records []*types.ClassifiedRecord
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()

		rec, err := types.ClassifyRecord(line)
		if err != nil {
			if errors.Is(err, types.ErrEmptyLine) {
				continue
			}
			log.Warn("Skipping malformed record",
				zap.String("path", path),
				zap.Int("line", lineNum),
				zap.String("content", truncate(line, logLineTruncate)),
				zap.Error(err))
			log.Debug("Malformed record content",
				zap.String("path", path),
				zap.Int("line", lineNum),
				zap.ByteString("raw", line))
			continue
		}
		if rec.Kind == types.RecordUnknown {
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		log.Warn("Session log scan stopped early",
			zap.String("path", path),
			zap.Int("line", lineNum),
			zap.Error(err))
	}
	return records, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
