package history

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sessionvault/internal/types"
)

// countingFS counts file reads and can hold them until released.
type countingFS struct {
	OSFileSystem
	opens   atomic.Int32
	entered chan struct{}
	gate    chan struct{}
}

func newCountingFS() *countingFS {
	return &countingFS{}
}

// blockReads makes every Open wait for release. The first Open signals entered.
func (f *countingFS) blockReads() (entered <-chan struct{}, release func()) {
	f.entered = make(chan struct{})
	f.gate = make(chan struct{})
	var once sync.Once
	return f.entered, func() { once.Do(func() { close(f.gate) }) }
}

func (f *countingFS) Open(name string) (io.ReadCloser, error) {
	if f.opens.Add(1) == 1 && f.entered != nil {
		close(f.entered)
	}
	if f.gate != nil {
		<-f.gate
	}
	return f.OSFileSystem.Open(name)
}

func newTestCache(fsys FileSystem) *Cache {
	return NewCache(NewLoader(WithLoaderFileSystem(fsys)))
}

func setMTime(t *testing.T, path string, mt time.Time) {
	t.Helper()
	require.NoError(t, os.Chtimes(path, mt, mt))
}

func TestCache_ReloadsOnlyWhenModified(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "a.jsonl", scenarioLines...)
	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	setMTime(t, path, base)

	fsys := newCountingFS()
	cache := newTestCache(fsys)
	ctx := context.Background()

	first, err := cache.Sessions(ctx, dir)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.EqualValues(t, 1, fsys.opens.Load())

	_, err = cache.Sessions(ctx, dir)
	require.NoError(t, err)
	assert.EqualValues(t, 1, fsys.opens.Load(), "unchanged mtime must not reload")

	setMTime(t, path, base.Add(time.Second))
	_, err = cache.Sessions(ctx, dir)
	require.NoError(t, err)
	assert.EqualValues(t, 2, fsys.opens.Load(), "advanced mtime must reload")

	setMTime(t, path, base)
	_, err = cache.Sessions(ctx, dir)
	require.NoError(t, err)
	assert.EqualValues(t, 2, fsys.opens.Load(), "older mtime is not a change")
}

func TestCache_FileSetChanges(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "a.jsonl", scenarioLines...)

	fsys := newCountingFS()
	cache := newTestCache(fsys)
	ctx := context.Background()

	_, err := cache.Sessions(ctx, dir)
	require.NoError(t, err)
	assert.EqualValues(t, 1, fsys.opens.Load())

	// New file
	second := writeLog(t, dir, "b.jsonl",
		`{"uuid":"z","parentUuid":null,"sessionId":"Z","message":{"role":"user","content":"other"}}`,
	)
	sessions, err := cache.Sessions(ctx, dir)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
	assert.EqualValues(t, 3, fsys.opens.Load(), "both files are re-read")

	// Removed file
	require.NoError(t, os.Remove(second))
	sessions, err = cache.Sessions(ctx, dir)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
	assert.EqualValues(t, 4, fsys.opens.Load())

	// Reserved files never count
	writeLog(t, dir, "agent-x.jsonl", scenarioLines...)
	_, err = cache.Sessions(ctx, dir)
	require.NoError(t, err)
	assert.EqualValues(t, 4, fsys.opens.Load())
}

func TestCache_EmptyDirectoryAlwaysMisses(t *testing.T) {
	dir := t.TempDir()
	cache := newTestCache(OSFileSystem{})

	sessions, err := cache.Sessions(context.Background(), dir)
	require.NoError(t, err)
	assert.Empty(t, sessions)
	first := cache.LoadedAt(dir)
	require.False(t, first.IsZero())

	sessions, err = cache.Sessions(context.Background(), dir)
	require.NoError(t, err)
	assert.Empty(t, sessions)
	assert.False(t, cache.LoadedAt(dir).Before(first))
}

func TestCache_InvalidateAndClear(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "a.jsonl", scenarioLines...)

	fsys := newCountingFS()
	cache := newTestCache(fsys)
	ctx := context.Background()

	_, err := cache.Sessions(ctx, dir)
	require.NoError(t, err)

	cache.Invalidate(dir)
	assert.True(t, cache.LoadedAt(dir).IsZero())
	_, err = cache.Sessions(ctx, dir)
	require.NoError(t, err)
	assert.EqualValues(t, 2, fsys.opens.Load())

	cache.Clear()
	_, err = cache.Sessions(ctx, dir)
	require.NoError(t, err)
	assert.EqualValues(t, 3, fsys.opens.Load())
}

func TestCache_ConcurrentMissesShareReload(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "a.jsonl", scenarioLines...)

	fsys := newCountingFS()
	entered, release := fsys.blockReads()
	defer release()
	cache := newTestCache(fsys)

	const callers = 8
	var (
		wg      sync.WaitGroup
		started sync.WaitGroup
		results = make([][]types.Session, callers)
	)
	started.Add(callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			started.Done()
			sessions, err := cache.Sessions(context.Background(), dir)
			assert.NoError(t, err)
			results[i] = sessions
		}(i)
	}
	started.Wait()
	<-entered
	time.Sleep(50 * time.Millisecond) // let the other callers join the flight
	release()
	wg.Wait()

	assert.EqualValues(t, 1, fsys.opens.Load())
	for i := 1; i < callers; i++ {
		if diff := cmp.Diff(results[0], results[i], cmp.AllowUnexported(types.ContentBlock{})); diff != "" {
			t.Errorf("caller %d saw different sessions:\n%s", i, diff)
		}
	}
}

func TestCache_CancelledCallerDoesNotAbortReload(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "a.jsonl", scenarioLines...)

	fsys := newCountingFS()
	entered, release := fsys.blockReads()
	defer release()
	cache := newTestCache(fsys)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := cache.Sessions(ctx, dir)
		errCh <- err
	}()

	<-entered
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	release()
	require.Eventually(t, func() bool { return !cache.LoadedAt(dir).IsZero() },
		time.Second, 5*time.Millisecond)
	sessions, err := cache.Sessions(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.EqualValues(t, 1, fsys.opens.Load(), "the detached reload was reused")
}

func TestCache_PreCancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "a.jsonl", scenarioLines...)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fsys := newCountingFS()
	_, err := newTestCache(fsys).Sessions(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 0, fsys.opens.Load())
}

func TestListLogFiles(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "b.jsonl")
	writeLog(t, dir, "a.jsonl")
	writeLog(t, dir, "agent-1.jsonl")
	writeLog(t, dir, "c.json")

	names, err := ListLogFiles(OSFileSystem{}, dir, DefaultReservedPrefix)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jsonl", "b.jsonl"}, names)

	names, err = ListLogFiles(OSFileSystem{}, dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jsonl", "agent-1.jsonl", "b.jsonl"}, names)

	_, err = ListLogFiles(OSFileSystem{}, filepath.Join(dir, "missing"), "")
	assert.Error(t, err)
}
