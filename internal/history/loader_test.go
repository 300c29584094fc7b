package history

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"sessionvault/internal/types"
)

// writeLog writes lines as a JSONL file in dir.
func writeLog(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

var scenarioLines = []string{
	`{"uuid":"a","parentUuid":null,"sessionId":"S","timestamp":"2025-01-01T10:00:00Z","message":{"role":"user","content":"hi"}}`,
	`{"uuid":"b","parentUuid":"a","sessionId":"S","timestamp":"2025-01-01T10:00:01Z","message":{"role":"assistant","content":"hello"}}`,
	`{"uuid":"c","parentUuid":"b","isMeta":true}`,
}

func TestLoader_Scenario(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "s1.jsonl", scenarioLines...)

	res := NewLoader().Load(context.Background(), dir)
	require.Len(t, res.Sessions, 1)

	s := res.Sessions[0]
	assert.Equal(t, "S", s.ID)
	assert.Equal(t, dir, s.ProjectDir)
	require.Len(t, s.Messages, 2)
	assert.Equal(t, "hi", s.Messages[0].Text())
	assert.Equal(t, "hello", s.Messages[1].Text())

	assert.Contains(t, res.ModTimes, "s1.jsonl")
}

func TestLoader_SessionSpansFiles(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "one.jsonl", scenarioLines[:2]...)
	writeLog(t, dir, "two.jsonl",
		`{"uuid":"d","parentUuid":"b","sessionId":"S","timestamp":"2025-01-01T11:00:00Z","message":{"role":"user","content":"again"}}`,
	)

	res := NewLoader().Load(context.Background(), dir)
	require.Len(t, res.Sessions, 1)
	assert.Equal(t, []string{"a", "b", "d"}, messageUUIDs(res.Sessions[0]))
	assert.Len(t, res.ModTimes, 2)
}

func TestLoader_SkipsReservedAndForeignFiles(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "s1.jsonl", scenarioLines...)
	writeLog(t, dir, "agent-123.jsonl",
		`{"uuid":"x","parentUuid":null,"sessionId":"SUB","message":{"role":"user","content":"subtask"}}`,
	)
	writeLog(t, dir, "notes.txt", `{"uuid":"y","sessionId":"TXT","message":{"role":"user","content":"no"}}`)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.jsonl"), 0o755))

	res := NewLoader().Load(context.Background(), dir)
	require.Len(t, res.Sessions, 1)
	assert.Equal(t, "S", res.Sessions[0].ID)
	assert.Equal(t, []string{"s1.jsonl"}, keys(res.ModTimes))
}

func TestLoader_MalformedLinesSkipped(t *testing.T) {
	dir := t.TempDir()
	long := `{"broken": "` + strings.Repeat("z", 500)
	writeLog(t, dir, "s1.jsonl",
		scenarioLines[0],
		long,
		"",
		`not json at all`,
		scenarioLines[1],
	)

	core, logs := observer.New(zapcore.DebugLevel)
	res := NewLoader(WithLoaderLogger(zap.New(core))).Load(context.Background(), dir)

	require.Len(t, res.Sessions, 1)
	assert.Equal(t, []string{"a", "b"}, messageUUIDs(res.Sessions[0]))

	warns := logs.FilterMessage("Skipping malformed record").All()
	require.Len(t, warns, 2)
	for _, entry := range warns {
		assert.Equal(t, zapcore.WarnLevel, entry.Level)
		assert.LessOrEqual(t, len(entry.ContextMap()["content"].(string)), logLineTruncate+len("..."))
	}
	assert.Equal(t, 2, logs.FilterMessage("Malformed record content").Len())
}

// failOpenFS fails every Open of the named file.
type failOpenFS struct {
	OSFileSystem
	name string
}

func (f failOpenFS) Open(name string) (io.ReadCloser, error) {
	if filepath.Base(name) == f.name {
		return nil, errors.New("permission denied")
	}
	return f.OSFileSystem.Open(name)
}

func TestLoader_UnreadableFileSkipped(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "a.jsonl", scenarioLines...)
	writeLog(t, dir, "b.jsonl",
		`{"uuid":"x","parentUuid":null,"sessionId":"B","timestamp":"2025-01-02T10:00:00Z","message":{"role":"user","content":"other"}}`,
	)

	core, logs := observer.New(zapcore.WarnLevel)
	res := NewLoader(
		WithLoaderFileSystem(failOpenFS{name: "b.jsonl"}),
		WithLoaderLogger(zap.New(core)),
	).Load(context.Background(), dir)

	require.Len(t, res.Sessions, 1)
	assert.Equal(t, "S", res.Sessions[0].ID)
	assert.Equal(t, []string{"a.jsonl"}, keys(res.ModTimes))
	assert.Equal(t, 1, logs.FilterMessage("Failed to read session log").Len())
}

func TestLoader_OversizedLineStopsScan(t *testing.T) {
	dir := t.TempDir()
	huge := `{"uuid":"z","parentUuid":"b","sessionId":"S","message":{"role":"user","content":"` +
		strings.Repeat("x", 11<<20) + `"}}`
	writeLog(t, dir, "s1.jsonl", scenarioLines[0], scenarioLines[1], huge)

	core, logs := observer.New(zapcore.WarnLevel)
	res := NewLoader(WithLoaderLogger(zap.New(core))).Load(context.Background(), dir)

	require.Len(t, res.Sessions, 1)
	assert.Equal(t, []string{"a", "b"}, messageUUIDs(res.Sessions[0]))
	assert.Contains(t, res.ModTimes, "s1.jsonl")

	stopped := logs.FilterMessage("Session log scan stopped early").All()
	require.Len(t, stopped, 1)
	assert.Equal(t, zapcore.WarnLevel, stopped[0].Level)
}

func TestLoader_MissingDirectory(t *testing.T) {
	res := NewLoader().Load(context.Background(), filepath.Join(t.TempDir(), "absent"))
	assert.Empty(t, res.Sessions)
	assert.Empty(t, res.ModTimes)
}

func TestLoader_Idempotent(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "s1.jsonl", scenarioLines...)
	writeLog(t, dir, "s2.jsonl",
		`{"uuid":"p","parentUuid":null,"sessionId":"T","timestamp":"2025-02-01T10:00:00Z","message":{"role":"user","content":[{"type":"text","text":"<system-reminder>x</system-reminder>list files"}]}}`,
		`{"uuid":"q","parentUuid":"p","sessionId":"T","timestamp":"2025-02-01T10:00:02Z","message":{"role":"assistant","content":[{"type":"tool_use","id":"t1","name":"ls","input":{}}]}}`,
		`{"type":"summary","summary":"Listing files","leafUuid":"q"}`,
	)

	first := NewLoader(WithParseConcurrency(1)).Load(context.Background(), dir)
	second := NewLoader(WithParseConcurrency(4)).Load(context.Background(), dir)

	require.Len(t, first.Sessions, 2)
	assert.Equal(t, "T", first.Sessions[0].ID, "most recent first")
	assert.Equal(t, "Listing files", first.Sessions[0].Label)
	if diff := cmp.Diff(first.Sessions, second.Sessions, cmp.AllowUnexported(types.ContentBlock{})); diff != "" {
		t.Errorf("reload differs (-first +second):\n%s", diff)
	}
}

func keys(m map[string]time.Time) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
