package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sessionvault/internal/session"
	"sessionvault/internal/settings"
	"sessionvault/internal/store"
	"sessionvault/internal/types"
)

// setupCLI writes one project log and a settings file pointing at it.
func setupCLI(t *testing.T) (configDir string) {
	t.Helper()
	root := t.TempDir()
	projects := filepath.Join(root, "projects")
	logDir := filepath.Join(projects, session.EncodeFolder("/src/app"))
	require.NoError(t, os.MkdirAll(logDir, 0o755))
	lines := []string{
		`{"uuid":"a","parentUuid":null,"sessionId":"S","timestamp":"2025-01-01T10:00:00Z","message":{"role":"user","content":"<command-message>build</command-message><command-name>build</command-name>"}}`,
		`{"uuid":"b","parentUuid":"a","sessionId":"S","timestamp":"2025-01-01T10:00:01Z","message":{"role":"assistant","content":"built"}}`,
	}
	require.NoError(t, os.WriteFile(filepath.Join(logDir, "s1.jsonl"), []byte(strings.Join(lines, "\n")+"\n"), 0o644))

	configDir = filepath.Join(root, "config")
	m, err := settings.NewManagerAt(configDir)
	require.NoError(t, err)
	s := m.GetSettings()
	s.ProjectsDir = projects
	require.NoError(t, m.SaveSettings(s))
	return configDir
}

// resetFlags restores flags set by an earlier run, as a fresh process would
// see them. Flag variables written by command code are left alone.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().Visit(reset)
	cmd.PersistentFlags().Visit(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCLI_ListJSON(t *testing.T) {
	cfg := setupCLI(t)

	out, err := runCLI(t, "--config", cfg, "list", "--json")
	require.NoError(t, err)

	var entries []sessionListEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "S", entries[0].ID)
	assert.Equal(t, "/build", entries[0].Label)
	assert.Equal(t, 2, entries[0].MessageCount)
}

func TestCLI_ShowJSON(t *testing.T) {
	cfg := setupCLI(t)

	out, err := runCLI(t, "--config", cfg, "show", "S", "--json")
	require.NoError(t, err)

	var sess types.Session
	require.NoError(t, json.Unmarshal([]byte(out), &sess))
	require.Len(t, sess.Messages, 2)
	assert.Equal(t, "/build", sess.Messages[0].Text())

	_, err = runCLI(t, "--config", cfg, "show", "missing")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestCLI_Export(t *testing.T) {
	cfg := setupCLI(t)
	db := filepath.Join(t.TempDir(), "out.db")

	out, err := runCLI(t, "--config", cfg, "export", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "exported 1 sessions")

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	texts, err := st.GetMessageTexts(t.Context(), "S")
	require.NoError(t, err)
	assert.Equal(t, []string{"/build", "built"}, texts)
}

func TestCLI_ExportDefaultPathFollowsConfig(t *testing.T) {
	for _, cfg := range []string{setupCLI(t), setupCLI(t)} {
		want := filepath.Join(cfg, defaultExportFile)

		out, err := runCLI(t, "--config", cfg, "export")
		require.NoError(t, err)
		assert.Contains(t, out, "exported 1 sessions to "+want)
		assert.FileExists(t, want)
	}
}

func TestCLI_ConfigProjects(t *testing.T) {
	cfg := setupCLI(t)

	_, err := runCLI(t, "--config", cfg, "config", "add-project", "/src/app")
	require.NoError(t, err)

	m, err := settings.NewManagerAt(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"/src/app"}, m.GetSettings().Projects)

	_, err = runCLI(t, "--config", cfg, "config", "remove-project", "/src/app")
	require.NoError(t, err)
	m, err = settings.NewManagerAt(cfg)
	require.NoError(t, err)
	assert.Empty(t, m.GetSettings().Projects)
}
