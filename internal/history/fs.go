package history

import (
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LogFileExt is the extension of agent conversation logs.
const LogFileExt = ".jsonl"

// DefaultReservedPrefix marks agent-internal logs (subagent task runs) that
// never form user-facing sessions.
const DefaultReservedPrefix = "agent-"

// FileSystem is the read-only filesystem surface the engine needs.
type FileSystem interface {
	ReadDir(name string) ([]os.DirEntry, error)
	Stat(name string) (os.FileInfo, error)
	Open(name string) (io.ReadCloser, error)
}

// OSFileSystem reads from the host filesystem.
type OSFileSystem struct{}

func (OSFileSystem) ReadDir(name string) ([]os.DirEntry, error) { return os.ReadDir(name) }
func (OSFileSystem) Stat(name string) (os.FileInfo, error)     { return os.Stat(name) }
func (OSFileSystem) Open(name string) (io.ReadCloser, error)    { return os.Open(name) }

// IsLogFile reports whether a base name is a session log: a .jsonl file not
// starting with the reserved prefix.
func IsLogFile(name, reservedPrefix string) bool {
	if !strings.HasSuffix(name, LogFileExt) {
		return false
	}
	if reservedPrefix != "" && strings.HasPrefix(name, reservedPrefix) {
		return false
	}
	return true
}

// ListLogFiles returns the session log names in dir, sorted by name.
func ListLogFiles(fsys FileSystem, dir, reservedPrefix string) ([]string, error) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !IsLogFile(entry.Name(), reservedPrefix) {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

// logPath joins a directory and a listed log name.
func logPath(dir, name string) string {
	return filepath.Join(dir, name)
}
