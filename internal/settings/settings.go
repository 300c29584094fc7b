package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"sessionvault/internal/history"
	"sessionvault/internal/session"
)

const (
	ConfigDir    = ".sessionvault"
	SettingsFile = "settings.json"

	DefaultMCPPort = 7437
)

// Settings holds all application settings
type Settings struct {
	ProjectsDir      string   `json:"projectsDir"`      // root of per-project agent logs
	Projects         []string `json:"projects"`         // absolute project paths; empty = all
	ReservedPrefix   string   `json:"reservedPrefix"`   // log names to skip (agent-internal)
	ParseConcurrency int      `json:"parseConcurrency"` // parallel file parses per directory
	MCPPort          int      `json:"mcpPort"`
	DebugLogging     bool     `json:"debugLogging"`
}

// Manager handles all settings operations
type Manager struct {
	configPath string
	settings   *Settings
	mu         sync.RWMutex
}

// NewManager creates a settings manager rooted at ~/.sessionvault.
func NewManager() (*Manager, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return NewManagerAt(filepath.Join(homeDir, ConfigDir))
}

// NewManagerAt creates a settings manager rooted at configPath.
func NewManagerAt(configPath string) (*Manager, error) {
	// Ensure config directory exists
	if err := os.MkdirAll(configPath, 0755); err != nil {
		return nil, err
	}

	m := &Manager{
		configPath: configPath,
		settings:   defaultSettings(),
	}

	// Missing or corrupt settings fall back to defaults
	if err := m.loadSettings(); err != nil {
		m.settings = defaultSettings()
	}
	m.settings.applyDefaults()

	return m, nil
}

// GetConfigPath returns the path to the config directory
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// defaultSettings returns default settings
func defaultSettings() *Settings {
	return &Settings{
		ProjectsDir:      session.DefaultProjectsPath(),
		ReservedPrefix:   history.DefaultReservedPrefix,
		ParseConcurrency: history.DefaultParseConcurrency,
		MCPPort:          DefaultMCPPort,
	}
}

// applyDefaults fills zero fields left by older settings files.
func (s *Settings) applyDefaults() {
	d := defaultSettings()
	if s.ProjectsDir == "" {
		s.ProjectsDir = d.ProjectsDir
	}
	if s.ReservedPrefix == "" {
		s.ReservedPrefix = d.ReservedPrefix
	}
	if s.ParseConcurrency < 1 {
		s.ParseConcurrency = d.ParseConcurrency
	}
	if s.MCPPort == 0 {
		s.MCPPort = d.MCPPort
	}
}

// GetSettings returns current settings
func (m *Manager) GetSettings() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := *m.settings
	s.Projects = append([]string(nil), m.settings.Projects...)
	return s
}

// SaveSettings saves settings to disk
func (m *Manager) SaveSettings(s Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked(s)
}

// saveLocked stores and persists s. Callers hold m.mu.
func (m *Manager) saveLocked(s Settings) error {
	s.applyDefaults()
	m.settings = &s
	return m.writeJSON(SettingsFile, s)
}

// AddProject adds an absolute project path if not already present
func (m *Manager) AddProject(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := *m.settings
	for _, p := range s.Projects {
		if p == path {
			return nil
		}
	}
	s.Projects = append(append([]string(nil), s.Projects...), path)
	return m.saveLocked(s)
}

// RemoveProject removes a project path
func (m *Manager) RemoveProject(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := *m.settings
	kept := make([]string, 0, len(s.Projects))
	for _, p := range s.Projects {
		if p != path {
			kept = append(kept, p)
		}
	}
	s.Projects = kept
	return m.saveLocked(s)
}

// loadSettings loads settings from disk
func (m *Manager) loadSettings() error {
	return m.readJSON(SettingsFile, m.settings)
}

// writeJSON writes data as JSON to a file
func (m *Manager) writeJSON(filename string, data interface{}) error {
	path := filepath.Join(m.configPath, filename)

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, jsonData, 0644)
}

// readJSON reads JSON from a file
func (m *Manager) readJSON(filename string, target interface{}) error {
	path := filepath.Join(m.configPath, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File doesn't exist, use defaults
		}
		return err
	}

	return json.Unmarshal(data, target)
}
