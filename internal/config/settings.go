package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Default setting values, used for any key missing from the settings file.
const (
	DefaultSuspendAfterMinutes  = 15
	DefaultAutoSuspend          = true
	DefaultMaxTabsBeforeWarning = 50
)

// Settings are the user-tunable options.
type Settings struct {
	SuspendAfterMinutes  int  `yaml:"suspendAfterMinutes" json:"suspendAfterMinutes"`
	AutoSuspend          bool `yaml:"autoSuspend" json:"autoSuspend"`
	MaxTabsBeforeWarning int  `yaml:"maxTabsBeforeWarning" json:"maxTabsBeforeWarning"`
}

// DefaultSettings returns the settings used before anything is saved.
func DefaultSettings() Settings {
	return Settings{
		SuspendAfterMinutes:  DefaultSuspendAfterMinutes,
		AutoSuspend:          DefaultAutoSuspend,
		MaxTabsBeforeWarning: DefaultMaxTabsBeforeWarning,
	}
}

// SettingsPatch is a partial update. Nil fields are left unchanged.
type SettingsPatch struct {
	SuspendAfterMinutes  *int  `yaml:"suspendAfterMinutes,omitempty" json:"suspendAfterMinutes,omitempty"`
	AutoSuspend          *bool `yaml:"autoSuspend,omitempty" json:"autoSuspend,omitempty"`
	MaxTabsBeforeWarning *int  `yaml:"maxTabsBeforeWarning,omitempty" json:"maxTabsBeforeWarning,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p SettingsPatch) Empty() bool {
	return p.SuspendAfterMinutes == nil && p.AutoSuspend == nil && p.MaxTabsBeforeWarning == nil
}

// Apply returns s with the fields set in p replaced.
func (s Settings) Apply(p SettingsPatch) Settings {
	if p.SuspendAfterMinutes != nil {
		s.SuspendAfterMinutes = *p.SuspendAfterMinutes
	}
	if p.AutoSuspend != nil {
		s.AutoSuspend = *p.AutoSuspend
	}
	if p.MaxTabsBeforeWarning != nil {
		s.MaxTabsBeforeWarning = *p.MaxTabsBeforeWarning
	}
	return s
}

// Validate rejects values the scheduler and monitor cannot use.
func (s Settings) Validate() error {
	if s.SuspendAfterMinutes < 1 {
		return fmt.Errorf("suspendAfterMinutes must be at least 1, got %d", s.SuspendAfterMinutes)
	}
	if s.MaxTabsBeforeWarning < 0 {
		return fmt.Errorf("maxTabsBeforeWarning must not be negative, got %d", s.MaxTabsBeforeWarning)
	}
	return nil
}

// SettingsStore holds the current settings and persists them to a YAML
// file. It is safe for concurrent use.
type SettingsStore struct {
	path string

	mu      sync.RWMutex
	current Settings
}

// OpenSettings loads the settings file at path. A missing file yields the
// defaults. Keys missing from the file are backfilled with defaults.
func OpenSettings(path string) (*SettingsStore, error) {
	s := &SettingsStore{path: path}
	settings, err := readSettings(path)
	if err != nil {
		return nil, err
	}
	s.current = settings
	return s, nil
}

// Path returns the settings file path.
func (s *SettingsStore) Path() string {
	return s.path
}

// Get returns the current settings.
func (s *SettingsStore) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update merges p into the current settings and writes the result. Invalid
// results are rejected and nothing changes.
func (s *SettingsStore) Update(p SettingsPatch) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current.Apply(p)
	if err := next.Validate(); err != nil {
		return s.current, err
	}
	if err := writeSettings(s.path, next); err != nil {
		return s.current, err
	}
	s.current = next
	return next, nil
}

// Reload re-reads the file and reports whether the settings changed.
func (s *SettingsStore) Reload() (Settings, bool, error) {
	settings, err := readSettings(s.path)
	if err != nil {
		return s.Get(), false, err
	}
	if err := settings.Validate(); err != nil {
		return s.Get(), false, fmt.Errorf("invalid settings in %s: %w", s.path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	changed := settings != s.current
	s.current = settings
	return settings, changed, nil
}

func readSettings(path string) (Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return settings, nil
	}
	if err != nil {
		return settings, fmt.Errorf("failed to read settings: %w", err)
	}

	var p SettingsPatch
	if err := yaml.Unmarshal(data, &p); err != nil {
		return settings, fmt.Errorf("failed to parse settings %s: %w", path, err)
	}
	return settings.Apply(p), nil
}

// writeSettings replaces the file through a temp file and rename so readers
// never see a partial write.
func writeSettings(path string, settings Settings) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp settings file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close settings: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace settings: %w", err)
	}
	return nil
}
