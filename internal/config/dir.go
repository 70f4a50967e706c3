// Package config provides user settings and process configuration for
// tabprune.
package config

import (
	"os"
	"path/filepath"
)

// Dir returns the tabprune config directory, respecting XDG_CONFIG_HOME.
// Defaults to ~/.config/tabprune if XDG_CONFIG_HOME is not set.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "tabprune"), nil
}

// SettingsPath returns the default settings file path.
func SettingsPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "settings.yaml"), nil
}

// DataDir returns the directory holding the database, PID file and log.
// Defaults to ~/.tabprune.
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".tabprune"), nil
}
