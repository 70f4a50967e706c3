package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/tabprune/internal/config"
)

var (
	dbPath     string
	listenAddr string

	// RootCmd is the root command for tabprune
	RootCmd = &cobra.Command{
		Use:   "tabprune",
		Short: "Suspend idle browser tabs and save tab sessions",
		Long: `tabprune attaches to a Chromium-family browser over the DevTools protocol,
suspends tabs you have not looked at for a while and restores them on demand.
Suspended tabs show a lightweight placeholder page that remembers the original
address and title.

The daemon must be running for every command except session export/import:

  tabprune daemon --daemon

Quick Start:
  1. Start your browser with --remote-debugging-port=9222
  2. TABPRUNE_DEBUGGER_URL=127.0.0.1:9222 tabprune daemon --daemon
  3. tabprune status

Features:
  • Automatic suspension after a configurable idle period
  • Manual suspend and restore by tab or address
  • Named window sessions with export and import
  • Tab-count warning badge and memory estimate

Examples:
  # Show daemon state, memory estimate and badge
  tabprune status

  # List open tabs
  tabprune tabs

  # Save the current window
  tabprune session save "research"

  # Suspend after 30 idle minutes
  tabprune settings set --suspend-after 30`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

func init() {
	// Global flags
	RootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default: ~/.tabprune/tabprune.db)")
	RootCmd.PersistentFlags().StringVar(&listenAddr, "addr", "", "daemon address (default: $TABPRUNE_LISTEN_ADDR or "+config.DefaultListenAddr+")")

	// Enable cobra's built-in suggestion feature for unknown subcommands
	RootCmd.SuggestionsMinimumDistance = 2
}

// Execute runs the root command
func Execute() error {
	err := RootCmd.Execute()
	if err != nil && strings.Contains(err.Error(), "unknown command") {
		fmt.Fprintln(os.Stderr, "Run 'tabprune --help' for usage.")
	}
	return err
}

// getAddr returns the daemon address from the flag, the environment or the
// default, in that order.
func getAddr() (string, error) {
	if listenAddr != "" {
		return listenAddr, nil
	}
	env, err := config.LoadEnv()
	if err != nil {
		return "", err
	}
	if env.ListenAddr == "" {
		return config.DefaultListenAddr, nil
	}
	return env.ListenAddr, nil
}

// getDataDir returns $TABPRUNE_DATA_DIR or ~/.tabprune, creating it if needed.
func getDataDir() (string, error) {
	env, err := config.LoadEnv()
	if err != nil {
		return "", err
	}
	dir := env.DataDir
	if dir == "" {
		dir, err = config.DataDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create tabprune directory: %w", err)
	}
	return dir, nil
}

// getDBPath returns the database path, using the flag value or default
func getDBPath() (string, error) {
	if dbPath != "" {
		return dbPath, nil
	}
	return dataFile("tabprune.db")
}

// getDefaultPIDFile returns the default PID file path
func getDefaultPIDFile() (string, error) {
	return dataFile("daemon.pid")
}

// getDefaultLogFile returns the default log file path
func getDefaultLogFile() (string, error) {
	return dataFile("daemon.log")
}

func dataFile(name string) (string, error) {
	dir, err := getDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}
