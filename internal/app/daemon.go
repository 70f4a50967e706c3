package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blackwell-systems/tabprune/internal/browser"
	"github.com/blackwell-systems/tabprune/internal/config"
	"github.com/blackwell-systems/tabprune/internal/daemon"
	"github.com/blackwell-systems/tabprune/internal/logging"
	"github.com/blackwell-systems/tabprune/internal/output"
	"github.com/blackwell-systems/tabprune/internal/store"
)

// stopTimeout bounds how long --stop waits for the daemon to exit.
const stopTimeout = 10 * time.Second

var (
	daemonBackground bool
	daemonChild      bool
	daemonPIDFile    string
	daemonLogFile    string
	daemonStop       bool
	daemonDebugger   string
	daemonBrowserBin string
	daemonHeadless   bool
	daemonLogLevel   string
	daemonLogDev     bool

	daemonCmd = &cobra.Command{
		Use:   "daemon",
		Short: "Attach to the browser and manage tabs",
		Long: `Attach to a Chromium-family browser and start managing its tabs.

The daemon tracks tab activity, suspends idle tabs, serves the placeholder
page for suspended tabs and answers the other tabprune commands.

Daemon modes:
  • Foreground (default): Run in current terminal with Ctrl+C to stop
  • Background: Detach with --daemon and log to the log file
  • Stop: Stop a running background daemon

Browser connection:
  • --debugger-url (or TABPRUNE_DEBUGGER_URL) attaches to a running browser,
    given as a ws:// DevTools URL or a host:port
  • Without it a browser is launched, and closed again when the daemon exits

Settings are read from the settings file and reloaded when it changes.
Suspended tabs are remembered in the database, so restarting the daemon
keeps them restorable.`,
		Example: `  # Attach to a browser started with --remote-debugging-port=9222
  tabprune daemon --debugger-url 127.0.0.1:9222

  # Run in the background
  tabprune daemon --daemon --debugger-url 127.0.0.1:9222

  # Stop the background daemon
  tabprune daemon --stop`,
		RunE: runDaemon,
	}
)

func init() {
	daemonCmd.Flags().BoolVar(&daemonBackground, "daemon", false, "run as background daemon")
	daemonCmd.Flags().BoolVar(&daemonChild, "daemon-child", false, "internal flag for daemon child process")
	daemonCmd.Flags().StringVar(&daemonPIDFile, "pid-file", "", "PID file path (default: ~/.tabprune/daemon.pid)")
	daemonCmd.Flags().StringVar(&daemonLogFile, "log-file", "", "log file path (default: ~/.tabprune/daemon.log)")
	daemonCmd.Flags().BoolVar(&daemonStop, "stop", false, "stop running daemon")
	daemonCmd.Flags().StringVar(&daemonDebugger, "debugger-url", "", "DevTools URL or host:port of a running browser")
	daemonCmd.Flags().StringVar(&daemonBrowserBin, "browser-bin", "", "browser binary to launch when not attaching")
	daemonCmd.Flags().BoolVar(&daemonHeadless, "headless", false, "launch the browser headless")
	daemonCmd.Flags().StringVar(&daemonLogLevel, "log-level", "", "log level: debug, info, warn, error")
	daemonCmd.Flags().BoolVar(&daemonLogDev, "log-dev", false, "console logging instead of JSON")

	// Hide the internal daemon-child flag from help
	daemonCmd.Flags().MarkHidden("daemon-child")

	RootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	if daemonStop && (daemonBackground || daemonChild) {
		return fmt.Errorf("--stop cannot be combined with --daemon")
	}

	// Get default paths if not specified
	if daemonPIDFile == "" {
		defaultPID, err := getDefaultPIDFile()
		if err != nil {
			return fmt.Errorf("failed to get default PID file path: %w", err)
		}
		daemonPIDFile = defaultPID
	}

	if daemonLogFile == "" {
		defaultLog, err := getDefaultLogFile()
		if err != nil {
			return fmt.Errorf("failed to get default log file path: %w", err)
		}
		daemonLogFile = defaultLog
	}

	if daemonStop {
		return stopDaemon()
	}

	env, err := daemonEnv(cmd)
	if err != nil {
		return err
	}

	if daemonBackground {
		return startDaemon(env)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if daemonChild {
		// stdout and stderr are redirected to the log file here.
		if err := daemon.WritePID(daemonPIDFile, os.Getpid()); err != nil {
			return err
		}
		defer daemon.RemovePID(daemonPIDFile)
		return serveDaemon(ctx, env)
	}

	running, err := daemon.IsRunning(daemonPIDFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}
	if running {
		return fmt.Errorf("daemon already running (PID file: %s)", daemonPIDFile)
	}

	fmt.Printf("Managing tabs on http://%s (press Ctrl+C to stop)...\n\n", env.ListenAddr)
	if err := serveDaemon(ctx, env); err != nil {
		return err
	}
	fmt.Println("\nDaemon stopped")
	return nil
}

// daemonEnv loads the TABPRUNE_* environment and applies flag overrides.
func daemonEnv(cmd *cobra.Command) (*config.Env, error) {
	env, err := config.LoadEnv()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if addr, err := getAddr(); err == nil {
		env.ListenAddr = addr
	}
	if flags.Changed("debugger-url") {
		env.DebuggerURL = daemonDebugger
	}
	if flags.Changed("browser-bin") {
		env.BrowserBin = daemonBrowserBin
	}
	if flags.Changed("headless") {
		env.Headless = daemonHeadless
	}
	if flags.Changed("log-level") {
		env.LogLevel = daemonLogLevel
	}
	if flags.Changed("log-dev") {
		env.LogDev = daemonLogDev
	}
	return env, nil
}

// childArgs rebuilds the command line for the background child from the
// resolved configuration.
func childArgs(env *config.Env) []string {
	args := []string{"daemon", "--daemon-child",
		"--pid-file", daemonPIDFile,
		"--log-file", daemonLogFile,
		"--addr", env.ListenAddr,
	}
	if dbPath != "" {
		args = append(args, "--db", dbPath)
	}
	if env.DebuggerURL != "" {
		args = append(args, "--debugger-url", env.DebuggerURL)
	}
	if env.BrowserBin != "" {
		args = append(args, "--browser-bin", env.BrowserBin)
	}
	if env.Headless {
		args = append(args, "--headless")
	}
	if env.LogLevel != "" {
		args = append(args, "--log-level", env.LogLevel)
	}
	if env.LogDev {
		args = append(args, "--log-dev")
	}
	return args
}

func stopDaemon() error {
	running, err := daemon.IsRunning(daemonPIDFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}

	if !running {
		fmt.Println("Daemon is not running")
		return nil
	}

	spinner := output.NewSpinner("Stopping daemon...")
	if err := daemon.Stop(daemonPIDFile, stopTimeout); err != nil && !errors.Is(err, daemon.ErrNotRunning) {
		spinner.Stop()
		return fmt.Errorf("failed to stop daemon: %w", err)
	}
	spinner.StopWithMessage("✓ Daemon stopped")

	return nil
}

func startDaemon(env *config.Env) error {
	spinner := output.NewSpinner("Starting daemon...")
	pid, err := daemon.Spawn(daemonPIDFile, daemonLogFile, childArgs(env))
	if err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	spinner.StopWithMessage("✓ Daemon started")

	fmt.Printf("\nTab daemon started (PID %d)\n", pid)
	fmt.Printf("  Address:  http://%s\n", env.ListenAddr)
	fmt.Printf("  PID file: %s\n", daemonPIDFile)
	fmt.Printf("  Log file: %s\n", daemonLogFile)
	fmt.Printf("\nTo stop: tabprune daemon --stop\n")

	return nil
}

// serveDaemon connects to the browser and runs the service until ctx ends.
func serveDaemon(ctx context.Context, env *config.Env) error {
	logger, err := logging.New(logging.Config{Level: env.LogLevel, Development: env.LogDev})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	path, err := getDBPath()
	if err != nil {
		return fmt.Errorf("failed to get database path: %w", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()

	settingsPath, err := config.SettingsPath()
	if err != nil {
		return fmt.Errorf("failed to get settings path: %w", err)
	}
	settings, err := config.OpenSettings(settingsPath)
	if err != nil {
		return err
	}

	reg, err := browser.Connect(ctx, browser.Config{
		DebuggerURL: env.DebuggerURL,
		Bin:         env.BrowserBin,
		Headless:    env.Headless,
	}, logger.Named("browser"))
	if err != nil {
		return err
	}
	defer func() {
		if err := reg.Close(); err != nil {
			logger.Warn("failed to close browser", zap.Error(err))
		}
	}()

	svc, err := daemon.New(reg, st, settings, env.ListenAddr, logger)
	if err != nil {
		return err
	}

	logger.Info("daemon starting",
		zap.String("listen", env.ListenAddr),
		zap.String("db", path),
		zap.String("settings", settingsPath),
		zap.Int("pid", os.Getpid()),
	)
	if err := svc.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
