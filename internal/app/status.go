package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/tabprune/internal/daemon"
	"github.com/blackwell-systems/tabprune/internal/output"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check daemon status and memory savings",
	Long: `Display the state of the tabprune daemon and the tabs it manages.

Shows:
  • Daemon running status and PID
  • Database and log locations
  • Open, active and suspended tab counts
  • Estimated memory use and savings
  • The tab-count warning badge
  • Whether automatic suspension is on`,
	Example: `  # Check status
  tabprune status`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	// Register with root command
	RootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	pidFile, err := getDefaultPIDFile()
	if err != nil {
		return fmt.Errorf("failed to get PID file path: %w", err)
	}
	logFile, err := getDefaultLogFile()
	if err != nil {
		return fmt.Errorf("failed to get log file path: %w", err)
	}
	dbFile, err := getDBPath()
	if err != nil {
		return fmt.Errorf("failed to get database path: %w", err)
	}
	addr, err := getAddr()
	if err != nil {
		return err
	}

	running, err := daemon.IsRunning(pidFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}

	out := cmd.OutOrStdout()
	const label = "%-14s"
	switch {
	case running:
		pid, _ := daemon.PID(pidFile)
		fmt.Fprintf(out, label+"running (PID %d)\n", "Daemon:", pid)
	default:
		fmt.Fprintf(out, label+"no background daemon\n", "Daemon:")
	}
	fmt.Fprintf(out, label+"%s\n", "Database:", dbFile)
	fmt.Fprintf(out, label+"%s\n", "Log:", logFile)

	ctx, cancel := commandContext(cmd)
	defer cancel()

	c, err := daemonClient(ctx)
	if err != nil {
		fmt.Fprintf(out, label+"not reachable at %s\n", "API:", addr)
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Start the daemon with: tabprune daemon --daemon")
		return nil
	}
	fmt.Fprintf(out, label+"http://%s\n", "API:", addr)
	fmt.Fprintln(out)

	info, err := c.MemoryInfo(ctx)
	if err != nil {
		return fmt.Errorf("failed to get memory info: %w", err)
	}
	settings, err := c.Settings(ctx)
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	badge, err := c.Badge(ctx)
	if err != nil {
		return fmt.Errorf("failed to get badge: %w", err)
	}

	fmt.Fprint(out, output.RenderMemoryInfo(info))
	fmt.Fprint(out, output.RenderBadge(badge, settings.MaxTabsBeforeWarning))
	fmt.Fprintln(out)
	fmt.Fprint(out, output.RenderSettings(settings))
	return nil
}
