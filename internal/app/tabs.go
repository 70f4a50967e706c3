package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/tabprune/internal/api"
	"github.com/blackwell-systems/tabprune/internal/output"
)

var (
	tabsSuspendedOnly bool

	tabsCmd = &cobra.Command{
		Use:   "tabs",
		Short: "List open tabs and their state",
		Long: `List every open tab with its id, state, title and address.

States:
  • active: visible in its window
  • idle: open in the background, a candidate for suspension
  • suspended: showing the placeholder; the original address is listed

Tab ids are used by 'tabprune suspend' and 'tabprune restore'.`,
		Example: `  # List all tabs
  tabprune tabs

  # List only suspended tabs
  tabprune tabs --suspended`,
		Args: cobra.NoArgs,
		RunE: runTabs,
	}

	suspendCmd = &cobra.Command{
		Use:   "suspend <tab-id>...",
		Short: "Suspend tabs now",
		Long: `Replace each tab with the placeholder page, keeping its address and title.

Active, privileged (chrome://, about:, ...) and already suspended tabs are
left alone.`,
		Example: `  tabprune suspend 9A1F3C0E2B7D4A6E8C5B1D3F7E9A2C4B`,
		Args:    cobra.MinimumNArgs(1),
		RunE:    runSuspend,
	}

	restoreURL string

	restoreCmd = &cobra.Command{
		Use:   "restore [tab-id]...",
		Short: "Restore suspended tabs",
		Long: `Navigate suspended tabs back to their original address.

Tabs are named by id, or by original address with --url. When several tabs
were suspended from the same address, --url restores the most recently
suspended one.`,
		Example: `  # Restore by tab id
  tabprune restore 9A1F3C0E2B7D4A6E8C5B1D3F7E9A2C4B

  # Restore by original address
  tabprune restore --url https://example.com/article`,
		RunE: runRestore,
	}
)

func init() {
	tabsCmd.Flags().BoolVar(&tabsSuspendedOnly, "suspended", false, "list only suspended tabs")
	restoreCmd.Flags().StringVar(&restoreURL, "url", "", "restore the tab suspended from this address")

	RootCmd.AddCommand(tabsCmd)
	RootCmd.AddCommand(suspendCmd)
	RootCmd.AddCommand(restoreCmd)
}

func runTabs(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	c, err := daemonClient(ctx)
	if err != nil {
		return err
	}
	tabs, err := c.Tabs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tabs: %w", err)
	}

	if tabsSuspendedOnly {
		suspended := make([]api.TabInfo, 0, len(tabs))
		for _, tab := range tabs {
			if tab.Suspended {
				suspended = append(suspended, tab)
			}
		}
		tabs = suspended
	}

	fmt.Fprint(cmd.OutOrStdout(), output.RenderTabTable(tabs))
	return nil
}

func runSuspend(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	c, err := daemonClient(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, id := range args {
		ok, err := c.SuspendTab(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to suspend %s: %w", id, err)
		}
		if ok {
			fmt.Fprintf(out, "✓ Suspended %s\n", id)
		} else {
			fmt.Fprintf(out, "  %s not suspended (missing, active, privileged or already suspended)\n", id)
		}
	}
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	if restoreURL == "" && len(args) == 0 {
		return fmt.Errorf("name a tab id or pass --url")
	}
	if restoreURL != "" && len(args) > 0 {
		return fmt.Errorf("--url cannot be combined with tab ids")
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	c, err := daemonClient(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if restoreURL != "" {
		ok, err := c.RestoreTab(ctx, "", restoreURL)
		if err != nil {
			return fmt.Errorf("failed to restore %s: %w", restoreURL, err)
		}
		if !ok {
			fmt.Fprintf(out, "  No suspended tab for %s\n", restoreURL)
			return nil
		}
		fmt.Fprintf(out, "✓ Restored %s\n", restoreURL)
		return nil
	}

	for _, id := range args {
		ok, err := c.RestoreTab(ctx, id, "")
		if err != nil {
			return fmt.Errorf("failed to restore %s: %w", id, err)
		}
		if ok {
			fmt.Fprintf(out, "✓ Restored %s\n", id)
		} else {
			fmt.Fprintf(out, "  %s is not suspended\n", id)
		}
	}
	return nil
}
