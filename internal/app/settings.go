package app

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/tabprune/internal/client"
	"github.com/blackwell-systems/tabprune/internal/config"
	"github.com/blackwell-systems/tabprune/internal/output"
)

var (
	settingsSuspendAfter int
	settingsAutoSuspend  bool
	settingsMaxTabs      int

	settingsCmd = &cobra.Command{
		Use:   "settings",
		Short: "Show or change settings",
		Long: `Show the current settings.

Settings are stored in settings.yaml under the tabprune config directory
(~/.config/tabprune by default). A running daemon picks up changes made with
'tabprune settings set' immediately and reloads the file when edited by hand.`,
		Args: cobra.NoArgs,
		RunE: runSettings,
	}

	settingsSetCmd = &cobra.Command{
		Use:   "set",
		Short: "Change settings",
		Long: `Change one or more settings. Settings that are not named keep their value.

Without a running daemon the settings file is updated directly.`,
		Example: `  # Suspend tabs after 30 idle minutes
  tabprune settings set --suspend-after 30

  # Turn automatic suspension off
  tabprune settings set --auto-suspend=false

  # Warn above 80 open tabs
  tabprune settings set --max-tabs 80`,
		Args: cobra.NoArgs,
		RunE: runSettingsSet,
	}
)

func init() {
	settingsSetCmd.Flags().IntVar(&settingsSuspendAfter, "suspend-after", config.DefaultSuspendAfterMinutes, "idle minutes before a tab is suspended")
	settingsSetCmd.Flags().BoolVar(&settingsAutoSuspend, "auto-suspend", config.DefaultAutoSuspend, "suspend idle tabs automatically")
	settingsSetCmd.Flags().IntVar(&settingsMaxTabs, "max-tabs", config.DefaultMaxTabsBeforeWarning, "open tab count above which the badge warns")

	settingsCmd.AddCommand(settingsSetCmd)
	RootCmd.AddCommand(settingsCmd)
}

func runSettings(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	var current config.Settings
	if c, err := daemonClient(ctx); err == nil {
		current, err = c.Settings(ctx)
		if err != nil {
			return fmt.Errorf("failed to get settings: %w", err)
		}
	} else {
		store, err := openSettingsFile()
		if err != nil {
			return err
		}
		current = store.Get()
	}

	fmt.Fprint(cmd.OutOrStdout(), output.RenderSettings(current))
	return nil
}

// settingsPatch builds a patch from the flags the user set.
func settingsPatch(cmd *cobra.Command) config.SettingsPatch {
	var p config.SettingsPatch
	flags := cmd.Flags()
	if flags.Changed("suspend-after") {
		p.SuspendAfterMinutes = &settingsSuspendAfter
	}
	if flags.Changed("auto-suspend") {
		p.AutoSuspend = &settingsAutoSuspend
	}
	if flags.Changed("max-tabs") {
		p.MaxTabsBeforeWarning = &settingsMaxTabs
	}
	return p
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	patch := settingsPatch(cmd)
	if patch.Empty() {
		return fmt.Errorf("nothing to change (see 'tabprune settings set --help')")
	}

	// Validate locally so the daemon path and the file path fail the same way.
	store, err := openSettingsFile()
	if err != nil {
		return err
	}
	if err := store.Get().Apply(patch).Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	updated, err := applySettings(ctx, store, patch)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "✓ Settings updated")
	fmt.Fprint(cmd.OutOrStdout(), output.RenderSettings(updated))
	return nil
}

// applySettings sends the patch to the daemon, or writes the file when no
// daemon is running.
func applySettings(ctx context.Context, store *config.SettingsStore, patch config.SettingsPatch) (config.Settings, error) {
	c, err := daemonClient(ctx)
	if err != nil {
		updated, err := store.Update(patch)
		if err != nil {
			return config.Settings{}, fmt.Errorf("failed to save settings: %w", err)
		}
		return updated, nil
	}
	return updateViaDaemon(ctx, c, patch)
}

func updateViaDaemon(ctx context.Context, c *client.Client, patch config.SettingsPatch) (config.Settings, error) {
	ok, err := c.UpdateSettings(ctx, patch)
	if err != nil {
		return config.Settings{}, fmt.Errorf("failed to update settings: %w", err)
	}
	if !ok {
		return config.Settings{}, fmt.Errorf("daemon rejected the settings")
	}
	return c.Settings(ctx)
}

func openSettingsFile() (*config.SettingsStore, error) {
	path, err := config.SettingsPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get settings path: %w", err)
	}
	return config.OpenSettings(path)
}
