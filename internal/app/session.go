package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/tabprune/internal/output"
	"github.com/blackwell-systems/tabprune/internal/sessions"
	"github.com/blackwell-systems/tabprune/internal/store"
)

var (
	sessionCmd = &cobra.Command{
		Use:   "session",
		Short: "Save and restore window sessions",
		Long: `Save the tabs of the current window as a named session and reopen them later.

Sessions are kept newest first, up to 50. Suspended tabs are saved with their
original address. Privileged pages (chrome://, about:, ...) are skipped.

export and import read the database directly and work without a daemon.`,
	}

	sessionSaveCmd = &cobra.Command{
		Use:   "save [name]",
		Short: "Save the current window",
		Example: `  tabprune session save
  tabprune session save "trip planning"`,
		Args: cobra.MaximumNArgs(1),
		RunE: runSessionSave,
	}

	sessionListCmd = &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved sessions",
		Args:    cobra.NoArgs,
		RunE:    runSessionList,
	}

	sessionShowCmd = &cobra.Command{
		Use:   "show <session-id>",
		Short: "List the tabs of a session",
		Args:  cobra.ExactArgs(1),
		RunE:  runSessionShow,
	}

	sessionRestoreCmd = &cobra.Command{
		Use:   "restore <session-id>",
		Short: "Open every tab of a session",
		Args:  cobra.ExactArgs(1),
		RunE:  runSessionRestore,
	}

	sessionDeleteCmd = &cobra.Command{
		Use:     "delete <session-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a session",
		Args:    cobra.ExactArgs(1),
		RunE:    runSessionDelete,
	}

	sessionExportOutput string

	sessionExportCmd = &cobra.Command{
		Use:   "export <session-id>",
		Short: "Write a session as JSON",
		Example: `  tabprune session export 01927c1e-7a4b-7c3d-9f2e-5b6a8d9c0e1f -o research.json
  tabprune session export 01927c1e-7a4b-7c3d-9f2e-5b6a8d9c0e1f > research.json`,
		Args: cobra.ExactArgs(1),
		RunE: runSessionExport,
	}

	sessionImportCmd = &cobra.Command{
		Use:   "import <file>...",
		Short: "Store sessions read from JSON files",
		Long: `Store each exported session file as a new session. Use - to read stdin.

Imported sessions get a fresh id and become the newest sessions.`,
		Example: `  tabprune session import research.json
  tabprune session import backups/*.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: runSessionImport,
	}
)

func init() {
	sessionExportCmd.Flags().StringVarP(&sessionExportOutput, "output", "o", "", "output file (default: stdout)")

	sessionCmd.AddCommand(sessionSaveCmd, sessionListCmd, sessionShowCmd,
		sessionRestoreCmd, sessionDeleteCmd, sessionExportCmd, sessionImportCmd)
	RootCmd.AddCommand(sessionCmd)
}

func runSessionSave(cmd *cobra.Command, args []string) error {
	var name string
	if len(args) == 1 {
		name = args[0]
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	c, err := daemonClient(ctx)
	if err != nil {
		return err
	}
	sess, err := c.SaveSession(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Saved %q (%d tabs)\n  ID: %s\n", sess.Name, len(sess.Tabs), sess.ID)
	return nil
}

func runSessionList(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	c, err := daemonClient(ctx)
	if err != nil {
		return err
	}
	list, err := c.Sessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	fmt.Fprint(cmd.OutOrStdout(), output.RenderSessionTable(list))
	return nil
}

func runSessionShow(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	c, err := daemonClient(ctx)
	if err != nil {
		return err
	}
	list, err := c.Sessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	sess := findSession(list, args[0])
	if sess == nil {
		return fmt.Errorf("session %s not found", args[0])
	}
	fmt.Fprint(cmd.OutOrStdout(), output.RenderSessionDetail(sess))
	return nil
}

// findSession matches a full id or a unique id prefix.
func findSession(list []*store.Session, id string) *store.Session {
	var match *store.Session
	for _, sess := range list {
		if sess.ID == id {
			return sess
		}
		if strings.HasPrefix(sess.ID, id) {
			if match != nil {
				return nil
			}
			match = sess
		}
	}
	return match
}

func runSessionRestore(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	c, err := daemonClient(ctx)
	if err != nil {
		return err
	}

	spinner := output.NewSpinnerTo(cmd.OutOrStdout(), "Opening tabs...")
	spinner.Start()
	ok, err := c.RestoreSession(ctx, args[0])
	if err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to restore session: %w", err)
	}
	if !ok {
		spinner.Stop()
		return fmt.Errorf("session %s not found", args[0])
	}
	spinner.StopWithMessage("✓ Session restored")
	return nil
}

func runSessionDelete(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	c, err := daemonClient(ctx)
	if err != nil {
		return err
	}
	if _, err := c.DeleteSession(ctx, args[0]); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %s\n", args[0])
	return nil
}

func runSessionExport(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	mgr, closeDB, err := openSessions()
	if err != nil {
		return err
	}
	defer closeDB()

	w := cmd.OutOrStdout()
	if sessionExportOutput != "" {
		f, err := os.Create(sessionExportOutput)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", sessionExportOutput, err)
		}
		defer f.Close()
		w = f
	}

	if err := mgr.Export(ctx, args[0], w); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("session %s not found", args[0])
		}
		return err
	}

	if sessionExportOutput != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Exported to %s\n", sessionExportOutput)
	}
	return nil
}

func runSessionImport(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	mgr, closeDB, err := openSessions()
	if err != nil {
		return err
	}
	defer closeDB()

	out := cmd.OutOrStdout()
	var progress *output.ProgressBar
	if len(args) > 1 {
		progress = output.NewProgress(len(args), "Importing sessions...")
		progress.SetWriter(out)
	}

	var imported []*store.Session
	var failed []string
	for _, path := range args {
		sess, err := importSession(ctx, mgr, cmd.InOrStdin(), path)
		if err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", path, err))
		} else {
			imported = append(imported, sess)
		}
		if progress != nil {
			progress.Increment()
		}
	}
	if progress != nil {
		progress.Finish()
	}

	for _, sess := range imported {
		fmt.Fprintf(out, "✓ Imported %q (%d tabs) as %s\n", sess.Name, len(sess.Tabs), sess.ID)
	}
	if len(failed) > 0 {
		for _, msg := range failed {
			fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", msg)
		}
		return fmt.Errorf("%d of %d imports failed", len(failed), len(args))
	}
	return nil
}

func importSession(ctx context.Context, mgr *sessions.Manager, stdin io.Reader, path string) (*store.Session, error) {
	if path == "-" {
		return mgr.Import(ctx, stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return mgr.Import(ctx, f)
}
