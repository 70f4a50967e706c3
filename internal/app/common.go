package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blackwell-systems/tabprune/internal/api"
	"github.com/blackwell-systems/tabprune/internal/client"
	"github.com/blackwell-systems/tabprune/internal/sessions"
	"github.com/blackwell-systems/tabprune/internal/store"
	"github.com/blackwell-systems/tabprune/internal/suspender"
)

// requestTimeout bounds one CLI round trip to the daemon. Restoring a large
// session navigates many tabs, so it is generous.
const requestTimeout = 2 * time.Minute

// commandContext returns the command's context bounded by requestTimeout.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, requestTimeout)
}

// daemonClient returns a client for the daemon, failing with a hint when
// nothing answers.
func daemonClient(ctx context.Context) (*client.Client, error) {
	addr, err := getAddr()
	if err != nil {
		return nil, err
	}
	c := client.New(addr)
	if err := c.Ping(ctx); err != nil {
		if errors.Is(err, client.ErrDaemonUnavailable) {
			return nil, fmt.Errorf("no daemon at %s (start one with 'tabprune daemon --daemon')", addr)
		}
		return nil, err
	}
	return c, nil
}

// openSessions opens the database directly for commands that work without a
// daemon. The returned manager has no browser, so it cannot open tabs.
func openSessions() (*sessions.Manager, func(), error) {
	path, err := getDBPath()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get database path: %w", err)
	}
	addr, err := getAddr()
	if err != nil {
		return nil, nil, err
	}

	st, err := store.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	ph, err := suspender.NewPlaceholder("http://" + addr + api.PlaceholderPath)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return sessions.New(nil, st, ph, zap.NewNop()), func() { st.Close() }, nil
}
