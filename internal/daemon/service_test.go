package daemon

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/blackwell-systems/tabprune/internal/browser"
	"github.com/blackwell-systems/tabprune/internal/browser/browsertest"
	"github.com/blackwell-systems/tabprune/internal/config"
	"github.com/blackwell-systems/tabprune/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestService(t *testing.T, reg browser.Registry, settingsYAML string) (*Service, *store.Store) {
	t.Helper()

	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	path := filepath.Join(t.TempDir(), "settings.yaml")
	settings, err := config.OpenSettings(path)
	require.NoError(t, err)
	if settingsYAML != "" {
		require.NoError(t, writeFile(path, settingsYAML))
		_, _, err = settings.Reload()
		require.NoError(t, err)
	}

	s, err := New(reg, st, settings, "127.0.0.1:7878", zaptest.NewLogger(t))
	require.NoError(t, err)
	return s, st
}

// blockUntilDone stands in for the HTTP listener.
func blockUntilDone(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHandleEvent_ActivatedRecordsActivity(t *testing.T) {
	reg := browsertest.New()
	s, _ := newTestService(t, reg, "")
	tab := reg.Add(browser.Tab{URL: "https://a.test/"})

	s.handleEvent(context.Background(), browser.Event{Kind: browser.TabActivated, TabID: tab.ID})

	assert.True(t, s.tracker.Tracked(tab.ID))
}

func TestHandleEvent_UpdatedOnlyRecordsNavigation(t *testing.T) {
	reg := browsertest.New()
	s, _ := newTestService(t, reg, "")
	ctx := context.Background()
	tab := reg.Add(browser.Tab{URL: "https://a.test/"})
	s.lastURL[tab.ID] = tab.URL

	s.handleEvent(ctx, browser.Event{Kind: browser.TabUpdated, TabID: tab.ID, Tab: tab})
	assert.False(t, s.tracker.Tracked(tab.ID), "title-only update should not count as activity")

	tab.URL = "https://a.test/next"
	s.handleEvent(ctx, browser.Event{Kind: browser.TabUpdated, TabID: tab.ID, Tab: tab})
	assert.True(t, s.tracker.Tracked(tab.ID))
}

func TestHandleEvent_UpdatedNavigatedAway(t *testing.T) {
	reg := browsertest.New()
	s, st := newTestService(t, reg, "")
	ctx := context.Background()
	tab := reg.Add(browser.Tab{URL: "https://a.test/"})

	ok, err := s.suspender.Suspend(ctx, tab.ID)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, reg.Navigate(ctx, tab.ID, "https://b.test/"))
	live, _ := reg.Get(tab.ID)
	s.handleEvent(ctx, browser.Event{Kind: browser.TabUpdated, TabID: tab.ID, Tab: live})

	assert.False(t, s.suspender.IsSuspended(tab.ID))
	_, err = st.GetSuspendedTab(tab.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.True(t, s.tracker.Tracked(tab.ID))
}

func TestHandleEvent_RemovedReapsRecord(t *testing.T) {
	reg := browsertest.New()
	s, st := newTestService(t, reg, "")
	ctx := context.Background()
	tab := reg.Add(browser.Tab{URL: "https://a.test/"})

	_, err := s.suspender.Suspend(ctx, tab.ID)
	require.NoError(t, err)
	reg.Remove(tab.ID)

	s.handleEvent(ctx, browser.Event{Kind: browser.TabRemoved, TabID: tab.ID})

	assert.False(t, s.suspender.IsSuspended(tab.ID))
	_, err = st.GetSuspendedTab(tab.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestHandleEvent_CreatedRefreshesBadge(t *testing.T) {
	reg := browsertest.New()
	s, _ := newTestService(t, reg, "maxTabsBeforeWarning: 1\n")
	reg.Add(browser.Tab{URL: "https://a.test/"})
	tab := reg.Add(browser.Tab{URL: "https://b.test/"})

	s.handleEvent(context.Background(), browser.Event{Kind: browser.TabCreated, TabID: tab.ID, Tab: tab})

	assert.Equal(t, "2", s.monitor.Badge().Text)
	assert.True(t, s.tracker.Tracked(tab.ID))
}

func TestRun_ReconcilesAndStops(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))

	reg := browsertest.New()
	s, _ := newTestService(t, reg, "autoSuspend: false\n")
	ph := s.suspender.Placeholder()
	tab := reg.Add(browser.Tab{URL: ph.URL("https://a.test/", "A")})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.run(ctx, blockUntilDone) }()

	waitFor(t, func() bool { return s.suspender.IsSuspended(tab.ID) })

	// Live events reach the loop.
	reg.Remove(tab.ID)
	reg.Emit(browser.Event{Kind: browser.TabRemoved, TabID: tab.ID})
	waitFor(t, func() bool { return !s.suspender.IsSuspended(tab.ID) })

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_AutoSuspendToggle(t *testing.T) {
	reg := browsertest.New()
	s, _ := newTestService(t, reg, "")
	idle := reg.Add(browser.Tab{URL: "https://idle.test/"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.run(ctx, blockUntilDone) }()

	// Enabled by default: the first scan runs right away.
	waitFor(t, func() bool { return s.suspender.IsSuspended(idle.ID) })

	req := httptest.NewRequest(http.MethodPost, "/api/message",
		strings.NewReader(`{"action":"updateSettings","settings":{"autoSuspend":false}}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Server().Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.False(t, s.scheduler.Enabled())

	cancel()
	<-done
}

type closedEvents struct {
	*browsertest.Registry
}

func (closedEvents) Events(ctx context.Context) <-chan browser.Event {
	ch := make(chan browser.Event)
	close(ch)
	return ch
}

func TestRun_EventsClosed(t *testing.T) {
	s, _ := newTestService(t, closedEvents{browsertest.New()}, "autoSuspend: false\n")

	err := s.run(context.Background(), blockUntilDone)
	assert.True(t, errors.Is(err, ErrEventsClosed), "run() error = %v", err)
}
