package app

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/tabprune/internal/api"
	"github.com/blackwell-systems/tabprune/internal/browser"
)

func TestTabs_ListsAndFiltersSuspended(t *testing.T) {
	isolate(t)
	resetFlags(t, tabsCmd)
	startFakeDaemon(t, map[string]any{
		api.ActionListTabs: api.TabsResponse{Tabs: []api.TabInfo{
			{Tab: browser.Tab{ID: "T1", URL: "https://a.example/", Title: "Alpha", Active: true}},
			{Tab: browser.Tab{ID: "T2", URL: "http://127.0.0.1:7878/suspended?url=x", Title: "Beta"},
				Suspended: true, OriginalURL: "https://b.example/"},
		}},
	})

	out, err := run(t, "tabs")
	require.NoError(t, err)
	assert.Contains(t, out, "T1")
	assert.Contains(t, out, "https://b.example/")

	out, err = run(t, "tabs", "--suspended")
	require.NoError(t, err)
	assert.NotContains(t, out, "T1")
	assert.Contains(t, out, "T2")
}

func TestTabs_NoDaemon(t *testing.T) {
	isolate(t)
	resetFlags(t, tabsCmd)

	_, err := run(t, "tabs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tabprune daemon --daemon")
}

func TestSuspend_ReportsEachTab(t *testing.T) {
	isolate(t)
	fd := startFakeDaemon(t, map[string]any{
		api.ActionSuspendTab: api.SuccessResponse{Success: true},
	})

	out, err := run(t, "suspend", "T1", "T2")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "✓ Suspended"))

	reqs := fd.received()
	require.Len(t, reqs, 2)
	assert.Equal(t, "T1", reqs[0].TabID)
	assert.Equal(t, "T2", reqs[1].TabID)
}

func TestSuspend_NoOp(t *testing.T) {
	isolate(t)
	startFakeDaemon(t, map[string]any{
		api.ActionSuspendTab: api.SuccessResponse{Success: false},
	})

	out, err := run(t, "suspend", "T1")
	require.NoError(t, err)
	assert.Contains(t, out, "not suspended")
}

func TestRestore_ByURL(t *testing.T) {
	isolate(t)
	resetFlags(t, restoreCmd)
	fd := startFakeDaemon(t, map[string]any{
		api.ActionRestoreTab: api.SuccessResponse{Success: true},
	})

	out, err := run(t, "restore", "--url", "https://a.example/")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Restored https://a.example/")

	reqs := fd.received()
	require.Len(t, reqs, 1)
	assert.Equal(t, "https://a.example/", reqs[0].URL)
	assert.Empty(t, reqs[0].TabID)
}

func TestRestore_Arguments(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"nothing named", []string{"restore"}, "name a tab id"},
		{"both forms", []string{"restore", "T1", "--url", "https://a.example/"}, "cannot be combined"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			resetFlags(t, restoreCmd)

			_, err := run(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestRestore_NotSuspended(t *testing.T) {
	isolate(t)
	resetFlags(t, restoreCmd)
	startFakeDaemon(t, map[string]any{
		api.ActionRestoreTab: api.SuccessResponse{Success: false},
	})

	out, err := run(t, "restore", "T9")
	require.NoError(t, err)
	assert.Contains(t, out, "T9 is not suspended")
}
