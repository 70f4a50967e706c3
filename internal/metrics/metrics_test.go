package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics

	m.TabSuspended(1)
	m.TabRestored(0)
	m.Failure("suspend")
	m.OrphanReaped(0)
	m.TabCounts(1, 1, 49)
	m.ScanCompleted(time.Second)
	m.SessionSaved(1)
	m.SessionRestored()
	m.Message("getSessions", "ok")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCounters(t *testing.T) {
	m := New()

	m.TabSuspended(2)
	m.TabSuspended(3)
	m.TabRestored(2)
	m.SessionSaved(1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Suspensions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Restores))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SuspendedTabs))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsEvicted))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.Message("suspendTab", "ok")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "tabprune_messages_total"), "missing tabprune_messages_total in:\n%s", body)
	assert.True(t, strings.Contains(body, "tabprune_suspensions_total"))
}
