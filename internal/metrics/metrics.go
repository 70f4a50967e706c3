// Package metrics exposes tabprune's Prometheus metrics. A nil *Metrics is
// valid and records nothing, so components can be built without one.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// Tab lifecycle
	Suspensions     prometheus.Counter
	Restores        prometheus.Counter
	Failures        *prometheus.CounterVec
	TabsByState     *prometheus.GaugeVec
	SuspendedTabs   prometheus.Gauge
	OrphansReaped   prometheus.Counter
	EstimatedSaveMB prometheus.Gauge

	// Scheduler
	Scans        prometheus.Counter
	ScanDuration prometheus.Histogram

	// Sessions
	SessionsSaved    prometheus.Counter
	SessionsRestored prometheus.Counter
	SessionsEvicted  prometheus.Counter

	// Message API
	Messages *prometheus.CounterVec
}

// New creates the metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Suspensions: factory.NewCounter(prometheus.CounterOpts{
			Name: "tabprune_suspensions_total",
			Help: "Total number of tabs suspended",
		}),
		Restores: factory.NewCounter(prometheus.CounterOpts{
			Name: "tabprune_restores_total",
			Help: "Total number of tabs restored",
		}),
		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tabprune_failures_total",
			Help: "Total number of failed tab operations",
		}, []string{"op"}),
		TabsByState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tabprune_tabs",
			Help: "Open tabs by state at the last count",
		}, []string{"state"}),
		SuspendedTabs: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tabprune_suspended_tabs",
			Help: "Tabs currently tracked as suspended",
		}),
		OrphansReaped: factory.NewCounter(prometheus.CounterOpts{
			Name: "tabprune_orphans_reaped_total",
			Help: "Suspended-tab records deleted because their tab is gone",
		}),
		EstimatedSaveMB: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tabprune_estimated_saved_megabytes",
			Help: "Heuristic memory saved by suspended tabs",
		}),
		Scans: factory.NewCounter(prometheus.CounterOpts{
			Name: "tabprune_scans_total",
			Help: "Total number of suspension scans",
		}),
		ScanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tabprune_scan_duration_seconds",
			Help:    "Suspension scan duration",
			Buckets: prometheus.DefBuckets,
		}),
		SessionsSaved: factory.NewCounter(prometheus.CounterOpts{
			Name: "tabprune_sessions_saved_total",
			Help: "Total number of sessions saved",
		}),
		SessionsRestored: factory.NewCounter(prometheus.CounterOpts{
			Name: "tabprune_sessions_restored_total",
			Help: "Total number of sessions restored",
		}),
		SessionsEvicted: factory.NewCounter(prometheus.CounterOpts{
			Name: "tabprune_sessions_evicted_total",
			Help: "Sessions dropped by the history cap",
		}),
		Messages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tabprune_messages_total",
			Help: "Messages handled by action and outcome",
		}, []string{"action", "outcome"}),
	}
}

// Handler serves the metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// TabSuspended records a suspension and the new suspended count.
func (m *Metrics) TabSuspended(suspended int) {
	if m == nil {
		return
	}
	m.Suspensions.Inc()
	m.SuspendedTabs.Set(float64(suspended))
}

// TabRestored records a restore and the new suspended count.
func (m *Metrics) TabRestored(suspended int) {
	if m == nil {
		return
	}
	m.Restores.Inc()
	m.SuspendedTabs.Set(float64(suspended))
}

// Failure records a failed operation such as "suspend" or "restore".
func (m *Metrics) Failure(op string) {
	if m == nil {
		return
	}
	m.Failures.WithLabelValues(op).Inc()
}

// OrphanReaped records the removal of a record whose tab is gone.
func (m *Metrics) OrphanReaped(suspended int) {
	if m == nil {
		return
	}
	m.OrphansReaped.Inc()
	m.SuspendedTabs.Set(float64(suspended))
}

// TabCounts records a full tab count.
func (m *Metrics) TabCounts(active, suspended, savedMB int) {
	if m == nil {
		return
	}
	m.TabsByState.WithLabelValues("active").Set(float64(active))
	m.TabsByState.WithLabelValues("suspended").Set(float64(suspended))
	m.EstimatedSaveMB.Set(float64(savedMB))
}

// ScanCompleted records one scheduler scan.
func (m *Metrics) ScanCompleted(d time.Duration) {
	if m == nil {
		return
	}
	m.Scans.Inc()
	m.ScanDuration.Observe(d.Seconds())
}

// SessionSaved records a save and how many old sessions it evicted.
func (m *Metrics) SessionSaved(evicted int) {
	if m == nil {
		return
	}
	m.SessionsSaved.Inc()
	m.SessionsEvicted.Add(float64(evicted))
}

// SessionRestored records a session restore.
func (m *Metrics) SessionRestored() {
	if m == nil {
		return
	}
	m.SessionsRestored.Inc()
}

// Message records a handled message.
func (m *Metrics) Message(action, outcome string) {
	if m == nil {
		return
	}
	m.Messages.WithLabelValues(action, outcome).Inc()
}
