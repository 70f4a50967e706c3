// Package scheduler periodically suspends tabs that have been idle longer
// than the configured threshold.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/blackwell-systems/tabprune/internal/activity"
	"github.com/blackwell-systems/tabprune/internal/browser"
	"github.com/blackwell-systems/tabprune/internal/metrics"
)

// ScanInterval is how often the scheduler looks for idle tabs.
const ScanInterval = time.Minute

// Suspender is the part of the suspend/restore state machine the scheduler
// drives.
type Suspender interface {
	Suspend(ctx context.Context, tabID string) (bool, error)
	IsSuspended(tabID string) bool
}

// Scheduler runs idle scans on a ticker while enabled.
type Scheduler struct {
	registry  browser.Registry
	suspender Suspender
	tracker   *activity.Tracker
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
	interval  time.Duration

	suspendAfter atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a disabled Scheduler with the given idle threshold.
func New(reg browser.Registry, sus Suspender, tracker *activity.Tracker, suspendAfter time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		registry:  reg,
		suspender: sus,
		tracker:   tracker,
		logger:    logger,
		now:       time.Now,
		interval:  ScanInterval,
	}
	s.suspendAfter.Store(int64(suspendAfter))
	return s
}

// SetMetrics attaches a metrics sink.
func (s *Scheduler) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// SetSuspendAfter changes the idle threshold. It applies from the next scan.
func (s *Scheduler) SetSuspendAfter(d time.Duration) {
	s.suspendAfter.Store(int64(d))
}

// SuspendAfter returns the idle threshold.
func (s *Scheduler) SuspendAfter() time.Duration {
	return time.Duration(s.suspendAfter.Load())
}

// Enabled reports whether the periodic loop is running.
func (s *Scheduler) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// SetEnabled starts or stops the periodic loop. Enabling scans once right
// away. Disabling waits for an in-flight scan to return. The loop also ends
// when ctx is done.
func (s *Scheduler) SetEnabled(ctx context.Context, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if enabled {
		if s.cancel != nil {
			return
		}
		loopCtx, cancel := context.WithCancel(ctx)
		s.cancel = cancel
		s.wg.Add(1)
		go s.run(loopCtx)
		s.logger.Info("auto-suspend enabled", zap.Duration("after", s.SuspendAfter()))
		return
	}

	if s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
	s.wg.Wait()
	s.logger.Info("auto-suspend disabled")
}

// Stop disables the loop.
func (s *Scheduler) Stop() {
	s.SetEnabled(context.Background(), false)
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.scan(ctx)
	for {
		select {
		case <-ticker.C:
			s.scan(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) scan(ctx context.Context) {
	if _, err := s.ScanOnce(ctx); err != nil && ctx.Err() == nil {
		s.logger.Warn("idle scan", zap.Error(err))
	}
}

// ScanOnce suspends every eligible idle tab and returns how many were
// suspended. A failure on one tab is logged and the scan moves on.
func (s *Scheduler) ScanOnce(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() { s.metrics.ScanCompleted(time.Since(start)) }()

	tabs, err := s.registry.Tabs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list tabs: %w", err)
	}

	now := s.now()
	threshold := s.SuspendAfter()
	suspended := 0
	for _, tab := range tabs {
		if ctx.Err() != nil {
			return suspended, ctx.Err()
		}
		if !s.idle(tab, now, threshold) {
			continue
		}
		ok, err := s.suspender.Suspend(ctx, tab.ID)
		if err != nil {
			s.logger.Warn("suspend idle tab", zap.String("tab", tab.ID), zap.Error(err))
			continue
		}
		if ok {
			suspended++
		}
	}

	if suspended > 0 {
		s.logger.Info("idle scan suspended tabs", zap.Int("count", suspended))
	}
	return suspended, nil
}

// idle applies the exclusions in order and then the threshold.
func (s *Scheduler) idle(tab browser.Tab, now time.Time, threshold time.Duration) bool {
	switch {
	case s.suspender.IsSuspended(tab.ID):
		return false
	case tab.Active:
		return false
	case tab.Pinned:
		return false
	case browser.IsPrivileged(tab.URL):
		return false
	}
	return now.Sub(s.tracker.LastActiveAt(tab.ID, tab.LastAccessed)) > threshold
}
