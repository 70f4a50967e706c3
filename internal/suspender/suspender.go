// Package suspender moves tabs between their live page and the placeholder
// page, and keeps the suspended-tab records in step with the browser.
package suspender

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/blackwell-systems/tabprune/internal/activity"
	"github.com/blackwell-systems/tabprune/internal/browser"
	"github.com/blackwell-systems/tabprune/internal/metrics"
	"github.com/blackwell-systems/tabprune/internal/store"
)

// Target names the tab to restore, by id or by original URL.
type Target struct {
	TabID string
	URL   string
}

// ReconcileResult summarizes a startup sweep.
type ReconcileResult struct {
	Kept    int
	Rekeyed int
	Adopted int
	Reaped  int
}

// Suspender owns the suspended set. Operations on one tab id are serialized.
type Suspender struct {
	registry    browser.Registry
	store       *store.Store
	tracker     *activity.Tracker
	placeholder Placeholder
	metrics     *metrics.Metrics
	logger      *zap.Logger
	now         func() time.Time

	locks *keyedMutex

	mu        sync.RWMutex
	suspended map[string]struct{}
}

// New creates a Suspender. A nil logger is replaced by a no-op logger.
func New(reg browser.Registry, st *store.Store, tracker *activity.Tracker, ph Placeholder, logger *zap.Logger) *Suspender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Suspender{
		registry:    reg,
		store:       st,
		tracker:     tracker,
		placeholder: ph,
		logger:      logger,
		now:         time.Now,
		locks:       newKeyedMutex(),
		suspended:   make(map[string]struct{}),
	}
}

// SetMetrics attaches a metrics sink.
func (s *Suspender) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// Placeholder returns the placeholder codec in use.
func (s *Suspender) Placeholder() Placeholder {
	return s.placeholder
}

// Suspend replaces the tab's page with the placeholder. It returns false
// without error when the tab is missing, already suspended, or showing a
// URL that cannot be suspended.
func (s *Suspender) Suspend(ctx context.Context, tabID string) (bool, error) {
	unlock := s.locks.Lock(tabID)
	defer unlock()

	if s.IsSuspended(tabID) {
		return false, nil
	}

	tab, err := s.registry.Tab(ctx, tabID)
	if errors.Is(err, browser.ErrTabNotFound) {
		return false, nil
	}
	if err != nil {
		s.metrics.Failure("suspend")
		return false, fmt.Errorf("get tab %s: %w", tabID, err)
	}
	if !browser.IsNavigable(tab.URL) || browser.IsPrivileged(tab.URL) || s.placeholder.Matches(tab.URL) {
		s.logger.Debug("tab not suspendable", zap.String("tab", tabID), zap.String("url", tab.URL))
		return false, nil
	}

	rec := &store.SuspendedTab{
		TabID:       tabID,
		OriginalURL: tab.URL,
		Title:       tab.Title,
		FavIconURL:  tab.FavIconURL,
		SuspendedAt: s.now(),
	}
	if err := s.store.PutSuspendedTab(rec); err != nil {
		s.metrics.Failure("suspend")
		return false, fmt.Errorf("save suspended tab %s: %w", tabID, err)
	}

	if err := s.registry.Navigate(ctx, tabID, s.placeholder.URL(tab.URL, tab.Title)); err != nil {
		if _, derr := s.store.DeleteSuspendedTab(tabID); derr != nil {
			s.logger.Error("roll back suspended tab", zap.String("tab", tabID), zap.Error(derr))
		}
		if errors.Is(err, browser.ErrTabNotFound) {
			return false, nil
		}
		s.metrics.Failure("suspend")
		return false, fmt.Errorf("navigate tab %s to placeholder: %w", tabID, err)
	}

	n := s.mark(tabID)
	s.tracker.Forget(tabID)
	s.metrics.TabSuspended(n)
	s.logger.Info("tab suspended", zap.String("tab", tabID), zap.String("url", tab.URL))
	return true, nil
}

// Restore navigates a suspended tab back to its original URL. A URL target
// resolves to the most recently suspended tab with that original URL.
// Restoring a tab that is not suspended returns false.
func (s *Suspender) Restore(ctx context.Context, target Target) (bool, error) {
	tabID := target.TabID
	if tabID == "" {
		if target.URL == "" {
			return false, nil
		}
		rec, err := s.store.FindSuspendedTabByURL(target.URL)
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			s.metrics.Failure("restore")
			return false, fmt.Errorf("find suspended tab for %s: %w", target.URL, err)
		}
		tabID = rec.TabID
	}

	unlock := s.locks.Lock(tabID)
	defer unlock()

	rec, err := s.store.GetSuspendedTab(tabID)
	switch {
	case err == nil:
		if target.TabID == "" && rec.OriginalURL != target.URL {
			// Restored and re-suspended elsewhere while we waited.
			return false, nil
		}
		return s.restoreLocked(ctx, tabID, rec.OriginalURL, true)
	case !errors.Is(err, store.ErrNotFound):
		s.metrics.Failure("restore")
		return false, fmt.Errorf("get suspended tab %s: %w", tabID, err)
	case target.TabID == "":
		return false, nil
	}

	// No record. A placeholder tab without one, such as a duplicate, still
	// carries its original URL.
	tab, err := s.registry.Tab(ctx, tabID)
	if errors.Is(err, browser.ErrTabNotFound) {
		s.unmark(tabID)
		return false, nil
	}
	if err != nil {
		s.metrics.Failure("restore")
		return false, fmt.Errorf("get tab %s: %w", tabID, err)
	}
	original, _, ok := s.placeholder.Decode(tab.URL)
	if !ok {
		return false, nil
	}
	return s.restoreLocked(ctx, tabID, original, false)
}

func (s *Suspender) restoreLocked(ctx context.Context, tabID, originalURL string, hasRecord bool) (bool, error) {
	if err := s.registry.Navigate(ctx, tabID, originalURL); err != nil {
		if errors.Is(err, browser.ErrTabNotFound) {
			s.reapLocked(tabID)
			return false, nil
		}
		s.metrics.Failure("restore")
		return false, fmt.Errorf("navigate tab %s to %s: %w", tabID, originalURL, err)
	}

	if hasRecord {
		if _, err := s.store.DeleteSuspendedTab(tabID); err != nil {
			// The tab is live again. Observe or the next reconcile drops the record.
			s.logger.Warn("delete suspended tab record", zap.String("tab", tabID), zap.Error(err))
		}
	}
	n := s.unmark(tabID)
	s.tracker.Record(tabID)
	s.metrics.TabRestored(n)
	s.logger.Info("tab restored", zap.String("tab", tabID), zap.String("url", originalURL))
	return true, nil
}

// IsSuspended reports whether tabID is in the suspended set.
func (s *Suspender) IsSuspended(tabID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.suspended[tabID]
	return ok
}

// SuspendedIDs returns the suspended tab ids, sorted.
func (s *Suspender) SuspendedIDs() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.suspended))
	for id := range s.suspended {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Count returns the size of the suspended set.
func (s *Suspender) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.suspended)
}

// Observe re-reads a suspended tab after an update event. A tab that has
// left the placeholder page is no longer suspended and its record is
// dropped.
func (s *Suspender) Observe(ctx context.Context, tabID string) error {
	if !s.IsSuspended(tabID) {
		return nil
	}

	unlock := s.locks.Lock(tabID)
	defer unlock()

	if !s.IsSuspended(tabID) {
		return nil
	}
	tab, err := s.registry.Tab(ctx, tabID)
	if errors.Is(err, browser.ErrTabNotFound) {
		s.reapLocked(tabID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get tab %s: %w", tabID, err)
	}
	if tab.URL == "" || s.placeholder.Matches(tab.URL) {
		return nil
	}

	if _, err := s.store.DeleteSuspendedTab(tabID); err != nil {
		return fmt.Errorf("delete suspended tab %s: %w", tabID, err)
	}
	n := s.unmark(tabID)
	s.metrics.TabRestored(n)
	s.logger.Info("suspended tab navigated away", zap.String("tab", tabID), zap.String("url", tab.URL))
	return nil
}

// Forget drops all state for a closed tab.
func (s *Suspender) Forget(ctx context.Context, tabID string) {
	unlock := s.locks.Lock(tabID)
	defer unlock()

	s.tracker.Forget(tabID)
	s.reapLocked(tabID)
}

func (s *Suspender) reapLocked(tabID string) {
	deleted, err := s.store.DeleteSuspendedTab(tabID)
	if err != nil {
		s.logger.Warn("delete orphaned record", zap.String("tab", tabID), zap.Error(err))
	}
	n := s.unmark(tabID)
	if deleted {
		s.metrics.OrphanReaped(n)
		s.logger.Debug("orphaned record reaped", zap.String("tab", tabID))
	}
}

// Reconcile rebuilds the suspended set from the open tabs and the stored
// records. Every tab showing the placeholder is marked suspended and given a
// record: its own, an orphan with the same original URL, or one decoded from
// the placeholder URL. Records without a matching placeholder tab are
// deleted.
func (s *Suspender) Reconcile(ctx context.Context) (ReconcileResult, error) {
	var res ReconcileResult

	tabs, err := s.registry.Tabs(ctx)
	if err != nil {
		return res, fmt.Errorf("list tabs: %w", err)
	}

	open := make(map[string]bool, len(tabs))
	for _, tab := range tabs {
		open[tab.ID] = false
	}

	for _, tab := range tabs {
		original, title, ok := s.placeholder.Decode(tab.URL)
		if !ok {
			continue
		}
		action, err := s.adopt(tab, original, title, open)
		if err != nil {
			s.logger.Warn("reconcile tab", zap.String("tab", tab.ID), zap.Error(err))
			continue
		}
		open[tab.ID] = true
		switch action {
		case "kept":
			res.Kept++
		case "rekeyed":
			res.Rekeyed++
		case "adopted":
			res.Adopted++
		}
	}

	recs, err := s.store.ListSuspendedTabs()
	if err != nil {
		return res, fmt.Errorf("list suspended tabs: %w", err)
	}
	for _, rec := range recs {
		if open[rec.TabID] {
			continue
		}
		if _, err := s.store.DeleteSuspendedTab(rec.TabID); err != nil {
			s.logger.Warn("reap record", zap.String("tab", rec.TabID), zap.Error(err))
			continue
		}
		s.unmark(rec.TabID)
		s.metrics.OrphanReaped(s.Count())
		res.Reaped++
	}

	s.logger.Info("reconciled suspended tabs",
		zap.Int("kept", res.Kept),
		zap.Int("rekeyed", res.Rekeyed),
		zap.Int("adopted", res.Adopted),
		zap.Int("reaped", res.Reaped),
	)
	return res, nil
}

// adopt marks one placeholder tab suspended and makes sure it has a record.
// open maps every open tab id to whether it has been claimed.
func (s *Suspender) adopt(tab browser.Tab, original, title string, open map[string]bool) (string, error) {
	unlock := s.locks.Lock(tab.ID)
	defer unlock()

	_, err := s.store.GetSuspendedTab(tab.ID)
	if err == nil {
		s.mark(tab.ID)
		return "kept", nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	orphan, err := s.store.FindSuspendedTabByURL(original)
	if err == nil {
		if _, isOpen := open[orphan.TabID]; !isOpen {
			if err := s.store.RekeySuspendedTab(orphan.TabID, tab.ID); err != nil {
				return "", err
			}
			s.mark(tab.ID)
			return "rekeyed", nil
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	rec := &store.SuspendedTab{
		TabID:       tab.ID,
		OriginalURL: original,
		Title:       title,
		FavIconURL:  tab.FavIconURL,
		SuspendedAt: s.now(),
	}
	if err := s.store.PutSuspendedTab(rec); err != nil {
		return "", err
	}
	s.mark(tab.ID)
	return "adopted", nil
}

func (s *Suspender) mark(tabID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suspended[tabID] = struct{}{}
	return len(s.suspended)
}

func (s *Suspender) unmark(tabID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.suspended, tabID)
	return len(s.suspended)
}
