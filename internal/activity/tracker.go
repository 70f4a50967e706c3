// Package activity keeps the in-memory last-active time of each tab.
package activity

import (
	"sync"
	"time"
)

// Epoch is the last-active time of a tab nothing is known about.
var Epoch = time.Unix(0, 0)

// Tracker maps tab ids to their last activation or navigation time. It is
// ephemeral: live tab events re-seed it after a restart.
type Tracker struct {
	mu   sync.RWMutex
	last map[string]time.Time
	now  func() time.Time
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		last: make(map[string]time.Time),
		now:  time.Now,
	}
}

// SetClock replaces the time source.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

// Record marks tabID as active now.
func (t *Tracker) Record(tabID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last[tabID] = t.now()
}

// LastActiveAt returns the tracked time for tabID, else fallback, else Epoch.
func (t *Tracker) LastActiveAt(tabID string, fallback time.Time) time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if at, ok := t.last[tabID]; ok {
		return at
	}
	if !fallback.IsZero() {
		return fallback
	}
	return Epoch
}

// Tracked reports whether tabID has a record.
func (t *Tracker) Tracked(tabID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.last[tabID]
	return ok
}

// Forget drops the record for tabID.
func (t *Tracker) Forget(tabID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.last, tabID)
}
