// Package sessions saves, lists, restores and deletes named snapshots of the
// tabs open in a window.
package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blackwell-systems/tabprune/internal/browser"
	"github.com/blackwell-systems/tabprune/internal/metrics"
	"github.com/blackwell-systems/tabprune/internal/store"
	"github.com/blackwell-systems/tabprune/internal/suspender"
)

// MaxSessions is how many sessions are kept. Saving past it evicts the
// oldest.
const MaxSessions = 50

// Manager manages session capture, restoration and cleanup.
type Manager struct {
	registry    browser.Registry
	store       *store.Store
	placeholder suspender.Placeholder
	metrics     *metrics.Metrics
	logger      *zap.Logger
	now         func() time.Time
}

// New creates a new session Manager. ph decodes suspended tabs back to
// their original URL.
func New(reg browser.Registry, st *store.Store, ph suspender.Placeholder, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		registry:    reg,
		store:       st,
		placeholder: ph,
		logger:      logger,
		now:         time.Now,
	}
}

// SetMetrics attaches a metrics sink.
func (m *Manager) SetMetrics(mt *metrics.Metrics) {
	m.metrics = mt
}

// DefaultName returns the name given to a session saved at t without one.
func DefaultName(t time.Time) string {
	return "Session " + t.Format("2006-01-02 15:04:05")
}

// SaveCurrentWindow saves the tabs of the focused window.
func (m *Manager) SaveCurrentWindow(ctx context.Context, name string) (*store.Session, error) {
	tabs, err := m.registry.CurrentWindowTabs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list current window tabs: %w", err)
	}
	return m.Save(ctx, name, tabs)
}

// Save stores tabs as the newest session. Tabs on the placeholder page are
// saved under their original URL. Tabs without a navigable URL and
// privileged tabs are left out.
func (m *Manager) Save(ctx context.Context, name string, tabs []browser.Tab) (*store.Session, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	now := m.now()
	if name == "" {
		name = DefaultName(now)
	}

	sess := &store.Session{
		ID:        id.String(),
		Name:      name,
		CreatedAt: now,
		Tabs:      make([]store.SessionTab, 0, len(tabs)),
	}
	for _, tab := range tabs {
		if entry, ok := m.entry(tab); ok {
			sess.Tabs = append(sess.Tabs, entry)
		}
	}

	if err := m.insert(sess); err != nil {
		return nil, err
	}
	m.logger.Info("session saved",
		zap.String("id", sess.ID),
		zap.String("name", sess.Name),
		zap.Int("tabs", len(sess.Tabs)),
	)
	return sess, nil
}

func (m *Manager) entry(tab browser.Tab) (store.SessionTab, bool) {
	if original, title, ok := m.placeholder.Decode(tab.URL); ok {
		if title == "" {
			title = tab.Title
		}
		return store.SessionTab{URL: original, Title: title, FavIconURL: tab.FavIconURL}, true
	}
	if !browser.IsNavigable(tab.URL) || browser.IsPrivileged(tab.URL) || m.placeholder.Matches(tab.URL) {
		return store.SessionTab{}, false
	}
	return store.SessionTab{URL: tab.URL, Title: tab.Title, FavIconURL: tab.FavIconURL}, true
}

func (m *Manager) insert(sess *store.Session) error {
	evicted, err := m.store.InsertSession(sess, MaxSessions)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	if evicted > 0 {
		m.logger.Debug("evicted old sessions", zap.Int("count", evicted))
	}
	m.metrics.SessionSaved(evicted)
	return nil
}

// List returns all sessions, newest first.
func (m *Manager) List(ctx context.Context) ([]*store.Session, error) {
	sessions, err := m.store.ListSessions()
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []*store.Session{}
	}
	return sessions, nil
}

// Restore opens one tab per entry of the session. It returns false if the
// session does not exist. A tab that fails to open is logged and skipped.
func (m *Manager) Restore(ctx context.Context, id string) (bool, error) {
	sess, err := m.store.GetSession(id)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	opened := 0
	for _, tab := range sess.Tabs {
		if _, err := m.registry.Create(ctx, tab.URL); err != nil {
			m.logger.Warn("failed to open session tab",
				zap.String("session", id),
				zap.String("url", tab.URL),
				zap.Error(err),
			)
			continue
		}
		opened++
	}

	m.metrics.SessionRestored()
	m.logger.Info("session restored",
		zap.String("id", id),
		zap.Int("opened", opened),
		zap.Int("tabs", len(sess.Tabs)),
	)
	return true, nil
}

// Delete removes a session. Deleting an unknown id is not an error.
func (m *Manager) Delete(ctx context.Context, id string) error {
	deleted, err := m.store.DeleteSession(id)
	if err != nil {
		return err
	}
	if deleted {
		m.logger.Info("session deleted", zap.String("id", id))
	}
	return nil
}

// Export writes a session as indented JSON. It returns an error wrapping
// store.ErrNotFound for an unknown id.
func (m *Manager) Export(ctx context.Context, id string, w io.Writer) error {
	sess, err := m.store.GetSession(id)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(sess); err != nil {
		return fmt.Errorf("failed to write session %s: %w", id, err)
	}
	return nil
}

// Import reads a session written by Export and stores it as the newest
// session under a fresh id. Entries that could not have been saved are
// dropped.
func (m *Manager) Import(ctx context.Context, r io.Reader) (*store.Session, error) {
	var in store.Session
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	sess := &store.Session{
		ID:        id.String(),
		Name:      in.Name,
		CreatedAt: in.CreatedAt,
		Tabs:      make([]store.SessionTab, 0, len(in.Tabs)),
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = m.now()
	}
	if sess.Name == "" {
		sess.Name = DefaultName(sess.CreatedAt)
	}
	for _, tab := range in.Tabs {
		if entry, ok := m.entry(browser.Tab{URL: tab.URL, Title: tab.Title, FavIconURL: tab.FavIconURL}); ok {
			sess.Tabs = append(sess.Tabs, entry)
		}
	}

	if err := m.insert(sess); err != nil {
		return nil, err
	}
	m.logger.Info("session imported", zap.String("id", sess.ID), zap.String("name", sess.Name))
	return sess, nil
}
