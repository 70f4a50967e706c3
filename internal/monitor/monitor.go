// Package monitor keeps a warning badge showing the tab count once it
// passes the configured limit.
package monitor

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/blackwell-systems/tabprune/internal/browser"
)

// WarningColor is the badge color shown above the limit.
const WarningColor = "#FF0000"

// Badge is the indicator text and color. The zero Badge is a cleared badge.
type Badge struct {
	Text  string `json:"text"`
	Color string `json:"color"`
}

// Monitor recomputes the badge from the live tab count.
type Monitor struct {
	registry browser.Registry
	logger   *zap.Logger
	maxTabs  atomic.Int64

	mu    sync.RWMutex
	badge Badge
}

// New creates a Monitor that warns above maxTabs open tabs.
func New(reg browser.Registry, maxTabs int, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Monitor{registry: reg, logger: logger}
	m.maxTabs.Store(int64(maxTabs))
	return m
}

// SetMaxTabs changes the warning threshold. It applies from the next Refresh.
func (m *Monitor) SetMaxTabs(n int) {
	m.maxTabs.Store(int64(n))
}

// Badge returns the current badge.
func (m *Monitor) Badge() Badge {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.badge
}

// Refresh counts the open tabs and sets or clears the badge.
func (m *Monitor) Refresh(ctx context.Context) (Badge, error) {
	tabs, err := m.registry.Tabs(ctx)
	if err != nil {
		return m.Badge(), fmt.Errorf("count tabs: %w", err)
	}

	next := Compute(len(tabs), int(m.maxTabs.Load()))

	m.mu.Lock()
	prev := m.badge
	m.badge = next
	m.mu.Unlock()

	if prev != next {
		if next.Text == "" {
			m.logger.Info("tab count badge cleared", zap.Int("tabs", len(tabs)))
		} else {
			m.logger.Info("tab count above limit",
				zap.Int("tabs", len(tabs)),
				zap.Int64("limit", m.maxTabs.Load()),
			)
		}
	}
	return next, nil
}

// Compute returns the badge for count open tabs and a limit.
func Compute(count, limit int) Badge {
	if count > limit {
		return Badge{Text: strconv.Itoa(count), Color: WarningColor}
	}
	return Badge{}
}
