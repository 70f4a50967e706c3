package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

const (
	visibilityJS = `() => document.visibilityState === "visible"`
	favIconJS    = `() => {
		const link = document.querySelector("link[rel~='icon']");
		return link ? link.href : "";
	}`
)

// Config holds browser connection settings.
type Config struct {
	// DebuggerURL is a DevTools websocket URL or a host:port to resolve one
	// from. When empty a browser is launched.
	DebuggerURL string
	// Bin overrides the browser binary used when launching.
	Bin      string
	Headless bool
	// NavigationTimeout bounds Navigate. Zero means 30s.
	NavigationTimeout time.Duration
	// EvalTimeout bounds the per-tab visibility and favicon probes. Zero means 2s.
	EvalTimeout time.Duration
	// FocusPollInterval is how often tab visibility is sampled to detect
	// activations. Zero means 2s.
	FocusPollInterval time.Duration
}

func (c Config) navigationTimeout() time.Duration {
	if c.NavigationTimeout == 0 {
		return 30 * time.Second
	}
	return c.NavigationTimeout
}

func (c Config) evalTimeout() time.Duration {
	if c.EvalTimeout == 0 {
		return 2 * time.Second
	}
	return c.EvalTimeout
}

func (c Config) focusPollInterval() time.Duration {
	if c.FocusPollInterval == 0 {
		return 2 * time.Second
	}
	return c.FocusPollInterval
}

// RodRegistry is a Registry backed by a Chromium-family browser driven over
// the DevTools protocol.
//
// The protocol has no notion of pinned tabs, so Pinned is always false.
// LastAccessed is stamped when a target is first seen and whenever it is
// observed visible.
type RodRegistry struct {
	cfg      Config
	logger   *zap.Logger
	browser  *rod.Browser
	launched bool

	mu           sync.Mutex
	lastAccessed map[string]time.Time
	visible      map[string]bool
}

// Connect attaches to the browser at cfg.DebuggerURL, or launches one.
func Connect(ctx context.Context, cfg Config, logger *zap.Logger) (*RodRegistry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	controlURL := cfg.DebuggerURL
	launched := false
	switch {
	case controlURL == "":
		l := launcher.New().Headless(cfg.Headless)
		if cfg.Bin != "" {
			l = l.Bin(cfg.Bin)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		controlURL = u
		launched = true
	case !strings.HasPrefix(controlURL, "ws://") && !strings.HasPrefix(controlURL, "wss://"):
		u, err := launcher.ResolveURL(controlURL)
		if err != nil {
			return nil, fmt.Errorf("resolve debugger url %s: %w", controlURL, err)
		}
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect to browser: %w", err)
	}

	if err := (proto.TargetSetDiscoverTargets{Discover: true}).Call(b); err != nil {
		return nil, fmt.Errorf("enable target discovery: %w", err)
	}

	logger.Info("connected to browser",
		zap.String("control_url", controlURL),
		zap.Bool("launched", launched))

	return &RodRegistry{
		cfg:          cfg,
		logger:       logger,
		browser:      b,
		launched:     launched,
		lastAccessed: make(map[string]time.Time),
		visible:      make(map[string]bool),
	}, nil
}

// Close shuts the browser down if tabprune launched it. An attached browser
// belongs to the user and is left running.
func (r *RodRegistry) Close() error {
	if r.launched {
		return r.browser.Close()
	}
	return nil
}

// Tabs returns every open page target.
func (r *RodRegistry) Tabs(ctx context.Context) ([]Tab, error) {
	pages, err := r.browser.Context(ctx).Pages()
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}

	tabs := make([]Tab, 0, len(pages))
	for _, page := range pages {
		tab, err := r.tabFromPage(ctx, page)
		if err != nil {
			// Pages close between listing and probing; skip them.
			r.logger.Debug("skipping page", zap.String("tab_id", string(page.TargetID)), zap.Error(err))
			continue
		}
		tabs = append(tabs, tab)
	}
	return tabs, nil
}

// Tab returns a single tab by target id.
func (r *RodRegistry) Tab(ctx context.Context, id string) (Tab, error) {
	page, err := r.page(ctx, id)
	if err != nil {
		return Tab{}, err
	}
	return r.tabFromPage(ctx, page)
}

// CurrentWindowTabs returns the tabs of the window holding the most
// recently accessed visible tab.
func (r *RodRegistry) CurrentWindowTabs(ctx context.Context) ([]Tab, error) {
	tabs, err := r.Tabs(ctx)
	if err != nil {
		return nil, err
	}
	if len(tabs) == 0 {
		return nil, nil
	}

	window := tabs[0].WindowID
	var newest time.Time
	for _, tab := range tabs {
		if tab.Active && tab.LastAccessed.After(newest) {
			newest = tab.LastAccessed
			window = tab.WindowID
		}
	}

	current := make([]Tab, 0, len(tabs))
	for _, tab := range tabs {
		if tab.WindowID == window {
			current = append(current, tab)
		}
	}
	return current, nil
}

// Navigate points the tab at url.
func (r *RodRegistry) Navigate(ctx context.Context, id, url string) error {
	page, err := r.page(ctx, id)
	if err != nil {
		return err
	}
	if err := page.Context(ctx).Timeout(r.cfg.navigationTimeout()).Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", id, err)
	}
	return nil
}

// Create opens a new tab on url.
func (r *RodRegistry) Create(ctx context.Context, url string) (Tab, error) {
	page, err := r.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return Tab{}, fmt.Errorf("create tab %s: %w", url, err)
	}

	id := string(page.TargetID)
	return Tab{
		ID:           id,
		URL:          url,
		LastAccessed: r.stamp(id),
	}, nil
}

// Events streams target lifecycle events plus activations detected by
// sampling tab visibility.
func (r *RodRegistry) Events(ctx context.Context) <-chan Event {
	ch := make(chan Event, 64)

	send := func(ev Event) {
		select {
		case ch <- ev:
		case <-ctx.Done():
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		wait := r.browser.Context(ctx).EachEvent(
			func(e *proto.TargetTargetCreated) {
				if e.TargetInfo.Type != proto.TargetTargetInfoTypePage {
					return
				}
				id := string(e.TargetInfo.TargetID)
				send(Event{Kind: TabCreated, TabID: id, Tab: r.tabFromInfo(e.TargetInfo)})
			},
			func(e *proto.TargetTargetInfoChanged) {
				if e.TargetInfo.Type != proto.TargetTargetInfoTypePage {
					return
				}
				id := string(e.TargetInfo.TargetID)
				send(Event{Kind: TabUpdated, TabID: id, Tab: r.tabFromInfo(e.TargetInfo)})
			},
			func(e *proto.TargetTargetDestroyed) {
				id := string(e.TargetID)
				if !r.forget(id) {
					return
				}
				send(Event{Kind: TabRemoved, TabID: id})
			},
		)
		wait()
	}()

	go func() {
		defer wg.Done()
		r.pollFocus(ctx, send)
	}()

	go func() {
		wg.Wait()
		close(ch)
	}()

	return ch
}

// pollFocus samples visibility and emits TabActivated when a tab turns
// visible.
func (r *RodRegistry) pollFocus(ctx context.Context, send func(Event)) {
	ticker := time.NewTicker(r.cfg.focusPollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pages, err := r.browser.Context(ctx).Pages()
			if err != nil {
				r.logger.Debug("focus poll failed", zap.Error(err))
				continue
			}
			for _, page := range pages {
				id := string(page.TargetID)
				visible := r.isVisible(ctx, page)

				r.mu.Lock()
				was := r.visible[id]
				r.visible[id] = visible
				if visible {
					r.lastAccessed[id] = time.Now()
				}
				r.mu.Unlock()

				if visible && !was {
					send(Event{Kind: TabActivated, TabID: id})
				}
			}
		}
	}
}

func (r *RodRegistry) page(ctx context.Context, id string) (*rod.Page, error) {
	pages, err := r.browser.Context(ctx).Pages()
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	for _, page := range pages {
		if string(page.TargetID) == id {
			return page, nil
		}
	}
	return nil, fmt.Errorf("tab %s: %w", id, ErrTabNotFound)
}

func (r *RodRegistry) tabFromPage(ctx context.Context, page *rod.Page) (Tab, error) {
	info, err := page.Context(ctx).Info()
	if err != nil {
		return Tab{}, fmt.Errorf("page info: %w", err)
	}

	tab := r.tabFromInfo(info)
	tab.Active = r.isVisible(ctx, page)

	if res, err := page.Context(ctx).Timeout(r.cfg.evalTimeout()).Eval(favIconJS); err == nil {
		tab.FavIconURL = res.Value.Str()
	}

	if res, err := (proto.BrowserGetWindowForTarget{TargetID: page.TargetID}).Call(page); err == nil {
		tab.WindowID = int(res.WindowID)
	}

	return tab, nil
}

func (r *RodRegistry) tabFromInfo(info *proto.TargetTargetInfo) Tab {
	id := string(info.TargetID)

	r.mu.Lock()
	seen, ok := r.lastAccessed[id]
	if !ok {
		seen = time.Now()
		r.lastAccessed[id] = seen
	}
	r.mu.Unlock()

	return Tab{
		ID:           id,
		URL:          info.URL,
		Title:        info.Title,
		LastAccessed: seen,
	}
}

func (r *RodRegistry) isVisible(ctx context.Context, page *rod.Page) bool {
	res, err := page.Context(ctx).Timeout(r.cfg.evalTimeout()).Eval(visibilityJS)
	if err != nil {
		return false
	}
	return res.Value.Bool()
}

func (r *RodRegistry) stamp(id string) time.Time {
	now := time.Now()
	r.mu.Lock()
	r.lastAccessed[id] = now
	r.mu.Unlock()
	return now
}

// forget drops per-target bookkeeping and reports whether the target was a
// known page.
func (r *RodRegistry) forget(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, seen := r.lastAccessed[id]
	_, polled := r.visible[id]
	delete(r.lastAccessed, id)
	delete(r.visible, id)
	return seen || polled
}
