// Package browsertest provides an in-memory browser.Registry for tests.
package browsertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/blackwell-systems/tabprune/internal/browser"
)

// Navigation records one Navigate call.
type Navigation struct {
	TabID string
	URL   string
}

// Registry is a fake browser.Registry. Tabs keep insertion order. All
// methods are safe for concurrent use.
type Registry struct {
	mu          sync.Mutex
	tabs        []*browser.Tab
	nextID      int
	navigateErr map[string]error
	createErr   map[string]error
	tabsErr     error
	navigations []Navigation
	created     []string
	events      chan browser.Event
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		navigateErr: make(map[string]error),
		createErr:   make(map[string]error),
		events:      make(chan browser.Event, 64),
	}
}

// Add inserts a tab. An empty ID is assigned as "tab-N" and a zero WindowID
// becomes 1. It returns the stored tab.
func (r *Registry) Add(tab browser.Tab) browser.Tab {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addLocked(tab)
}

func (r *Registry) addLocked(tab browser.Tab) browser.Tab {
	r.nextID++
	if tab.ID == "" {
		tab.ID = fmt.Sprintf("tab-%d", r.nextID)
	}
	if tab.WindowID == 0 {
		tab.WindowID = 1
	}
	stored := tab
	r.tabs = append(r.tabs, &stored)
	return stored
}

// Remove closes a tab.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, tab := range r.tabs {
		if tab.ID == id {
			r.tabs = append(r.tabs[:i], r.tabs[i+1:]...)
			return
		}
	}
}

// SetActive makes id the active tab of its window.
func (r *Registry) SetActive(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	window := 0
	for _, tab := range r.tabs {
		if tab.ID == id {
			window = tab.WindowID
		}
	}
	for _, tab := range r.tabs {
		if tab.WindowID == window {
			tab.Active = tab.ID == id
		}
	}
}

// Get returns a copy of a tab.
func (r *Registry) Get(id string) (browser.Tab, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tab := r.findLocked(id); tab != nil {
		return *tab, true
	}
	return browser.Tab{}, false
}

// FailNavigate makes Navigate on id return err. A nil err clears it.
func (r *Registry) FailNavigate(id string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.navigateErr, id)
		return
	}
	r.navigateErr[id] = err
}

// FailCreate makes Create on url return err.
func (r *Registry) FailCreate(url string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createErr[url] = err
}

// FailTabs makes Tabs and CurrentWindowTabs return err. A nil err clears it.
func (r *Registry) FailTabs(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tabsErr = err
}

// Navigations returns every successful Navigate call in order.
func (r *Registry) Navigations() []Navigation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Navigation(nil), r.navigations...)
}

// Created returns the URLs passed to successful Create calls in order.
func (r *Registry) Created() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.created...)
}

// Emit queues an event for Events subscribers.
func (r *Registry) Emit(ev browser.Event) {
	r.events <- ev
}

// Tabs implements browser.Registry.
func (r *Registry) Tabs(ctx context.Context) ([]browser.Tab, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tabsErr != nil {
		return nil, r.tabsErr
	}
	return r.snapshotLocked(), nil
}

// Tab implements browser.Registry.
func (r *Registry) Tab(ctx context.Context, id string) (browser.Tab, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tab := r.findLocked(id)
	if tab == nil {
		return browser.Tab{}, fmt.Errorf("tab %s: %w", id, browser.ErrTabNotFound)
	}
	return *tab, nil
}

// CurrentWindowTabs implements browser.Registry. The current window is the
// one holding the first active tab, else window 1.
func (r *Registry) CurrentWindowTabs(ctx context.Context) ([]browser.Tab, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tabsErr != nil {
		return nil, r.tabsErr
	}
	all := r.snapshotLocked()

	window := 1
	for _, tab := range all {
		if tab.Active {
			window = tab.WindowID
			break
		}
	}

	var tabs []browser.Tab
	for _, tab := range all {
		if tab.WindowID == window {
			tabs = append(tabs, tab)
		}
	}
	return tabs, nil
}

// Navigate implements browser.Registry.
func (r *Registry) Navigate(ctx context.Context, id, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tab := r.findLocked(id)
	if tab == nil {
		return fmt.Errorf("tab %s: %w", id, browser.ErrTabNotFound)
	}
	if err := r.navigateErr[id]; err != nil {
		return err
	}
	tab.URL = url
	r.navigations = append(r.navigations, Navigation{TabID: id, URL: url})
	return nil
}

// Create implements browser.Registry.
func (r *Registry) Create(ctx context.Context, url string) (browser.Tab, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.createErr[url]; err != nil {
		return browser.Tab{}, err
	}
	r.created = append(r.created, url)
	return r.addLocked(browser.Tab{URL: url, LastAccessed: time.Now()}), nil
}

// Events implements browser.Registry. Events queued with Emit are delivered
// until ctx is done.
func (r *Registry) Events(ctx context.Context) <-chan browser.Event {
	out := make(chan browser.Event)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-r.events:
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (r *Registry) snapshotLocked() []browser.Tab {
	tabs := make([]browser.Tab, 0, len(r.tabs))
	for _, tab := range r.tabs {
		tabs = append(tabs, *tab)
	}
	return tabs
}

func (r *Registry) findLocked(id string) *browser.Tab {
	for _, tab := range r.tabs {
		if tab.ID == id {
			return tab
		}
	}
	return nil
}

var _ browser.Registry = (*Registry)(nil)
