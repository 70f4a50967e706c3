package browser

import (
	"context"
	"errors"
	"time"
)

// ErrTabNotFound is returned when a tab id does not name an open tab.
var ErrTabNotFound = errors.New("tab not found")

// Tab is a snapshot of one open tab.
type Tab struct {
	ID           string    `json:"id"`
	WindowID     int       `json:"windowId"`
	URL          string    `json:"url"`
	Title        string    `json:"title"`
	FavIconURL   string    `json:"favIconUrl"`
	Active       bool      `json:"active"`
	Pinned       bool      `json:"pinned"`
	LastAccessed time.Time `json:"lastAccessed"`
}

// EventKind identifies a tab event.
type EventKind int

const (
	// TabActivated fires when a tab becomes the visible tab of its window.
	TabActivated EventKind = iota
	// TabUpdated fires when a tab finishes navigating or changes title.
	TabUpdated
	// TabCreated fires when a tab is opened.
	TabCreated
	// TabRemoved fires when a tab is closed. Only TabID is set.
	TabRemoved
)

func (k EventKind) String() string {
	switch k {
	case TabActivated:
		return "activated"
	case TabUpdated:
		return "updated"
	case TabCreated:
		return "created"
	case TabRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is a tab event delivered by a Registry.
type Event struct {
	Kind  EventKind
	TabID string
	Tab   Tab
}

// Registry is the live, mutable view of open tabs.
type Registry interface {
	// Tabs returns every open tab.
	Tabs(ctx context.Context) ([]Tab, error)
	// Tab returns a single tab or an error wrapping ErrTabNotFound.
	Tab(ctx context.Context, id string) (Tab, error)
	// CurrentWindowTabs returns the tabs of the focused window, in order.
	CurrentWindowTabs(ctx context.Context) ([]Tab, error)
	// Navigate points an existing tab at url.
	Navigate(ctx context.Context, id, url string) error
	// Create opens a new tab on url.
	Create(ctx context.Context, url string) (Tab, error)
	// Events streams tab events until ctx is done.
	Events(ctx context.Context) <-chan Event
}
