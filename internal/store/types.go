package store

import "time"

// SuspendedTab is the metadata kept for a tab while it shows the placeholder.
type SuspendedTab struct {
	TabID       string    `json:"tabId"`
	OriginalURL string    `json:"originalUrl"`
	Title       string    `json:"title"`
	FavIconURL  string    `json:"favIconUrl"`
	SuspendedAt time.Time `json:"suspendedAt"`
}

// Session is a named snapshot of the tabs open in a window.
type Session struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	CreatedAt time.Time    `json:"createdAt"`
	Tabs      []SessionTab `json:"tabs"`
}

// SessionTab is one saved tab, in window order.
type SessionTab struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	FavIconURL string `json:"favIconUrl"`
}
