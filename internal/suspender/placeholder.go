package suspender

import (
	"fmt"
	"net/url"
	"strings"
)

// Placeholder builds and parses placeholder page URLs. A placeholder URL is
// the base URL plus percent-encoded "url" and "title" query parameters.
type Placeholder struct {
	base *url.URL
}

// NewPlaceholder parses base, e.g. "http://127.0.0.1:7878/suspended".
func NewPlaceholder(base string) (Placeholder, error) {
	u, err := url.Parse(base)
	if err != nil {
		return Placeholder{}, fmt.Errorf("parse placeholder base %q: %w", base, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Placeholder{}, fmt.Errorf("placeholder base %q must be absolute", base)
	}
	u.RawQuery = ""
	u.Fragment = ""
	return Placeholder{base: u}, nil
}

// Base returns the placeholder page URL without parameters.
func (p Placeholder) Base() string {
	return p.base.String()
}

// URL returns the placeholder URL for a tab showing originalURL.
func (p Placeholder) URL(originalURL, title string) string {
	u := *p.base
	u.RawQuery = "url=" + escape(originalURL) + "&title=" + escape(title)
	return u.String()
}

// Matches reports whether rawURL points at the placeholder page.
func (p Placeholder) Matches(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, p.base.Scheme) &&
		strings.EqualFold(u.Host, p.base.Host) &&
		u.Path == p.base.Path
}

// Decode extracts the original URL and title from a placeholder URL. ok is
// false when rawURL is not a placeholder URL or carries no original URL.
func (p Placeholder) Decode(rawURL string) (originalURL, title string, ok bool) {
	if !p.Matches(rawURL) {
		return "", "", false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", false
	}
	q, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return "", "", false
	}
	originalURL = q.Get("url")
	if originalURL == "" {
		return "", "", false
	}
	return originalURL, q.Get("title"), true
}

// escape percent-encodes s for a query value, using %20 for spaces.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
