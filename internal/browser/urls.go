package browser

import (
	"net/url"
	"strings"
)

// privilegedSchemes are owned by the browser or its extensions. Tabs on
// them are never suspended or saved.
var privilegedSchemes = []string{
	"chrome:",
	"chrome-extension:",
	"chrome-search:",
	"chrome-untrusted:",
	"devtools:",
	"edge:",
	"brave:",
	"about:",
	"view-source:",
	"moz-extension:",
	"data:",
	"blob:",
	"javascript:",
}

// IsPrivileged reports whether rawURL uses a browser- or extension-internal
// scheme.
func IsPrivileged(rawURL string) bool {
	lower := strings.ToLower(strings.TrimSpace(rawURL))
	for _, scheme := range privilegedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}

// IsNavigable reports whether rawURL is something a tab can be sent back to.
func IsNavigable(rawURL string) bool {
	if strings.TrimSpace(rawURL) == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Scheme != ""
}
