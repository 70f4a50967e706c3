package suspender

import (
	"testing"
)

func TestPlaceholder_RoundTrip(t *testing.T) {
	ph, err := NewPlaceholder("http://127.0.0.1:7878/suspended")
	if err != nil {
		t.Fatalf("NewPlaceholder() error = %v", err)
	}

	tests := []struct {
		name  string
		url   string
		title string
	}{
		{"plain", "https://example.com/", "Example"},
		{"query and fragment", "https://example.com/a?b=1&c=2#frag", "A & B"},
		{"spaces and unicode", "https://example.com/path with space", "Ünïcødé title"},
		{"empty title", "https://example.com/", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := ph.URL(tt.url, tt.title)
			if !ph.Matches(raw) {
				t.Fatalf("Matches(%q) = false, want true", raw)
			}
			gotURL, gotTitle, ok := ph.Decode(raw)
			if !ok {
				t.Fatalf("Decode(%q) ok = false", raw)
			}
			if gotURL != tt.url {
				t.Errorf("Decode() url = %q, want %q", gotURL, tt.url)
			}
			if gotTitle != tt.title {
				t.Errorf("Decode() title = %q, want %q", gotTitle, tt.title)
			}
		})
	}
}

func TestPlaceholder_EncodesSpacesAsPercent(t *testing.T) {
	ph, _ := NewPlaceholder("http://127.0.0.1:7878/suspended")

	got := ph.URL("https://a.test/", "two words")
	want := "http://127.0.0.1:7878/suspended?url=https%3A%2F%2Fa.test%2F&title=two%20words"
	if got != want {
		t.Errorf("URL() = %q, want %q", got, want)
	}
}

func TestPlaceholder_Matches(t *testing.T) {
	ph, _ := NewPlaceholder("http://127.0.0.1:7878/suspended")

	tests := []struct {
		url  string
		want bool
	}{
		{"http://127.0.0.1:7878/suspended?url=x", true},
		{"http://127.0.0.1:7878/suspended", true},
		{"http://127.0.0.1:7878/other?url=x", false},
		{"http://127.0.0.1:9999/suspended?url=x", false},
		{"https://example.com/suspended?url=x", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := ph.Matches(tt.url); got != tt.want {
			t.Errorf("Matches(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestPlaceholder_DecodeWithoutURL(t *testing.T) {
	ph, _ := NewPlaceholder("http://127.0.0.1:7878/suspended")

	if _, _, ok := ph.Decode("http://127.0.0.1:7878/suspended?title=x"); ok {
		t.Error("Decode() ok = true for placeholder without url param")
	}
	if _, _, ok := ph.Decode("https://example.com/?url=x"); ok {
		t.Error("Decode() ok = true for non-placeholder URL")
	}
}

func TestNewPlaceholder_RejectsRelative(t *testing.T) {
	if _, err := NewPlaceholder("/suspended"); err == nil {
		t.Error("NewPlaceholder(relative) error = nil, want error")
	}
}
