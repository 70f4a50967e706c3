// Package output provides terminal output for the tabprune CLI: tables for
// tabs and sessions, memory and settings summaries, and a spinner and
// progress bar for slow operations.
package output

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/blackwell-systems/tabprune/internal/api"
	"github.com/blackwell-systems/tabprune/internal/config"
	"github.com/blackwell-systems/tabprune/internal/monitor"
	"github.com/blackwell-systems/tabprune/internal/store"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// colorize wraps text in the given ANSI color code if color is enabled,
// otherwise returns the plain text.
func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

// RenderTabTable renders open tabs in registry order.
func RenderTabTable(tabs []api.TabInfo) string {
	if len(tabs) == 0 {
		return "No open tabs.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-34s %-10s %-30s %s\n", "Tab", "State", "Title", "URL"))
	sb.WriteString(strings.Repeat("─", 110))
	sb.WriteString("\n")

	for _, tab := range tabs {
		state, color := "active", colorGreen
		url := tab.URL
		switch {
		case tab.Suspended:
			state, color = "suspended", colorGray
			if tab.OriginalURL != "" {
				url = tab.OriginalURL
			}
		case !tab.Active:
			state, color = "idle", colorYellow
		}

		sb.WriteString(fmt.Sprintf("%-34s %s %-30s %s\n",
			truncate(tab.ID, 34),
			colorize(color, fmt.Sprintf("%-10s", state)),
			truncate(tab.Title, 30),
			truncate(url, 60)))
	}

	return sb.String()
}

// RenderSessionTable renders saved sessions, newest first.
func RenderSessionTable(sessions []*store.Session) string {
	if len(sessions) == 0 {
		return "No saved sessions.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-36s %-30s %-6s %s\n", "ID", "Name", "Tabs", "Saved"))
	sb.WriteString(strings.Repeat("─", 90))
	sb.WriteString("\n")

	for _, sess := range sessions {
		sb.WriteString(fmt.Sprintf("%-36s %-30s %-6d %s\n",
			sess.ID,
			truncate(sess.Name, 30),
			len(sess.Tabs),
			formatRelativeTime(sess.CreatedAt)))
	}

	return sb.String()
}

// RenderSessionDetail lists the tabs of one session.
func RenderSessionDetail(sess *store.Session) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s (%s, %d tabs)\n", sess.Name, sess.ID, len(sess.Tabs)))
	for i, tab := range sess.Tabs {
		title := tab.Title
		if title == "" {
			title = tab.URL
		}
		sb.WriteString(fmt.Sprintf("  %2d. %s\n      %s\n", i+1, truncate(title, 70), colorize(colorGray, tab.URL)))
	}
	return sb.String()
}

// RenderMemoryInfo renders the memory estimate.
func RenderMemoryInfo(info api.MemoryInfo) string {
	const label = "%-14s"
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(label+"%d (%d active, %d suspended)\n", "Tabs:",
		info.TotalTabs, info.ActiveTabs, info.SuspendedTabs))
	sb.WriteString(fmt.Sprintf(label+"~%d MB\n", "Memory:", info.EstimatedMemoryMB))
	sb.WriteString(fmt.Sprintf(label+"%s\n", "Saved:", colorize(colorGreen, fmt.Sprintf("~%d MB", info.SavedMemoryMB))))
	return sb.String()
}

// RenderBadge renders the tab-count badge line.
func RenderBadge(b monitor.Badge, limit int) string {
	if b.Text == "" {
		return fmt.Sprintf("%-14s%s\n", "Badge:", colorize(colorGray, fmt.Sprintf("clear (limit %d)", limit)))
	}
	return fmt.Sprintf("%-14s%s\n", "Badge:", colorize(colorRed, fmt.Sprintf("%s tabs open (limit %d)", b.Text, limit)))
}

// RenderSettings renders the user settings.
func RenderSettings(s config.Settings) string {
	auto := colorize(colorGreen, "on")
	if !s.AutoSuspend {
		auto = colorize(colorYellow, "off")
	}

	const label = "%-24s"
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(label+"%s\n", "Auto-suspend:", auto))
	sb.WriteString(fmt.Sprintf(label+"%d minutes\n", "Suspend after:", s.SuspendAfterMinutes))
	sb.WriteString(fmt.Sprintf(label+"%d tabs\n", "Warn above:", s.MaxTabsBeforeWarning))
	return sb.String()
}

// formatRelativeTime converts a timestamp to relative time (e.g., "2 days ago").
func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	diff := time.Since(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour")
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day")
	case diff < 30*24*time.Hour:
		return plural(int(diff.Hours()/24/7), "week")
	case diff < 365*24*time.Hour:
		return plural(int(diff.Hours()/24/30), "month")
	default:
		return plural(int(diff.Hours()/24/365), "year")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit + " ago"
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// truncate truncates a string to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
