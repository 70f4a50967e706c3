package api

import (
	"github.com/blackwell-systems/tabprune/internal/browser"
	"github.com/blackwell-systems/tabprune/internal/config"
	"github.com/blackwell-systems/tabprune/internal/monitor"
	"github.com/blackwell-systems/tabprune/internal/store"
)

// Message actions.
const (
	ActionSuspendTab     = "suspendTab"
	ActionRestoreTab     = "restoreTab"
	ActionSaveSession    = "saveSession"
	ActionRestoreSession = "restoreSession"
	ActionDeleteSession  = "deleteSession"
	ActionGetSessions    = "getSessions"
	ActionGetMemoryInfo  = "getMemoryInfo"
	ActionGetSettings    = "getSettings"
	ActionUpdateSettings = "updateSettings"
	ActionGetBadge       = "getBadge"
	ActionListTabs       = "listTabs"
)

// Request is one inbound message. Only the fields its action uses are read.
type Request struct {
	Action    string                `json:"action"`
	TabID     string                `json:"tabId,omitempty"`
	URL       string                `json:"url,omitempty"`
	Name      string                `json:"name,omitempty"`
	SessionID string                `json:"sessionId,omitempty"`
	Settings  *config.SettingsPatch `json:"settings,omitempty"`
}

// SuccessResponse answers suspendTab, restoreTab, restoreSession,
// deleteSession and updateSettings.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// SaveSessionResponse answers saveSession.
type SaveSessionResponse struct {
	Success bool           `json:"success"`
	Session *store.Session `json:"session,omitempty"`
}

// SessionsResponse answers getSessions.
type SessionsResponse struct {
	Sessions []*store.Session `json:"sessions"`
}

// MemoryInfo is the heuristic memory estimate.
type MemoryInfo struct {
	ActiveTabs        int `json:"activeTabs"`
	SuspendedTabs     int `json:"suspendedTabs"`
	TotalTabs         int `json:"totalTabs"`
	EstimatedMemoryMB int `json:"estimatedMemoryMB"`
	SavedMemoryMB     int `json:"savedMemoryMB"`
}

// MemoryInfoResponse answers getMemoryInfo.
type MemoryInfoResponse struct {
	MemoryInfo MemoryInfo `json:"memoryInfo"`
}

// SettingsResponse answers getSettings.
type SettingsResponse struct {
	Settings config.Settings `json:"settings"`
}

// BadgeResponse answers getBadge.
type BadgeResponse struct {
	Badge monitor.Badge `json:"badge"`
}

// TabInfo is an open tab and its suspension state.
type TabInfo struct {
	browser.Tab
	Suspended   bool   `json:"suspended"`
	OriginalURL string `json:"originalUrl,omitempty"`
}

// TabsResponse answers listTabs.
type TabsResponse struct {
	Tabs []TabInfo `json:"tabs"`
}

// ErrorResponse reports an unknown action or a malformed message.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Per-tab memory estimates in MB.
const (
	activeTabMB    = 50
	suspendedTabMB = 1
)

// ComputeMemoryInfo applies the fixed per-tab estimates.
func ComputeMemoryInfo(total, suspended int) MemoryInfo {
	active := total - suspended
	return MemoryInfo{
		ActiveTabs:        active,
		SuspendedTabs:     suspended,
		TotalTabs:         total,
		EstimatedMemoryMB: active*activeTabMB + suspended*suspendedTabMB,
		SavedMemoryMB:     suspended * (activeTabMB - suspendedTabMB),
	}
}
