// Package api serves tabprune's request/response message API and the
// placeholder page shown in suspended tabs.
package api

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/blackwell-systems/tabprune/internal/browser"
	"github.com/blackwell-systems/tabprune/internal/config"
	"github.com/blackwell-systems/tabprune/internal/metrics"
	"github.com/blackwell-systems/tabprune/internal/monitor"
	"github.com/blackwell-systems/tabprune/internal/sessions"
	"github.com/blackwell-systems/tabprune/internal/suspender"
)

// UnknownActionError is returned by Dispatch for an action it does not know.
type UnknownActionError struct {
	Action string
}

func (e *UnknownActionError) Error() string {
	return "Unknown action: " + e.Action
}

// Deps are the components a Dispatcher routes messages to.
type Deps struct {
	Registry  browser.Registry
	Suspender *suspender.Suspender
	Sessions  *sessions.Manager
	Monitor   *monitor.Monitor
	Settings  *config.SettingsStore
	Metrics   *metrics.Metrics
	Logger    *zap.Logger

	// OnSettings is called after a successful updateSettings.
	OnSettings func(config.Settings)
}

// Dispatcher routes messages to their handlers. Each message produces
// exactly one response.
type Dispatcher struct {
	deps Deps
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(deps Deps) *Dispatcher {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Dispatcher{deps: deps}
}

// Dispatch handles req. Precondition and I/O failures of state-changing
// actions are logged and answered with success false. The error is non-nil
// only for an unknown action or a failed read.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (any, error) {
	resp, err := d.dispatch(ctx, req)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	} else if s, ok := resp.(SuccessResponse); ok && !s.Success {
		outcome = "noop"
	}
	d.deps.Metrics.Message(metricAction(req.Action), outcome)
	return resp, err
}

func (d *Dispatcher) dispatch(ctx context.Context, req Request) (any, error) {
	switch req.Action {
	case ActionSuspendTab:
		return d.suspendTab(ctx, req), nil
	case ActionRestoreTab:
		return d.restoreTab(ctx, req), nil
	case ActionSaveSession:
		return d.saveSession(ctx, req), nil
	case ActionRestoreSession:
		return d.restoreSession(ctx, req), nil
	case ActionDeleteSession:
		return d.deleteSession(ctx, req), nil
	case ActionGetSessions:
		return d.getSessions(ctx)
	case ActionGetMemoryInfo:
		return d.getMemoryInfo(ctx)
	case ActionGetSettings:
		return SettingsResponse{Settings: d.deps.Settings.Get()}, nil
	case ActionUpdateSettings:
		return d.updateSettings(req), nil
	case ActionGetBadge:
		return BadgeResponse{Badge: d.deps.Monitor.Badge()}, nil
	case ActionListTabs:
		return d.listTabs(ctx)
	default:
		return nil, &UnknownActionError{Action: req.Action}
	}
}

func (d *Dispatcher) suspendTab(ctx context.Context, req Request) SuccessResponse {
	if req.TabID == "" {
		return SuccessResponse{}
	}
	ok, err := d.deps.Suspender.Suspend(ctx, req.TabID)
	if err != nil {
		d.deps.Logger.Warn("suspendTab failed", zap.String("tab", req.TabID), zap.Error(err))
	}
	return SuccessResponse{Success: ok}
}

func (d *Dispatcher) restoreTab(ctx context.Context, req Request) SuccessResponse {
	ok, err := d.deps.Suspender.Restore(ctx, suspender.Target{TabID: req.TabID, URL: req.URL})
	if err != nil {
		d.deps.Logger.Warn("restoreTab failed",
			zap.String("tab", req.TabID),
			zap.String("url", req.URL),
			zap.Error(err),
		)
	}
	return SuccessResponse{Success: ok}
}

func (d *Dispatcher) saveSession(ctx context.Context, req Request) SaveSessionResponse {
	sess, err := d.deps.Sessions.SaveCurrentWindow(ctx, req.Name)
	if err != nil {
		d.deps.Logger.Warn("saveSession failed", zap.Error(err))
		return SaveSessionResponse{}
	}
	return SaveSessionResponse{Success: true, Session: sess}
}

func (d *Dispatcher) restoreSession(ctx context.Context, req Request) SuccessResponse {
	ok, err := d.deps.Sessions.Restore(ctx, req.SessionID)
	if err != nil {
		d.deps.Logger.Warn("restoreSession failed", zap.String("session", req.SessionID), zap.Error(err))
	}
	return SuccessResponse{Success: ok}
}

func (d *Dispatcher) deleteSession(ctx context.Context, req Request) SuccessResponse {
	if err := d.deps.Sessions.Delete(ctx, req.SessionID); err != nil {
		d.deps.Logger.Warn("deleteSession failed", zap.String("session", req.SessionID), zap.Error(err))
		return SuccessResponse{}
	}
	return SuccessResponse{Success: true}
}

func (d *Dispatcher) getSessions(ctx context.Context) (SessionsResponse, error) {
	list, err := d.deps.Sessions.List(ctx)
	if err != nil {
		return SessionsResponse{}, fmt.Errorf("list sessions: %w", err)
	}
	return SessionsResponse{Sessions: list}, nil
}

func (d *Dispatcher) getMemoryInfo(ctx context.Context) (MemoryInfoResponse, error) {
	tabs, err := d.deps.Registry.Tabs(ctx)
	if err != nil {
		return MemoryInfoResponse{}, fmt.Errorf("list tabs: %w", err)
	}
	suspended := 0
	for _, tab := range tabs {
		if d.deps.Suspender.IsSuspended(tab.ID) {
			suspended++
		}
	}
	info := ComputeMemoryInfo(len(tabs), suspended)
	d.deps.Metrics.TabCounts(info.ActiveTabs, info.SuspendedTabs, info.SavedMemoryMB)
	return MemoryInfoResponse{MemoryInfo: info}, nil
}

func (d *Dispatcher) updateSettings(req Request) SuccessResponse {
	if req.Settings == nil || req.Settings.Empty() {
		return SuccessResponse{Success: true}
	}
	settings, err := d.deps.Settings.Update(*req.Settings)
	if err != nil {
		d.deps.Logger.Warn("updateSettings failed", zap.Error(err))
		return SuccessResponse{}
	}
	d.deps.Logger.Info("settings updated", zap.Any("settings", settings))
	if d.deps.OnSettings != nil {
		d.deps.OnSettings(settings)
	}
	return SuccessResponse{Success: true}
}

func (d *Dispatcher) listTabs(ctx context.Context) (TabsResponse, error) {
	tabs, err := d.deps.Registry.Tabs(ctx)
	if err != nil {
		return TabsResponse{}, fmt.Errorf("list tabs: %w", err)
	}
	ph := d.deps.Suspender.Placeholder()
	out := make([]TabInfo, 0, len(tabs))
	for _, tab := range tabs {
		info := TabInfo{Tab: tab, Suspended: d.deps.Suspender.IsSuspended(tab.ID)}
		if original, _, ok := ph.Decode(tab.URL); ok {
			info.OriginalURL = original
		}
		out = append(out, info)
	}
	return TabsResponse{Tabs: out}, nil
}

// metricAction keeps the metric label set bounded.
func metricAction(action string) string {
	switch action {
	case ActionSuspendTab, ActionRestoreTab, ActionSaveSession, ActionRestoreSession,
		ActionDeleteSession, ActionGetSessions, ActionGetMemoryInfo, ActionGetSettings,
		ActionUpdateSettings, ActionGetBadge, ActionListTabs:
		return action
	default:
		return "unknown"
	}
}
