// Package client talks to a running tabprune daemon over its message API.
package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/blackwell-systems/tabprune/internal/api"
	"github.com/blackwell-systems/tabprune/internal/config"
	"github.com/blackwell-systems/tabprune/internal/monitor"
	"github.com/blackwell-systems/tabprune/internal/store"
)

// ErrDaemonUnavailable is returned when no daemon answers at the address.
var ErrDaemonUnavailable = errors.New("daemon not reachable")

// Client sends messages to the daemon.
type Client struct {
	resty *resty.Client
}

// New creates a client for the daemon listening on addr (host:port).
func New(addr string) *Client {
	r := resty.New().
		SetBaseURL("http://"+addr).
		SetTimeout(30*time.Second).
		SetHeader("Content-Type", "application/json")
	return &Client{resty: r}
}

// Send posts req and decodes the reply into out.
func (c *Client) Send(ctx context.Context, req api.Request, out any) error {
	var apiErr api.ErrorResponse
	resp, err := c.resty.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(out).
		SetError(&apiErr).
		Post("/api/message")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
	}
	if resp.IsError() {
		if apiErr.Error != "" {
			return fmt.Errorf("%s: %s", req.Action, apiErr.Error)
		}
		return fmt.Errorf("%s: unexpected status %s", req.Action, resp.Status())
	}
	return nil
}

// Ping checks the daemon's health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.resty.R().SetContext(ctx).Get("/healthz")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: status %s", ErrDaemonUnavailable, resp.Status())
	}
	return nil
}

// SuspendTab suspends a tab by id.
func (c *Client) SuspendTab(ctx context.Context, tabID string) (bool, error) {
	var out api.SuccessResponse
	err := c.Send(ctx, api.Request{Action: api.ActionSuspendTab, TabID: tabID}, &out)
	return out.Success, err
}

// RestoreTab restores a tab by id, or by original URL when tabID is empty.
func (c *Client) RestoreTab(ctx context.Context, tabID, url string) (bool, error) {
	var out api.SuccessResponse
	err := c.Send(ctx, api.Request{Action: api.ActionRestoreTab, TabID: tabID, URL: url}, &out)
	return out.Success, err
}

// SaveSession saves the focused window.
func (c *Client) SaveSession(ctx context.Context, name string) (*store.Session, error) {
	var out api.SaveSessionResponse
	if err := c.Send(ctx, api.Request{Action: api.ActionSaveSession, Name: name}, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, errors.New("saveSession: daemon reported failure")
	}
	return out.Session, nil
}

// Sessions lists saved sessions, newest first.
func (c *Client) Sessions(ctx context.Context) ([]*store.Session, error) {
	var out api.SessionsResponse
	err := c.Send(ctx, api.Request{Action: api.ActionGetSessions}, &out)
	return out.Sessions, err
}

// RestoreSession reopens a saved session.
func (c *Client) RestoreSession(ctx context.Context, id string) (bool, error) {
	var out api.SuccessResponse
	err := c.Send(ctx, api.Request{Action: api.ActionRestoreSession, SessionID: id}, &out)
	return out.Success, err
}

// DeleteSession deletes a saved session.
func (c *Client) DeleteSession(ctx context.Context, id string) (bool, error) {
	var out api.SuccessResponse
	err := c.Send(ctx, api.Request{Action: api.ActionDeleteSession, SessionID: id}, &out)
	return out.Success, err
}

// MemoryInfo returns the memory estimate.
func (c *Client) MemoryInfo(ctx context.Context) (api.MemoryInfo, error) {
	var out api.MemoryInfoResponse
	err := c.Send(ctx, api.Request{Action: api.ActionGetMemoryInfo}, &out)
	return out.MemoryInfo, err
}

// Settings returns the current settings.
func (c *Client) Settings(ctx context.Context) (config.Settings, error) {
	var out api.SettingsResponse
	err := c.Send(ctx, api.Request{Action: api.ActionGetSettings}, &out)
	return out.Settings, err
}

// UpdateSettings merges p into the daemon's settings.
func (c *Client) UpdateSettings(ctx context.Context, p config.SettingsPatch) (bool, error) {
	var out api.SuccessResponse
	err := c.Send(ctx, api.Request{Action: api.ActionUpdateSettings, Settings: &p}, &out)
	return out.Success, err
}

// Badge returns the tab-count badge.
func (c *Client) Badge(ctx context.Context) (monitor.Badge, error) {
	var out api.BadgeResponse
	err := c.Send(ctx, api.Request{Action: api.ActionGetBadge}, &out)
	return out.Badge, err
}

// Tabs lists open tabs with their suspension state.
func (c *Client) Tabs(ctx context.Context) ([]api.TabInfo, error) {
	var out api.TabsResponse
	err := c.Send(ctx, api.Request{Action: api.ActionListTabs}, &out)
	return out.Tabs, err
}
