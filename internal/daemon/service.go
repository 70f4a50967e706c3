// Package daemon wires tabprune's components into one long-running service
// and manages the background process that hosts it.
package daemon

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/blackwell-systems/tabprune/internal/activity"
	"github.com/blackwell-systems/tabprune/internal/api"
	"github.com/blackwell-systems/tabprune/internal/browser"
	"github.com/blackwell-systems/tabprune/internal/config"
	"github.com/blackwell-systems/tabprune/internal/metrics"
	"github.com/blackwell-systems/tabprune/internal/monitor"
	"github.com/blackwell-systems/tabprune/internal/scheduler"
	"github.com/blackwell-systems/tabprune/internal/sessions"
	"github.com/blackwell-systems/tabprune/internal/store"
	"github.com/blackwell-systems/tabprune/internal/suspender"
)

// ErrEventsClosed is returned by Run when the browser stops sending events.
var ErrEventsClosed = errors.New("browser event stream closed")

// Service owns every component for one browser connection. The store and
// the settings file are its sources of truth.
type Service struct {
	registry  browser.Registry
	store     *store.Store
	settings  *config.SettingsStore
	tracker   *activity.Tracker
	suspender *suspender.Suspender
	scheduler *scheduler.Scheduler
	sessions  *sessions.Manager
	monitor   *monitor.Monitor
	metrics   *metrics.Metrics
	server    *api.Server
	logger    *zap.Logger

	// lastURL is owned by the event loop.
	lastURL map[string]string

	mu      sync.Mutex
	baseCtx context.Context
}

// New builds a Service whose API and placeholder page are served on
// listenAddr.
func New(reg browser.Registry, st *store.Store, settings *config.SettingsStore, listenAddr string, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	ph, err := suspender.NewPlaceholder("http://" + listenAddr + api.PlaceholderPath)
	if err != nil {
		return nil, err
	}

	current := settings.Get()
	m := metrics.New()
	tracker := activity.NewTracker()

	sus := suspender.New(reg, st, tracker, ph, logger.Named("suspender"))
	sus.SetMetrics(m)

	sched := scheduler.New(reg, sus, tracker, minutes(current.SuspendAfterMinutes), logger.Named("scheduler"))
	sched.SetMetrics(m)

	sess := sessions.New(reg, st, ph, logger.Named("sessions"))
	sess.SetMetrics(m)

	s := &Service{
		registry:  reg,
		store:     st,
		settings:  settings,
		tracker:   tracker,
		suspender: sus,
		scheduler: sched,
		sessions:  sess,
		monitor:   monitor.New(reg, current.MaxTabsBeforeWarning, logger.Named("monitor")),
		metrics:   m,
		logger:    logger,
		lastURL:   make(map[string]string),
	}

	dispatcher := api.NewDispatcher(api.Deps{
		Registry:   reg,
		Suspender:  sus,
		Sessions:   sess,
		Monitor:    s.monitor,
		Settings:   settings,
		Metrics:    m,
		Logger:     logger.Named("api"),
		OnSettings: func(st config.Settings) { s.applySettings(s.context(), st) },
	})
	s.server, err = api.NewServer(listenAddr, dispatcher, m, logger.Named("http"))
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Server returns the HTTP server.
func (s *Service) Server() *api.Server {
	return s.server
}

// Run reconciles state with the browser, then serves the API, consumes tab
// events and watches the settings file until ctx is done or one of them
// fails.
func (s *Service) Run(ctx context.Context) error {
	return s.run(ctx, func(gctx context.Context) error { return s.server.Run(gctx) })
}

func (s *Service) run(ctx context.Context, serve func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	s.setContext(gctx)
	defer s.scheduler.Stop()

	s.start(gctx)

	g.Go(func() error { return serve(gctx) })
	g.Go(func() error { return s.eventLoop(gctx) })
	g.Go(func() error {
		return s.settings.Watch(gctx, s.logger.Named("settings"), func(st config.Settings) {
			s.applySettings(gctx, st)
		})
	})

	err := g.Wait()
	s.logger.Info("daemon stopped")
	return err
}

// start rebuilds in-memory state and applies the current settings.
func (s *Service) start(ctx context.Context) {
	res, err := s.suspender.Reconcile(ctx)
	if err != nil {
		s.logger.Warn("startup reconcile failed", zap.Error(err))
	} else {
		s.logger.Info("startup reconcile complete",
			zap.Int("suspended", s.suspender.Count()),
			zap.Int("reaped", res.Reaped),
		)
	}

	tabs, err := s.registry.Tabs(ctx)
	if err == nil {
		for _, tab := range tabs {
			s.lastURL[tab.ID] = tab.URL
			if tab.Active {
				s.tracker.Record(tab.ID)
			}
		}
	}

	s.applySettings(ctx, s.settings.Get())
}

func (s *Service) applySettings(ctx context.Context, st config.Settings) {
	s.scheduler.SetSuspendAfter(minutes(st.SuspendAfterMinutes))
	s.monitor.SetMaxTabs(st.MaxTabsBeforeWarning)
	s.scheduler.SetEnabled(ctx, st.AutoSuspend)
	if _, err := s.monitor.Refresh(ctx); err != nil {
		s.logger.Warn("badge refresh failed", zap.Error(err))
	}
}

func (s *Service) eventLoop(ctx context.Context) error {
	events := s.registry.Events(ctx)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrEventsClosed
			}
			s.handleEvent(ctx, ev)
		case <-ctx.Done():
			return nil
		}
	}
}

// handleEvent applies one tab event. Events are handled one at a time.
func (s *Service) handleEvent(ctx context.Context, ev browser.Event) {
	id := ev.TabID
	if id == "" {
		id = ev.Tab.ID
	}

	switch ev.Kind {
	case browser.TabActivated:
		s.tracker.Record(id)

	case browser.TabUpdated:
		if s.suspender.IsSuspended(id) {
			if err := s.suspender.Observe(ctx, id); err != nil {
				s.logger.Warn("observe suspended tab", zap.String("tab", id), zap.Error(err))
			}
		}
		url := ev.Tab.URL
		if url != "" && url != s.lastURL[id] {
			s.lastURL[id] = url
			if !s.suspender.IsSuspended(id) && !s.suspender.Placeholder().Matches(url) {
				s.tracker.Record(id)
			}
		}

	case browser.TabCreated:
		s.lastURL[id] = ev.Tab.URL
		s.tracker.Record(id)
		s.refreshBadge(ctx)

	case browser.TabRemoved:
		delete(s.lastURL, id)
		s.suspender.Forget(ctx, id)
		s.refreshBadge(ctx)
	}
}

func (s *Service) refreshBadge(ctx context.Context) {
	if _, err := s.monitor.Refresh(ctx); err != nil {
		s.logger.Warn("badge refresh failed", zap.Error(err))
	}
}

func (s *Service) setContext(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseCtx = ctx
}

func (s *Service) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.baseCtx == nil {
		return context.Background()
	}
	return s.baseCtx
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}
