/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server exposes the cache proxy over HTTP and owns the lifecycle
// of the route tree, its backends and the config watcher.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/friendsincode/ratatosk/internal/backend"
	"github.com/friendsincode/ratatosk/internal/config"
	"github.com/friendsincode/ratatosk/internal/events"
	"github.com/friendsincode/ratatosk/internal/routing"
	"github.com/friendsincode/ratatosk/internal/telemetry"
)

// Server bundles the HTTP front end and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	table    *routing.Table
	factory  *routing.Factory
	backends *backend.Registry
	watcher  *routing.Watcher
	bus      *events.Bus

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(telemetry.TracingMiddleware("ratatosk-api"))
	router.Use(telemetry.MetricsMiddleware)
	router.Use(middleware.Timeout(30 * time.Second))

	srv := &Server{
		cfg:    cfg,
		logger: logger,
		router: router,
		bus:    events.NewBus(),
	}

	if err := srv.initDependencies(); err != nil {
		return nil, err
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	addr := fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort)
	srv.httpServer = &http.Server{
		Addr:              addr,
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return srv, nil
}

func (s *Server) initDependencies() error {
	var now routing.TimeSource
	switch s.cfg.TimeSource {
	case config.TimeSourceRequest:
		now = routing.RequestTime()
	default:
		now = routing.WallClock(clock.New())
	}

	backendCfg := backend.DefaultConfig()
	backendCfg.DialTimeout = s.cfg.BackendDialTimeout
	backendCfg.ReadTimeout = s.cfg.BackendReadTimeout
	backendCfg.WriteTimeout = s.cfg.BackendWriteTimeout
	backendCfg.PoolSize = s.cfg.BackendPoolSize

	s.backends = backend.NewRegistry(backendCfg, s.logger)
	s.DeferClose(s.backends.Close)

	s.factory = routing.NewFactory(now, s.logger)
	s.backends.RegisterBuilders(s.factory)

	root, err := s.factory.LoadFile(s.cfg.RoutesPath)
	if err != nil {
		return fmt.Errorf("load route config: %w", err)
	}
	s.table = routing.NewTable(root)

	if s.cfg.WatchRoutes {
		s.watcher = routing.NewWatcher(s.cfg.RoutesPath, s.factory, s.table, s.bus, s.logger)
	}

	s.logger.Info().
		Str("routes", s.cfg.RoutesPath).
		Str("root", root.Name()).
		Str("time_source", string(s.cfg.TimeSource)).
		Msg("route tree ready")

	return nil
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Table exposes the active route table, mainly for tests.
func (s *Server) Table() *routing.Table {
	return s.table
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	if s.watcher != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			if err := s.watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error().Err(err).Msg("route watcher exited")
			}
		}()
	}

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		s.runReloadListener(ctx)
	}()
}

// runReloadListener logs route reload outcomes published on the bus.
func (s *Server) runReloadListener(ctx context.Context) {
	reloaded := s.bus.Subscribe(events.EventRoutesReloaded)
	failed := s.bus.Subscribe(events.EventRoutesReloadError)

	defer func() {
		s.bus.Unsubscribe(events.EventRoutesReloaded, reloaded)
		s.bus.Unsubscribe(events.EventRoutesReloadError, failed)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case payload := <-reloaded:
			root, _ := payload["root"].(string)
			s.logger.Info().Str("root", root).Msg("serving reloaded route tree")

		case payload := <-failed:
			detail, _ := payload["error"].(string)
			s.logger.Warn().Str("error", detail).Msg("route reload rejected, previous tree still active")
		}
	}
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	s.router.Handle("/metrics", telemetry.Handler())

	s.router.Route("/cache/{key}", func(r chi.Router) {
		r.Get("/", s.handleGet)
		r.Put("/", s.handleStore)
		r.Delete("/", s.handleDelete)
		r.Post("/incr", s.handleCounter(routing.OpIncr))
		r.Post("/decr", s.handleCounter(routing.OpDecr))
	})

	s.router.Get("/routes/introspect", s.handleIntrospect)
}
