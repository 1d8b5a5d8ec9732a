// Package server is the HTTP transport for the browser. It maps requests onto
// the resolver, writes rendered pages, and serves the handful of routes that
// live outside the resolver: static assets, health and metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"metaexplorer/internal/config"
	"metaexplorer/internal/render"
	"metaexplorer/internal/router"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Pinger reports whether the backing stores are reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wires the resolver and renderer to HTTP.
type Server struct {
	config   *config.Config
	store    Pinger
	resolver *router.Resolver
	renderer *render.Renderer
	assets   *assetStore
	logger   *logrus.Logger
	watcher  *fsnotify.Watcher
	started  time.Time
}

// New creates a server. Static assets are loaded eagerly so a missing or
// unreadable asset directory is reported at startup.
func New(cfg *config.Config, store Pinger, resolver *router.Resolver, renderer *render.Renderer, logger *logrus.Logger) (*Server, error) {
	if logger == nil {
		logger = logrus.New()
	}

	assets, err := newAssetStore(cfg.Server.StaticDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load static assets: %w", err)
	}

	return &Server{
		config:   cfg,
		store:    store,
		resolver: resolver,
		renderer: renderer,
		assets:   assets,
		logger:   logger,
		started:  time.Now(),
	}, nil
}

// Handler builds the routing tree. Anything not claimed by an operational
// route falls through to the resolver.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(s.requestIDMiddleware)
	r.Use(s.panicRecoveryMiddleware)
	r.Use(s.requestLoggingMiddleware)
	r.Use(prometheusMiddleware)
	if limit := s.config.Server.RateLimitPerMinute; limit > 0 {
		r.Use(httprate.LimitByIP(limit, time.Minute))
	}
	r.Use(chimiddleware.GetHead)

	for name := range assetTypes {
		r.Get("/"+name, s.assets.handler(name))
	}
	r.Get("/healthz", s.handleHealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.NotFound(s.handleResolve)
	r.MethodNotAllowed(s.handleResolve)

	return r
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.GetAddress())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.GetAddress(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully within the configured timeout. The static watcher, when
// enabled, runs for the same lifetime.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	read, write, shutdown := s.config.Server.Timeouts()
	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  read,
		WriteTimeout: write,
	}

	g, ctx := errgroup.WithContext(ctx)

	if s.config.Server.WatchStatic {
		if err := s.startStaticWatcher(); err != nil {
			s.logger.WithError(err).Warn("Could not start static asset watcher")
		} else {
			g.Go(func() error {
				s.watchStatic(ctx)
				return nil
			})
		}
	}

	g.Go(func() error {
		s.logger.WithField("address", ln.Addr().String()).Info("Metaexplorer listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdown)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		s.logger.Info("Server shutdown complete")
		return nil
	})

	return g.Wait()
}
