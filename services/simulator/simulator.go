// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package simulator provides the Creation Rebirth simulation HTTP service.
//
// # Description
//
// The simulator exposes the stochastic Creation Rebirth model over a small
// JSON API consumed by the dashboard and by browser clients.
//
// # Architecture
//
//	┌───────────────────────────────────────────────┐
//	│                 Gin Router                    │
//	│  otelgin ─► RequestID ─► CORS ─► RateLimit    │
//	└──────────────────────┬────────────────────────┘
//	                       │
//	                       ▼
//	┌───────────────────────────────────────────────┐
//	│                   Engine                      │
//	│  validate ─► cache ─► semaphore ─► kinetics   │
//	└───────────────────────────────────────────────┘
//
// # Thread Safety
//
// The Service is safe for concurrent requests. Run is called once.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/rebirthsim/pkg/config"
	"github.com/AleutianAI/rebirthsim/services/simulator/cache"
	"github.com/AleutianAI/rebirthsim/services/simulator/datatypes"
	"github.com/AleutianAI/rebirthsim/services/simulator/engine"
	"github.com/AleutianAI/rebirthsim/services/simulator/middleware"
	"github.com/AleutianAI/rebirthsim/services/simulator/observability"
	"github.com/AleutianAI/rebirthsim/services/simulator/routes"
)

// Service is the simulator HTTP service.
type Service interface {
	// Run serves HTTP until ctx is canceled, then shuts down gracefully
	// within the configured shutdown timeout. A canceled ctx is a clean
	// exit and returns nil.
	Run(ctx context.Context) error

	// Router returns the underlying Gin engine for testing.
	Router() *gin.Engine

	// Close releases the cache. Run calls it on exit.
	Close() error
}

// Options carries the parts of the service that are not configuration.
type Options struct {
	// Version is reported by /api/health.
	Version string

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Metrics defaults to observability.Default().
	Metrics *observability.SimulationMetrics
}

type service struct {
	cfg    config.RebirthConfig
	router *gin.Engine
	engine *engine.Engine
	cache  *cache.Cache
	logger *slog.Logger
}

// New creates a simulator Service.
//
// # Description
//
// New wires the components in order:
//  1. Opens the response cache, when enabled
//  2. Creates the engine with the simulation limits
//  3. Sets up the Gin router, middleware and routes
//
// Telemetry providers are process-wide and are initialized by the caller.
//
// # Outputs
//
//   - Service: Ready to Run.
//   - error: Non-nil if the cache or engine cannot be created.
func New(cfg config.RebirthConfig, opts Options) (Service, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.Default()
	}

	s := &service{cfg: cfg, logger: opts.Logger}

	var respCache engine.ResponseCache
	if cfg.Cache.Enabled {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.TTL = cfg.Cache.TTL
		cacheCfg.Dir = cfg.Cache.Dir
		cacheCfg.Logger = opts.Logger.With("component", "cache")
		c, err := cache.Open(cacheCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open response cache: %w", err)
		}
		s.cache = c
		respCache = c
	}

	engOpts := EngineOptions(cfg)
	engOpts.Cache = respCache
	engOpts.Metrics = opts.Metrics
	engOpts.Logger = opts.Logger
	eng, err := engine.New(engOpts)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	s.engine = eng

	if cfg.Server.GinMode != "" {
		gin.SetMode(cfg.Server.GinMode)
	}
	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	if gin.Mode() == gin.DebugMode {
		s.router.Use(gin.Logger())
	}

	var limiter *middleware.RateLimiter
	if cfg.Server.RateLimit > 0 {
		limiter = middleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
	}
	routes.SetupRoutes(s.router, routes.Deps{
		Simulator:   eng,
		Metrics:     opts.Metrics,
		RateLimiter: limiter,
		CORSOrigins: cfg.Server.CORSOrigins,
		Version:     opts.Version,
	})

	return s, nil
}

// EngineOptions maps the simulation and admission settings of cfg onto
// engine options. Cache, Metrics and Logger are left for the caller.
func EngineOptions(cfg config.RebirthConfig) engine.Options {
	return engine.Options{
		DefaultSolver: cfg.Simulation.Solver,
		Timeout:       cfg.Simulation.Timeout,
		MaxConcurrent: cfg.Server.MaxConcurrent,
		Workers:       cfg.Simulation.Workers,
		Limits: datatypes.Limits{
			MaxTrajectories: cfg.Simulation.MaxTrajectories,
			MaxPopulation:   cfg.Simulation.MaxPopulation,
			MaxRate:         cfg.Simulation.MaxRate,
		},
		RecoveryThreshold: cfg.Simulation.RecoveryThreshold,
	}
}

// Run serves until ctx is canceled.
func (s *service) Run(ctx context.Context) error {
	defer s.Close()

	addr := net.JoinHostPort(s.cfg.Server.Host, strconv.Itoa(s.cfg.Server.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting simulator server", "addr", addr, "solver", s.cfg.Simulation.Solver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("simulator server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down simulator server")
	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// Close releases the cache.
func (s *service) Close() error {
	if s.cache != nil {
		return s.cache.Close()
	}
	return nil
}

var _ Service = (*service)(nil)
