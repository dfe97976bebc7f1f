// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine turns validated API requests into kinetics runs.
//
// # Description
//
// The engine owns request admission (a weighted semaphore bounding concurrent
// simulations), the per-request timeout, the response cache and the
// translation between the wire types in datatypes and the kinetics model.
//
// # Thread Safety
//
// An Engine is safe for concurrent use.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"

	"github.com/AleutianAI/rebirthsim/pkg/telemetry"
	"github.com/AleutianAI/rebirthsim/services/kinetics"
	"github.com/AleutianAI/rebirthsim/services/simulator/cache"
	"github.com/AleutianAI/rebirthsim/services/simulator/datatypes"
	"github.com/AleutianAI/rebirthsim/services/simulator/observability"
)

var tracer = otel.Tracer("rebirthsim.simulator")

// Sentinel errors returned by Simulate. Validation failures wrap
// datatypes.ErrInvalidRequest.
var (
	// ErrBusy indicates no simulation slot freed up before the deadline.
	ErrBusy = errors.New("simulator is busy")

	// ErrTimeout indicates the simulation itself ran past the deadline.
	ErrTimeout = errors.New("simulation timed out")
)

// ResponseCache stores responses of seeded requests.
type ResponseCache interface {
	Get(key cache.Key) (*datatypes.SimulateResponse, bool, error)
	Put(key cache.Key, resp *datatypes.SimulateResponse) error
}

// Options configures an Engine.
type Options struct {
	// DefaultSolver is used when a request names none.
	DefaultSolver string

	// Timeout bounds the wait for a slot plus the simulation.
	Timeout time.Duration

	// MaxConcurrent bounds simulations running at once.
	MaxConcurrent int

	// Workers bounds parallel trajectories within one request. Zero means
	// GOMAXPROCS.
	Workers int

	// Limits bounds what a single request may ask for.
	Limits datatypes.Limits

	// RecoveryThreshold is the damaged cell count below which a run counts
	// as recovered.
	RecoveryThreshold int64

	// Cache is optional. Nil disables caching.
	Cache ResponseCache

	// Metrics defaults to observability.Default().
	Metrics *observability.SimulationMetrics

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultOptions mirrors the defaults of the server configuration.
func DefaultOptions() Options {
	return Options{
		DefaultSolver:     kinetics.SolverTauLeaping,
		Timeout:           30 * time.Second,
		MaxConcurrent:     4,
		Limits:            datatypes.Limits{MaxTrajectories: 32, MaxPopulation: 1e6, MaxRate: 1000},
		RecoveryThreshold: kinetics.DefaultRecoveryThreshold,
	}
}

// Engine runs simulations on behalf of API handlers.
type Engine struct {
	opts    Options
	sem     *semaphore.Weighted
	metrics *observability.SimulationMetrics
	logger  *slog.Logger
}

// New creates an Engine.
func New(opts Options) (*Engine, error) {
	if opts.DefaultSolver == "" {
		opts.DefaultSolver = kinetics.SolverTauLeaping
	}
	if _, err := kinetics.NewSolver(opts.DefaultSolver); err != nil {
		return nil, err
	}
	if opts.Timeout <= 0 {
		return nil, fmt.Errorf("engine timeout must be positive, got %v", opts.Timeout)
	}
	if opts.MaxConcurrent < 1 {
		return nil, fmt.Errorf("engine max concurrent must be at least 1, got %d", opts.MaxConcurrent)
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.Default()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{
		opts:    opts,
		sem:     semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}, nil
}

// Simulate validates req, runs it (or serves it from the cache) and returns
// the response body.
//
// # Description
//
// Unset parameters and initial states fall back to the model defaults. An
// unseeded request gets a random seed, which is echoed in the response; only
// seeded requests are cached. With more than one trajectory the element-wise
// mean trajectory is returned, rounded to whole counts.
//
// # Outputs
//
//   - *datatypes.SimulateResponse: Success body.
//   - error: Wraps datatypes.ErrInvalidRequest, ErrBusy, ErrTimeout, or a
//     kinetics error.
func (e *Engine) Simulate(ctx context.Context, req *datatypes.SimulateRequest) (*datatypes.SimulateResponse, error) {
	ctx, span := tracer.Start(ctx, "engine.Simulate")
	defer span.End()

	if err := req.Validate(e.opts.Limits); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	solverName := req.Solver
	if solverName == "" {
		solverName = e.opts.DefaultSolver
	}
	trajectories := req.Trajectories
	if trajectories == 0 {
		trajectories = 1
	}
	seeded := req.Seed != nil
	var seed uint64
	if seeded {
		seed = *req.Seed
	} else {
		seed = rand.Uint64N(datatypes.MaxDrawnSeed)
	}
	params, state := req.Resolve()

	span.SetAttributes(
		attribute.String("simulation.solver", solverName),
		attribute.Int("simulation.trajectories", trajectories),
		attribute.Bool("simulation.seeded", seeded),
	)

	key := cache.Key{
		Parameters:        params,
		InitialStates:     state,
		Solver:            solverName,
		Seed:              seed,
		Trajectories:      trajectories,
		RecoveryThreshold: e.opts.RecoveryThreshold,
	}
	if seeded && e.opts.Cache != nil {
		cached, ok, err := e.opts.Cache.Get(key)
		if err != nil {
			e.logger.Warn("cache lookup failed", "error", err)
		}
		e.metrics.RecordCache(ok)
		if ok {
			cached.Cached = true
			span.SetAttributes(attribute.Bool("simulation.cached", true))
			telemetry.SetSpanOK(span)
			return cached, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		err = e.admissionError(ctx, err)
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer e.sem.Release(1)

	e.metrics.SimulationStarted()
	defer e.metrics.SimulationEnded()

	start := time.Now()
	resp, err := e.run(ctx, solverName, params, state, seed, trajectories)
	elapsed := time.Since(start)
	e.metrics.RecordRequest(solverName, elapsed.Seconds(), err == nil)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %v: %w", ErrTimeout, e.opts.Timeout, err)
		}
		telemetry.RecordError(span, err)
		return nil, err
	}

	if seeded && e.opts.Cache != nil {
		if err := e.opts.Cache.Put(key, resp); err != nil {
			e.logger.Warn("cache store failed", "error", err)
		}
	}

	e.logger.Info("simulation complete",
		"run_id", resp.RunID,
		"solver", solverName,
		"seed", seed,
		"trajectories", trajectories,
		"duration_ms", elapsed.Milliseconds(),
		"recovered", resp.Summary.Recovered,
	)
	telemetry.SetSpanOK(span)
	return resp, nil
}

// admissionError classifies a failed semaphore acquire.
func (e *Engine) admissionError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: no slot free within %v", ErrBusy, e.opts.Timeout)
	}
	return fmt.Errorf("waiting for a simulation slot: %w", err)
}

func (e *Engine) run(ctx context.Context, solverName string, params kinetics.Parameters, state kinetics.InitialState, seed uint64, trajectories int) (*datatypes.SimulateResponse, error) {
	solver, err := kinetics.NewSolver(solverName)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", datatypes.ErrInvalidRequest, err)
	}
	model, err := kinetics.NewCreationRebirthModel(params, state)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", datatypes.ErrInvalidRequest, err)
	}

	traj, err := kinetics.Simulate(ctx, solver, model, kinetics.EnsembleOptions{
		Trajectories: trajectories,
		Seed:         seed,
		Workers:      e.opts.Workers,
	})
	if err != nil {
		return nil, err
	}

	samples, err := Samples(traj)
	if err != nil {
		return nil, err
	}
	summary, err := kinetics.Summarize(traj, e.opts.RecoveryThreshold)
	if err != nil {
		return nil, err
	}

	return &datatypes.SimulateResponse{
		Success: true,
		Data:    samples,
		Summary: datatypes.Summary{
			FinalHealthy: summary.FinalHealthy,
			FinalDamaged: summary.FinalDamaged,
			StressLevel:  summary.StressLevel,
			Recovered:    summary.Recovered,
		},
		RunID:        uuid.NewString(),
		Solver:       solverName,
		Seed:         seed,
		Trajectories: trajectories,
	}, nil
}

// Samples converts a Creation Rebirth trajectory into wire samples.
func Samples(traj *kinetics.Trajectory) ([]datatypes.Sample, error) {
	series := make(map[string][]int64, 5)
	for _, name := range []string{
		kinetics.ChakraReserves,
		kinetics.ActiveEnzymes,
		kinetics.DamagedCells,
		kinetics.HealthyCells,
		kinetics.TelomereStress,
	} {
		s, err := traj.Series(name)
		if err != nil {
			return nil, err
		}
		series[name] = s
	}

	out := make([]datatypes.Sample, traj.Len())
	for i, t := range traj.Times {
		out[i] = datatypes.Sample{
			Index:          i,
			Time:           t,
			Chakra:         series[kinetics.ChakraReserves][i],
			ActiveEnzymes:  series[kinetics.ActiveEnzymes][i],
			DamagedCells:   series[kinetics.DamagedCells][i],
			HealthyCells:   series[kinetics.HealthyCells][i],
			TelomereStress: series[kinetics.TelomereStress][i],
		}
	}
	return out, nil
}

// Defaults describes the model defaults and the limits this engine enforces.
func (e *Engine) Defaults() datatypes.DefaultsResponse {
	return datatypes.DefaultsResponse{
		Parameters:        kinetics.DefaultParameters(),
		InitialStates:     kinetics.DefaultInitialState(),
		Timespan:          kinetics.DefaultTimespan(),
		RecoveryThreshold: e.opts.RecoveryThreshold,
		Solvers:           kinetics.SolverNames(),
		DefaultSolver:     e.opts.DefaultSolver,
		MaxTrajectories:   e.opts.Limits.MaxTrajectories,
		MaxRate:           e.opts.Limits.MaxRate,
		MaxPopulation:     e.opts.Limits.MaxPopulation,
	}
}
