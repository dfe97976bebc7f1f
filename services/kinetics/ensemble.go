// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package kinetics

import (
	"context"
	"runtime"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// EnsembleOptions controls RunEnsemble.
type EnsembleOptions struct {
	// Trajectories is the number of independent runs. Must be at least 1.
	Trajectories int

	// Seed is the base seed. Trajectory i draws from stream i of it.
	Seed uint64

	// Workers bounds parallel runs. Zero means GOMAXPROCS.
	Workers int
}

// RunEnsemble simulates opts.Trajectories independent trajectories of m in
// parallel and returns them in stream order.
//
// The result for a given seed does not depend on Workers or on scheduling.
// The first failing run cancels the rest and its error is returned.
func RunEnsemble(ctx context.Context, solver Solver, m *Model, opts EnsembleOptions) ([]*Trajectory, error) {
	if opts.Trajectories < 1 {
		return nil, ErrEmptyEnsemble
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	ctx, span := startEnsembleSpan(ctx, solver.Name(), m.Name, opts.Trajectories)
	defer span.End()

	out := make([]*Trajectory, opts.Trajectories)
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range out {
		g.Go(func() error {
			traj, err := solver.Run(gCtx, m, NewRand(opts.Seed, uint64(i)))
			if err != nil {
				return err
			}
			recordRun(gCtx, solver.Name(), traj.Steps)
			out[i] = traj
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	steps := 0
	for _, t := range out {
		steps += t.Steps
	}
	span.SetAttributes(attribute.Int("kinetics.steps", steps))
	return out, nil
}

// Simulate runs an ensemble and collapses it to its mean trajectory. A single
// trajectory is returned as is.
func Simulate(ctx context.Context, solver Solver, m *Model, opts EnsembleOptions) (*Trajectory, error) {
	trajs, err := RunEnsemble(ctx, solver, m, opts)
	if err != nil {
		return nil, err
	}
	return MeanTrajectory(trajs)
}
