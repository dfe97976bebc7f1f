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
	"fmt"
	"math/rand/v2"
)

// Solver names accepted by NewSolver.
const (
	SolverTauLeaping = "tau_leaping"
	SolverSSA        = "ssa"
)

// cancelCheckInterval is how many solver iterations run between context checks.
const cancelCheckInterval = 256

// Solver produces one stochastic trajectory of a model.
type Solver interface {
	// Name returns the registry name of the solver.
	Name() string

	// Run simulates m from its initial state over its timespan, drawing all
	// randomness from rng. It returns ErrCanceled (wrapped) if ctx ends first.
	Run(ctx context.Context, m *Model, rng *rand.Rand) (*Trajectory, error)
}

// SolverNames lists every registered solver, default first.
func SolverNames() []string {
	return []string{SolverTauLeaping, SolverSSA}
}

// NewSolver returns the solver registered under name. An empty name selects
// tau-leaping.
func NewSolver(name string) (Solver, error) {
	switch name {
	case "", SolverTauLeaping:
		return NewTauLeapingSolver(), nil
	case SolverSSA:
		return NewSSASolver(), nil
	default:
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownSolver)
	}
}

// NewRand returns a deterministic generator for seed and stream.
func NewRand(seed, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, stream))
}

func checkCanceled(ctx context.Context, solver string, step int, t float64) error {
	if err := ctx.Err(); err != nil {
		return &SimulationError{
			Solver: solver,
			Step:   step,
			Time:   t,
			Err:    fmt.Errorf("%w: %w", ErrCanceled, err),
		}
	}
	return nil
}
