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
	"errors"
	"fmt"
)

// Sentinel errors for model construction and simulation.
var (
	// ErrNegativeRate indicates a rate constant below zero, NaN or infinite.
	ErrNegativeRate = errors.New("kinetics: rate constant must be a finite non-negative number")

	// ErrNegativePopulation indicates an initial species count below zero.
	ErrNegativePopulation = errors.New("kinetics: population count must be a finite non-negative number")

	// ErrUnknownSpecies indicates a reaction or lookup referencing a species the model does not define.
	ErrUnknownSpecies = errors.New("kinetics: unknown species")

	// ErrUnknownParameter indicates a reaction rate referencing an undefined parameter.
	ErrUnknownParameter = errors.New("kinetics: unknown parameter")

	// ErrEmptyTimespan indicates the model has no sample times, or they are not increasing.
	ErrEmptyTimespan = errors.New("kinetics: timespan must be non-empty, non-negative and strictly increasing")

	// ErrUnknownSolver indicates a solver name that is not registered.
	ErrUnknownSolver = errors.New("kinetics: unknown solver")

	// ErrEmptyEnsemble indicates an ensemble request for zero trajectories.
	ErrEmptyEnsemble = errors.New("kinetics: ensemble needs at least one trajectory")

	// ErrCanceled indicates the simulation was interrupted by its context.
	ErrCanceled = errors.New("kinetics: simulation canceled")

	// ErrLeapRejected indicates tau-leaping could not find a leap that keeps
	// every population non-negative.
	ErrLeapRejected = errors.New("kinetics: leap rejected too many times")

	// ErrNonFinitePropensity indicates the total reaction propensity
	// overflowed, usually from a rate constant too large for the populations.
	ErrNonFinitePropensity = errors.New("kinetics: total propensity is not finite")
)

// SimulationError wraps a failure with the solver position at which it occurred.
type SimulationError struct {
	Solver string
	Step   int
	Time   float64
	Err    error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("%s: step %d at t=%.4f: %v", e.Solver, e.Step, e.Time, e.Err)
}

func (e *SimulationError) Unwrap() error {
	return e.Err
}
