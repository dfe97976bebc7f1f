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
	"math/rand/v2"
	"slices"
)

// SSASolver is Gillespie's direct method: every reaction event is simulated
// individually. It is exact but slow for large populations.
type SSASolver struct{}

// NewSSASolver creates a direct-method solver.
func NewSSASolver() *SSASolver {
	return &SSASolver{}
}

// Name implements Solver.
func (s *SSASolver) Name() string { return SolverSSA }

// Run implements Solver.
func (s *SSASolver) Run(ctx context.Context, m *Model, rng *rand.Rand) (*Trajectory, error) {
	n, err := compile(m)
	if err != nil {
		return nil, err
	}

	x := slices.Clone(n.initial)
	a := make([]float64, len(n.reactions))
	rec := newRecorder(n)
	t := n.timespan[0]
	rec.record(t, x)

	steps := 0
	for !rec.done() {
		if steps%cancelCheckInterval == 0 {
			if err := checkCanceled(ctx, s.Name(), steps, t); err != nil {
				return nil, err
			}
		}
		a0, err := n.propensities(x, a)
		if err != nil {
			return nil, &SimulationError{Solver: s.Name(), Step: steps, Time: t, Err: err}
		}
		if a0 <= 0 {
			break
		}
		var fired bool
		t, fired = directStep(n, x, a, a0, t, rng, rec)
		if !fired {
			break
		}
		steps++
	}
	rec.fill(x)
	rec.traj.Steps = steps
	return rec.traj, nil
}

// directStep advances x by one exact event starting at time t. Sample times
// passed before the event fires are recorded with the pre-event state. It
// reports false, without firing, when every sample time came first.
func directStep(n *network, x []int64, a []float64, a0, t float64, rng *rand.Rand, rec *recorder) (float64, bool) {
	next := t + rng.ExpFloat64()/a0
	rec.recordBefore(next, x)
	if rec.done() {
		return next, false
	}
	j := selectReaction(a, rng.Float64()*a0)
	n.reactions[j].fire(x, 1)
	return next, true
}

// selectReaction returns the index j with sum(a[:j]) <= r < sum(a[:j+1]).
// Rounding can leave r past the total, in which case the last reaction with a
// positive propensity is chosen.
func selectReaction(a []float64, r float64) int {
	last := 0
	var cum float64
	for j, aj := range a {
		if aj <= 0 {
			continue
		}
		cum += aj
		last = j
		if r < cum {
			return j
		}
	}
	return last
}
