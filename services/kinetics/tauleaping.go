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
	"math"
	"math/rand/v2"
	"slices"
)

// Tau-leaping defaults.
const (
	DefaultEpsilon       = 0.03
	DefaultSSAThreshold  = 10.0
	DefaultMaxRejections = 64
)

// TauLeapingSolver approximates the SSA by firing a Poisson-distributed number
// of every reaction per leap.
//
// # Description
//
// Leap size follows Cao, Gillespie and Petzold (2006): tau is the largest
// step over which no propensity is expected to change by more than Epsilon
// relative to its current value. Leaps are clamped so they never cross a
// sample time, which makes every recorded sample an exact state of the run.
//
// # Limitations
//
//   - A leap that would drive any population negative is discarded and
//     retried with half the tau. After MaxRejections consecutive failures the
//     run stops with ErrLeapRejected.
//   - When the selected tau is shorter than SSAThreshold mean SSA steps the
//     solver takes a single exact SSA step instead, since leaping would cost
//     more than it saves.
type TauLeapingSolver struct {
	Epsilon       float64
	SSAThreshold  float64
	MaxRejections int
}

// NewTauLeapingSolver creates a solver with the default tuning.
func NewTauLeapingSolver() *TauLeapingSolver {
	return &TauLeapingSolver{
		Epsilon:       DefaultEpsilon,
		SSAThreshold:  DefaultSSAThreshold,
		MaxRejections: DefaultMaxRejections,
	}
}

// Name implements Solver.
func (s *TauLeapingSolver) Name() string { return SolverTauLeaping }

// Run implements Solver.
func (s *TauLeapingSolver) Run(ctx context.Context, m *Model, rng *rand.Rand) (*Trajectory, error) {
	n, err := compile(m)
	if err != nil {
		return nil, err
	}
	sel := newTauSelector(n, s.Epsilon)

	x := slices.Clone(n.initial)
	cand := make([]int64, len(x))
	a := make([]float64, len(n.reactions))
	k := make([]int64, len(n.reactions))
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

		tau := sel.tau(x, a)
		if tau < s.SSAThreshold/a0 {
			var fired bool
			t, fired = directStep(n, x, a, a0, t, rng, rec)
			if !fired {
				break
			}
			steps++
			continue
		}

		target := rec.nextTime()
		clamped := false
		if t+tau >= target {
			tau = target - t
			clamped = true
		}

		rejections := 0
		for {
			copy(cand, x)
			for j := range n.reactions {
				k[j] = poisson(rng, a[j]*tau)
				if k[j] > 0 {
					n.reactions[j].fire(cand, k[j])
				}
			}
			if !slices.ContainsFunc(cand, func(v int64) bool { return v < 0 }) {
				break
			}
			rejections++
			if rejections > s.MaxRejections {
				return nil, &SimulationError{Solver: s.Name(), Step: steps, Time: t, Err: ErrLeapRejected}
			}
			tau /= 2
			clamped = false
		}

		copy(x, cand)
		if clamped {
			t = target
		} else {
			t += tau
		}
		steps++
		rec.record(t, x)
	}
	rec.fill(x)
	rec.traj.Steps = steps
	return rec.traj, nil
}

// tauSelector holds the per-species data the Cao-Gillespie-Petzold bound needs.
type tauSelector struct {
	n   *network
	eps float64

	// reactant lists the species that appear on the left of some reaction.
	reactant []int
	// hor and hcoef are, per species, the highest order of reaction it is a
	// reactant in and its largest coefficient within reactions of that order.
	hor   []int64
	hcoef []int64

	mu     []float64
	sigma2 []float64
}

func newTauSelector(n *network, eps float64) *tauSelector {
	s := &tauSelector{
		n:      n,
		eps:    eps,
		hor:    make([]int64, len(n.species)),
		hcoef:  make([]int64, len(n.species)),
		mu:     make([]float64, len(n.species)),
		sigma2: make([]float64, len(n.species)),
	}
	for _, r := range n.reactions {
		var order int64
		for _, t := range r.reactants {
			order += t.coef
		}
		for _, t := range r.reactants {
			switch {
			case order > s.hor[t.idx]:
				s.hor[t.idx] = order
				s.hcoef[t.idx] = t.coef
			case order == s.hor[t.idx] && t.coef > s.hcoef[t.idx]:
				s.hcoef[t.idx] = t.coef
			}
		}
	}
	for i, o := range s.hor {
		if o > 0 {
			s.reactant = append(s.reactant, i)
		}
	}
	return s
}

// tau returns the largest leap satisfying the relative propensity change
// bound for state x and propensities a. It is +Inf when nothing constrains it.
func (s *tauSelector) tau(x []int64, a []float64) float64 {
	clear(s.mu)
	clear(s.sigma2)
	for j, r := range s.n.reactions {
		if a[j] == 0 {
			continue
		}
		for _, c := range r.change {
			v := float64(c.coef)
			s.mu[c.idx] += v * a[j]
			s.sigma2[c.idx] += v * v * a[j]
		}
	}

	tau := math.Inf(1)
	for _, i := range s.reactant {
		bound := math.Max(s.eps*float64(x[i])/s.g(i, x[i]), 1)
		if mu := math.Abs(s.mu[i]); mu > 0 {
			tau = math.Min(tau, bound/mu)
		}
		if s.sigma2[i] > 0 {
			tau = math.Min(tau, bound*bound/s.sigma2[i])
		}
	}
	return tau
}

// g is the CGP order factor for species i at population xi.
func (s *tauSelector) g(i int, xi int64) float64 {
	order, coef := s.hor[i], s.hcoef[i]
	// Populations this small make the correction terms blow up; the plain
	// order is the conventional fallback.
	if xi <= coef {
		return float64(order)
	}
	x := float64(xi)
	switch {
	case order == 2 && coef == 2:
		return 2 + 1/(x-1)
	case order == 3 && coef == 2:
		return 1.5 * (2 + 1/(x-1))
	case order == 3 && coef == 3:
		return 3 + 1/(x-1) + 2/(x-2)
	default:
		return float64(order)
	}
}
