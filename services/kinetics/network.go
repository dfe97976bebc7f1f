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
	"math"
	"sort"
)

// term is one species entry of a reaction: a species index and a count.
type term struct {
	idx  int
	coef int64
}

// compiledReaction is a reaction resolved against species indices.
type compiledReaction struct {
	rate      float64
	reactants []term
	// change is the net state change per firing, zero entries omitted.
	change []term
}

// network is the index-based form of a Model used by the solvers.
type network struct {
	species   []string
	initial   []int64
	reactions []compiledReaction
	timespan  []float64
}

// compile resolves a validated model into a network.
func compile(m *Model) (*network, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	n := &network{
		species:  m.SpeciesNames(),
		initial:  make([]int64, len(m.species)),
		timespan: m.Timespan(),
	}
	for i, s := range m.species {
		n.initial[i] = s.Initial
	}

	for _, r := range m.reactions {
		rate, _ := m.Parameter(r.Rate)
		cr := compiledReaction{rate: rate}

		delta := make(map[int]int64)
		for _, name := range sortedKeys(r.Reactants) {
			idx := m.SpeciesIndex(name)
			c := int64(r.Reactants[name])
			cr.reactants = append(cr.reactants, term{idx: idx, coef: c})
			delta[idx] -= c
		}
		for _, name := range sortedKeys(r.Products) {
			delta[m.SpeciesIndex(name)] += int64(r.Products[name])
		}
		idxs := make([]int, 0, len(delta))
		for idx, d := range delta {
			if d != 0 {
				idxs = append(idxs, idx)
			}
		}
		sort.Ints(idxs)
		for _, idx := range idxs {
			cr.change = append(cr.change, term{idx: idx, coef: delta[idx]})
		}
		n.reactions = append(n.reactions, cr)
	}
	return n, nil
}

// propensities fills a with the mass-action propensity of every reaction
// for state x and returns their sum. The sum must be finite for the solvers
// to pick a step or a reaction, so overflow is ErrNonFinitePropensity.
func (n *network) propensities(x []int64, a []float64) (float64, error) {
	var total float64
	for j := range n.reactions {
		a[j] = n.reactions[j].propensity(x)
		total += a[j]
	}
	if math.IsNaN(total) || math.IsInf(total, 0) {
		return 0, ErrNonFinitePropensity
	}
	return total, nil
}

// propensity is k * prod C(x_i, c_i) over the reactants, which reduces
// to k*x, k*x*y and k*x*(x-1)/2 for the usual first and second order cases.
func (r *compiledReaction) propensity(x []int64) float64 {
	if r.rate == 0 {
		return 0
	}
	a := r.rate
	for _, t := range r.reactants {
		pop := x[t.idx]
		if pop < t.coef {
			return 0
		}
		switch t.coef {
		case 1:
			a *= float64(pop)
		case 2:
			a *= float64(pop) * float64(pop-1) / 2
		default:
			a *= binomial(pop, t.coef)
		}
	}
	return a
}

// fire applies count firings of the reaction to x.
func (r *compiledReaction) fire(x []int64, count int64) {
	for _, t := range r.change {
		x[t.idx] += t.coef * count
	}
}

func binomial(n, k int64) float64 {
	if k < 0 || k > n {
		return 0
	}
	lg := func(v int64) float64 {
		l, _ := math.Lgamma(float64(v) + 1)
		return l
	}
	return math.Round(math.Exp(lg(n) - lg(k) - lg(n-k)))
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
