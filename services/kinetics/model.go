// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package kinetics models well-mixed chemical reaction networks and
// simulates them stochastically.
//
// # Description
//
// A Model is a set of species with integer populations, named rate
// parameters, mass-action reactions and a timespan of sample points.
// Solvers (Gillespie direct method, Cao-Gillespie-Petzold tau-leaping)
// produce a Trajectory holding the population of every species at every
// sample time.
//
// # Thread Safety
//
// A Model is immutable once validated and may be shared between goroutines.
// Every solver run compiles its own private state, so concurrent runs over
// the same Model are safe as long as each has its own *rand.Rand.
//
// # Determinism
//
// Solvers draw all randomness from the *rand.Rand they are handed, so a
// fixed seed always produces the same trajectory.
package kinetics

import (
	"fmt"
	"math"
	"slices"
)

// Species is a tracked population.
type Species struct {
	Name    string
	Initial int64
}

// Parameter is a named rate constant.
type Parameter struct {
	Name  string
	Value float64
}

// Reaction is a mass-action reaction. Reactants and Products map species
// names to stoichiometric coefficients; Rate names a model parameter.
type Reaction struct {
	Name      string
	Reactants map[string]int
	Products  map[string]int
	Rate      string
}

// Model is a reaction network plus the times at which it is sampled.
type Model struct {
	Name string

	species   []Species
	params    []Parameter
	reactions []Reaction
	timespan  []float64
}

// NewModel creates an empty model.
func NewModel(name string) *Model {
	return &Model{Name: name}
}

// AddParameter registers rate constants. A parameter with an existing name
// is replaced in place.
func (m *Model) AddParameter(params ...Parameter) *Model {
	for _, p := range params {
		if i := m.paramIndex(p.Name); i >= 0 {
			m.params[i] = p
			continue
		}
		m.params = append(m.params, p)
	}
	return m
}

// AddSpecies registers species. A species with an existing name is replaced
// in place.
func (m *Model) AddSpecies(species ...Species) *Model {
	for _, s := range species {
		if i := m.SpeciesIndex(s.Name); i >= 0 {
			m.species[i] = s
			continue
		}
		m.species = append(m.species, s)
	}
	return m
}

// AddReaction registers reactions in order.
func (m *Model) AddReaction(reactions ...Reaction) *Model {
	m.reactions = append(m.reactions, reactions...)
	return m
}

// SetTimespan sets the sample times.
func (m *Model) SetTimespan(times []float64) *Model {
	m.timespan = slices.Clone(times)
	return m
}

// Species returns a copy of the species in registration order.
func (m *Model) Species() []Species { return slices.Clone(m.species) }

// Parameters returns a copy of the parameters in registration order.
func (m *Model) Parameters() []Parameter { return slices.Clone(m.params) }

// Reactions returns a copy of the reactions in registration order.
func (m *Model) Reactions() []Reaction { return slices.Clone(m.reactions) }

// Timespan returns a copy of the sample times.
func (m *Model) Timespan() []float64 { return slices.Clone(m.timespan) }

// SpeciesNames returns the species names in registration order.
func (m *Model) SpeciesNames() []string {
	names := make([]string, len(m.species))
	for i, s := range m.species {
		names[i] = s.Name
	}
	return names
}

// SpeciesIndex returns the position of the named species, or -1.
func (m *Model) SpeciesIndex(name string) int {
	for i, s := range m.species {
		if s.Name == name {
			return i
		}
	}
	return -1
}

// Parameter returns the value of the named parameter.
func (m *Model) Parameter(name string) (float64, bool) {
	if i := m.paramIndex(name); i >= 0 {
		return m.params[i].Value, true
	}
	return 0, false
}

func (m *Model) paramIndex(name string) int {
	for i, p := range m.params {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// Validate checks that every rate is a finite non-negative number, every
// initial population is non-negative, every reaction references known
// species and parameters, and the timespan is usable.
func (m *Model) Validate() error {
	for _, p := range m.params {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) || p.Value < 0 {
			return fmt.Errorf("parameter %q = %v: %w", p.Name, p.Value, ErrNegativeRate)
		}
	}
	for _, s := range m.species {
		if s.Initial < 0 {
			return fmt.Errorf("species %q = %d: %w", s.Name, s.Initial, ErrNegativePopulation)
		}
	}
	for _, r := range m.reactions {
		if m.paramIndex(r.Rate) < 0 {
			return fmt.Errorf("reaction %q rate %q: %w", r.Name, r.Rate, ErrUnknownParameter)
		}
		for name := range r.Reactants {
			if m.SpeciesIndex(name) < 0 {
				return fmt.Errorf("reaction %q reactant %q: %w", r.Name, name, ErrUnknownSpecies)
			}
		}
		for name := range r.Products {
			if m.SpeciesIndex(name) < 0 {
				return fmt.Errorf("reaction %q product %q: %w", r.Name, name, ErrUnknownSpecies)
			}
		}
	}
	if len(m.timespan) == 0 || m.timespan[0] < 0 {
		return ErrEmptyTimespan
	}
	for i := 1; i < len(m.timespan); i++ {
		if m.timespan[i] <= m.timespan[i-1] {
			return ErrEmptyTimespan
		}
	}
	return nil
}

// Linspace returns n evenly spaced values over [start, stop].
func Linspace(start, stop float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{start}
	}
	out := make([]float64, n)
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	out[n-1] = stop
	return out
}
