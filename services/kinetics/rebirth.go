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
	"fmt"
	"math"
)

// CreationRebirthModelName is the name of the model built by NewCreationRebirthModel.
const CreationRebirthModelName = "Creation_Rebirth_Cellular_Kinetics"

// Species of the Creation Rebirth model.
const (
	ChakraReserves = "Chakra_Reserves"
	ActiveEnzymes  = "Active_Enzymes"
	DamagedCells   = "Damaged_Cells"
	HealthyCells   = "Healthy_Cells"
	TelomereStress = "Telomere_Stress"
)

// Rate parameters of the Creation Rebirth model.
const (
	KActivation = "k_activation"
	KHealing    = "k_healing"
	KStress     = "k_stress"
	KDecay      = "k_decay"
)

// Reactions of the Creation Rebirth model.
const (
	ReactionActivation   = "Byakugou_Activation"
	ReactionRegeneration = "Mitotic_Regeneration"
	ReactionDissipation  = "Chakra_Dissipation"
)

// Timespan of the Creation Rebirth model: 101 samples over [0, 50].
const (
	TimespanEnd    = 50.0
	TimespanPoints = 101
)

// Parameters are the rate constants of the Creation Rebirth model.
//
// KStress is registered on the model but no reaction consumes it; stress
// accrues one unit per regeneration event regardless of its value.
type Parameters struct {
	KActivation float64 `json:"k_activation" yaml:"k_activation"`
	KHealing    float64 `json:"k_healing" yaml:"k_healing"`
	KStress     float64 `json:"k_stress" yaml:"k_stress"`
	KDecay      float64 `json:"k_decay" yaml:"k_decay"`
}

// DefaultParameters returns the stock rate constants.
func DefaultParameters() Parameters {
	return Parameters{
		KActivation: 0.5,
		KHealing:    2.0,
		KStress:     0.1,
		KDecay:      0.3,
	}
}

// InitialState is the starting population of each species. Values are real
// so that they can come straight from a slider; they are truncated toward
// zero when the model is built.
type InitialState struct {
	ChakraReserves float64 `json:"chakra_reserves" yaml:"chakra_reserves"`
	ActiveEnzymes  float64 `json:"active_enzymes" yaml:"active_enzymes"`
	DamagedCells   float64 `json:"damaged_cells" yaml:"damaged_cells"`
	HealthyCells   float64 `json:"healthy_cells" yaml:"healthy_cells"`
	TelomereStress float64 `json:"telomere_stress" yaml:"telomere_stress"`
}

// DefaultInitialState returns the stock starting populations.
func DefaultInitialState() InitialState {
	return InitialState{
		ChakraReserves: 1000,
		ActiveEnzymes:  0,
		DamagedCells:   500,
		HealthyCells:   500,
		TelomereStress: 0,
	}
}

// DefaultTimespan returns the model's sample times.
func DefaultTimespan() []float64 {
	return Linspace(0, TimespanEnd, TimespanPoints)
}

// NewCreationRebirthModel builds the three-reaction Creation Rebirth network:
//
//	Byakugou_Activation:  Chakra_Reserves -> Active_Enzymes                     (k_activation)
//	Mitotic_Regeneration: Damaged_Cells + Active_Enzymes
//	                        -> Healthy_Cells + Active_Enzymes + Telomere_Stress  (k_healing)
//	Chakra_Dissipation:   Active_Enzymes -> (nothing)                           (k_decay)
//
// The model is validated before it is returned.
func NewCreationRebirthModel(p Parameters, s InitialState) (*Model, error) {
	counts := []struct {
		name  string
		value float64
	}{
		{ChakraReserves, s.ChakraReserves},
		{ActiveEnzymes, s.ActiveEnzymes},
		{DamagedCells, s.DamagedCells},
		{HealthyCells, s.HealthyCells},
		{TelomereStress, s.TelomereStress},
	}

	m := NewModel(CreationRebirthModelName).AddParameter(
		Parameter{Name: KActivation, Value: p.KActivation},
		Parameter{Name: KHealing, Value: p.KHealing},
		Parameter{Name: KStress, Value: p.KStress},
		Parameter{Name: KDecay, Value: p.KDecay},
	)
	for _, c := range counts {
		if math.IsNaN(c.value) || math.IsInf(c.value, 0) || c.value < 0 {
			return nil, fmt.Errorf("species %q = %v: %w", c.name, c.value, ErrNegativePopulation)
		}
		m.AddSpecies(Species{Name: c.name, Initial: int64(c.value)})
	}

	m.AddReaction(
		Reaction{
			Name:      ReactionActivation,
			Reactants: map[string]int{ChakraReserves: 1},
			Products:  map[string]int{ActiveEnzymes: 1},
			Rate:      KActivation,
		},
		Reaction{
			Name:      ReactionRegeneration,
			Reactants: map[string]int{DamagedCells: 1, ActiveEnzymes: 1},
			Products:  map[string]int{HealthyCells: 1, ActiveEnzymes: 1, TelomereStress: 1},
			Rate:      KHealing,
		},
		Reaction{
			Name:      ReactionDissipation,
			Reactants: map[string]int{ActiveEnzymes: 1},
			Rate:      KDecay,
		},
	)
	m.SetTimespan(DefaultTimespan())

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
