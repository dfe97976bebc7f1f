// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dashboard

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/AleutianAI/rebirthsim/services/kinetics"
	"github.com/AleutianAI/rebirthsim/services/simulator/datatypes"
)

// Control keys. They match the request's JSON field names.
const (
	KeyActivation = "k_activation"
	KeyHealing    = "k_healing"
	KeyStress     = "k_stress"
	KeyDecay      = "k_decay"
	KeyChakra     = "chakra_reserves"
	KeyDamaged    = "damaged_cells"
	KeyHealthy    = "healthy_cells"
)

// Slider ranges.
const (
	rateMax        = 5.0
	rateStep       = 0.1
	populationMax  = 2000.0
	populationStep = 50.0
)

// ErrInvalidNumber is returned by ParseValue for text that is not a finite
// number.
var ErrInvalidNumber = errors.New("not a finite number")

// Control is one slider. Min and Max bound the arrow keys; typed values are
// sent as entered and left to the server to validate.
type Control struct {
	Key   string
	Label string
	Value float64
	Min   float64
	Max   float64
	Step  float64
}

// Nudge moves the value by dir steps, snapped to the step grid and clamped
// to [Min, Max].
func (c *Control) Nudge(dir int) {
	v := c.Value + float64(dir)*c.Step
	v = c.Min + math.Round((v-c.Min)/c.Step)*c.Step
	c.Value = min(max(v, c.Min), c.Max)
}

// Fraction is the value's position in [Min, Max], clamped to [0, 1].
func (c Control) Fraction() float64 {
	if c.Max <= c.Min {
		return 0
	}
	return min(max((c.Value-c.Min)/(c.Max-c.Min), 0), 1)
}

// Format renders the value the way the slider label shows it.
func (c Control) Format() string {
	if c.Step >= 1 {
		return strconv.FormatFloat(c.Value, 'f', 0, 64)
	}
	return strconv.FormatFloat(c.Value, 'f', 2, 64)
}

// ParseValue parses typed slider input.
func ParseValue(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q: %w", s, ErrInvalidNumber)
	}
	return v, nil
}

// DefaultControls returns the sliders at the local model defaults. It is
// the fallback when the server's defaults cannot be fetched.
func DefaultControls() []Control {
	return controlsFor(kinetics.DefaultParameters(), kinetics.DefaultInitialState())
}

// ControlsFromDefaults returns the sliders at the defaults a server reports.
// A slider whose default lies above its usual range is widened to hold it.
func ControlsFromDefaults(d datatypes.DefaultsResponse) []Control {
	return controlsFor(d.Parameters, d.InitialStates)
}

func controlsFor(p kinetics.Parameters, s kinetics.InitialState) []Control {
	rate := func(key, label string, v float64) Control {
		return Control{Key: key, Label: label, Value: v, Max: max(rateMax, v), Step: rateStep}
	}
	pop := func(key, label string, v float64) Control {
		return Control{Key: key, Label: label, Value: v, Max: max(populationMax, v), Step: populationStep}
	}
	return []Control{
		rate(KeyActivation, "Byakugou activation", p.KActivation),
		rate(KeyHealing, "Mitotic healing", p.KHealing),
		rate(KeyStress, "Telomere stress", p.KStress),
		rate(KeyDecay, "Chakra decay", p.KDecay),
		pop(KeyChakra, "Chakra reserves", s.ChakraReserves),
		pop(KeyDamaged, "Damaged cells", s.DamagedCells),
		pop(KeyHealthy, "Healthy cells", s.HealthyCells),
	}
}

// BuildRequest turns slider values into a simulate request. Every control
// is sent explicitly, so the server's defaults only fill the species the
// dashboard has no slider for.
func BuildRequest(controls []Control, opts Options) *datatypes.SimulateRequest {
	req := &datatypes.SimulateRequest{
		Solver:       opts.Solver,
		Trajectories: opts.Trajectories,
		Seed:         opts.Seed,
	}
	for _, c := range controls {
		v := datatypes.Float(c.Value)
		switch c.Key {
		case KeyActivation:
			req.Parameters.KActivation = v
		case KeyHealing:
			req.Parameters.KHealing = v
		case KeyStress:
			req.Parameters.KStress = v
		case KeyDecay:
			req.Parameters.KDecay = v
		case KeyChakra:
			req.InitialStates.ChakraReserves = v
		case KeyDamaged:
			req.InitialStates.DamagedCells = v
		case KeyHealthy:
			req.InitialStates.HealthyCells = v
		}
	}
	return req
}
