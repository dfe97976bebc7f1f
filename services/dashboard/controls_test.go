// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dashboard

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/rebirthsim/services/kinetics"
	"github.com/AleutianAI/rebirthsim/services/simulator/datatypes"
)

func TestControl_Nudge(t *testing.T) {
	tests := []struct {
		name  string
		start float64
		dir   int
		want  float64
	}{
		{"up", 0.5, 1, 0.6},
		{"down", 0.5, -1, 0.4},
		{"clamp low", 0, -1, 0},
		{"clamp high", 5, 1, 5},
		{"snaps off-grid typed value", 0.33, 1, 0.4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Control{Value: tt.start, Max: rateMax, Step: rateStep}
			c.Nudge(tt.dir)
			assert.InDelta(t, tt.want, c.Value, 1e-9)
		})
	}
}

func TestControl_NudgeBringsOutOfRangeBack(t *testing.T) {
	c := Control{Value: 9000, Max: populationMax, Step: populationStep}
	c.Nudge(-1)
	assert.Equal(t, populationMax, c.Value)
}

func TestControl_FractionAndFormat(t *testing.T) {
	c := Control{Value: 1000, Max: 2000, Step: 50}
	assert.Equal(t, 0.5, c.Fraction())
	assert.Equal(t, "1000", c.Format())

	r := Control{Value: 2, Max: 5, Step: 0.1}
	assert.Equal(t, "2.00", r.Format())

	assert.Equal(t, 0.0, Control{Value: 3}.Fraction())
	assert.Equal(t, 1.0, Control{Value: 10, Max: 5}.Fraction())
}

func TestParseValue(t *testing.T) {
	v, err := ParseValue(" 1.25 ")
	require.NoError(t, err)
	assert.Equal(t, 1.25, v)

	v, err = ParseValue("-3")
	require.NoError(t, err)
	assert.Equal(t, -3.0, v)

	for _, bad := range []string{"", "abc", "NaN", "Inf", "1e400"} {
		_, err := ParseValue(bad)
		assert.ErrorIs(t, err, ErrInvalidNumber, bad)
	}
}

func TestDefaultControls(t *testing.T) {
	controls := DefaultControls()
	require.Len(t, controls, 7)

	want := map[string]float64{
		KeyActivation: 0.5,
		KeyHealing:    2.0,
		KeyStress:     0.1,
		KeyDecay:      0.3,
		KeyChakra:     1000,
		KeyDamaged:    500,
		KeyHealthy:    500,
	}
	for _, c := range controls {
		assert.Equal(t, want[c.Key], c.Value, c.Key)
		assert.LessOrEqual(t, c.Value, c.Max, c.Key)
	}
}

func TestControlsFromDefaults(t *testing.T) {
	p := kinetics.DefaultParameters()
	p.KDecay = 7.5
	s := kinetics.DefaultInitialState()
	s.HealthyCells = 300

	controls := ControlsFromDefaults(datatypes.DefaultsResponse{Parameters: p, InitialStates: s})
	require.Len(t, controls, 7)
	assert.Equal(t, KeyDecay, controls[3].Key)
	assert.Equal(t, 7.5, controls[3].Value)
	assert.Equal(t, 7.5, controls[3].Max, "range widens to hold the default")
	assert.Equal(t, 300.0, controls[6].Value)
	assert.Equal(t, populationMax, controls[6].Max)
}

func TestBuildRequest(t *testing.T) {
	seed := uint64(11)
	controls := DefaultControls()
	controls[0].Value = 0

	req := BuildRequest(controls, Options{Solver: "ssa", Trajectories: 4, Seed: &seed})
	assert.Equal(t, "ssa", req.Solver)
	assert.Equal(t, 4, req.Trajectories)
	assert.Equal(t, &seed, req.Seed)
	require.NotNil(t, req.Parameters.KActivation)
	assert.Equal(t, 0.0, *req.Parameters.KActivation, "zero is sent, not dropped")
	assert.Equal(t, 0.3, *req.Parameters.KDecay)
	assert.Equal(t, 500.0, *req.InitialStates.DamagedCells)
	assert.Nil(t, req.InitialStates.TelomereStress)
}

func TestSliderBar(t *testing.T) {
	bar := sliderBar(Control{Value: 0, Max: 5, Step: 0.1})
	assert.True(t, strings.Contains(bar, "●"))
}
