// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the JSON contract of the simulation API, shared by
// the server and its clients.
package datatypes

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/rebirthsim/services/kinetics"
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// simValidate is the validator instance for simulation datatypes.
var simValidate *validator.Validate

func init() {
	simValidate = validator.New()
	_ = simValidate.RegisterValidation("finite", validateFinite)
}

// validateFinite rejects NaN and infinite floats.
func validateFinite(fl validator.FieldLevel) bool {
	f := fl.Field().Float()
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// ErrInvalidRequest wraps every validation failure of a SimulateRequest.
var ErrInvalidRequest = errors.New("invalid simulation request")

// =============================================================================
// Request Types
// =============================================================================

// ParameterOverrides carries the rate constants a client wants to change.
// Nil fields keep their defaults.
type ParameterOverrides struct {
	KActivation *float64 `json:"k_activation,omitempty" validate:"omitempty,finite,gte=0"`
	KHealing    *float64 `json:"k_healing,omitempty" validate:"omitempty,finite,gte=0"`
	KStress     *float64 `json:"k_stress,omitempty" validate:"omitempty,finite,gte=0"`
	KDecay      *float64 `json:"k_decay,omitempty" validate:"omitempty,finite,gte=0"`
}

// StateOverrides carries the initial populations a client wants to change.
// Nil fields keep their defaults. Fractional values are truncated.
type StateOverrides struct {
	ChakraReserves *float64 `json:"chakra_reserves,omitempty" validate:"omitempty,finite,gte=0"`
	ActiveEnzymes  *float64 `json:"active_enzymes,omitempty" validate:"omitempty,finite,gte=0"`
	DamagedCells   *float64 `json:"damaged_cells,omitempty" validate:"omitempty,finite,gte=0"`
	HealthyCells   *float64 `json:"healthy_cells,omitempty" validate:"omitempty,finite,gte=0"`
	TelomereStress *float64 `json:"telomere_stress,omitempty" validate:"omitempty,finite,gte=0"`
}

// SimulateRequest is the body of POST /api/simulate.
//
// # Fields
//
//   - Parameters: Optional. Rate constant overrides.
//   - InitialStates: Optional. Initial population overrides.
//   - Seed: Optional. Fixes the random stream; identical seeded requests
//     return identical data. Seeds above 2^53 lose precision in JavaScript
//     clients.
//   - Solver: Optional. "tau_leaping" (default) or "ssa".
//   - Trajectories: Optional. Ensemble size; the mean trajectory is
//     returned. Default 1.
//
// Unknown JSON keys are ignored.
type SimulateRequest struct {
	Parameters    ParameterOverrides `json:"parameters"`
	InitialStates StateOverrides     `json:"initial_states"`
	Seed          *uint64            `json:"seed,omitempty"`
	Solver        string             `json:"solver,omitempty" validate:"omitempty,oneof=tau_leaping ssa"`
	Trajectories  int                `json:"trajectories,omitempty" validate:"gte=0"`
}

// Limits bounds what a single request may ask for. Zero disables a bound.
type Limits struct {
	MaxTrajectories int
	MaxPopulation   float64

	// MaxRate caps every rate constant. Finite rates far above the model's
	// scale overflow the reaction propensities.
	MaxRate float64
}

// Validate checks field rules and limits. All failures wrap ErrInvalidRequest.
func (r *SimulateRequest) Validate(limits Limits) error {
	if err := simValidate.Struct(r); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, describe(err))
	}
	if limits.MaxTrajectories > 0 && r.Trajectories > limits.MaxTrajectories {
		return fmt.Errorf("%w: trajectories must be at most %d", ErrInvalidRequest, limits.MaxTrajectories)
	}
	params, state := r.Resolve()
	if limits.MaxRate > 0 {
		for _, rate := range []struct {
			name string
			v    float64
		}{
			{kinetics.KActivation, params.KActivation},
			{kinetics.KHealing, params.KHealing},
			{kinetics.KStress, params.KStress},
			{kinetics.KDecay, params.KDecay},
		} {
			if rate.v > limits.MaxRate {
				return fmt.Errorf("%w: %s must be at most %g", ErrInvalidRequest, rate.name, limits.MaxRate)
			}
		}
	}
	if limits.MaxPopulation > 0 {
		for name, v := range map[string]float64{
			"chakra_reserves": state.ChakraReserves,
			"active_enzymes":  state.ActiveEnzymes,
			"damaged_cells":   state.DamagedCells,
			"healthy_cells":   state.HealthyCells,
			"telomere_stress": state.TelomereStress,
		} {
			if v > limits.MaxPopulation {
				return fmt.Errorf("%w: %s must be at most %g", ErrInvalidRequest, name, limits.MaxPopulation)
			}
		}
	}
	return nil
}

// describe turns validator errors into "field: rule" pairs.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "gte":
			parts = append(parts, fmt.Sprintf("%s must be non-negative", jsonName(fe.Field())))
		case "finite":
			parts = append(parts, fmt.Sprintf("%s must be a finite number", jsonName(fe.Field())))
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of [%s]", jsonName(fe.Field()), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s", jsonName(fe.Field()), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

var fieldNames = map[string]string{
	"KActivation":    kinetics.KActivation,
	"KHealing":       kinetics.KHealing,
	"KStress":        kinetics.KStress,
	"KDecay":         kinetics.KDecay,
	"ChakraReserves": "chakra_reserves",
	"ActiveEnzymes":  "active_enzymes",
	"DamagedCells":   "damaged_cells",
	"HealthyCells":   "healthy_cells",
	"TelomereStress": "telomere_stress",
	"Solver":         "solver",
	"Trajectories":   "trajectories",
}

func jsonName(field string) string {
	if n, ok := fieldNames[field]; ok {
		return n
	}
	return field
}

// Resolve merges the overrides onto the model defaults.
func (r *SimulateRequest) Resolve() (kinetics.Parameters, kinetics.InitialState) {
	p := kinetics.DefaultParameters()
	set(&p.KActivation, r.Parameters.KActivation)
	set(&p.KHealing, r.Parameters.KHealing)
	set(&p.KStress, r.Parameters.KStress)
	set(&p.KDecay, r.Parameters.KDecay)

	s := kinetics.DefaultInitialState()
	set(&s.ChakraReserves, r.InitialStates.ChakraReserves)
	set(&s.ActiveEnzymes, r.InitialStates.ActiveEnzymes)
	set(&s.DamagedCells, r.InitialStates.DamagedCells)
	set(&s.HealthyCells, r.InitialStates.HealthyCells)
	set(&s.TelomereStress, r.InitialStates.TelomereStress)
	return p, s
}

func set(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

// MaxDrawnSeed bounds seeds the server picks for unseeded requests, so they
// survive a round trip through a JSON number in a browser.
const MaxDrawnSeed = 1 << 53

// Float returns a pointer to v, for building override structs.
func Float(v float64) *float64 { return &v }

// =============================================================================
// Response Types
// =============================================================================

// Sample is one time point of the simulated series.
//
// Time is the simulated time of the sample (0, 0.5, ..., 50 for the default
// timespan), not its position. Index is the position in the series, for
// clients that plot against sample number.
type Sample struct {
	Index          int     `json:"index"`
	Time           float64 `json:"time"`
	Chakra         int64   `json:"chakra"`
	ActiveEnzymes  int64   `json:"active_enzymes"`
	DamagedCells   int64   `json:"damaged_cells"`
	HealthyCells   int64   `json:"healthy_cells"`
	TelomereStress int64   `json:"telomere_stress"`
}

// Summary is the end state of a run.
type Summary struct {
	FinalHealthy int64 `json:"finalHealthy"`
	FinalDamaged int64 `json:"finalDamaged"`
	StressLevel  int64 `json:"stressLevel"`
	Recovered    bool  `json:"recovered"`
}

// SimulateResponse is the success body of POST /api/simulate. Seed replays
// the run; server-drawn seeds stay below MaxDrawnSeed.
type SimulateResponse struct {
	Success      bool     `json:"success"`
	Data         []Sample `json:"data"`
	Summary      Summary  `json:"summary"`
	RunID        string   `json:"run_id"`
	Solver       string   `json:"solver"`
	Seed         uint64   `json:"seed"`
	Trajectories int      `json:"trajectories"`
	Cached       bool     `json:"cached"`
}

// ErrorResponse is the failure body of every endpoint.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// DefaultsResponse is the body of GET /api/defaults.
type DefaultsResponse struct {
	Parameters        kinetics.Parameters   `json:"parameters"`
	InitialStates     kinetics.InitialState `json:"initial_states"`
	Timespan          []float64             `json:"timespan"`
	RecoveryThreshold int64                 `json:"recovery_threshold"`
	Solvers           []string              `json:"solvers"`
	DefaultSolver     string                `json:"default_solver"`
	MaxTrajectories   int                   `json:"max_trajectories"`
	MaxRate           float64               `json:"max_rate,omitempty"`
	MaxPopulation     float64               `json:"max_population,omitempty"`
}
