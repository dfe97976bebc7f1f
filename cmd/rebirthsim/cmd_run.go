// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/rebirthsim/pkg/client"
	"github.com/AleutianAI/rebirthsim/pkg/ux"
	"github.com/AleutianAI/rebirthsim/services/dashboard"
	"github.com/AleutianAI/rebirthsim/services/kinetics"
	"github.com/AleutianAI/rebirthsim/services/simulator"
	"github.com/AleutianAI/rebirthsim/services/simulator/datatypes"
	"github.com/AleutianAI/rebirthsim/services/simulator/engine"
)

// errNotInteractive is returned by --interactive without a terminal.
var errNotInteractive = errors.New("--interactive needs a terminal; pass values as flags instead")

// floatFlag binds one --flag to a request field. The field is only set when
// the flag is given, so the server defaults apply to the rest.
type floatFlag struct {
	name  string
	usage string
	value float64
	dst   func(*datatypes.SimulateRequest) **float64
}

func runFlags() []*floatFlag {
	p := kinetics.DefaultParameters()
	s := kinetics.DefaultInitialState()
	return []*floatFlag{
		{name: "k-activation", usage: "Byakugou activation rate", value: p.KActivation,
			dst: func(r *datatypes.SimulateRequest) **float64 { return &r.Parameters.KActivation }},
		{name: "k-healing", usage: "mitotic regeneration rate", value: p.KHealing,
			dst: func(r *datatypes.SimulateRequest) **float64 { return &r.Parameters.KHealing }},
		{name: "k-stress", usage: "telomere stress rate (recorded, not used by any reaction)", value: p.KStress,
			dst: func(r *datatypes.SimulateRequest) **float64 { return &r.Parameters.KStress }},
		{name: "k-decay", usage: "chakra dissipation rate", value: p.KDecay,
			dst: func(r *datatypes.SimulateRequest) **float64 { return &r.Parameters.KDecay }},
		{name: "chakra", usage: "initial chakra reserves", value: s.ChakraReserves,
			dst: func(r *datatypes.SimulateRequest) **float64 { return &r.InitialStates.ChakraReserves }},
		{name: "enzymes", usage: "initial active enzymes", value: s.ActiveEnzymes,
			dst: func(r *datatypes.SimulateRequest) **float64 { return &r.InitialStates.ActiveEnzymes }},
		{name: "damaged", usage: "initial damaged cells", value: s.DamagedCells,
			dst: func(r *datatypes.SimulateRequest) **float64 { return &r.InitialStates.DamagedCells }},
		{name: "healthy", usage: "initial healthy cells", value: s.HealthyCells,
			dst: func(r *datatypes.SimulateRequest) **float64 { return &r.InitialStates.HealthyCells }},
		{name: "stress", usage: "initial telomere stress", value: s.TelomereStress,
			dst: func(r *datatypes.SimulateRequest) **float64 { return &r.InitialStates.TelomereStress }},
	}
}

type runOptions struct {
	flags        []*floatFlag
	seed         uint64
	solver       string
	trajectories int
	jsonOutput   bool
	interactive  bool
	remote       bool
}

func newRunCmd(a *app) *cobra.Command {
	o := &runOptions{flags: runFlags()}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one simulation and print the treatment report",
		Long: `Run the Creation Rebirth model once and print the treatment report.

Unset rates and populations use the model defaults. With --remote the run is
sent to the configured server instead of being simulated in process.`,
		Example: `  rebirthsim run --seed 42
  rebirthsim run --k-healing 0 --json
  rebirthsim run --solver ssa --trajectories 8`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, o)
		},
	}
	for _, f := range o.flags {
		cmd.Flags().Float64Var(&f.value, f.name, f.value, f.usage)
	}
	cmd.Flags().Uint64Var(&o.seed, "seed", 0, "random seed (default: random, echoed in the output)")
	cmd.Flags().StringVar(&o.solver, "solver", "", "solver: tau_leaping or ssa (default from config)")
	cmd.Flags().IntVarP(&o.trajectories, "trajectories", "n", 0, "trajectories to average")
	cmd.Flags().BoolVar(&o.jsonOutput, "json", false, "print the full response as JSON")
	cmd.Flags().BoolVarP(&o.interactive, "interactive", "i", false, "prompt for rates and populations")
	cmd.Flags().BoolVar(&o.remote, "remote", false, "send the run to the configured server")
	return cmd
}

// buildRequest collects the flags that were set into a request.
func (o *runOptions) buildRequest(changed func(string) bool) *datatypes.SimulateRequest {
	req := &datatypes.SimulateRequest{
		Solver:       o.solver,
		Trajectories: o.trajectories,
	}
	for _, f := range o.flags {
		if changed(f.name) {
			*f.dst(req) = datatypes.Float(f.value)
		}
	}
	if changed("seed") {
		seed := o.seed
		req.Seed = &seed
	}
	return req
}

func (a *app) run(cmd *cobra.Command, o *runOptions) error {
	changed := cmd.Flags().Changed
	if o.interactive {
		asked, err := promptValues(o)
		if err != nil {
			return err
		}
		changed = func(name string) bool { return asked[name] || cmd.Flags().Changed(name) }
	}
	req := o.buildRequest(changed)

	sim, err := a.simulator(o.remote)
	if err != nil {
		return err
	}

	if !o.jsonOutput {
		ux.Title("Initializing Creation Rebirth Algorithm...")
	}
	resp, err := sim.Simulate(cmd.Context(), req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if o.jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	if err := ux.WriteTreatmentReport(out, resp.Summary); err != nil {
		return err
	}
	if ux.GetPersonality().Level != ux.PersonalityMachine {
		fmt.Fprintln(out)
		ux.Info(fmt.Sprintf("solver %s, seed %d, trajectories %d", resp.Solver, resp.Seed, resp.Trajectories))
	}
	return nil
}

// simulator returns the in-process engine, or an API client with remote.
func (a *app) simulator(remote bool) (dashboard.Simulator, error) {
	if remote {
		return client.New(a.cfg.Client.BaseURL, a.cfg.Client.Timeout), nil
	}
	opts := simulator.EngineOptions(a.cfg)
	if a.logger != nil {
		opts.Logger = a.logger.Slog()
	}
	return engine.New(opts)
}

// promptValues asks for every rate and population with huh and returns the
// names of the values the user changed.
func promptValues(o *runOptions) (map[string]bool, error) {
	if !ux.IsInteractive() {
		return nil, errNotInteractive
	}

	inputs := make([]string, len(o.flags))
	fields := make([]huh.Field, 0, len(o.flags)+1)
	for i, f := range o.flags {
		inputs[i] = strconv.FormatFloat(f.value, 'g', -1, 64)
		fields = append(fields, huh.NewInput().
			Title(f.name).
			Description(f.usage).
			Value(&inputs[i]).
			Validate(validateNonNegative))
	}
	solver := o.solver
	if solver == "" {
		solver = kinetics.SolverTauLeaping
	}
	fields = append(fields, huh.NewSelect[string]().
		Title("solver").
		Options(huh.NewOptions(kinetics.SolverNames()...)...).
		Value(&solver))

	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return nil, fmt.Errorf("prompt: %w", err)
	}

	asked := make(map[string]bool, len(o.flags))
	for i, f := range o.flags {
		v, err := dashboard.ParseValue(inputs[i])
		if err != nil {
			return nil, err
		}
		if v != f.value {
			f.value = v
			asked[f.name] = true
		}
	}
	o.solver = solver
	return asked, nil
}

func validateNonNegative(s string) error {
	v, err := dashboard.ParseValue(s)
	if err != nil {
		return err
	}
	if v < 0 {
		return errors.New("must be non-negative")
	}
	return nil
}
