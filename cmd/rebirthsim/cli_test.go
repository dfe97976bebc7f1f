// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/rebirthsim/pkg/config"
	"github.com/AleutianAI/rebirthsim/pkg/ux"
	"github.com/AleutianAI/rebirthsim/services/kinetics"
	"github.com/AleutianAI/rebirthsim/services/simulator/datatypes"
	"github.com/AleutianAI/rebirthsim/services/simulator/engine"
	"github.com/AleutianAI/rebirthsim/services/simulator/observability"
	"github.com/AleutianAI/rebirthsim/services/simulator/routes"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// execute runs the CLI with a fresh default config file and machine output.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	orig := ux.GetPersonality()
	t.Cleanup(func() { ux.SetPersonality(orig) })

	cfgPath := filepath.Join(t.TempDir(), "rebirthsim.yaml")
	require.NoError(t, config.WriteDefault(cfgPath))

	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config", cfgPath, "--personality", "machine"}, args...))
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "rebirthsim dev\n", out)
}

func TestRun_JSON(t *testing.T) {
	out, _, err := execute(t, "run", "--seed", "42", "--json")
	require.NoError(t, err)

	var resp datatypes.SimulateResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, uint64(42), resp.Seed)
	assert.Len(t, resp.Data, kinetics.TimespanPoints)
	assert.Equal(t, int64(1000), resp.Data[0].Chakra)
}

func TestRun_SeedIsReproducible(t *testing.T) {
	a, _, err := execute(t, "run", "--seed", "7", "--json")
	require.NoError(t, err)
	b, _, err := execute(t, "run", "--seed", "7", "--json")
	require.NoError(t, err)

	var ra, rb datatypes.SimulateResponse
	require.NoError(t, json.Unmarshal([]byte(a), &ra))
	require.NoError(t, json.Unmarshal([]byte(b), &rb))
	assert.Equal(t, ra.Data, rb.Data)
	assert.Equal(t, ra.Summary, rb.Summary)
}

func TestRun_ReportWithoutHealing(t *testing.T) {
	out, _, err := execute(t, "run", "--seed", "1", "--k-healing", "0")
	require.NoError(t, err)

	assert.Contains(t, out, ux.ReportHeader)
	assert.Contains(t, out, "Remaining Damaged Tissue:   500")
	assert.Contains(t, out, ux.StatusPartialRecovery)
	assert.NotContains(t, out, ux.RestNote)
}

func TestRun_NegativeRateFails(t *testing.T) {
	_, _, err := execute(t, "run", "--k-activation", "-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, datatypes.ErrInvalidRequest)
	assert.Contains(t, err.Error(), "k_activation must be non-negative")
}

func TestRun_UnknownSolver(t *testing.T) {
	_, _, err := execute(t, "run", "--solver", "euler")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "solver")
}

func TestRun_InteractiveNeedsTerminal(t *testing.T) {
	_, _, err := execute(t, "run", "--interactive")
	assert.ErrorIs(t, err, errNotInteractive)
}

func TestRun_Remote(t *testing.T) {
	metrics := observability.NewSimulationMetrics(prometheus.NewRegistry())
	opts := engine.DefaultOptions()
	opts.Metrics = metrics
	eng, err := engine.New(opts)
	require.NoError(t, err)
	router := gin.New()
	routes.SetupRoutes(router, routes.Deps{Simulator: eng, Metrics: metrics, Version: "test"})
	srv := httptest.NewServer(router)
	defer srv.Close()

	t.Setenv("REBIRTH_API_URL", srv.URL)
	out, _, err := execute(t, "run", "--remote", "--seed", "3", "--json", "--solver", "ssa")
	require.NoError(t, err)

	var resp datatypes.SimulateResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, kinetics.SolverSSA, resp.Solver)
	assert.Equal(t, uint64(3), resp.Seed)
}

func TestRunOptions_BuildRequestOnlySetsChangedFlags(t *testing.T) {
	o := &runOptions{flags: runFlags(), seed: 5, solver: "ssa"}
	changed := map[string]bool{"k-decay": true, "healthy": true}
	for _, f := range o.flags {
		if f.name == "k-decay" {
			f.value = 0.9
		}
	}

	req := o.buildRequest(func(name string) bool { return changed[name] })
	require.NotNil(t, req.Parameters.KDecay)
	assert.Equal(t, 0.9, *req.Parameters.KDecay)
	require.NotNil(t, req.InitialStates.HealthyCells)
	assert.Equal(t, 500.0, *req.InitialStates.HealthyCells)
	assert.Nil(t, req.Parameters.KActivation)
	assert.Nil(t, req.Seed, "seed flag not given")
	assert.Equal(t, "ssa", req.Solver)
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "rebirthsim.yaml")
	_, _, err := execute(t, "config", "init", path)
	require.NoError(t, err)

	_, statErr := os.Stat(path)
	require.NoError(t, statErr)

	_, _, err = execute(t, "config", "init", path)
	assert.Error(t, err, "existing file is not overwritten")
}

func TestConfigShow(t *testing.T) {
	t.Setenv("REBIRTH_PORT", "6001")
	out, _, err := execute(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "port: 6001")
	assert.Contains(t, out, "solver: tau_leaping")
}

func TestInvalidLogLevel(t *testing.T) {
	_, _, err := execute(t, "--log-level", "loud", "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestMissingExplicitConfig(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "absent.yaml"), "run"})
	assert.Error(t, root.Execute())
}
