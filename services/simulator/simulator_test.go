// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/rebirthsim/pkg/config"
	"github.com/AleutianAI/rebirthsim/services/simulator/datatypes"
	"github.com/AleutianAI/rebirthsim/services/simulator/observability"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() config.RebirthConfig {
	cfg := config.DefaultConfig()
	cfg.Server.GinMode = gin.TestMode
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = time.Second
	return cfg
}

func newTestService(t *testing.T, cfg config.RebirthConfig) Service {
	t.Helper()
	svc, err := New(cfg, Options{
		Version: "test",
		Metrics: observability.NewSimulationMetrics(prometheus.NewRegistry()),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func simulate(t *testing.T, router http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/simulate", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestService_Routes(t *testing.T) {
	svc := newTestService(t, testConfig())
	router := svc.Router()

	t.Run("health", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "API is Running!")
	})

	t.Run("defaults", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/defaults", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var body datatypes.DefaultsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, 32, body.MaxTrajectories)
		assert.Equal(t, int64(10), body.RecoveryThreshold)
	})

	t.Run("simulate then cached", func(t *testing.T) {
		first := simulate(t, router, `{"seed": 2024}`)
		require.Equal(t, http.StatusOK, first.Code, first.Body.String())
		second := simulate(t, router, `{"seed": 2024}`)
		require.Equal(t, http.StatusOK, second.Code)

		var a, b datatypes.SimulateResponse
		require.NoError(t, json.Unmarshal(first.Body.Bytes(), &a))
		require.NoError(t, json.Unmarshal(second.Body.Bytes(), &b))
		assert.False(t, a.Cached)
		assert.True(t, b.Cached)
		assert.Equal(t, a.Data, b.Data)
	})

	t.Run("metrics", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("cors preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/simulate", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("unknown route", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), `"success":false`)
	})
}

func TestService_RateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Server.RateLimit = 0.1
	cfg.Server.RateBurst = 1
	svc := newTestService(t, cfg)

	w := simulate(t, svc.Router(), `{"seed": 1}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = simulate(t, svc.Router(), `{"seed": 1}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")

	// Health is not rate limited.
	h := httptest.NewRecorder()
	svc.Router().ServeHTTP(h, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, h.Code)
}

func TestService_CacheDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Cache.Enabled = false
	svc := newTestService(t, cfg)

	simulate(t, svc.Router(), `{"seed": 9}`)
	w := simulate(t, svc.Router(), `{"seed": 9}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.SimulateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Cached)
}

func TestNew_RejectsBadSolver(t *testing.T) {
	cfg := testConfig()
	cfg.Simulation.Solver = "euler"
	_, err := New(cfg, Options{Metrics: observability.NewSimulationMetrics(prometheus.NewRegistry())})
	assert.Error(t, err)
}

func TestService_RunStopsOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Host = "127.0.0.1"
	svc := newTestService(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestEngineOptions_MapsLimits(t *testing.T) {
	cfg := testConfig()
	cfg.Simulation.MaxRate = 25
	cfg.Simulation.MaxPopulation = 5000

	opts := EngineOptions(cfg)
	assert.Equal(t, datatypes.Limits{
		MaxTrajectories: cfg.Simulation.MaxTrajectories,
		MaxPopulation:   5000,
		MaxRate:         25,
	}, opts.Limits)
	assert.Equal(t, cfg.Simulation.Timeout, opts.Timeout)
}
