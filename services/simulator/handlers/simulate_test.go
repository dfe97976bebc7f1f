// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/rebirthsim/services/kinetics"
	"github.com/AleutianAI/rebirthsim/services/simulator/datatypes"
	"github.com/AleutianAI/rebirthsim/services/simulator/engine"
	"github.com/AleutianAI/rebirthsim/services/simulator/middleware"
	"github.com/AleutianAI/rebirthsim/services/simulator/observability"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubSimulator returns a fixed response or error.
type stubSimulator struct {
	resp *datatypes.SimulateResponse
	err  error
	got  *datatypes.SimulateRequest
}

func (s *stubSimulator) Simulate(_ context.Context, req *datatypes.SimulateRequest) (*datatypes.SimulateResponse, error) {
	s.got = req
	return s.resp, s.err
}

func (s *stubSimulator) Defaults() datatypes.DefaultsResponse {
	return datatypes.DefaultsResponse{DefaultSolver: kinetics.SolverTauLeaping}
}

func newRouter(sim Simulator, metrics *observability.SimulationMetrics) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID())
	router.POST("/api/simulate", HandleSimulate(sim, metrics))
	router.GET("/api/health", HandleHealth("test"))
	router.GET("/api/defaults", HandleDefaults(sim))
	return router
}

func post(t *testing.T, router http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/simulate", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleSimulate_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", fmt.Errorf("%w: k_decay must be non-negative", datatypes.ErrInvalidRequest), http.StatusBadRequest, CodeValidationFailed},
		{"busy", engine.ErrBusy, http.StatusServiceUnavailable, CodeBusy},
		{"timeout", fmt.Errorf("%w: late", engine.ErrTimeout), http.StatusGatewayTimeout, CodeTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError, CodeSimulationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := observability.NewSimulationMetrics(prometheus.NewRegistry())
			router := newRouter(&stubSimulator{err: tt.err}, metrics)

			w := post(t, router, `{}`)
			assert.Equal(t, tt.wantStatus, w.Code)

			var body datatypes.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.err.Error(), body.Error)
			assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ErrorsTotal.WithLabelValues(tt.wantCode)))
		})
	}
}

func TestHandleSimulate_MalformedJSON(t *testing.T) {
	metrics := observability.NewSimulationMetrics(prometheus.NewRegistry())
	stub := &stubSimulator{}
	router := newRouter(stub, metrics)

	w := post(t, router, `{"parameters": `)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), CodeInvalidRequest)
	assert.Contains(t, w.Body.String(), `"success":false`)
	assert.Nil(t, stub.got, "simulator must not run")

	w = post(t, router, `{"parameters": {"k_decay": "fast"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleSimulate_EmptyBodyUsesDefaults(t *testing.T) {
	stub := &stubSimulator{resp: &datatypes.SimulateResponse{Success: true}}
	router := newRouter(stub, observability.NewSimulationMetrics(prometheus.NewRegistry()))

	w := post(t, router, "")
	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, stub.got)
	assert.Nil(t, stub.got.Parameters.KActivation)
}

func TestHandleSimulate_EndToEnd(t *testing.T) {
	metrics := observability.NewSimulationMetrics(prometheus.NewRegistry())
	opts := engine.DefaultOptions()
	opts.Metrics = metrics
	e, err := engine.New(opts)
	require.NoError(t, err)
	router := newRouter(e, metrics)

	t.Run("zero rates freeze the state", func(t *testing.T) {
		w := post(t, router, `{
			"parameters": {"k_activation": 0, "k_healing": 0, "k_stress": 0, "k_decay": 0},
			"initial_states": {"chakra_reserves": 1000, "damaged_cells": 500, "healthy_cells": 500},
			"seed": 3
		}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp datatypes.SimulateResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		require.Len(t, resp.Data, kinetics.TimespanPoints)
		for _, s := range resp.Data {
			assert.Equal(t, int64(1000), s.Chakra)
			assert.Equal(t, int64(500), s.DamagedCells)
			assert.Equal(t, int64(500), s.HealthyCells)
		}
		assert.False(t, resp.Summary.Recovered)
		assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
	})

	t.Run("negative rate is a 400 not a crash", func(t *testing.T) {
		w := post(t, router, `{"parameters": {"k_healing": -1}}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "k_healing must be non-negative")
	})

	t.Run("huge finite rate is a 400 not a timeout", func(t *testing.T) {
		w := post(t, router, `{"parameters": {"k_healing": 1e308}, "seed": 1}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), CodeValidationFailed)
		assert.Contains(t, w.Body.String(), "k_healing must be at most")
	})

	t.Run("seeded runs match", func(t *testing.T) {
		a := post(t, router, `{"seed": 11, "solver": "ssa"}`)
		b := post(t, router, `{"seed": 11, "solver": "ssa"}`)
		require.Equal(t, http.StatusOK, a.Code)

		var ra, rb datatypes.SimulateResponse
		require.NoError(t, json.Unmarshal(a.Body.Bytes(), &ra))
		require.NoError(t, json.Unmarshal(b.Body.Bytes(), &rb))
		assert.Equal(t, ra.Data, rb.Data)
		assert.Equal(t, "ssa", ra.Solver)
	})
}

func TestHandleHealth(t *testing.T) {
	router := newRouter(&stubSimulator{}, observability.NewSimulationMetrics(prometheus.NewRegistry()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var body datatypes.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, HealthStatus, body.Status)
	assert.Equal(t, "test", body.Version)
}

func TestHandleDefaults(t *testing.T) {
	router := newRouter(&stubSimulator{}, observability.NewSimulationMetrics(prometheus.NewRegistry()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/defaults", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"default_solver":"tau_leaping"`)
}

func TestRateLimitedResponse(t *testing.T) {
	metrics := observability.NewSimulationMetrics(prometheus.NewRegistry())
	router := gin.New()
	router.Use(middleware.RateLimit(middleware.NewRateLimiter(1, 1), RateLimitedResponse(metrics)))
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	for range 2 {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	var body datatypes.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, CodeRateLimited, body.Code)
	assert.GreaterOrEqual(t, testutil.ToFloat64(metrics.ErrorsTotal.WithLabelValues(CodeRateLimited)), 1.0)
}
