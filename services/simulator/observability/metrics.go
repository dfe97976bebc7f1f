// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the simulator.
//
// # Description
//
// Metrics include:
//   - Request counters (by solver and status)
//   - Simulation latency histograms
//   - An in-flight gauge
//   - Cache hit/miss counters
//   - Error counters (by API error code)
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint together with the OTel
// instruments of the kinetics package.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "rebirthsim"

// Subsystem for simulation metrics
const simulationSubsystem = "simulation"

// SimulationMetrics holds all Prometheus metrics for simulation requests.
//
// # Fields
//
//   - RequestsTotal: Counter of requests by solver and status
//   - DurationSeconds: Histogram of simulation wall time
//   - InFlight: Gauge of simulations currently running
//   - CacheTotal: Counter of cache lookups by result
//   - ErrorsTotal: Counter of failed requests by error code
type SimulationMetrics struct {
	// RequestsTotal counts requests by solver and status.
	// Labels: solver (tau_leaping, ssa), status (success, error)
	RequestsTotal *prometheus.CounterVec

	// DurationSeconds measures simulation wall time.
	// Labels: solver
	DurationSeconds *prometheus.HistogramVec

	// InFlight tracks simulations holding a concurrency slot.
	InFlight prometheus.Gauge

	// CacheTotal counts cache lookups.
	// Labels: result (hit, miss)
	CacheTotal *prometheus.CounterVec

	// ErrorsTotal counts failed requests.
	// Labels: code (VALIDATION_FAILED, BUSY, TIMEOUT, ...)
	ErrorsTotal *prometheus.CounterVec
}

var (
	defaultMetrics     *SimulationMetrics
	defaultMetricsOnce sync.Once
)

// Default returns the process-wide metrics registered with the default
// Prometheus registry. Repeated calls return the same instance.
func Default() *SimulationMetrics {
	defaultMetricsOnce.Do(func() {
		defaultMetrics = NewSimulationMetrics(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// NewSimulationMetrics creates metrics registered with reg.
//
// # Limitations
//
//   - Panics if called twice with the same registry (duplicate registration).
func NewSimulationMetrics(reg prometheus.Registerer) *SimulationMetrics {
	factory := promauto.With(reg)
	return &SimulationMetrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: simulationSubsystem,
				Name:      "requests_total",
				Help:      "Total number of simulation requests by solver and status",
			},
			[]string{"solver", "status"},
		),

		DurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: simulationSubsystem,
				Name:      "duration_seconds",
				Help:      "Simulation wall time in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"solver"},
		),

		InFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: simulationSubsystem,
				Name:      "in_flight",
				Help:      "Number of simulations currently running",
			},
		),

		CacheTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: simulationSubsystem,
				Name:      "cache_total",
				Help:      "Cache lookups by result",
			},
			[]string{"result"},
		),

		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: simulationSubsystem,
				Name:      "errors_total",
				Help:      "Failed simulation requests by error code",
			},
			[]string{"code"},
		),
	}
}

// =============================================================================
// Helper Methods
// =============================================================================

// RecordRequest records a finished request and, on success, its duration.
func (m *SimulationMetrics) RecordRequest(solver string, seconds float64, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.RequestsTotal.WithLabelValues(solver, status).Inc()
	if success {
		m.DurationSeconds.WithLabelValues(solver).Observe(seconds)
	}
}

// RecordError records a failed request by API error code.
func (m *SimulationMetrics) RecordError(code string) {
	m.ErrorsTotal.WithLabelValues(code).Inc()
}

// RecordCache records a cache lookup.
func (m *SimulationMetrics) RecordCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheTotal.WithLabelValues(result).Inc()
}

// SimulationStarted increments the in-flight gauge.
func (m *SimulationMetrics) SimulationStarted() { m.InFlight.Inc() }

// SimulationEnded decrements the in-flight gauge.
func (m *SimulationMetrics) SimulationEnded() { m.InFlight.Dec() }
