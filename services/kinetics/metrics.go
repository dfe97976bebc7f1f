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
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for solver runs.
var (
	tracer = otel.Tracer("rebirthsim.kinetics")
	meter  = otel.Meter("rebirthsim.kinetics")
)

var (
	solverSteps metric.Int64Histogram
	solverRuns  metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		solverSteps, err = meter.Int64Histogram(
			"kinetics_solver_steps",
			metric.WithDescription("Solver iterations per trajectory"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		solverRuns, err = meter.Int64Counter(
			"kinetics_solver_runs_total",
			metric.WithDescription("Total trajectories simulated"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func startEnsembleSpan(ctx context.Context, solver string, model string, n int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "kinetics.RunEnsemble",
		trace.WithAttributes(
			attribute.String("kinetics.solver", solver),
			attribute.String("kinetics.model", model),
			attribute.Int("kinetics.trajectories", n),
		),
	)
}

func recordRun(ctx context.Context, solver string, steps int) {
	if initMetrics() != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("solver", solver))
	solverSteps.Record(ctx, int64(steps), attrs)
	solverRuns.Add(ctx, 1, attrs)
}
