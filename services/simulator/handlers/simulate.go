// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers contains the Gin handlers of the simulator API.
package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/rebirthsim/pkg/telemetry"
	"github.com/AleutianAI/rebirthsim/services/simulator/datatypes"
	"github.com/AleutianAI/rebirthsim/services/simulator/engine"
	"github.com/AleutianAI/rebirthsim/services/simulator/middleware"
	"github.com/AleutianAI/rebirthsim/services/simulator/observability"
)

var simulateTracer = otel.Tracer("rebirthsim.simulator.handlers")

// Error codes carried in ErrorResponse.Code.
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeRateLimited      = "RATE_LIMITED"
	CodeBusy             = "BUSY"
	CodeTimeout          = "TIMEOUT"
	CodeSimulationFailed = "SIMULATION_FAILED"
)

// Simulator is what the handlers need from the engine.
type Simulator interface {
	Simulate(ctx context.Context, req *datatypes.SimulateRequest) (*datatypes.SimulateResponse, error)
	Defaults() datatypes.DefaultsResponse
}

// HandleSimulate handles POST /api/simulate.
//
// # Description
//
// Binds the JSON body (an empty body means all defaults), runs the
// simulation and writes SimulateResponse, or ErrorResponse with
// success=false on failure.
//
// # Status Codes
//
//   - 200: Success.
//   - 400: Malformed JSON (INVALID_REQUEST) or failed validation
//     (VALIDATION_FAILED).
//   - 503: No simulation slot free before the deadline (BUSY).
//   - 504: Simulation ran past the deadline (TIMEOUT).
//   - 500: Any other failure (SIMULATION_FAILED).
func HandleSimulate(sim Simulator, metrics *observability.SimulationMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := simulateTracer.Start(c.Request.Context(), "HandleSimulate")
		defer span.End()

		requestID := middleware.GetRequestID(c)
		logger := telemetry.LoggerWithTrace(ctx, slog.With(
			"request_id", requestID,
			"handler", "HandleSimulate",
		))
		span.SetAttributes(attribute.String("request.id", requestID))

		var req datatypes.SimulateRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			logger.Warn("invalid request body", "error", err)
			telemetry.RecordError(span, err)
			metrics.RecordError(CodeInvalidRequest)
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{
				Error: "invalid request body: " + err.Error(),
				Code:  CodeInvalidRequest,
			})
			return
		}

		resp, err := sim.Simulate(ctx, &req)
		if err != nil {
			status, code := classify(err)
			if status >= http.StatusInternalServerError {
				logger.Error("simulation failed", "error", err, "code", code)
			} else {
				logger.Warn("simulation rejected", "error", err, "code", code)
			}
			telemetry.RecordError(span, err)
			metrics.RecordError(code)
			c.JSON(status, datatypes.ErrorResponse{Error: err.Error(), Code: code})
			return
		}

		span.SetAttributes(
			attribute.String("simulation.run_id", resp.RunID),
			attribute.Bool("simulation.recovered", resp.Summary.Recovered),
		)
		telemetry.SetSpanOK(span)
		c.JSON(http.StatusOK, resp)
	}
}

// classify maps an engine error to an HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, datatypes.ErrInvalidRequest):
		return http.StatusBadRequest, CodeValidationFailed
	case errors.Is(err, engine.ErrBusy):
		return http.StatusServiceUnavailable, CodeBusy
	case errors.Is(err, engine.ErrTimeout):
		return http.StatusGatewayTimeout, CodeTimeout
	default:
		return http.StatusInternalServerError, CodeSimulationFailed
	}
}

// RateLimitedResponse builds the 429 body for middleware.RateLimit.
func RateLimitedResponse(metrics *observability.SimulationMetrics) func(c *gin.Context) any {
	return func(c *gin.Context) any {
		metrics.RecordError(CodeRateLimited)
		slog.Warn("rate limited", "request_id", middleware.GetRequestID(c), "client_ip", c.ClientIP())
		return datatypes.ErrorResponse{
			Error: "too many requests, slow down",
			Code:  CodeRateLimited,
		}
	}
}
