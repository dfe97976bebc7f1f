// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/rebirthsim/pkg/telemetry"
	"github.com/AleutianAI/rebirthsim/services/simulator/handlers"
	"github.com/AleutianAI/rebirthsim/services/simulator/middleware"
	"github.com/AleutianAI/rebirthsim/services/simulator/observability"
)

// Deps are the components the routes are wired to.
type Deps struct {
	Simulator   handlers.Simulator
	Metrics     *observability.SimulationMetrics
	RateLimiter *middleware.RateLimiter
	CORSOrigins []string
	Version     string
}

// SetupRoutes registers every simulator route on router.
//
//	GET  /metrics         Prometheus exposition
//	GET  /api/health      liveness
//	GET  /api/defaults    model defaults and limits
//	POST /api/simulate    run a simulation (rate limited)
func SetupRoutes(router *gin.Engine, deps Deps) {
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(deps.CORSOrigins))

	metricsHandler := telemetry.MetricsHandler()
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	router.GET("/metrics", gin.WrapH(metricsHandler))

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "not found"})
	})

	api := router.Group("/api")
	{
		api.GET("/health", handlers.HandleHealth(deps.Version))
		api.GET("/defaults", handlers.HandleDefaults(deps.Simulator))

		limited := api.Group("")
		if deps.RateLimiter != nil {
			limited.Use(middleware.RateLimit(deps.RateLimiter, handlers.RateLimitedResponse(deps.Metrics)))
		}
		limited.POST("/simulate", handlers.HandleSimulate(deps.Simulator, deps.Metrics))
	}
}
