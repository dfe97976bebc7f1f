// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/rebirthsim/services/simulator/datatypes"
)

// HealthStatus is the body status of GET /api/health.
const HealthStatus = "API is Running! "

// HandleHealth handles GET /api/health.
func HandleHealth(version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, datatypes.HealthResponse{
			Status:  HealthStatus,
			Version: version,
		})
	}
}

// HandleDefaults handles GET /api/defaults: the model defaults and the
// limits the server enforces, so clients can seed their controls.
func HandleDefaults(sim Simulator) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, sim.Defaults())
	}
}
