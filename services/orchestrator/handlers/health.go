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
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck probes one dependency. A nil check means the dependency is
// not configured.
type HealthCheck func(ctx context.Context) error

// HandleHealth serves GET /health. Every check runs with a short timeout;
// any failure marks the service degraded.
func HandleHealth(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		services := make(map[string]string, len(checks))
		status := "healthy"
		for name, check := range checks {
			if check == nil {
				services[name] = "not_configured"
				continue
			}
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
			err := check(ctx)
			cancel()
			if err != nil {
				services[name] = "unhealthy: " + err.Error()
				status = "degraded"
				continue
			}
			services[name] = "healthy"
		}

		code := http.StatusOK
		if status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "services": services})
	}
}
