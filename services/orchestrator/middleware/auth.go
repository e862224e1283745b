// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware guards the operator routes of the civic service.
//
// # Authentication Flow
//
//	Request
//	   │
//	   ▼
//	AuthMiddleware ─► extract "Authorization: Bearer <token>"
//	   │            ─► provider.Validate(ctx, token)
//	   │            ─► store AuthInfo in the gin context
//	   ▼
//	RequireRole ─► 403 unless AuthInfo holds the role
//	   │
//	   ▼
//	Handler (GetAuthInfo)
//
// Voter-facing routes (query, consent, callback, WebSocket) do not use
// this package.
package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianCivic/pkg/extensions"
)

// authInfoKey is the gin context key for the caller's AuthInfo.
const authInfoKey = "aleutian_civic_auth_info"

// SetAuthInfo stores the caller's identity for downstream handlers.
func SetAuthInfo(c *gin.Context, info *extensions.AuthInfo) {
	c.Set(authInfoKey, info)
}

// GetAuthInfo returns the caller's identity, or nil when the request was
// not authenticated or the stored value has the wrong type.
func GetAuthInfo(c *gin.Context) *extensions.AuthInfo {
	value, exists := c.Get(authInfoKey)
	if !exists {
		return nil
	}
	info, ok := value.(*extensions.AuthInfo)
	if !ok {
		return nil
	}
	return info
}

// AuthMiddleware validates the bearer token with provider.
//
// # Description
//
// Rejected tokens abort with 401 {"error":"unauthorized"}. Any other
// provider failure aborts with 401 {"error":"authentication failed"} so
// provider internals are not exposed.
//
// # Thread Safety
//
// The returned middleware is safe for concurrent use if provider is.
func AuthMiddleware(provider extensions.AuthProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)

		authInfo, err := provider.Validate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, extensions.ErrUnauthorized) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				return
			}
			slog.Warn("Auth provider failed", "path", c.FullPath(), "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
			return
		}

		SetAuthInfo(c, authInfo)
		c.Next()
	}
}

// RequireRole aborts with 403 unless the authenticated caller holds role.
// It must run after AuthMiddleware.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !GetAuthInfo(c).HasRole(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// extractBearerToken returns the token from "Authorization: Bearer <token>",
// or "" when the header is missing or uses another scheme. The scheme is
// matched case-insensitively.
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
