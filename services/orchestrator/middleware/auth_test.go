// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianCivic/pkg/extensions"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockAuthProvider struct {
	authInfo *extensions.AuthInfo
	err      error
	tokens   []string
}

func (m *mockAuthProvider) Validate(_ context.Context, token string) (*extensions.AuthInfo, error) {
	m.tokens = append(m.tokens, token)
	if m.err != nil {
		return nil, m.err
	}
	return m.authInfo, nil
}

func newGuardedRouter(provider extensions.AuthProvider) *gin.Engine {
	router := gin.New()
	router.GET("/admin", AuthMiddleware(provider), RequireRole(extensions.RoleOperator), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": GetAuthInfo(c).UserID})
	})
	return router
}

func serve(router *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc123", "abc123"},
		{"bearer ABC123", "ABC123"},
		{"BEARER  padded ", "padded"},
		{"", ""},
		{"Basic dXNlcjpwYXNz", ""},
		{"Bearer", ""},
		{"abc123", ""},
	}
	for _, tc := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			c.Request.Header.Set("Authorization", tc.header)
		}
		assert.Equal(t, tc.want, extractBearerToken(c), tc.header)
	}
}

func TestAuthMiddleware_Success(t *testing.T) {
	provider := &mockAuthProvider{authInfo: &extensions.AuthInfo{UserID: "ops", Roles: []string{extensions.RoleOperator}}}
	w := serve(newGuardedRouter(provider), "Bearer tok")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":"ops"}`, w.Body.String())
	assert.Equal(t, []string{"tok"}, provider.tokens)
}

func TestAuthMiddleware_Unauthorized(t *testing.T) {
	w := serve(newGuardedRouter(&mockAuthProvider{err: extensions.ErrUnauthorized}), "Bearer bad")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"unauthorized"}`, w.Body.String())
}

func TestAuthMiddleware_ProviderError(t *testing.T) {
	w := serve(newGuardedRouter(&mockAuthProvider{err: errors.New("idp timeout")}), "Bearer tok")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"authentication failed"}`, w.Body.String())
}

func TestRequireRole_Forbidden(t *testing.T) {
	provider := &mockAuthProvider{authInfo: &extensions.AuthInfo{UserID: "viewer", Roles: []string{"viewer"}}}
	w := serve(newGuardedRouter(provider), "Bearer tok")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestTokenAuthProviderEndToEnd(t *testing.T) {
	provider, err := extensions.NewTokenAuthProvider("s3cret")
	require.NoError(t, err)
	router := newGuardedRouter(provider)

	assert.Equal(t, http.StatusUnauthorized, serve(router, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, "Bearer wrong").Code)
	assert.Equal(t, http.StatusOK, serve(router, "Bearer s3cret").Code)
}

func TestNopProviderAdmitsOperator(t *testing.T) {
	assert.Equal(t, http.StatusOK, serve(newGuardedRouter(&extensions.NopAuthProvider{}), "").Code)
}

func TestGetAuthInfo(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, GetAuthInfo(c))

	c.Set(authInfoKey, "not auth info")
	assert.Nil(t, GetAuthInfo(c))

	expected := &extensions.AuthInfo{UserID: "u1"}
	SetAuthInfo(c, expected)
	assert.Same(t, expected, GetAuthInfo(c))
}
