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
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianCivic/pkg/extensions"
	"github.com/AleutianAI/AleutianCivic/services/classifier"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/agent"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/handlers"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/knowledge"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/retrieval"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubAgent struct{}

func (stubAgent) ProcessMessage(_ context.Context, message, sessionID string) (string, agent.Metadata) {
	return "ok", agent.Metadata{SessionID: sessionID}
}

type stubRetriever struct{}

func (stubRetriever) Retrieve(context.Context, string, classifier.QuestionAnalysis, int) retrieval.Context {
	return retrieval.Context{}
}

type stubIngester struct{}

func (stubIngester) Ingest(context.Context, knowledge.IngestRequest) (int, error) { return 1, nil }

func hasRoute(router *gin.Engine, method, path string) bool {
	for _, r := range router.Routes() {
		if r.Method == method && r.Path == path {
			return true
		}
	}
	return false
}

func fullDeps(t *testing.T) Dependencies {
	t.Helper()
	s, err := store.Open(store.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	qc, err := classifier.NewClassifier()
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	return Dependencies{
		Conversation: &handlers.Conversation{Agent: stubAgent{}, Store: s, Metrics: metrics},
		Store:        s,
		Classifier:   qc,
		Retriever:    stubRetriever{},
		Ingester:     stubIngester{},
		HealthChecks: map[string]handlers.HealthCheck{"database": s.Ping},
		Gatherer:     reg,
	}
}

func TestSetupRoutes_AllRoutes(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, fullDeps(t), extensions.DefaultOptions())

	expected := []struct{ method, path string }{
		{"GET", "/health"},
		{"GET", "/metrics"},
		{"POST", "/v1/query"},
		{"GET", "/v1/conversation/ws"},
		{"POST", "/v1/consent"},
		{"POST", "/v1/callback"},
		{"GET", "/v1/stats"},
		{"POST", "/v1/retrieve"},
		{"POST", "/v1/documents"},
	}
	for _, e := range expected {
		assert.True(t, hasRoute(router, e.method, e.path), "%s %s", e.method, e.path)
	}
}

func TestSetupRoutes_OptionalRoutesSkipped(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, Dependencies{Conversation: &handlers.Conversation{Agent: stubAgent{}}}, extensions.ServiceOptions{})

	assert.True(t, hasRoute(router, "POST", "/v1/query"))
	for _, path := range []string{"/v1/consent", "/v1/callback", "/v1/retrieve", "/v1/documents"} {
		assert.False(t, hasRoute(router, "POST", path), path)
	}
	assert.False(t, hasRoute(router, "GET", "/v1/stats"))
}

func TestSetupRoutes_OperatorRoutesRequireToken(t *testing.T) {
	provider, err := extensions.NewTokenAuthProvider("s3cret")
	require.NoError(t, err)
	router := gin.New()
	SetupRoutes(router, fullDeps(t), extensions.DefaultOptions().WithAuth(provider))

	get := func(path, token string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}
	assert.Equal(t, http.StatusUnauthorized, get("/v1/stats", ""))
	assert.Equal(t, http.StatusOK, get("/v1/stats", "s3cret"))

	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{"question":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, "voter routes stay public")
}

func TestSetupRoutes_HealthAndMetrics(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, fullDeps(t), extensions.DefaultOptions())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"healthy"`)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "aleutian_civic_")
}
