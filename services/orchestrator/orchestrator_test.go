// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianCivic/pkg/extensions"
	"github.com/AleutianAI/AleutianCivic/services/llm"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/store"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/tools"
)

// =============================================================================
// Test Helpers
// =============================================================================

type cannedLLM struct {
	mu    sync.Mutex
	text  string
	calls int
}

func (c *cannedLLM) GenerateWithTools(_ context.Context, _ []llm.Message, _ []llm.ToolDefinition,
	_ string) (*llm.ToolResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return &llm.ToolResponse{Text: c.text, Usage: &llm.Usage{TotalTokens: 12}}, nil
}

func testConfig() Config {
	return Config{
		GinMode:         gin.TestMode,
		DatabasePath:    store.MemoryPath,
		OTelEndpoint:    TracingDisabled,
		MetricsRegistry: prometheus.NewRegistry(),
		CandidateName:   "Jane Doe",
		AdminToken:      "operator-secret",
	}
}

func newTestService(t *testing.T, client llm.ToolCallingClient) *service {
	t.Helper()
	svc, err := newService(testConfig(), nil, client)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })
	return svc
}

func do(t *testing.T, router *gin.Engine, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// =============================================================================
// Configuration Tests
// =============================================================================

func TestApplyConfigDefaults(t *testing.T) {
	cfg := applyConfigDefaults(Config{})

	assert.Equal(t, 12210, cfg.Port)
	assert.Equal(t, "openai", cfg.LLMBackend)
	assert.Equal(t, "openai", cfg.EmbeddingBackend)
	assert.Equal(t, "none", cfg.Search.Provider)
	assert.Equal(t, 5*time.Second, cfg.RetrievalBackendTimeout)
	assert.Equal(t, 5, cfg.MaxIterations)
	assert.Equal(t, 60*time.Second, cfg.ModelTimeout)
	assert.Equal(t, "data/civic.db", cfg.DatabasePath)
	assert.Equal(t, 1000, cfg.SessionMax)
	assert.Equal(t, 60*time.Minute, cfg.SessionTimeout)
	assert.Equal(t, 5*time.Minute, cfg.SessionSweepInterval)
	assert.Equal(t, "stub", cfg.PaymentGateway)
	assert.Equal(t, "aleutian-otel-collector:4317", cfg.OTelEndpoint)
}

func TestApplyConfigDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := applyConfigDefaults(Config{Port: 8080, LLMBackend: "ollama", MaxIterations: 3, SessionMax: 10})

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "ollama", cfg.LLMBackend)
	assert.Equal(t, 3, cfg.MaxIterations)
	assert.Equal(t, 10, cfg.SessionMax)
}

func TestNew_UnsupportedLLMBackend(t *testing.T) {
	cfg := testConfig()
	cfg.LLMBackend = "teletype"

	_, err := New(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported LLM backend")
}

func TestNewPaymentGateway(t *testing.T) {
	s := &service{config: applyConfigDefaults(Config{DonationBaseURL: "https://give.example.org"})}
	assert.IsType(t, &tools.LinkGateway{}, s.newPaymentGateway())

	s.config.PaymentGateway = "midtrans"
	assert.IsType(t, &tools.LinkGateway{}, s.newPaymentGateway(), "missing server key falls back to the stub")

	s.config.MidtransServerKey = "SB-Mid-server-test"
	assert.IsType(t, &tools.MidtransGateway{}, s.newPaymentGateway())
}

func TestResolveOptions(t *testing.T) {
	s := &service{config: Config{AdminToken: "secret"}}
	opts := s.resolveOptions(nil)
	assert.IsType(t, &extensions.TokenAuthProvider{}, opts.AuthProvider)
	assert.NotNil(t, opts.AuditLogger)

	s = &service{config: Config{}}
	opts = s.resolveOptions(nil)
	assert.IsType(t, &extensions.NopAuthProvider{}, opts.AuthProvider)

	injected := &extensions.NopAuditLogger{}
	opts = s.resolveOptions(&extensions.ServiceOptions{AuditLogger: injected})
	assert.Same(t, injected, opts.AuditLogger)
}

// =============================================================================
// Wiring Tests
// =============================================================================

func TestService_QueryEndToEnd(t *testing.T) {
	client := &cannedLLM{text: "I support expanding the library hours."}
	svc := newTestService(t, client)

	w := do(t, svc.Router(), http.MethodPost, "/v1/query",
		`{"question":"What about libraries?","user_id":"u1","consent_given":true}`, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "I support expanding the library hours.", resp["answer"])
	assert.NotEmpty(t, resp["session_id"])
	assert.Equal(t, 1, client.calls)

	stats := do(t, svc.Router(), http.MethodGet, "/v1/stats", "", "operator-secret")
	require.Equal(t, http.StatusOK, stats.Code)
	assert.Contains(t, stats.Body.String(), `"total_interactions":1`)
}

func TestService_SensitiveQuestionNeverReachesModel(t *testing.T) {
	client := &cannedLLM{text: "unused"}
	svc := newTestService(t, client)

	w := do(t, svc.Router(), http.MethodPost, "/v1/query", `{"question":"my ssn is 123-45-6789"}`, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, 0, client.calls)
}

func TestService_OperatorRoutesRequireToken(t *testing.T) {
	svc := newTestService(t, &cannedLLM{text: "ok"})

	assert.Equal(t, http.StatusUnauthorized, do(t, svc.Router(), http.MethodGet, "/v1/stats", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, svc.Router(), http.MethodGet, "/v1/stats", "", "wrong").Code)

	w := do(t, svc.Router(), http.MethodPost, "/v1/retrieve", `{"question":"What is your plan for roads?"}`, "operator-secret")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"analysis"`)
}

func TestService_DocumentsRouteAbsentWithoutWeaviate(t *testing.T) {
	svc := newTestService(t, &cannedLLM{text: "ok"})

	w := do(t, svc.Router(), http.MethodPost, "/v1/documents", `{"collection":"Platform","content":"x","source":"x.md"}`, "operator-secret")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestService_HealthAndMetrics(t *testing.T) {
	svc := newTestService(t, &cannedLLM{text: "ok"})

	health := do(t, svc.Router(), http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, health.Code)
	var body struct {
		Status   string            `json:"status"`
		Services map[string]string `json:"services"`
	}
	require.NoError(t, json.Unmarshal(health.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "healthy", body.Services["database"])
	assert.Equal(t, "not_configured", body.Services["weaviate"])

	do(t, svc.Router(), http.MethodPost, "/v1/query", `{"question":"Hello?"}`, "")
	metrics := do(t, svc.Router(), http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), "aleutian_civic_")
	assert.Contains(t, metrics.Body.String(), "go_goroutines")
}

func TestService_ShutdownWithoutRunIsSafe(t *testing.T) {
	svc, err := newService(testConfig(), nil, &cannedLLM{text: "ok"})
	require.NoError(t, err)

	assert.NoError(t, svc.Shutdown(context.Background()))
	assert.NoError(t, svc.Shutdown(context.Background()))
}
