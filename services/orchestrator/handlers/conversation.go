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
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/AleutianCivic/pkg/extensions"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/agent"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/store"
	"github.com/AleutianAI/AleutianCivic/services/policy_engine"
)

var tracer = otel.Tracer("aleutian.civic.handlers")

// blockedReply is returned when a question contains sensitive data.
const blockedReply = "Your message appears to contain sensitive personal information (such as a Social Security or card number). For your safety it was not processed. Please remove it and ask again."

// =============================================================================
// Interfaces
// =============================================================================

// Answerer runs the reasoning loop for one message.
type Answerer interface {
	ProcessMessage(ctx context.Context, message, sessionID string) (string, agent.Metadata)
}

// InteractionStore persists consent, logs and callbacks.
type InteractionStore interface {
	Consent(ctx context.Context, userID string) (bool, error)
	SetConsent(ctx context.Context, userID string, given bool) error
	LogInteraction(ctx context.Context, in store.Interaction) error
	RecordQuestion(ctx context.Context, question string) error
	LogCallback(ctx context.Context, req store.CallbackRequest) (int64, error)
	Stats(ctx context.Context) (store.Stats, error)
}

// =============================================================================
// Request / Response types
// =============================================================================

// QueryRequest is the body of POST /v1/query and of each WebSocket frame.
type QueryRequest struct {
	Question     string `json:"question" binding:"required"`
	SessionID    string `json:"session_id,omitempty"`
	UserID       string `json:"user_id,omitempty"`
	ConsentGiven bool   `json:"consent_given"`
}

// QueryResponse carries the answer and how it was produced.
type QueryResponse struct {
	Answer      string                 `json:"answer"`
	SessionID   string                 `json:"session_id"`
	ToolCalls   []agent.ToolCallRecord `json:"tool_calls"`
	Sources     []string               `json:"sources"`
	Iterations  int                    `json:"iterations"`
	TotalTokens int                    `json:"total_tokens"`
	Confidence  float64                `json:"confidence"`
}

// BlockedResponse is returned when the sensitive-data screen matches.
type BlockedResponse struct {
	Error    string                      `json:"error"`
	Findings []policy_engine.ScanFinding `json:"findings"`
}

// ConsentRequest is the body of POST /v1/consent.
type ConsentRequest struct {
	UserID       string `json:"user_id" binding:"required"`
	ConsentGiven bool   `json:"consent_given"`
}

// =============================================================================
// Conversation
// =============================================================================

// Conversation answers questions for both the HTTP and WebSocket surfaces.
//
// # Description
//
// Each question is screened for sensitive data, answered by the agent, and
// then logged. The full exchange is stored only with consent, either from
// the request or previously recorded for the user. Without consent only the
// question tally is bumped. Screened questions are never logged.
//
// # Thread Safety
//
// Safe for concurrent use if its dependencies are.
type Conversation struct {
	Agent   Answerer
	Store   InteractionStore            // optional
	Policy  *policy_engine.PolicyEngine // optional
	Metrics *observability.CivicMetrics // optional
}

// Answer runs one question. When the screen matches, the response is empty
// and the findings are returned instead.
func (cv *Conversation) Answer(ctx context.Context, req QueryRequest) (QueryResponse, []policy_engine.ScanFinding) {
	ctx, span := tracer.Start(ctx, "handlers.Conversation.Answer")
	defer span.End()

	if cv.Policy != nil {
		if findings := cv.Policy.ScanText(req.Question); len(findings) > 0 {
			slog.Warn("Blocked question due to sensitive data", "findings", len(findings))
			span.SetAttributes(attribute.Int("policy.findings", len(findings)))
			cv.Metrics.RecordPolicyBlock()
			return QueryResponse{}, findings
		}
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	span.SetAttributes(attribute.String("session_id", sessionID))

	answer, meta := cv.Agent.ProcessMessage(ctx, req.Question, sessionID)
	cv.logExchange(ctx, req, sessionID, answer, meta)

	return QueryResponse{
		Answer:      answer,
		SessionID:   sessionID,
		ToolCalls:   meta.ToolCalls,
		Sources:     meta.Sources,
		Iterations:  meta.Iterations,
		TotalTokens: meta.TotalTokens,
		Confidence:  meta.Confidence,
	}, nil
}

// logExchange stores the exchange. Failures are logged and never surface to
// the caller.
func (cv *Conversation) logExchange(ctx context.Context, req QueryRequest, sessionID, answer string, meta agent.Metadata) {
	if cv.Store == nil {
		return
	}

	consent := req.ConsentGiven
	if !consent && req.UserID != "" {
		stored, err := cv.Store.Consent(ctx, req.UserID)
		if err != nil {
			slog.Warn("Failed to read consent", "user_id", req.UserID, "error", err)
		}
		consent = stored
	}

	if !consent {
		if err := cv.Store.RecordQuestion(ctx, req.Question); err != nil {
			slog.Warn("Failed to tally question", "error", err)
		}
		return
	}

	err := cv.Store.LogInteraction(ctx, store.Interaction{
		UserID:       req.UserID,
		SessionID:    sessionID,
		Query:        req.Question,
		Response:     answer,
		Confidence:   meta.Confidence,
		Sources:      meta.Sources,
		ConsentGiven: true,
	})
	if err != nil {
		slog.Warn("Failed to log interaction", "session_id", sessionID, "error", err)
	}
}

// =============================================================================
// Handlers
// =============================================================================

// HandleQuery serves POST /v1/query.
func HandleQuery(cv *Conversation) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		req.Question = strings.TrimSpace(req.Question)
		if req.Question == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "question must not be empty"})
			return
		}

		resp, findings := cv.Answer(c.Request.Context(), req)
		if len(findings) > 0 {
			c.JSON(http.StatusForbidden, BlockedResponse{Error: blockedReply, Findings: findings})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// HandleConsent serves POST /v1/consent.
func HandleConsent(s InteractionStore, audit extensions.AuditLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ConsentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if err := s.SetConsent(c.Request.Context(), req.UserID, req.ConsentGiven); err != nil {
			slog.Error("Failed to update consent", "user_id", req.UserID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update consent"})
			return
		}
		outcome := "revoked"
		if req.ConsentGiven {
			outcome = "granted"
		}
		logAudit(c.Request.Context(), audit, extensions.AuditEvent{
			EventType:    extensions.EventConsentUpdated,
			UserID:       req.UserID,
			ResourceType: "consent",
			ResourceID:   req.UserID,
			Outcome:      outcome,
		})
		c.JSON(http.StatusOK, gin.H{"status": "success", "consent_given": req.ConsentGiven})
	}
}

// HandleCallback serves POST /v1/callback.
func HandleCallback(s InteractionStore, audit extensions.AuditLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req store.CallbackRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		id, err := s.LogCallback(c.Request.Context(), req)
		if err != nil {
			slog.Error("Failed to log callback request", "user_id", req.UserID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to log callback request"})
			return
		}
		slog.Info("Callback requested", "callback_id", id)
		logAudit(c.Request.Context(), audit, extensions.AuditEvent{
			EventType:    extensions.EventCallbackRequested,
			UserID:       req.UserID,
			ResourceType: "callback_request",
			ResourceID:   strconv.FormatInt(id, 10),
			Outcome:      "pending",
		})
		c.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"message": "Callback request received. Someone from the campaign will contact you soon.",
		})
	}
}

// HandleStats serves GET /v1/stats.
func HandleStats(s InteractionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := s.Stats(c.Request.Context())
		if err != nil {
			slog.Error("Failed to read stats", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read stats"})
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

// logAudit reports an event. Audit failures never fail the request.
func logAudit(ctx context.Context, audit extensions.AuditLogger, event extensions.AuditEvent) {
	if audit == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := audit.Log(ctx, event); err != nil {
		slog.Warn("Failed to write audit event", "event_type", event.EventType, "error", err)
	}
}
