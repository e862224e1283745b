// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tools implements the closed set of actions the model may request.
//
// Every call is validated against its schema before dispatch. Validation
// failures, business-rule violations, handler errors and handler panics all
// become failed Results; Execute never returns an error and never panics.
package tools

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianCivic/services/classifier"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/knowledge"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/retrieval"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/websearch"
)

var tracer = otel.Tracer("aleutian.civic.tools")

// Volunteer is a registration produced by register_volunteer.
type Volunteer struct {
	ID           string    `json:"volunteer_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	ZipCode      string    `json:"zip_code,omitempty"`
	Interests    []string  `json:"interests,omitempty"`
	Availability string    `json:"availability"`
	Status       string    `json:"status"`
	RegisteredAt time.Time `json:"registered_at"`
}

// VolunteerRegistry persists volunteer registrations.
type VolunteerRegistry interface {
	SaveVolunteer(ctx context.Context, v Volunteer) error
}

// DonationLedger persists donation intents.
type DonationLedger interface {
	SaveDonationIntent(ctx context.Context, d DonationIntent) error
}

// Retriever builds the trust-weighted evidence set for a question.
type Retriever interface {
	Retrieve(ctx context.Context, question string, analysis classifier.QuestionAnalysis, limit int) retrieval.Context
}

// Analyzer classifies a question before retrieval.
type Analyzer interface {
	Classify(question string, priorConfidence float64) classifier.QuestionAnalysis
}

// DefaultBackendTimeout bounds each direct Searcher or web call.
const DefaultBackendTimeout = 5 * time.Second

// Dependencies wires an Executor. Any field may be nil; the tools that need
// a missing dependency fail with a descriptive Result.
type Dependencies struct {
	// Retriever serves search_policy_collections. It applies collection
	// thresholds, dual-source enforcement and its own per-call timeouts.
	Retriever Retriever
	// Analyzer classifies search queries. Nil treats every query as a
	// plain policy lookup.
	Analyzer Analyzer

	Searcher   knowledge.Searcher
	Web        websearch.Provider
	Volunteers VolunteerRegistry
	Donations  DonationLedger
	Payments   PaymentGateway
	Metrics    *observability.CivicMetrics

	// BackendTimeout bounds each Searcher and Web call made directly by a
	// tool. Zero uses DefaultBackendTimeout.
	BackendTimeout time.Duration
}

// Executor validates and runs tool calls.
//
// # Thread Safety
//
// Safe for concurrent use if its dependencies are.
type Executor struct {
	deps     Dependencies
	validate *validator.Validate
	now      func() time.Time
	newID    func() string
}

// NewExecutor creates an Executor. A nil Payments gateway falls back to a
// LinkGateway with a placeholder host.
func NewExecutor(deps Dependencies) *Executor {
	if deps.Payments == nil {
		deps.Payments = NewLinkGateway("")
	}
	if deps.BackendTimeout <= 0 {
		deps.BackendTimeout = DefaultBackendTimeout
	}
	return &Executor{
		deps:     deps,
		validate: validator.New(),
		now:      time.Now,
		newID:    shortID,
	}
}

// Execute validates and runs one call.
//
// # Description
//
// Validation runs first; any violation returns a failed Result with no side
// effects. Valid calls are dispatched on Name to their handler. Handler
// errors and panics are converted into failed Results carrying the message.
//
// # Inputs
//
//   - ctx: Governs backend and gateway calls.
//   - call: The requested invocation.
//
// # Outputs
//
//   - Result: Always populated; Success reports the outcome.
func (e *Executor) Execute(ctx context.Context, call Call) (result Result) {
	// Arguments may hold personal data and stay off the span.
	ctx, span := tracer.Start(ctx, "tools.Execute",
		trace.WithAttributes(attribute.String("tool", string(call.Name))))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Tool handler panicked", "tool", call.Name, "panic", r)
			result = failure(call.Name, "%v", r)
		}
		if !result.Success {
			span.SetStatus(codes.Error, result.Error)
		}
		e.deps.Metrics.RecordToolExecution(string(call.Name), result.Success)
	}()

	if err := Validate(call); err != nil {
		slog.Warn("Tool call rejected", "tool", call.Name, "reason", err.Error())
		return failure(call.Name, "%s", err.Error())
	}

	var err error
	switch call.Name {
	case SearchPolicyCollections:
		result, err = e.searchPolicyCollections(ctx, call.Arguments)
	case PerformWebSearch:
		result, err = e.performWebSearch(ctx, call.Arguments)
	case RetrieveAnswerStyle:
		result, err = e.retrieveAnswerStyle(ctx, call.Arguments)
	case RegisterVolunteer:
		result, err = e.registerVolunteer(ctx, call.Arguments)
	case MakeDonation:
		result, err = e.makeDonation(ctx, call.Arguments)
	default:
		// Unreachable after Validate.
		return failure(call.Name, "Tool not implemented: %s", call.Name)
	}
	if err != nil {
		slog.Error("Tool execution failed", "tool", call.Name, "error", err)
		return failure(call.Name, "%s", err.Error())
	}
	return result
}

// shortID returns the first 8 hex digits of a random UUID, upper-cased.
func shortID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
