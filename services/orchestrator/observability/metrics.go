// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and instrumentation for the orchestrator.
//
// # Description
//
// This package implements Prometheus metrics for the retrieval and agent
// pipeline. Metrics include:
//   - Retrieval calls per collection and outcome
//   - Results kept after thresholding, and best confidence per question
//   - Tool executions per tool and outcome
//   - Agent iterations and outcomes
//   - Live sessions and evictions
//
// # Integration
//
// Metrics are exposed via /metrics endpoint. Use with Prometheus + Grafana
// for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
// Every Record method is safe to call on a nil *CivicMetrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

const metricsNamespace = "aleutian_civic"

const (
	retrievalSubsystem = "retrieval"
	toolsSubsystem     = "tools"
	agentSubsystem     = "agent"
	sessionSubsystem   = "session"
)

// Outcome labels shared by counters.
const (
	OutcomeSuccess = "success"
	OutcomeEmpty   = "empty"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
)

// Agent outcome labels.
const (
	AgentAnswered  = "answered"
	AgentExhausted = "exhausted"
	AgentFailed    = "failed"
)

// CivicMetrics holds every Prometheus metric the orchestrator exports.
type CivicMetrics struct {
	// RetrievalCallsTotal counts backend calls.
	// Labels: collection, outcome (success, empty, error, timeout)
	RetrievalCallsTotal *prometheus.CounterVec

	// RetrievalResultsKept counts results retained after thresholding.
	// Labels: tier (content, style, scripture, web)
	RetrievalResultsKept *prometheus.CounterVec

	// BestConfidence observes the best content confidence per retrieval.
	BestConfidence prometheus.Histogram

	// DualSourceRetriesTotal counts dual-source retries.
	// Labels: side (own, other)
	DualSourceRetriesTotal *prometheus.CounterVec

	// ToolExecutionsTotal counts tool calls.
	// Labels: tool, outcome (success, error)
	ToolExecutionsTotal *prometheus.CounterVec

	// AgentIterations observes reasoning iterations per message.
	AgentIterations prometheus.Histogram

	// AgentOutcomesTotal counts how each message ended.
	// Labels: outcome (answered, exhausted, failed)
	AgentOutcomesTotal *prometheus.CounterVec

	// ActiveSessions tracks the session table size.
	ActiveSessions prometheus.Gauge

	// SessionEvictionsTotal counts removals.
	// Labels: reason (expired, capacity)
	SessionEvictionsTotal *prometheus.CounterVec

	// PolicyBlocksTotal counts questions rejected by the sensitive-data screen.
	PolicyBlocksTotal prometheus.Counter
}

// DefaultMetrics is the process-wide instance set by InitMetrics.
var DefaultMetrics *CivicMetrics

// InitMetrics registers metrics with the default Prometheus registry.
//
// # Limitations
//
//   - Must be called at most once per process; promauto panics on
//     duplicate registration. Tests should use NewMetrics with their own
//     registry.
func InitMetrics() *CivicMetrics {
	DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	return DefaultMetrics
}

// NewMetrics registers metrics with reg.
func NewMetrics(reg prometheus.Registerer) *CivicMetrics {
	factory := promauto.With(reg)
	return &CivicMetrics{
		RetrievalCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: retrievalSubsystem,
				Name:      "calls_total",
				Help:      "Total retrieval backend calls by collection and outcome",
			},
			[]string{"collection", "outcome"},
		),

		RetrievalResultsKept: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: retrievalSubsystem,
				Name:      "results_kept_total",
				Help:      "Total retrieval results retained by tier",
			},
			[]string{"tier"},
		),

		BestConfidence: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: retrievalSubsystem,
				Name:      "best_confidence",
				Help:      "Best content confidence per retrieval",
				Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
			},
		),

		DualSourceRetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: retrievalSubsystem,
				Name:      "dual_source_retries_total",
				Help:      "Total dual-source retries by side",
			},
			[]string{"side"},
		),

		ToolExecutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: toolsSubsystem,
				Name:      "executions_total",
				Help:      "Total tool executions by tool and outcome",
			},
			[]string{"tool", "outcome"},
		),

		AgentIterations: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: agentSubsystem,
				Name:      "iterations",
				Help:      "Reasoning iterations per processed message",
				Buckets:   []float64{1, 2, 3, 4, 5},
			},
		),

		AgentOutcomesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: agentSubsystem,
				Name:      "outcomes_total",
				Help:      "Total processed messages by outcome",
			},
			[]string{"outcome"},
		),

		ActiveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: sessionSubsystem,
				Name:      "active",
				Help:      "Number of live conversation sessions",
			},
		),

		SessionEvictionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: sessionSubsystem,
				Name:      "evictions_total",
				Help:      "Total session removals by reason",
			},
			[]string{"reason"},
		),

		PolicyBlocksTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "policy_blocks_total",
				Help:      "Total questions rejected by the sensitive-data screen",
			},
		),
	}
}

// =============================================================================
// Recording helpers
// =============================================================================

func (m *CivicMetrics) RecordRetrievalCall(collection, outcome string) {
	if m == nil {
		return
	}
	m.RetrievalCallsTotal.WithLabelValues(collection, outcome).Inc()
}

func (m *CivicMetrics) RecordResultsKept(tier string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RetrievalResultsKept.WithLabelValues(tier).Add(float64(n))
}

func (m *CivicMetrics) RecordBestConfidence(best float64) {
	if m == nil {
		return
	}
	m.BestConfidence.Observe(best)
}

func (m *CivicMetrics) RecordDualSourceRetry(side string) {
	if m == nil {
		return
	}
	m.DualSourceRetriesTotal.WithLabelValues(side).Inc()
}

func (m *CivicMetrics) RecordToolExecution(tool string, success bool) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if !success {
		outcome = OutcomeError
	}
	m.ToolExecutionsTotal.WithLabelValues(tool, outcome).Inc()
}

func (m *CivicMetrics) RecordAgentRun(iterations int, outcome string) {
	if m == nil {
		return
	}
	m.AgentIterations.Observe(float64(iterations))
	m.AgentOutcomesTotal.WithLabelValues(outcome).Inc()
}

func (m *CivicMetrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

func (m *CivicMetrics) RecordSessionEviction(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SessionEvictionsTotal.WithLabelValues(reason).Add(float64(n))
}

func (m *CivicMetrics) RecordPolicyBlock() {
	if m == nil {
		return
	}
	m.PolicyBlocksTotal.Inc()
}
