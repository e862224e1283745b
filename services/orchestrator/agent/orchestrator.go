// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package agent runs the bounded tool-calling loop that turns a user message
// into an answer.
//
// # Description
//
// Each message runs a reasoning cycle: the model sees the recent conversation
// and the tool catalog, and either answers or requests tool calls. Requested
// calls are validated and executed, their results are appended to the
// conversation, and the model is asked again. The cycle ends on a text
// answer or after MaxIterations rounds.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianCivic/services/classifier"
	"github.com/AleutianAI/AleutianCivic/services/llm"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/session"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/tools"
)

var tracer = otel.Tracer("aleutian.civic.agent")

// Fixed replies.
const (
	EmptyResponseReply = "I'm sorry, I couldn't process your request."
	FailureReply       = "I encountered an unexpected issue. Please try again or ask a different question."
	exhaustedReplyFmt  = "I apologize, but I'm having trouble completing this request. Would you like %s to call you back to discuss this personally?"
)

const (
	DefaultMaxIterations = 5
	DefaultHistoryTurns  = 10
	DefaultModelTimeout  = 60 * time.Second
	topicSummaryTurns    = 5
	topicSummaryChars    = 100
	// neutralPrior yields a strategy with no confidence modifier.
	neutralPrior = 0.5
)

// ToolRunner executes validated tool calls.
type ToolRunner interface {
	Execute(ctx context.Context, call tools.Call) tools.Result
}

// Config tunes the orchestrator.
type Config struct {
	CandidateName string
	MaxIterations int
	HistoryTurns  int
	// ModelTimeout bounds each model call. A call that runs out of time
	// fails the cycle like any other model error.
	ModelTimeout time.Duration
}

// ToolCallRecord is one requested call as reported in Metadata.
type ToolCallRecord struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Metadata describes how a message was processed.
type Metadata struct {
	SessionID   string           `json:"session_id"`
	ToolCalls   []ToolCallRecord `json:"tool_calls"`
	Iterations  int              `json:"iterations"`
	TotalTokens int              `json:"total_tokens"`
	Sources     []string         `json:"sources"`
	// Confidence is the highest confidence reported by any tool result.
	Confidence  float64          `json:"confidence"`
	Error       string           `json:"error,omitempty"`
}

// Orchestrator drives the reasoning loop.
//
// # Thread Safety
//
// Safe for concurrent use. Turns on the same session id are serialized
// through session.Manager.Lock; different sessions run in parallel.
type Orchestrator struct {
	llm        llm.ToolCallingClient
	tools      ToolRunner
	sessions   *session.Manager
	classifier *classifier.Classifier
	cfg        Config
	metrics    *observability.CivicMetrics
}

// NewOrchestrator creates an Orchestrator.
//
// # Inputs
//
//   - client: Tool-calling model backend. Required.
//   - runner: Tool executor. Required.
//   - sessions: Session table. Required.
//   - qc: Question classifier for the communication strategy. May be nil.
//   - cfg: Zero values are defaulted.
//   - metrics: May be nil.
func NewOrchestrator(client llm.ToolCallingClient, runner ToolRunner, sessions *session.Manager,
	qc *classifier.Classifier, cfg Config, metrics *observability.CivicMetrics) *Orchestrator {

	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = DefaultHistoryTurns
	}
	if cfg.ModelTimeout <= 0 {
		cfg.ModelTimeout = DefaultModelTimeout
	}
	if cfg.CandidateName == "" {
		cfg.CandidateName = "the candidate"
	}
	return &Orchestrator{
		llm:        client,
		tools:      runner,
		sessions:   sessions,
		classifier: qc,
		cfg:        cfg,
		metrics:    metrics,
	}
}

// ExhaustedReply is returned when the loop runs out of iterations.
func (o *Orchestrator) ExhaustedReply() string {
	return fmt.Sprintf(exhaustedReplyFmt, o.cfg.CandidateName)
}

// ProcessMessage runs one reasoning cycle for a user message.
//
// # Description
//
// Records the user turn, then alternates model calls and tool execution
// until the model answers without tool calls or MaxIterations is reached.
// The final reply is always recorded as an assistant turn.
//
// # Inputs
//
//   - ctx: Governs model and tool calls.
//   - message: The user's message.
//   - sessionID: Conversation id. Created if unknown.
//
// # Outputs
//
//   - string: The reply. Never empty.
//   - Metadata: Processing details. Error is set when the cycle failed.
//
// # Limitations
//
//   - Tool calls within one model response run sequentially.
//   - Any model error, including a call exceeding ModelTimeout, ends the
//     cycle with FailureReply; there is no retry.
func (o *Orchestrator) ProcessMessage(ctx context.Context, message, sessionID string) (reply string, meta Metadata) {
	ctx, span := tracer.Start(ctx, "agent.ProcessMessage")
	defer span.End()
	span.SetAttributes(attribute.String("session_id", sessionID))

	unlock := o.sessions.Lock(sessionID)
	defer unlock()

	o.sessions.Append(sessionID, session.Turn{Role: session.RoleUser, Content: message})
	meta = Metadata{SessionID: sessionID, ToolCalls: []ToolCallRecord{}, Sources: []string{}}
	sourceSet := map[string]struct{}{}
	exhausted := false

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Reasoning cycle panicked", "session_id", sessionID, "panic", r)
			meta.Error = fmt.Sprintf("panic: %v", r)
			reply = FailureReply
		}
		outcome := observability.AgentAnswered
		switch {
		case meta.Error != "":
			outcome = observability.AgentFailed
			span.SetStatus(codes.Error, meta.Error)
		case exhausted:
			outcome = observability.AgentExhausted
		}
		meta.Sources = sortedSources(sourceSet)
		o.sessions.Append(sessionID, session.Turn{Role: session.RoleAssistant, Content: reply})
		o.metrics.RecordAgentRun(meta.Iterations, outcome)
		span.SetAttributes(
			attribute.Int("iterations", meta.Iterations),
			attribute.Int("tool_calls", len(meta.ToolCalls)),
			attribute.String("outcome", outcome))
	}()

	snapshot, _ := o.sessions.Get(sessionID)
	messages := o.buildMessages(snapshot)
	systemPrompt := o.buildSystemPrompt(snapshot, message)
	catalog := tools.Catalog()

	for meta.Iterations < o.cfg.MaxIterations {
		meta.Iterations++

		resp, err := o.generate(ctx, messages, catalog, systemPrompt)
		if err != nil {
			span.RecordError(err)
			slog.Error("Model call failed", "session_id", sessionID, "iteration", meta.Iterations, "error", err)
			meta.Error = err.Error()
			return FailureReply, meta
		}
		if resp == nil {
			meta.Error = "model returned no response"
			return FailureReply, meta
		}
		if resp.Usage != nil {
			meta.TotalTokens += resp.Usage.TotalTokens
		}

		if len(resp.ToolCalls) == 0 {
			text := strings.TrimSpace(resp.Text)
			if text == "" {
				text = EmptyResponseReply
			}
			return text, meta
		}

		calls := make([]tools.Call, 0, len(resp.ToolCalls))
		results := make([]tools.Result, 0, len(resp.ToolCalls))
		names := make([]string, 0, len(resp.ToolCalls))
		contexts := make([]string, 0, len(resp.ToolCalls))
		for _, req := range resp.ToolCalls {
			call := toCall(req)
			meta.ToolCalls = append(meta.ToolCalls, ToolCallRecord{Name: req.Name, Arguments: call.Arguments})

			result := o.tools.Execute(ctx, call)
			for _, s := range result.Sources {
				sourceSet[s] = struct{}{}
			}
			if result.Confidence != nil && *result.Confidence > meta.Confidence {
				meta.Confidence = *result.Confidence
			}
			calls = append(calls, call)
			results = append(results, result)
			names = append(names, req.Name)
			contexts = append(contexts, result.ContextString())
		}
		slog.Info("Tool calls executed", "session_id", sessionID, "iteration", meta.Iterations, "tools", names)

		toolContext := strings.Join(contexts, "\n\n")
		messages = append(messages,
			llm.Message{Role: llm.RoleAssistant, Content: fmt.Sprintf("Tool calls executed: %v", names)},
			llm.Message{Role: llm.RoleTool, Content: toolContext},
		)
		o.sessions.Append(sessionID, session.Turn{
			Role:        session.RoleTool,
			Content:     toolContext,
			ToolCalls:   calls,
			ToolResults: results,
		})
	}

	slog.Warn("Reasoning cycle exhausted iterations", "session_id", sessionID, "iterations", meta.Iterations)
	exhausted = true
	return o.ExhaustedReply(), meta
}

// generate makes one model call under ModelTimeout.
func (o *Orchestrator) generate(ctx context.Context, messages []llm.Message, catalog []llm.ToolDefinition, systemPrompt string) (*llm.ToolResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.cfg.ModelTimeout)
	defer cancel()

	resp, err := o.llm.GenerateWithTools(callCtx, messages, catalog, systemPrompt)
	if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("model call timed out after %s: %w", o.cfg.ModelTimeout, err)
	}
	return resp, err
}

// buildMessages converts recent user and assistant turns to model messages.
func (o *Orchestrator) buildMessages(s *session.Session) []llm.Message {
	if s == nil {
		return nil
	}
	history := s.History(o.cfg.HistoryTurns)
	messages := make([]llm.Message, 0, len(history))
	for _, turn := range history {
		messages = append(messages, llm.Message{Role: string(turn.Role), Content: turn.Content})
	}
	return messages
}

// buildSystemPrompt appends the conversation summary and communication
// strategy to the base prompt.
func (o *Orchestrator) buildSystemPrompt(s *session.Session, message string) string {
	var b strings.Builder
	b.WriteString(systemPrompt(o.cfg.CandidateName))
	if s != nil && len(s.Turns) > 1 {
		b.WriteString("\n\nConversation context: ")
		b.WriteString(contextSummary(s))
	}
	if o.classifier != nil {
		analysis := o.classifier.Classify(message, neutralPrior)
		if analysis.Strategy != "" {
			b.WriteString("\n\nCommunication strategy: ")
			b.WriteString(analysis.Strategy)
		}
	}
	return b.String()
}

func contextSummary(s *session.Session) string {
	var topics []string
	for i := len(s.Turns) - 1; i >= 0 && len(topics) < topicSummaryTurns; i-- {
		if s.Turns[i].Role == session.RoleUser {
			topics = append(topics, truncateRunes(s.Turns[i].Content, topicSummaryChars))
		}
	}
	for i, j := 0, len(topics)-1; i < j; i, j = i+1, j-1 {
		topics[i], topics[j] = topics[j], topics[i]
	}
	return "Previous topics in this conversation: " + strings.Join(topics, "; ")
}

func toCall(req llm.ToolCallRequest) tools.Call {
	args := req.Arguments
	if args == nil {
		args = map[string]any{}
	}
	return tools.Call{ID: req.ID, Name: tools.Name(req.Name), Arguments: args}
}

func sortedSources(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
