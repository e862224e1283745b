// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianCivic/services/classifier"
	"github.com/AleutianAI/AleutianCivic/services/llm"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/knowledge"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/retrieval"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/session"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/tools"
)

// =============================================================================
// Mocks
// =============================================================================

type scriptedLLM struct {
	mu        sync.Mutex
	responses []*llm.ToolResponse
	err       error
	panicMsg  string
	calls     [][]llm.Message
	prompts   []string
	toolCount int
}

func (s *scriptedLLM) GenerateWithTools(_ context.Context, messages []llm.Message, defs []llm.ToolDefinition, systemPrompt string) (*llm.ToolResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	s.calls = append(s.calls, append([]llm.Message(nil), messages...))
	s.prompts = append(s.prompts, systemPrompt)
	s.toolCount = len(defs)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.responses) == 0 {
		return &llm.ToolResponse{Text: "done"}, nil
	}
	resp := s.responses[0]
	if len(s.responses) > 1 {
		s.responses = s.responses[1:]
	}
	return resp, nil
}

// llmFunc adapts a function to llm.ToolCallingClient.
type llmFunc func(ctx context.Context, messages []llm.Message) (*llm.ToolResponse, error)

func (f llmFunc) GenerateWithTools(ctx context.Context, messages []llm.Message, _ []llm.ToolDefinition, _ string) (*llm.ToolResponse, error) {
	return f(ctx, messages)
}

type staticSearcher map[string][]knowledge.Passage

func (s staticSearcher) Search(_ context.Context, collection, _ string, limit int) []knowledge.Passage {
	p := s[collection]
	if len(p) > limit {
		p = p[:limit]
	}
	return append([]knowledge.Passage(nil), p...)
}

type fakeRunner struct {
	mu    sync.Mutex
	calls []tools.Call
}

func (f *fakeRunner) Execute(_ context.Context, call tools.Call) tools.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if call.Name == tools.MakeDonation {
		return tools.Result{ToolName: call.Name, Error: "Donation exceeds limit of $3,300 per election (FEC regulation)"}
	}
	confidence := 0.72
	return tools.Result{
		ToolName:   call.Name,
		Success:    true,
		Confidence: &confidence,
		Data:       "ok",
		Sources:    []string{"platform.md", "a-source.md"},
	}
}

func toolCallResponse(names ...string) *llm.ToolResponse {
	resp := &llm.ToolResponse{Usage: &llm.Usage{TotalTokens: 10}}
	for _, n := range names {
		resp.ToolCalls = append(resp.ToolCalls, llm.ToolCallRequest{Name: n, Arguments: map[string]any{"query": "transit"}})
	}
	return resp
}

func newTestOrchestrator(t *testing.T, model *scriptedLLM, runner ToolRunner) (*Orchestrator, *session.Manager, *observability.CivicMetrics) {
	t.Helper()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	sessions := session.NewManager(10, time.Hour, metrics)
	o := NewOrchestrator(model, runner, sessions, nil, Config{CandidateName: "Jane Doe"}, metrics)
	return o, sessions, metrics
}

// =============================================================================
// Tests
// =============================================================================

func TestProcessMessage_DirectAnswer(t *testing.T) {
	model := &scriptedLLM{responses: []*llm.ToolResponse{{Text: "Jane supports light rail.", Usage: &llm.Usage{TotalTokens: 42}}}}
	o, sessions, _ := newTestOrchestrator(t, model, &fakeRunner{})

	reply, meta := o.ProcessMessage(context.Background(), "What about transit?", "s1")

	assert.Equal(t, "Jane supports light rail.", reply)
	assert.Equal(t, 1, meta.Iterations)
	assert.Equal(t, 42, meta.TotalTokens)
	assert.Empty(t, meta.ToolCalls)
	assert.Empty(t, meta.Error)
	assert.Equal(t, 5, model.toolCount)
	assert.Contains(t, model.prompts[0], "campaign assistant for Jane Doe")

	s, ok := sessions.Get("s1")
	require.True(t, ok)
	require.Len(t, s.Turns, 2)
	assert.Equal(t, session.RoleUser, s.Turns[0].Role)
	assert.Equal(t, session.RoleAssistant, s.Turns[1].Role)
}

func TestProcessMessage_ToolRoundTrip(t *testing.T) {
	model := &scriptedLLM{responses: []*llm.ToolResponse{
		toolCallResponse("search_policy_collections", "perform_web_search"),
		{Text: "Here is the comparison.", Usage: &llm.Usage{TotalTokens: 5}},
	}}
	runner := &fakeRunner{}
	o, sessions, _ := newTestOrchestrator(t, model, runner)

	reply, meta := o.ProcessMessage(context.Background(), "Compare Jane to Smith", "s1")

	assert.Equal(t, "Here is the comparison.", reply)
	assert.Equal(t, 2, meta.Iterations)
	assert.Equal(t, 15, meta.TotalTokens)
	require.Len(t, meta.ToolCalls, 2)
	assert.Equal(t, "search_policy_collections", meta.ToolCalls[0].Name)
	assert.Equal(t, []string{"a-source.md", "platform.md"}, meta.Sources)
	assert.InDelta(t, 0.72, meta.Confidence, 1e-9)
	assert.Len(t, runner.calls, 2)

	require.Len(t, model.calls, 2)
	second := model.calls[1]
	require.Len(t, second, 3)
	assert.Equal(t, llm.RoleAssistant, second[1].Role)
	assert.Equal(t, "Tool calls executed: [search_policy_collections perform_web_search]", second[1].Content)
	assert.Equal(t, llm.RoleTool, second[2].Role)
	assert.Equal(t,
		"[TOOL RESULT: search_policy_collections]\nok\n\n[TOOL RESULT: perform_web_search]\nok",
		second[2].Content)

	s, _ := sessions.Get("s1")
	require.Len(t, s.Turns, 3)
	assert.Equal(t, session.RoleTool, s.Turns[1].Role)
	assert.Len(t, s.Turns[1].ToolResults, 2)
}

func TestProcessMessage_FailedToolResultFeedsBack(t *testing.T) {
	model := &scriptedLLM{responses: []*llm.ToolResponse{
		toolCallResponse("make_donation"),
		{Text: "The maximum is $3,300."},
	}}
	o, _, _ := newTestOrchestrator(t, model, &fakeRunner{})

	reply, _ := o.ProcessMessage(context.Background(), "I want to give $5000", "s1")
	assert.Equal(t, "The maximum is $3,300.", reply)
	assert.True(t, strings.HasPrefix(model.calls[1][2].Content, "[TOOL ERROR: make_donation]"))
}

func TestProcessMessage_ExhaustsIterations(t *testing.T) {
	model := &scriptedLLM{responses: []*llm.ToolResponse{toolCallResponse("search_policy_collections")}}
	o, sessions, metrics := newTestOrchestrator(t, model, &fakeRunner{})

	reply, meta := o.ProcessMessage(context.Background(), "Loop forever", "s1")

	assert.Equal(t,
		"I apologize, but I'm having trouble completing this request. Would you like Jane Doe to call you back to discuss this personally?",
		reply)
	assert.Equal(t, 5, meta.Iterations)
	assert.Len(t, model.calls, 5)
	assert.Len(t, meta.ToolCalls, 5)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AgentOutcomesTotal.WithLabelValues(observability.AgentExhausted)))

	s, _ := sessions.Get("s1")
	assert.Equal(t, reply, s.Turns[len(s.Turns)-1].Content)
}

func TestProcessMessage_EmptyText(t *testing.T) {
	model := &scriptedLLM{responses: []*llm.ToolResponse{{Text: "  "}}}
	o, _, _ := newTestOrchestrator(t, model, &fakeRunner{})

	reply, _ := o.ProcessMessage(context.Background(), "Hello?", "s1")
	assert.Equal(t, EmptyResponseReply, reply)
}

func TestProcessMessage_ModelError(t *testing.T) {
	model := &scriptedLLM{err: errors.New("upstream 500")}
	o, sessions, metrics := newTestOrchestrator(t, model, &fakeRunner{})

	reply, meta := o.ProcessMessage(context.Background(), "Hello?", "s1")
	assert.Equal(t, FailureReply, reply)
	assert.Equal(t, "upstream 500", meta.Error)
	assert.Equal(t, "s1", meta.SessionID)

	s, _ := sessions.Get("s1")
	require.Len(t, s.Turns, 2)
	assert.Equal(t, FailureReply, s.Turns[1].Content)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AgentOutcomesTotal.WithLabelValues(observability.AgentFailed)))
}

func TestProcessMessage_RecoversPanic(t *testing.T) {
	model := &scriptedLLM{panicMsg: "nil map"}
	o, sessions, _ := newTestOrchestrator(t, model, &fakeRunner{})

	var reply string
	var meta Metadata
	assert.NotPanics(t, func() {
		reply, meta = o.ProcessMessage(context.Background(), "Hello?", "s1")
	})
	assert.Equal(t, FailureReply, reply)
	assert.Contains(t, meta.Error, "nil map")

	s, _ := sessions.Get("s1")
	assert.Equal(t, FailureReply, s.Turns[len(s.Turns)-1].Content)
}

func TestProcessMessage_HistoryAndContext(t *testing.T) {
	model := &scriptedLLM{}
	o, _, _ := newTestOrchestrator(t, model, &fakeRunner{})

	for i := 0; i < 7; i++ {
		o.ProcessMessage(context.Background(), "question", "s1")
	}

	last := model.calls[len(model.calls)-1]
	assert.Len(t, last, 10, "history is capped at 10 user/assistant turns")
	assert.Equal(t, llm.RoleUser, last[len(last)-1].Role)
	assert.Contains(t, model.prompts[len(model.prompts)-1], "Conversation context: Previous topics in this conversation: question; question")
	assert.NotContains(t, model.prompts[0], "Conversation context")
}

func TestProcessMessage_StrategyInPrompt(t *testing.T) {
	qc, err := classifier.NewClassifier()
	require.NoError(t, err)

	model := &scriptedLLM{}
	sessions := session.NewManager(10, time.Hour, nil)
	o := NewOrchestrator(model, &fakeRunner{}, sessions, qc, Config{CandidateName: "Jane Doe"}, nil)

	o.ProcessMessage(context.Background(), "What is your plan for jobs?", "s1")
	assert.Contains(t, model.prompts[0], "Communication strategy: ")
	assert.Contains(t, model.prompts[0], "first-person engagement")
}

func TestProcessMessage_ConcurrentSameSession(t *testing.T) {
	model := &scriptedLLM{}
	o, sessions, _ := newTestOrchestrator(t, model, &fakeRunner{})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.ProcessMessage(context.Background(), "hi", "shared")
		}()
	}
	wg.Wait()

	s, _ := sessions.Get("shared")
	require.Len(t, s.Turns, 10)
	for i := 0; i < len(s.Turns); i += 2 {
		assert.Equal(t, session.RoleUser, s.Turns[i].Role, "turns never interleave")
		assert.Equal(t, session.RoleAssistant, s.Turns[i+1].Role)
	}
}

func TestProcessMessage_ModelTimeout(t *testing.T) {
	stalled := llmFunc(func(ctx context.Context, _ []llm.Message) (*llm.ToolResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	sessions := session.NewManager(10, time.Hour, nil)
	o := NewOrchestrator(stalled, &fakeRunner{}, sessions, nil,
		Config{CandidateName: "Jane Doe", ModelTimeout: 20 * time.Millisecond}, nil)

	start := time.Now()
	reply, meta := o.ProcessMessage(context.Background(), "Hello?", "s1")

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, FailureReply, reply)
	assert.Contains(t, meta.Error, "model call timed out after 20ms")

	s, ok := sessions.Get("s1")
	require.True(t, ok)
	assert.Equal(t, FailureReply, s.Turns[len(s.Turns)-1].Content)
}

func TestProcessMessage_SessionEvictedMidTurnKeepsTurns(t *testing.T) {
	sessions := session.NewManager(1, time.Hour, nil)
	model := llmFunc(func(context.Context, []llm.Message) (*llm.ToolResponse, error) {
		// A second visitor fills the only slot while this turn runs.
		sessions.GetOrCreate("other-visitor")
		return &llm.ToolResponse{Text: "Jane supports light rail."}, nil
	})
	o := NewOrchestrator(model, &fakeRunner{}, sessions, nil, Config{CandidateName: "Jane Doe"}, nil)

	reply, _ := o.ProcessMessage(context.Background(), "What about transit?", "s1")
	assert.Equal(t, "Jane supports light rail.", reply)

	s, ok := sessions.Get("s1")
	require.True(t, ok)
	require.Len(t, s.Turns, 2)
	assert.Equal(t, "What about transit?", s.Turns[0].Content)
	assert.Equal(t, "Jane supports light rail.", s.Turns[1].Content)
	assert.Equal(t, 1, sessions.Len())
}

func TestProcessMessage_OnlyThresholdedEvidenceReachesModel(t *testing.T) {
	qc, err := classifier.NewClassifier()
	require.NoError(t, err)
	searcher := staticSearcher{
		knowledge.CollectionCandidatePlatform: {{Text: "Jane will double bus service.", Source: "platform.md", Similarity: 0.8}},
		// 0.3 x 0.6 = 0.18, under the third-party threshold.
		knowledge.CollectionPartyPlatform: {{Text: "Party opposes all transit.", Source: "party.md", Similarity: 0.3}},
	}
	executor := tools.NewExecutor(tools.Dependencies{
		Retriever: retrieval.NewOrchestrator(searcher, nil, retrieval.Config{CandidateName: "Jane Doe"}, nil),
		Analyzer:  qc,
		Searcher:  searcher,
	})

	model := &scriptedLLM{responses: []*llm.ToolResponse{
		{ToolCalls: []llm.ToolCallRequest{{Name: "search_policy_collections", Arguments: map[string]any{"query": "What is the transit plan?"}}}},
		{Text: "Jane will double bus service."},
	}}
	sessions := session.NewManager(10, time.Hour, nil)
	o := NewOrchestrator(model, executor, sessions, qc, Config{CandidateName: "Jane Doe"}, nil)

	_, meta := o.ProcessMessage(context.Background(), "What is the transit plan?", "s1")
	require.Empty(t, meta.Error)
	assert.InDelta(t, 0.8, meta.Confidence, 1e-9)
	assert.Equal(t, []string{"platform.md"}, meta.Sources)

	require.Len(t, model.calls, 2)
	toolTurn := model.calls[1][len(model.calls[1])-1]
	assert.Equal(t, llm.RoleTool, toolTurn.Role)
	assert.Contains(t, toolTurn.Content, "=== FACTS ===")
	assert.Contains(t, toolTurn.Content, "Jane will double bus service.")
	assert.NotContains(t, toolTurn.Content, "Party opposes all transit.")
}
