// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides tool-calling clients for the supported model backends:
// OpenAI, a local llama.cpp server, Ollama, and Anthropic.
package llm

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
)

// Conversation roles understood by every backend adapter.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one conversation entry sent to a model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolDefinition describes one callable operation. Parameters is a
// JSON-schema object ("type", "properties", "required").
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolCallRequest is a tool invocation requested by the model.
type ToolCallRequest struct {
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Usage reports token accounting for one model call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ToolResponse carries either final text or a batch of tool calls.
// A response with neither is treated as empty text by callers.
type ToolResponse struct {
	Text      string            `json:"text,omitempty"`
	ToolCalls []ToolCallRequest `json:"tool_calls,omitempty"`
	Usage     *Usage            `json:"usage,omitempty"`
}

// GenerationParams tunes sampling. Nil fields use the backend default.
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// ToolCallingClient is the contract between the agent loop and a model backend.
type ToolCallingClient interface {
	// GenerateWithTools sends the conversation, the tool catalog, and the
	// system prompt, and returns final text or requested tool calls.
	GenerateWithTools(ctx context.Context, messages []Message, tools []ToolDefinition,
		systemPrompt string) (*ToolResponse, error)
}

// decodeArguments parses a JSON argument object. Malformed input yields an
// empty map so that schema validation reports the missing fields.
func decodeArguments(raw string, toolName string) map[string]any {
	args := map[string]any{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		slog.Warn("Model returned malformed tool arguments", "tool", toolName, "error", err)
		return map[string]any{}
	}
	return args
}

// toolTranscript renders a tool-role message as plain text for backends
// that only accept tool results paired with their originating call ids.
func toolTranscript(content string) string {
	return "Tool results:\n" + content
}
