// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	maxContextItems   = 5
	maxContextContent = 500
)

// Call is one tool invocation requested by the model.
type Call struct {
	ID        string         `json:"id,omitempty"`
	Name      Name           `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Result is the outcome of executing a Call.
type Result struct {
	ToolName   Name     `json:"tool_name"`
	Success    bool     `json:"success"`
	Data       any      `json:"data,omitempty"`
	Error      string   `json:"error,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Sources    []string `json:"sources,omitempty"`

	// HasDualSources is set by search tools that ran dual-source checks.
	HasDualSources *bool `json:"has_dual_sources,omitempty"`
	// Context, when set, is the rendered evidence handed to the model in
	// place of the per-item listing.
	Context string `json:"context,omitempty"`
}

func failure(name Name, format string, args ...any) Result {
	return Result{ToolName: name, Success: false, Error: fmt.Sprintf(format, args...)}
}

// ContextString renders the result for the model's next turn.
func (r Result) ContextString() string {
	if !r.Success {
		return fmt.Sprintf("[TOOL ERROR: %s] %s", r.ToolName, r.Error)
	}
	header := fmt.Sprintf("[TOOL RESULT: %s]\n", r.ToolName)
	if r.Context != "" {
		return header + r.Context
	}

	switch data := r.Data.(type) {
	case []map[string]any:
		items := make([]string, 0, min(len(data), maxContextItems))
		for i, item := range data {
			if i >= maxContextItems {
				break
			}
			content := firstString(item, "content", "snippet")
			if content == "" {
				content = fmt.Sprint(item)
			}
			source := firstString(item, "source", "url")
			if source == "" {
				source = "unknown"
			}
			confidence := "N/A"
			if c, ok := item["confidence"]; ok {
				confidence = fmt.Sprint(c)
			}
			items = append(items, fmt.Sprintf("[Result %d] (confidence: %s, source: %s)\n%s",
				i+1, confidence, source, truncate(content, maxContextContent)))
		}
		return header + strings.Join(items, "\n\n")
	case map[string]any:
		encoded, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return header + fmt.Sprint(data)
		}
		return header + string(encoded)
	default:
		return header + fmt.Sprint(data)
	}
}

func firstString(item map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := item[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
