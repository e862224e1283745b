// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// NewLocalLlamaCppClient targets a llama.cpp server started with --jinja,
// which exposes an OpenAI-compatible /v1/chat/completions with tool calling.
//
// LLM_SERVICE_URL_BASE is required; LOCAL_MODEL names the loaded model
// (llama.cpp ignores it but the field is mandatory).
func NewLocalLlamaCppClient() (*OpenAIClient, error) {
	baseURL := os.Getenv("LLM_SERVICE_URL_BASE")
	if baseURL == "" {
		return nil, fmt.Errorf("LLM_SERVICE_URL_BASE environment variable not set")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	if !strings.HasSuffix(baseURL, "/v1") {
		baseURL += "/v1"
	}
	model := os.Getenv("LOCAL_MODEL")
	if model == "" {
		model = "local"
	}

	cfg := openai.DefaultConfig("sk-no-key-required")
	cfg.BaseURL = baseURL
	cfg.HTTPClient = &http.Client{Timeout: 5 * time.Minute}

	slog.Info("Initializing local llama.cpp client", "base_url", baseURL, "model", model)
	return NewOpenAIClientWithConfig(cfg, model), nil
}
