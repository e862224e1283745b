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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("LLM_BACKEND", "Ollama")
	t.Setenv("SEARCH_PROVIDER", "searxng")
	t.Setenv("SEARCH_API_URL", "http://searx:8080")
	t.Setenv("SESSION_TIMEOUT", "15m")
	t.Setenv("SESSION_MAX", "not-a-number")
	t.Setenv("MIDTRANS_PRODUCTION", "true")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("CANDIDATE_NAME", "Jane Doe")
	t.Setenv("MODEL_TIMEOUT", "45s")

	cfg := ConfigFromEnv()

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "ollama", cfg.LLMBackend)
	assert.Equal(t, "searxng", cfg.Search.Provider)
	assert.Equal(t, "http://searx:8080", cfg.Search.APIURL)
	assert.Equal(t, 15*time.Minute, cfg.SessionTimeout)
	assert.Equal(t, 0, cfg.SessionMax)
	assert.True(t, cfg.MidtransProduction)
	assert.Equal(t, "sk-test", cfg.OpenAIAPIKey)
	assert.Equal(t, "Jane Doe", cfg.CandidateName)
	assert.Equal(t, 45*time.Second, cfg.ModelTimeout)
}

func TestConfigFromEnv_UnsetSearchProviderDefaultsToNone(t *testing.T) {
	t.Setenv("SEARCH_PROVIDER", "")

	cfg := applyConfigDefaults(ConfigFromEnv())
	assert.Equal(t, "none", cfg.Search.Provider)
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("CIVIC_TEST_DURATION", "90s")
	t.Setenv("CIVIC_TEST_BAD_DURATION", "soon")
	t.Setenv("CIVIC_TEST_BOOL", "yes")

	assert.Equal(t, 90*time.Second, getEnvDuration("CIVIC_TEST_DURATION", time.Second))
	assert.Equal(t, time.Second, getEnvDuration("CIVIC_TEST_BAD_DURATION", time.Second))
	assert.False(t, getEnvBool("CIVIC_TEST_BOOL", false))
	assert.Equal(t, "fallback", getEnvString("CIVIC_TEST_UNSET", "fallback"))
}
