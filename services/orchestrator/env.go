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
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianCivic/services/orchestrator/websearch"
)

const openAISecretPath = "/run/secrets/openai_api_key"

// ConfigFromEnv builds a Config from environment variables. Unset values
// stay zero so applyConfigDefaults can fill them.
//
// # Environment Variables
//
//   - PORT (or ORCHESTRATOR_PORT), GIN_MODE
//   - LLM_BACKEND, WEAVIATE_SERVICE_URL
//   - EMBEDDING_BACKEND, EMBEDDING_SERVICE_URL, EMBEDDING_MODEL, OPENAI_API_KEY
//   - SEARCH_PROVIDER, SEARCH_API_KEY, SEARCH_API_URL
//   - CANDIDATE_NAME, OFFICIAL_SITE_DOMAIN
//   - RETRIEVAL_BACKEND_TIMEOUT, AGENT_MAX_ITERATIONS
//   - DATABASE_PATH, SESSION_MAX, SESSION_TIMEOUT, SESSION_SWEEP_INTERVAL
//   - PAYMENT_GATEWAY, DONATION_BASE_URL, MIDTRANS_SERVER_KEY, MIDTRANS_PRODUCTION
//   - ADMIN_API_TOKEN, OTEL_EXPORTER_OTLP_ENDPOINT
func ConfigFromEnv() Config {
	search := websearch.LoadConfig()
	if os.Getenv("SEARCH_PROVIDER") == "" {
		search.Provider = ""
	}
	return Config{
		Port:                    getEnvInt("PORT", getEnvInt("ORCHESTRATOR_PORT", 0)),
		GinMode:                 os.Getenv("GIN_MODE"),
		LLMBackend:              strings.ToLower(getEnvString("LLM_BACKEND", "")),
		WeaviateURL:             os.Getenv("WEAVIATE_SERVICE_URL"),
		EmbeddingBackend:        strings.ToLower(os.Getenv("EMBEDDING_BACKEND")),
		EmbeddingServiceURL:     os.Getenv("EMBEDDING_SERVICE_URL"),
		EmbeddingModel:          os.Getenv("EMBEDDING_MODEL"),
		OpenAIAPIKey:            readOpenAIKey(),
		Search:                  search,
		CandidateName:           os.Getenv("CANDIDATE_NAME"),
		OfficialDomain:          os.Getenv("OFFICIAL_SITE_DOMAIN"),
		RetrievalBackendTimeout: getEnvDuration("RETRIEVAL_BACKEND_TIMEOUT", 0),
		MaxIterations:           getEnvInt("AGENT_MAX_ITERATIONS", 0),
		ModelTimeout:            getEnvDuration("MODEL_TIMEOUT", 0),
		DatabasePath:            os.Getenv("DATABASE_PATH"),
		SessionMax:              getEnvInt("SESSION_MAX", 0),
		SessionTimeout:          getEnvDuration("SESSION_TIMEOUT", 0),
		SessionSweepInterval:    getEnvDuration("SESSION_SWEEP_INTERVAL", 0),
		PaymentGateway:          strings.ToLower(os.Getenv("PAYMENT_GATEWAY")),
		DonationBaseURL:         os.Getenv("DONATION_BASE_URL"),
		MidtransServerKey:       os.Getenv("MIDTRANS_SERVER_KEY"),
		MidtransProduction:      getEnvBool("MIDTRANS_PRODUCTION", false),
		AdminToken:              os.Getenv("ADMIN_API_TOKEN"),
		OTelEndpoint:            os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}
}

// readOpenAIKey prefers OPENAI_API_KEY and falls back to the mounted secret.
func readOpenAIKey() string {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return key
	}
	data, err := os.ReadFile(openAISecretPath)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		slog.Warn("Ignoring malformed integer env var", "key", key, "value", value)
	}
	return defaultValue
}

// getEnvDuration parses values such as "90s" or "60m".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		slog.Warn("Ignoring malformed duration env var", "key", key, "value", value)
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
