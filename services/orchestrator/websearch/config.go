// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package websearch

import (
	"fmt"
	"os"
	"strings"
)

const (
	providerTavily  = "tavily"
	providerBrave   = "brave"
	providerSearxng = "searxng"
	providerNone    = "none"
)

// Config holds environment configuration for search providers.
type Config struct {
	Provider string
	APIKey   string
	APIURL   string
}

// LoadConfig loads search configuration from the environment.
func LoadConfig() Config {
	provider := strings.ToLower(strings.TrimSpace(os.Getenv("SEARCH_PROVIDER")))
	if provider == "" {
		provider = providerTavily
	}
	return Config{
		Provider: provider,
		APIKey:   os.Getenv("SEARCH_API_KEY"),
		APIURL:   os.Getenv("SEARCH_API_URL"),
	}
}

// NewProvider creates a search provider from configuration. The "none"
// provider returns a nil Provider and a nil error: web search is disabled.
func NewProvider(cfg Config) (Provider, error) {
	executor := newHTTPExecutor(defaultExecutorConfig())
	switch cfg.Provider {
	case providerTavily:
		return NewTavilyProvider(cfg.APIKey, cfg.APIURL, executor)
	case providerBrave:
		return NewBraveProvider(cfg.APIKey, cfg.APIURL, executor)
	case providerSearxng:
		return NewSearxngProvider(cfg.APIURL, executor)
	case providerNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported search provider: %s", cfg.Provider)
	}
}
