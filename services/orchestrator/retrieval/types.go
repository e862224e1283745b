// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package retrieval

import (
	"encoding/json"
	"time"
)

// Result is one trust-weighted piece of evidence.
//
// Confidence is derived, never stored, so it always equals
// RawSimilarity × TrustMultiplier.
type Result struct {
	Text            string            `json:"text"`
	Collection      string            `json:"collection"`
	RawSimilarity   float64           `json:"raw_similarity"`
	TrustMultiplier float64           `json:"trust_multiplier"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// Confidence returns RawSimilarity × TrustMultiplier.
func (r Result) Confidence() float64 {
	return r.RawSimilarity * r.TrustMultiplier
}

// Source returns the best available source label.
func (r Result) Source() string {
	for _, key := range []string{"source", "url", "title"} {
		if v := r.Metadata[key]; v != "" {
			return v
		}
	}
	return r.Collection
}

// MarshalJSON includes the derived confidence for API consumers.
func (r Result) MarshalJSON() ([]byte, error) {
	type alias Result
	return json.Marshal(struct {
		alias
		Confidence float64 `json:"confidence"`
	}{alias: alias(r), Confidence: r.Confidence()})
}

// Context is the tiered evidence set for one question.
type Context struct {
	Content        []Result `json:"content"`
	Style          []Result `json:"style"`
	Scripture      []Result `json:"scripture"`
	Web            []Result `json:"web"`
	BestConfidence float64  `json:"best_confidence"`
	HasDualSources bool     `json:"has_dual_sources"`
}

// IsEmpty reports whether no tier produced anything.
func (c Context) IsEmpty() bool {
	return len(c.Content) == 0 && len(c.Style) == 0 && len(c.Scripture) == 0 && len(c.Web) == 0
}

// Sources returns the distinct source labels across Content and Web.
func (c Context) Sources() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, tier := range [][]Result{c.Content, c.Web} {
		for _, r := range tier {
			s := r.Source()
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// Config tunes the orchestrator.
type Config struct {
	// CandidateName is used in the own-side web fallback query.
	CandidateName string
	// OfficialDomain identifies first-party web results, e.g. "janeforcouncil.com".
	OfficialDomain string
	// BackendTimeout bounds each individual backend call. Default 5s.
	BackendTimeout time.Duration
	// DefaultLimit is used when Retrieve is called with limit <= 0. Default 5.
	DefaultLimit int
}

func (c Config) withDefaults() Config {
	if c.BackendTimeout <= 0 {
		c.BackendTimeout = 5 * time.Second
	}
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = 5
	}
	return c
}
