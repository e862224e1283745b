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
	"sort"

	"github.com/AleutianAI/AleutianCivic/services/orchestrator/knowledge"
)

// Pseudo-collections for web results. They never exist in Weaviate.
const (
	CollectionOfficialWeb = "official_web"
	CollectionOpenWeb     = "open_web"
)

// Tier labels used in metrics and context sections.
const (
	tierContent   = "content"
	tierStyle     = "style"
	tierScripture = "scripture"
	tierWeb       = "web"
)

// trustWeights multiplies raw similarity by source trust.
var trustWeights = map[string]float64{
	knowledge.CollectionCandidatePlatform: 1.0,
	knowledge.CollectionPreviousQA:        1.0,
	CollectionOfficialWeb:                 0.8,
	knowledge.CollectionPartyPlatform:     0.6,
	CollectionOpenWeb:                     0.3,
	knowledge.CollectionStyleGuidance:     1.0,
}

// thresholds is the minimum weighted confidence for Content membership.
// Style and scripture are not thresholded.
var thresholds = map[string]float64{
	knowledge.CollectionCandidatePlatform: 0.45,
	knowledge.CollectionPreviousQA:        0.45,
	CollectionOfficialWeb:                 0.40,
	knowledge.CollectionPartyPlatform:     0.35,
	CollectionOpenWeb:                     0.25,
}

// Relaxed thresholds for the single dual-source retry.
const (
	ownRetryThreshold   = 0.25
	otherRetryThreshold = 0.20
	retryLimit          = 3
)

// Similarities assumed for web hits, which carry no vector score.
const (
	webSimilarity           = 0.6
	officialRetrySimilarity = 0.7
)

// TrustWeight returns the multiplier for a collection. Scripture collections
// and unknown collections get 1.0 and 0.5 respectively.
func TrustWeight(collection string) float64 {
	if w, ok := trustWeights[collection]; ok {
		return w
	}
	if knowledge.IsScriptureCollection(collection) {
		return 1.0
	}
	return 0.5
}

// Threshold returns the Content threshold for a collection, 0 when none applies.
func Threshold(collection string) float64 {
	return thresholds[collection]
}

func isOwnSide(collection string) bool {
	switch collection {
	case knowledge.CollectionCandidatePlatform, knowledge.CollectionPreviousQA, CollectionOfficialWeb:
		return true
	}
	return false
}

func isOtherSide(collection string) bool {
	switch collection {
	case knowledge.CollectionPartyPlatform, CollectionOpenWeb:
		return true
	}
	return false
}

// hasSides reports which sides of a comparison are represented.
func hasSides(results []Result) (own, other bool) {
	for _, r := range results {
		if isOwnSide(r.Collection) {
			own = true
		}
		if isOtherSide(r.Collection) {
			other = true
		}
	}
	return own, other
}

// sortByConfidence orders results by confidence descending, keeping
// insertion order for ties.
func sortByConfidence(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Confidence() > results[j].Confidence()
	})
}
