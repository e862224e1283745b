// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package classifier maps an incoming question to a QuestionAnalysis that
// drives retrieval: which tiers to search, whether scripture or dual sources
// are required, and which style keywords describe the asker.
//
// Classification is pure and deterministic. Rules are embedded YAML compiled
// once by NewClassifier.
package classifier

import (
	"fmt"
	"sort"
	"strings"

	"github.com/AleutianAI/AleutianCivic/services/classifier/rules"
	"gopkg.in/yaml.v3"
)

// LowConfidenceCutoff is the prior retrieval confidence below which an
// unmatched question is treated as low confidence.
const LowConfidenceCutoff = 0.3

// Classifier holds the compiled rule set. It is safe for concurrent use.
type Classifier struct {
	rules RuleFile
}

// NewClassifier loads and compiles the embedded rule file.
//
// It performs the following operations:
// 1. Unmarshals the embedded YAML.
// 2. Compiles all regex patterns.
// 3. Sorts families by priority.
func NewClassifier() (*Classifier, error) {
	return newClassifierFromBytes(rules.QuestionRules)
}

func newClassifierFromBytes(data []byte) (*Classifier, error) {
	var ruleFile RuleFile
	if err := yaml.Unmarshal(data, &ruleFile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the embedded question rules: %w", err)
	}
	if err := ruleFile.CompileRegexes(); err != nil {
		return nil, fmt.Errorf("failed to compile question rules: %w", err)
	}
	ruleFile.SortByPriority()
	return &Classifier{rules: ruleFile}, nil
}

// Classify analyzes a question. priorConfidence only matters when no
// pattern family matches.
func (c *Classifier) Classify(question string, priorConfidence float64) QuestionAnalysis {
	lower := strings.ToLower(question)

	questionType := c.detectType(lower, priorConfidence)
	analysis := QuestionAnalysis{
		QuestionType:        questionType,
		NeedsExternalSearch: needsExternalSearch(questionType),
		NeedsDualSources:    questionType == TypeComparison,
		ComparisonTargets:   []string{},
		SearchQueries:       []string{},
		ScriptureTopics:     []string{},
	}
	analysis.NeedsScripture = questionType == TypeTruthSeeking && !c.isTrivialFactual(lower)

	if analysis.NeedsDualSources {
		analysis.ComparisonTargets = c.extractTargets(question)
	}
	if analysis.NeedsExternalSearch {
		analysis.SearchQueries = searchQueries(question, questionType, analysis.ComparisonTargets)
	}
	if analysis.NeedsScripture {
		analysis.ScriptureTopics = c.scriptureTopics(lower)
	}

	analysis.AwarenessLevel = firstLevel(lower, c.rules.Awareness)
	analysis.EmotionalTone = firstLevel(lower, c.rules.Tone)
	analysis.StyleKeywords = c.styleKeywords(questionType, analysis.AwarenessLevel, analysis.EmotionalTone)
	analysis.Strategy = c.strategy(analysis.AwarenessLevel, analysis.EmotionalTone, priorConfidence)
	return analysis
}

// detectType checks pattern families before consulting confidence so that
// moral questions keep their scripture treatment when retrieval is weak.
func (c *Classifier) detectType(lower string, priorConfidence float64) QuestionType {
	for _, family := range c.rules.Families {
		for _, re := range family.CompiledPatterns {
			if re.MatchString(lower) {
				return family.Name
			}
		}
	}
	if priorConfidence < LowConfidenceCutoff {
		return TypeLowConfidence
	}
	return TypePolicy
}

func needsExternalSearch(t QuestionType) bool {
	switch t {
	case TypeComparison, TypeStatistics, TypeRecentEvent, TypeLowConfidence:
		return true
	default:
		return false
	}
}

func (c *Classifier) isTrivialFactual(lower string) bool {
	for _, re := range c.rules.trivialCompiled {
		if re.MatchString(lower) {
			return true
		}
	}
	return false
}

func (c *Classifier) extractTargets(question string) []string {
	match := c.rules.targetCompiled.FindStringSubmatch(question)
	if len(match) < 2 {
		return []string{}
	}
	target := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(match[1]), ".!?"))
	if target == "" {
		return []string{}
	}
	return []string{target}
}

func searchQueries(question string, t QuestionType, targets []string) []string {
	var queries []string
	switch t {
	case TypeComparison:
		for _, target := range targets {
			queries = append(queries, target+" political position policy platform")
		}
	case TypeStatistics:
		queries = append(queries, question+" latest data statistics")
	case TypeRecentEvent:
		queries = append(queries, question+" latest news")
	case TypeLowConfidence:
		queries = append(queries, question)
	}
	if len(queries) == 0 {
		return []string{question}
	}
	return queries
}

func (c *Classifier) scriptureTopics(lower string) []string {
	var topics []string
	for _, entry := range c.rules.ScriptureTopics {
		for _, keyword := range entry.Keywords {
			if strings.Contains(lower, keyword) {
				topics = append(topics, entry.Topic)
				break
			}
		}
	}
	if len(topics) == 0 {
		return append([]string(nil), c.rules.DefaultScriptureTopics...)
	}
	return topics
}

func firstLevel(lower string, ladder KeywordLadder) string {
	for _, level := range ladder.Levels {
		for _, keyword := range level.Keywords {
			if strings.Contains(lower, keyword) {
				return level.Name
			}
		}
	}
	return ladder.Default
}

// styleKeywords returns a deduplicated, sorted keyword set. Sorting keeps the
// style query stable across calls.
func (c *Classifier) styleKeywords(t QuestionType, awareness, tone string) []string {
	table := c.rules.StyleKeywords
	seen := make(map[string]struct{})
	var keywords []string
	add := func(words []string) {
		for _, w := range words {
			if _, ok := seen[w]; ok {
				continue
			}
			seen[w] = struct{}{}
			keywords = append(keywords, w)
		}
	}
	add(table.Awareness[awareness])
	add(table.Tone[tone])
	add(table.QuestionType[string(t)])
	add(table.Core)
	sort.Strings(keywords)
	return keywords
}

func (c *Classifier) strategy(awareness, tone string, priorConfidence float64) string {
	table := c.rules.Strategies
	parts := make([]string, 0, 5)
	if s, ok := table.Awareness[awareness]; ok {
		parts = append(parts, s)
	} else {
		parts = append(parts, "Direct and informative")
	}
	if s, ok := table.Tone[tone]; ok {
		parts = append(parts, s)
	} else {
		parts = append(parts, table.DefaultTone)
	}
	switch {
	case priorConfidence < 0.5:
		parts = append(parts, "humble and honest about limitations")
	case priorConfidence > 0.7:
		parts = append(parts, "confident and authoritative")
	}
	parts = append(parts, "first-person engagement", "benefit-focused")
	return strings.Join(parts, " + ")
}
