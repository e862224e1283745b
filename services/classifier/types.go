// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package classifier

import (
	"fmt"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

// QuestionType is the closed set of question categories.
type QuestionType string

const (
	TypeComparison    QuestionType = "comparison"
	TypeStatistics    QuestionType = "statistics"
	TypeRecentEvent   QuestionType = "recent_event"
	TypeTruthSeeking  QuestionType = "truth_seeking"
	TypeLowConfidence QuestionType = "low_confidence"
	TypePolicy        QuestionType = "policy"
)

// UnmarshalYAML rejects family names outside the closed set.
func (q *QuestionType) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	incoming := QuestionType(s)
	switch incoming {
	case TypeComparison, TypeStatistics, TypeRecentEvent, TypeTruthSeeking:
		*q = incoming
		return nil
	default:
		return fmt.Errorf("invalid pattern family: %q", incoming)
	}
}

// QuestionAnalysis is the structured result of classifying one question.
// It is produced once per question and never mutated afterwards.
type QuestionAnalysis struct {
	QuestionType        QuestionType `json:"question_type"`
	NeedsExternalSearch bool         `json:"needs_external_search"`
	NeedsScripture      bool         `json:"needs_scripture"`
	NeedsDualSources    bool         `json:"needs_dual_sources"`
	ComparisonTargets   []string     `json:"comparison_targets"`
	SearchQueries       []string     `json:"search_queries"`
	ScriptureTopics     []string     `json:"scripture_topics"`
	AwarenessLevel      string       `json:"awareness_level"`
	EmotionalTone       string       `json:"emotional_tone"`
	StyleKeywords       []string     `json:"style_keywords"`
	Strategy            string       `json:"strategy"`
}

// RuleFile mirrors question_rules.yaml.
type RuleFile struct {
	Families               []Family          `yaml:"families"`
	TrivialFactual         []string          `yaml:"trivial_factual"`
	ComparisonTarget       string            `yaml:"comparison_target"`
	ScriptureTopics        []TopicKeywords   `yaml:"scripture_topics"`
	DefaultScriptureTopics []string          `yaml:"default_scripture_topics"`
	Awareness              KeywordLadder     `yaml:"awareness"`
	Tone                   KeywordLadder     `yaml:"tone"`
	StyleKeywords          StyleKeywordTable `yaml:"style_keywords"`
	Strategies             StrategyTable     `yaml:"strategies"`

	trivialCompiled []*regexp.Regexp
	targetCompiled  *regexp.Regexp
}

// Family is one prioritized group of question patterns.
type Family struct {
	Name             QuestionType     `yaml:"name"`
	Description      string           `yaml:"description"`
	Priority         int              `yaml:"priority"`
	Patterns         []Pattern        `yaml:"patterns"`
	CompiledPatterns []*regexp.Regexp `yaml:"-"`
}

type Pattern struct {
	Id    string `yaml:"id"`
	Regex string `yaml:"regex"`
}

type TopicKeywords struct {
	Topic    string   `yaml:"topic"`
	Keywords []string `yaml:"keywords"`
}

// KeywordLadder assigns the first level whose keyword appears in the question.
type KeywordLadder struct {
	Default string         `yaml:"default"`
	Levels  []KeywordLevel `yaml:"levels"`
}

type KeywordLevel struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

type StyleKeywordTable struct {
	Awareness    map[string][]string `yaml:"awareness"`
	Tone         map[string][]string `yaml:"tone"`
	QuestionType map[string][]string `yaml:"question_type"`
	Core         []string            `yaml:"core"`
}

type StrategyTable struct {
	Awareness   map[string]string `yaml:"awareness"`
	Tone        map[string]string `yaml:"tone"`
	DefaultTone string            `yaml:"default_tone"`
}

// CompileRegexes compiles every family, trivial-factual, and target pattern.
func (r *RuleFile) CompileRegexes() error {
	for i := range r.Families {
		family := &r.Families[i]
		family.CompiledPatterns = family.CompiledPatterns[:0]
		for _, pattern := range family.Patterns {
			re, err := regexp.Compile(pattern.Regex)
			if err != nil {
				return fmt.Errorf("failed to compile pattern %s: %w", pattern.Id, err)
			}
			family.CompiledPatterns = append(family.CompiledPatterns, re)
		}
	}
	for _, expr := range r.TrivialFactual {
		re, err := regexp.Compile(expr)
		if err != nil {
			return fmt.Errorf("failed to compile trivial factual pattern %s: %w", expr, err)
		}
		r.trivialCompiled = append(r.trivialCompiled, re)
	}
	if r.ComparisonTarget == "" {
		return fmt.Errorf("comparison_target pattern is required")
	}
	re, err := regexp.Compile(r.ComparisonTarget)
	if err != nil {
		return fmt.Errorf("failed to compile comparison target pattern: %w", err)
	}
	r.targetCompiled = re
	return nil
}

// SortByPriority orders families from highest to lowest priority.
func (r *RuleFile) SortByPriority() {
	sort.SliceStable(r.Families, func(i, j int) bool {
		return r.Families[i].Priority > r.Families[j].Priority
	})
}
