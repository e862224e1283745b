// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package policy_engine

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianCivic/services/policy_engine/enforcement"
	"gopkg.in/yaml.v3"
)

// PolicyEngine screens user text for sensitive data (card numbers, bank
// details, government identifiers) before it reaches a model or a log.
type PolicyEngine struct {
	Classifiers []Classification
}

// NewPolicyEngine loads the policy definitions embedded via the enforcement package.
//
// It performs the following operations:
// 1. Unmarshals the embedded YAML data.
// 2. Compiles all regex patterns.
// 3. Sorts classifications by priority.
func NewPolicyEngine() (*PolicyEngine, error) {
	var classificationFile PolicyEngineClassificationFile
	if err := yaml.Unmarshal(enforcement.DataClassificationPatterns, &classificationFile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the embedded policy file: %w", err)
	}

	if err := classificationFile.CompileRegexes(); err != nil {
		return nil, fmt.Errorf("failed to compile a regex %w", err)
	}

	classificationFile.SortByPriority()

	return &PolicyEngine{Classifiers: classificationFile.ClassificationPatterns}, nil
}

// ClassifyData returns the name of the highest-priority classification that
// matches data, or "public" when nothing matches.
func (e *PolicyEngine) ClassifyData(data []byte) string {
	text := string(data)
	for _, classifier := range e.Classifiers {
		for i := range classifier.Patterns {
			if classifier.Patterns[i].matches(text) {
				return classifier.Name
			}
		}
	}
	return "public"
}

// ScanText checks every line of content against every pattern and reports
// each match. The matched text itself is deliberately left out of findings so
// that they can be returned to clients and logged.
func (e *PolicyEngine) ScanText(content string) []ScanFinding {
	var findings []ScanFinding
	lines := strings.Split(content, "\n")
	for lineNum, line := range lines {
		for _, classifier := range e.Classifiers {
			for _, pattern := range classifier.Patterns {
				if pattern.matches(line) {
					findings = append(findings, ScanFinding{
						LineNumber:         lineNum + 1,
						ClassificationName: classifier.Name,
						PatternId:          pattern.Id,
						PatternDescription: pattern.Description,
						Confidence:         pattern.Confidence,
					})
				}
			}
		}
	}
	return findings
}
