// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

/*
Package rules bakes the question classification rules into the binary so the
classifier behaves identically wherever the executable runs.
*/
package rules

import (
	_ "embed"
)

// QuestionRules holds the raw bytes of question_rules.yaml.
//
// Usage:
//
//	err := yaml.Unmarshal(rules.QuestionRules, &ruleFile)
//
//go:embed question_rules.yaml
var QuestionRules []byte
