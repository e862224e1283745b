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
This file embeds data_classification_patterns.yaml into the binary so the
sensitive-data screen cannot be altered on the host without a rebuild.
*/

package enforcement

import (
	_ "embed"
)

// DataClassificationPatterns holds the raw bytes of 'data_classification_patterns.yaml'.
//
// Usage:
//
//	err := yaml.Unmarshal(enforcement.DataClassificationPatterns, &targetStruct)
//
//go:embed data_classification_patterns.yaml
var DataClassificationPatterns []byte
