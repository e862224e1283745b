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
	"testing"
)

func TestPolicyEngine(t *testing.T) {
	engine, err := NewPolicyEngine()
	if err != nil {
		t.Fatalf("Failed to initialize engine: %v", err)
	}

	tests := []struct {
		name            string
		input           string
		shouldFind      bool
		expectedClass   string
		expectedPattern string
	}{
		{
			name:          "Campaign Question",
			input:         "What is your plan for the 2026 transit budget? Call me at 555-123-4567.",
			shouldFind:    false,
			expectedClass: "",
		},
		{
			name:            "Card Number",
			input:           "I want to donate, my card is 4111 1111 1111 1111",
			shouldFind:      true,
			expectedClass:   "financial",
			expectedPattern: "CREDIT_CARD_NUMBER",
		},
		{
			name:          "Year List",
			input:         "How many jobs were created in 2020 2021 2022 2023?",
			shouldFind:    false,
			expectedClass: "",
		},
		{
			name:          "Grouped Digits Failing Luhn",
			input:         "Reference 1234 5678 9012 3456 from the mailer",
			shouldFind:    false,
			expectedClass: "",
		},
		{
			name:            "Amex Grouping",
			input:           "card 3782 822463 10005",
			shouldFind:      true,
			expectedClass:   "financial",
			expectedPattern: "CREDIT_CARD_NUMBER",
		},
		{
			name:            "Contiguous Card Number",
			input:           "use 4111111111111111 please",
			shouldFind:      true,
			expectedClass:   "financial",
			expectedPattern: "CREDIT_CARD_NUMBER",
		},
		{
			name:            "Routing Number",
			input:           "routing number: 021000021",
			shouldFind:      true,
			expectedClass:   "financial",
			expectedPattern: "BANK_ROUTING_NUMBER",
		},
		{
			name:            "Social Security Number",
			input:           "My SSN is 123-45-6789, can I still volunteer?",
			shouldFind:      true,
			expectedClass:   "pii",
			expectedPattern: "US_SSN",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			findings := engine.ScanText(tc.input)

			if tc.shouldFind {
				if len(findings) == 0 {
					t.Errorf("Expected to find '%s' but got 0 findings.", tc.expectedPattern)
					return
				}
				first := findings[0]
				if first.ClassificationName != tc.expectedClass {
					t.Errorf("Expected classification '%s', got '%s'", tc.expectedClass, first.ClassificationName)
				}
				if first.PatternId != tc.expectedPattern {
					t.Errorf("Expected pattern ID '%s', got '%s'", tc.expectedPattern, first.PatternId)
				}
				if fastClass := engine.ClassifyData([]byte(tc.input)); fastClass != tc.expectedClass {
					t.Errorf("ClassifyData mismatch. Expected '%s', got '%s'", tc.expectedClass, fastClass)
				}
				return
			}

			if len(findings) > 0 {
				t.Errorf("Expected no findings, got %d (first: %s)", len(findings), findings[0].PatternId)
			}
			if fastClass := engine.ClassifyData([]byte(tc.input)); fastClass != "public" {
				t.Errorf("Expected 'public', got '%s'", fastClass)
			}
		})
	}
}

func TestScanText_ReportsLineNumbers(t *testing.T) {
	engine, err := NewPolicyEngine()
	if err != nil {
		t.Fatalf("Failed to initialize engine: %v", err)
	}

	findings := engine.ScanText("hello\nssn 123-45-6789")
	if len(findings) != 1 {
		t.Fatalf("Expected 1 finding, got %d", len(findings))
	}
	if findings[0].LineNumber != 2 {
		t.Errorf("Expected line 2, got %d", findings[0].LineNumber)
	}
}

func TestLuhnValid(t *testing.T) {
	cases := map[string]bool{
		"4111 1111 1111 1111": true,
		"378282246310005":     true,
		"2020202120222023":    false,
		"":                    false,
	}
	for input, want := range cases {
		if got := luhnValid(input); got != want {
			t.Errorf("luhnValid(%q) = %v, want %v", input, got, want)
		}
	}
}
