// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the Weaviate wire shapes shared by the knowledge
// layer.
package datatypes

import (
	"encoding/json"
	"fmt"

	"github.com/weaviate/weaviate/entities/models"
)

// =============================================================================
// Generic GraphQL Response Parser
// =============================================================================

// ParseGraphQLResponse parses a Weaviate GraphQL response into the target type.
//
// # Description
//
// Weaviate returns Data as map[string]models.JSONObject. This re-encodes it
// and decodes into T, whose json tags must mirror the query shape.
//
// # Inputs
//
//   - resp: The GraphQL response from the client's Do() method.
//
// # Outputs
//
//   - *T: Pointer to the parsed struct.
//   - error: Non-nil if resp is nil or decoding fails.
//
// # Example
//
//	type hits struct {
//	    Get map[string][]struct {
//	        Content string `json:"content"`
//	    } `json:"Get"`
//	}
//	parsed, err := ParseGraphQLResponse[hits](resp)
//
// # Limitations
//
//   - Fields absent from the response decode to zero values, not errors.
func ParseGraphQLResponse[T any](resp *models.GraphQLResponse) (*T, error) {
	if resp == nil {
		return nil, fmt.Errorf("nil GraphQL response")
	}

	respBytes, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GraphQL response data: %w", err)
	}

	var result T
	if err := json.Unmarshal(respBytes, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into target type: %w", err)
	}

	return &result, nil
}

// =============================================================================
// Knowledge Chunk Properties
// =============================================================================

// ChunkProperties is the property set stored for every knowledge chunk.
type ChunkProperties struct {
	Content      string `json:"content"`
	Source       string `json:"source"`
	ParentSource string `json:"parent_source"`
	Title        string `json:"title"`
	IngestedAt   int64  `json:"ingested_at"`
}

// ToMap converts the properties to the map form Weaviate objects carry.
func (p *ChunkProperties) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"content":       p.Content,
		"source":        p.Source,
		"parent_source": p.ParentSource,
		"title":         p.Title,
		"ingested_at":   p.IngestedAt,
	}
}
