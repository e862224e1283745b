// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate/entities/models"
)

type platformHits struct {
	Get struct {
		Platform []struct {
			Content    string `json:"content"`
			Additional struct {
				Certainty *float64 `json:"certainty"`
			} `json:"_additional"`
		} `json:"Platform"`
	} `json:"Get"`
}

func TestParseGraphQLResponse(t *testing.T) {
	resp := &models.GraphQLResponse{
		Data: map[string]models.JSONObject{
			"Get": map[string]interface{}{
				"Platform": []interface{}{
					map[string]interface{}{
						"content":     "Property tax relief for seniors.",
						"_additional": map[string]interface{}{"certainty": 0.91},
					},
				},
			},
		},
	}

	parsed, err := ParseGraphQLResponse[platformHits](resp)
	require.NoError(t, err)
	require.Len(t, parsed.Get.Platform, 1)
	assert.Equal(t, "Property tax relief for seniors.", parsed.Get.Platform[0].Content)
	require.NotNil(t, parsed.Get.Platform[0].Additional.Certainty)
	assert.InDelta(t, 0.91, *parsed.Get.Platform[0].Additional.Certainty, 1e-9)
}

func TestParseGraphQLResponse_Nil(t *testing.T) {
	_, err := ParseGraphQLResponse[platformHits](nil)
	assert.Error(t, err)
}

func TestChunkProperties_ToMap(t *testing.T) {
	p := ChunkProperties{Content: "c", Source: "s#1", ParentSource: "s", Title: "T", IngestedAt: 42}
	m := p.ToMap()
	assert.Equal(t, "c", m["content"])
	assert.Equal(t, "s", m["parent_source"])
	assert.Equal(t, int64(42), m["ingested_at"])
	assert.Len(t, m, 5)
}
