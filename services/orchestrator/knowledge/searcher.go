// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package knowledge wraps the Weaviate vector store: similarity search over
// named collections, schema management, ingestion, and the scripture seed.
package knowledge

import (
	"context"
	"log/slog"
	"strings"

	"github.com/AleutianAI/AleutianCivic/services/orchestrator/datatypes"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("aleutian.civic.knowledge")

// maxQueryLength bounds the text sent to the embedder, in runes.
const maxQueryLength = 2000

// Passage is one stored chunk returned by a similarity search.
// Similarity is Weaviate certainty, always in [0, 1].
type Passage struct {
	Text       string  `json:"text"`
	Source     string  `json:"source"`
	Title      string  `json:"title,omitempty"`
	Similarity float64 `json:"similarity"`
}

// Searcher runs similarity search against one named collection.
//
// # Description
//
// Search never returns an error. Backend failures, unknown collections and
// empty queries all yield an empty slice and a log line, so callers can
// treat a broken tier as an empty tier.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Searcher interface {
	Search(ctx context.Context, collection, query string, limit int) []Passage
}

// WeaviateSearcher implements Searcher with nearVector queries.
type WeaviateSearcher struct {
	client   *weaviate.Client
	embedder Embedder
}

// NewWeaviateSearcher creates a searcher over an existing client.
func NewWeaviateSearcher(client *weaviate.Client, embedder Embedder) *WeaviateSearcher {
	return &WeaviateSearcher{client: client, embedder: embedder}
}

type passageHit struct {
	Content    string `json:"content"`
	Source     string `json:"source"`
	Title      string `json:"title"`
	Additional struct {
		Certainty *float64 `json:"certainty"`
	} `json:"_additional"`
}

type getResponse struct {
	Get map[string][]passageHit `json:"Get"`
}

// Search implements Searcher.
func (s *WeaviateSearcher) Search(ctx context.Context, collection, query string, limit int) []Passage {
	ctx, span := tracer.Start(ctx, "WeaviateSearcher.Search")
	defer span.End()
	span.SetAttributes(attribute.String("knowledge.collection", collection), attribute.Int("knowledge.limit", limit))

	query = strings.TrimSpace(query)
	if query == "" || collection == "" || limit <= 0 {
		return []Passage{}
	}
	if r := []rune(query); len(r) > maxQueryLength {
		query = string(r[:maxQueryLength])
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Warn("Failed to embed query for knowledge search", "collection", collection, "error", err)
		return []Passage{}
	}

	nearVector := s.client.GraphQL().NearVectorArgBuilder().
		WithVector(vector)

	// certainty is always in [0,1], unlike distance which depends on the metric
	fields := []graphql.Field{
		{Name: "content"},
		{Name: "source"},
		{Name: "title"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "certainty"},
		}},
	}

	result, err := s.client.GraphQL().Get().
		WithClassName(collection).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Warn("Knowledge search failed", "collection", collection, "error", err)
		return []Passage{}
	}
	if len(result.Errors) > 0 {
		slog.Warn("Knowledge search returned GraphQL errors", "collection", collection,
			"error", result.Errors[0].Message)
		return []Passage{}
	}

	parsed, err := datatypes.ParseGraphQLResponse[getResponse](result)
	if err != nil {
		slog.Warn("Failed to parse knowledge search results", "collection", collection, "error", err)
		return []Passage{}
	}
	passages := toPassages(parsed.Get[collection])
	span.SetAttributes(attribute.Int("knowledge.hits", len(passages)))
	return passages
}

func toPassages(hits []passageHit) []Passage {
	passages := make([]Passage, 0, len(hits))
	for _, h := range hits {
		if strings.TrimSpace(h.Content) == "" {
			continue
		}
		similarity := 0.0
		if h.Additional.Certainty != nil {
			similarity = clamp01(*h.Additional.Certainty)
		}
		passages = append(passages, Passage{
			Text:       h.Content,
			Source:     h.Source,
			Title:      h.Title,
			Similarity: similarity,
		})
	}
	return passages
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
