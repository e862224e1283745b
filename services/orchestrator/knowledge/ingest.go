// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package knowledge

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/AleutianAI/AleutianCivic/services/orchestrator/datatypes"
)

var (
	CHUNK_SIZE        = 1000
	CHUNK_OVERLAP     = int(float64(CHUNK_SIZE) * 0.10) // 10% of CHUNK_SIZE
	defaultSeparators = []string{"\n\n", "\n", " ", ""}

	markdownSeparators = []string{
		"\n# ", "\n## ", "\n### ", "\n#### ", "\n##### ", "\n###### ",
		"\n\n", "\n", " ", "",
	}
)

// IngestRequest is one document bound for a collection.
type IngestRequest struct {
	Collection string `json:"collection" binding:"required"`
	Content    string `json:"content" binding:"required"`
	Source     string `json:"source" binding:"required"`
	Title      string `json:"title"`
}

// Record is a pre-chunked passage, used when chunk boundaries matter
// (one verse, one answered question).
type Record struct {
	Text   string
	Source string
	Title  string
}

// Ingester chunks, embeds, and batch-writes documents.
type Ingester struct {
	client   *weaviate.Client
	embedder Embedder
}

func NewIngester(client *weaviate.Client, embedder Embedder) *Ingester {
	return &Ingester{client: client, embedder: embedder}
}

// Ingest splits the document and writes one object per chunk. Object ids
// are derived from collection and chunk text, so re-ingesting the same
// document overwrites rather than duplicates.
func (in *Ingester) Ingest(ctx context.Context, req IngestRequest) (int, error) {
	splitter := getSplitterForFile(req.Source)
	chunks, err := splitter.SplitText(req.Content)
	if err != nil {
		return 0, fmt.Errorf("failed to split content: %w", err)
	}
	if len(chunks) == 0 {
		slog.Warn("No chunks produced after splitting", "source", req.Source)
		return 0, nil
	}
	slog.Info("Split document into chunks", "source", req.Source, "chunk_count", len(chunks))

	records := make([]Record, len(chunks))
	for i, chunk := range chunks {
		records[i] = Record{
			Text:   chunk,
			Source: fmt.Sprintf("%s_part_%d", req.Source, i+1),
			Title:  req.Title,
		}
	}
	return in.IngestRecords(ctx, req.Collection, req.Source, records)
}

// IngestRecords embeds and writes records without further splitting.
func (in *Ingester) IngestRecords(ctx context.Context, collection, parentSource string, records []Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = r.Text
	}
	vectors, err := in.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to get batch embeddings: %w", err)
	}
	if len(vectors) != len(records) {
		return 0, fmt.Errorf("embedding service returned mismatched vector count")
	}

	objects := BuildObjects(collection, parentSource, records, vectors, time.Now())
	resp, err := in.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to save objects to Weaviate: %w", err)
	}

	created := 0
	for _, item := range resp {
		if item.Result != nil && item.Result.Status != nil && *item.Result.Status == "SUCCESS" {
			created++
			continue
		}
		if item.Result != nil && item.Result.Errors != nil {
			for _, errItem := range item.Result.Errors.Error {
				slog.Warn("Error in Weaviate batch item", "collection", collection, "error", errItem.Message)
			}
		}
	}
	if created < len(objects) {
		slog.Warn("Errors encountered during Weaviate batch import", "collection", collection,
			"successful", created, "total", len(objects))
	}
	slog.Info("Ingested records", "collection", collection, "source", parentSource, "count", created)
	return created, nil
}

// BuildObjects converts records and their vectors into Weaviate objects.
func BuildObjects(collection, parentSource string, records []Record, vectors [][]float32, now time.Time) []*models.Object {
	objects := make([]*models.Object, len(records))
	for i, r := range records {
		objects[i] = &models.Object{
			Class:  collection,
			ID:     strfmt.UUID(ObjectID(collection, r.Text).String()),
			Vector: vectors[i],
		}
		props := datatypes.ChunkProperties{
			Content:      r.Text,
			Source:       r.Source,
			ParentSource: parentSource,
			Title:        r.Title,
			IngestedAt:   now.UnixMilli(),
		}
		objects[i].Properties = props.ToMap()
	}
	return objects
}

// ObjectID is a deterministic uuid over collection and content.
func ObjectID(collection, content string) uuid.UUID {
	hash := sha256.Sum256([]byte(collection + "\x00" + content))
	id, _ := uuid.FromBytes(hash[:16])
	return id
}

func getSplitterForFile(filename string) textsplitter.TextSplitter {
	separators := defaultSeparators
	if ext := filepath.Ext(filename); ext == ".md" || ext == ".markdown" {
		separators = markdownSeparators
	}
	return textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(CHUNK_SIZE),
		textsplitter.WithChunkOverlap(CHUNK_OVERLAP),
		textsplitter.WithSeparators(separators),
	)
}
