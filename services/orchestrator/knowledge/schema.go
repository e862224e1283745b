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
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

// Collection names. Scripture collections are per topic, see ScriptureCollection.
const (
	CollectionCandidatePlatform = "CandidatePlatform"
	CollectionPreviousQA        = "PreviousQA"
	CollectionPartyPlatform     = "PartyPlatform"
	CollectionStyleGuidance     = "StyleGuidance"
	scripturePrefix             = "Scripture_"
)

// ScriptureCollection maps a topic such as "compassion" to "Scripture_Compassion".
func ScriptureCollection(topic string) string {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return scripturePrefix
	}
	r := []rune(strings.ToLower(topic))
	r[0] = unicode.ToUpper(r[0])
	return scripturePrefix + string(r)
}

// IsScriptureCollection reports whether name is a per-topic scripture collection.
func IsScriptureCollection(name string) bool {
	return strings.HasPrefix(name, scripturePrefix) && len(name) > len(scripturePrefix)
}

// BaseCollections lists the collections that exist regardless of scripture topics.
func BaseCollections() []string {
	return []string{
		CollectionCandidatePlatform,
		CollectionPreviousQA,
		CollectionPartyPlatform,
		CollectionStyleGuidance,
	}
}

// CollectionSchema returns the class definition shared by every knowledge
// collection. Vectors are supplied by the caller.
func CollectionSchema(name string) *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       name,
		Description: fmt.Sprintf("Campaign knowledge passages for %s.", name),
		Vectorizer:  "none",
		InvertedIndexConfig: &models.InvertedIndexConfig{
			IndexTimestamps: true,
		},
		Properties: []*models.Property{
			{
				Name:         "content",
				DataType:     []string{"text"},
				Description:  "The passage text.",
				Tokenization: "word",
			},
			{
				Name:            "source",
				DataType:        []string{"text"},
				Description:     "Chunk source, e.g. platform.md_part_3.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "parent_source",
				DataType:        []string{"text"},
				Description:     "The original document name.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:        "title",
				DataType:    []string{"text"},
				Description: "Optional title or scripture reference.",
			},
			{
				Name:            "ingested_at",
				DataType:        []string{"number"},
				Description:     "Timestamp (Unix ms) of when the chunk was ingested.",
				IndexFilterable: indexFilterable,
			},
		},
	}
}

// EnsureSchema creates any missing collection. Unlike a fatal startup
// check, it returns the first creation error so the CLI can report it.
func EnsureSchema(ctx context.Context, client *weaviate.Client, collections []string) error {
	for _, name := range collections {
		class := CollectionSchema(name)
		slog.Info("Checking schema", "class", class.Class)

		if _, err := client.Schema().ClassGetter().WithClassName(class.Class).Do(ctx); err == nil {
			slog.Info("Schema already exists", "class", class.Class)
			continue
		}
		slog.Info("Schema not found, creating it...", "class", class.Class)
		if err := client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
			return fmt.Errorf("failed to create schema for class %s: %w", class.Class, err)
		}
		slog.Info("Successfully created schema", "class", class.Class)
	}
	return nil
}
