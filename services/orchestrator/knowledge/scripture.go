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
	_ "embed"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"
)

//go:embed scripture_seed.yaml
var scriptureSeed []byte

type ScripturePassage struct {
	Reference string `yaml:"reference"`
	Text      string `yaml:"text"`
	Context   string `yaml:"context"`
}

type ScriptureTopic struct {
	Topic    string             `yaml:"topic"`
	Passages []ScripturePassage `yaml:"passages"`
}

// LoadScriptureSeed parses the embedded passage list.
func LoadScriptureSeed() ([]ScriptureTopic, error) {
	var seed struct {
		Topics []ScriptureTopic `yaml:"topics"`
	}
	if err := yaml.Unmarshal(scriptureSeed, &seed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scripture seed: %w", err)
	}
	return seed.Topics, nil
}

// SeedScripture creates each Scripture_<Topic> collection and loads its
// passages, one object per passage. It is idempotent.
func SeedScripture(ctx context.Context, ingester *Ingester) (int, error) {
	topics, err := LoadScriptureSeed()
	if err != nil {
		return 0, err
	}

	collections := make([]string, 0, len(topics))
	for _, t := range topics {
		collections = append(collections, ScriptureCollection(t.Topic))
	}
	if err := EnsureSchema(ctx, ingester.client, collections); err != nil {
		return 0, err
	}

	total := 0
	for _, t := range topics {
		records := make([]Record, 0, len(t.Passages))
		for _, p := range t.Passages {
			records = append(records, Record{
				Text:   fmt.Sprintf("%s: %s", p.Reference, p.Text),
				Source: p.Reference,
				Title:  p.Context,
			})
		}
		n, err := ingester.IngestRecords(ctx, ScriptureCollection(t.Topic), "scripture_seed", records)
		if err != nil {
			return total, fmt.Errorf("failed to seed topic %s: %w", t.Topic, err)
		}
		total += n
	}
	slog.Info("Scripture seed complete", "topics", len(topics), "passages", total)
	return total, nil
}
