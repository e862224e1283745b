// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.


package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianCivic/services/orchestrator/knowledge"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/store"
	"github.com/AleutianAI/AleutianCivic/services/policy_engine"
)

type recordingIngester struct {
	requests []knowledge.IngestRequest
	err      error
}

func (r *recordingIngester) Ingest(_ context.Context, req knowledge.IngestRequest) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	r.requests = append(r.requests, req)
	return 2, nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestCollectFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "platform.md"), "# Taxes")
	writeFile(t, filepath.Join(dir, "nested", "bio.txt"), "Born in Ohio.")
	writeFile(t, filepath.Join(dir, "logo.png"), "png")
	writeFile(t, filepath.Join(dir, ".git", "notes.md"), "hidden")
	explicit := filepath.Join(t.TempDir(), "faq.csv")
	writeFile(t, explicit, "q,a")

	files, err := collectFiles([]string{dir, explicit})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "platform.md"),
		filepath.Join(dir, "nested", "bio.txt"),
		explicit,
	}, files)

	_, err = collectFiles([]string{filepath.Join(dir, "missing")})
	assert.Error(t, err)
}

func TestIngestFiles_SkipsSensitiveFiles(t *testing.T) {
	dir := t.TempDir()
	clean := filepath.Join(dir, "platform.md")
	dirty := filepath.Join(dir, "donors.txt")
	writeFile(t, clean, "We will fix the roads.")
	writeFile(t, dirty, "Donor SSN 123-45-6789")

	policy, err := policy_engine.NewPolicyEngine()
	require.NoError(t, err)
	ing := &recordingIngester{}
	var out bytes.Buffer

	summary, err := ingestFiles(context.Background(), &out, ing, policy, []string{clean, dirty},
		ingestOptions{Collection: "Platform"})
	require.NoError(t, err)

	assert.Equal(t, ingestSummary{Files: 1, Skipped: 1, Chunks: 2}, summary)
	require.Len(t, ing.requests, 1)
	assert.Equal(t, "Platform", ing.requests[0].Collection)
	assert.Equal(t, "platform.md", ing.requests[0].Source)
	assert.Equal(t, "platform", ing.requests[0].Title)
	assert.Contains(t, out.String(), "Skipping")
	assert.Contains(t, out.String(), "(classified pii)")
}

func TestIngestFiles_AllowSensitiveAndDryRun(t *testing.T) {
	dir := t.TempDir()
	dirty := filepath.Join(dir, "donors.txt")
	writeFile(t, dirty, "Donor SSN 123-45-6789")
	policy, err := policy_engine.NewPolicyEngine()
	require.NoError(t, err)

	ing := &recordingIngester{}
	summary, err := ingestFiles(context.Background(), &bytes.Buffer{}, ing, policy, []string{dirty},
		ingestOptions{Collection: "Platform", Title: "Donors", AllowSensitive: true})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Files)
	require.Len(t, ing.requests, 1)
	assert.Equal(t, "Donors", ing.requests[0].Title)

	summary, err = ingestFiles(context.Background(), &bytes.Buffer{}, nil, policy, []string{dirty},
		ingestOptions{Collection: "Platform", AllowSensitive: true, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, ingestSummary{Files: 1}, summary)
}

func TestIngestFiles_PropagatesIngestError(t *testing.T) {
	file := filepath.Join(t.TempDir(), "platform.md")
	writeFile(t, file, "Roads.")
	policy, err := policy_engine.NewPolicyEngine()
	require.NoError(t, err)

	_, err = ingestFiles(context.Background(), &bytes.Buffer{}, &recordingIngester{err: errors.New("weaviate down")},
		policy, []string{file}, ingestOptions{Collection: "Platform"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weaviate down")
}

func TestPrintStats(t *testing.T) {
	stats := store.Stats{
		TotalInteractions: 3,
		PendingCallbacks:  1,
		TopQuestions:      []store.QuestionCount{{Question: "Taxes?", Count: 2}},
	}

	var text bytes.Buffer
	require.NoError(t, printStats(&text, stats, false))
	assert.Contains(t, text.String(), "Total interactions: 3")
	assert.Contains(t, text.String(), " 1. (2) Taxes?")

	var js bytes.Buffer
	require.NoError(t, printStats(&js, stats, true))
	assert.Contains(t, js.String(), `"pending_callbacks": 1`)
}

func TestStatsCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "civic.db")
	db, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, db.RecordQuestion(context.Background(), "Where do I vote?"))
	require.NoError(t, db.Close())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"stats", "--db", dbPath, "--env-file", filepath.Join(t.TempDir(), "absent.env")})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "Total interactions: 0")
	assert.Contains(t, out.String(), "(1) Where do I vote?")
}
