// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package retrieval implements the tiered retrieval and confidence engine.
//
// A question is answered from several knowledge tiers. Each hit carries a raw
// similarity that is multiplied by the trust weight of its collection; the
// product is the confidence used for thresholding and ranking. Comparison
// questions additionally require evidence from both sides of the comparison.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianCivic/services/classifier"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/knowledge"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/websearch"
)

var tracer = otel.Tracer("aleutian.civic.retrieval")

const (
	maxWebQueries        = 2
	maxScriptureTopics   = 3
	scripturePerTopic    = 2
	maxStyleKeywords     = 5
	ownFallbackWebLimit  = 3
	otherFallbackTargets = 2
	otherFallbackLimit   = 2
)

// Orchestrator runs tiered retrieval for one question at a time.
//
// # Thread Safety
//
// Safe for concurrent use. It holds no per-question state.
type Orchestrator struct {
	searcher knowledge.Searcher
	web      websearch.Provider
	cfg      Config
	metrics  *observability.CivicMetrics
}

// NewOrchestrator creates an Orchestrator.
//
// # Inputs
//
//   - searcher: Vector store access. May be nil; vector tiers then find nothing.
//   - web: Web search provider. May be nil to disable web tiers.
//   - cfg: Tuning. Zero values are defaulted.
//   - metrics: May be nil.
func NewOrchestrator(searcher knowledge.Searcher, web websearch.Provider, cfg Config, metrics *observability.CivicMetrics) *Orchestrator {
	return &Orchestrator{
		searcher: searcher,
		web:      web,
		cfg:      cfg.withDefaults(),
		metrics:  metrics,
	}
}

// Retrieve builds the evidence Context for a question.
//
// # Description
//
// Runs the content tier (first-party, prior answers, third-party and,
// when the analysis asks for it, web search) concurrently, enforces dual
// sources for comparison questions, then fetches style guidance sized by
// the best content confidence and scripture passages when requested.
//
// # Inputs
//
//   - ctx: Parent context. Each backend call gets its own timeout under it.
//   - question: The user's question. Empty yields an empty Context.
//   - analysis: Classifier output for the question.
//   - limit: Results per collection. <= 0 uses Config.DefaultLimit.
//
// # Outputs
//
//   - Context: The evidence set. Empty tiers may be nil slices.
//
// # Limitations
//
//   - Backend failures are not surfaced. They shrink the Context and are
//     logged and counted.
//   - Dual-source enforcement retries each side at most once.
//
// # Assumptions
//
//   - Searcher.Search honors context cancellation. A searcher that does not
//     is abandoned after BackendTimeout, its goroutine finishes in background.
func (o *Orchestrator) Retrieve(ctx context.Context, question string, analysis classifier.QuestionAnalysis, limit int) (rc Context) {
	ctx, span := tracer.Start(ctx, "retrieval.Retrieve")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Retrieval panicked", "panic", r)
			span.SetStatus(codes.Error, "panic during retrieval")
			rc = Context{}
		}
	}()

	if strings.TrimSpace(question) == "" {
		return Context{}
	}
	if limit <= 0 {
		limit = o.cfg.DefaultLimit
	}
	span.SetAttributes(
		attribute.String("question_type", string(analysis.QuestionType)),
		attribute.Int("limit", limit),
	)

	rc.Content, rc.Web = o.retrieveContent(ctx, question, analysis, limit)
	if analysis.NeedsDualSources {
		rc.Content = o.enforceDualSources(ctx, question, analysis, rc.Content)
	}
	sortByConfidence(rc.Content)
	sortByConfidence(rc.Web)

	if len(rc.Content) > 0 {
		rc.BestConfidence = rc.Content[0].Confidence()
	}
	// Questions without a dual-source requirement are satisfied trivially.
	own, other := hasSides(rc.Content)
	rc.HasDualSources = !analysis.NeedsDualSources || (own && other)

	rc.Style = o.retrieveStyle(ctx, question, analysis, rc.BestConfidence, limit)
	if analysis.NeedsScripture {
		rc.Scripture = o.retrieveScripture(ctx, analysis.ScriptureTopics)
	}

	o.metrics.RecordResultsKept(tierContent, len(rc.Content))
	o.metrics.RecordResultsKept(tierStyle, len(rc.Style))
	o.metrics.RecordResultsKept(tierScripture, len(rc.Scripture))
	o.metrics.RecordResultsKept(tierWeb, len(rc.Web))
	o.metrics.RecordBestConfidence(rc.BestConfidence)

	span.SetAttributes(
		attribute.Int("content_count", len(rc.Content)),
		attribute.Float64("best_confidence", rc.BestConfidence),
		attribute.Bool("has_dual_sources", rc.HasDualSources),
	)
	slog.Info("Retrieval complete",
		"question_type", analysis.QuestionType,
		"content", len(rc.Content),
		"style", len(rc.Style),
		"scripture", len(rc.Scripture),
		"web", len(rc.Web),
		"best_confidence", rc.BestConfidence,
		"has_dual_sources", rc.HasDualSources)
	return rc
}

// StyleGuidanceBudget sizes the style tier by how well content answered.
// Strong content needs little tone help, weak content needs more.
func StyleGuidanceBudget(bestConfidence float64, limit int) int {
	switch {
	case bestConfidence >= 0.8:
		return min(limit, 2)
	case bestConfidence >= 0.5:
		return limit
	default:
		return limit * 2
	}
}

// =============================================================================
// Content tier
// =============================================================================

func (o *Orchestrator) retrieveContent(ctx context.Context, question string, analysis classifier.QuestionAnalysis, limit int) ([]Result, []Result) {
	collections := []string{
		knowledge.CollectionCandidatePlatform,
		knowledge.CollectionPreviousQA,
		knowledge.CollectionPartyPlatform,
	}
	perCollection := make([][]Result, len(collections))
	var official, open []Result

	// Goroutines never return errors; failures are already empty slices.
	g, gctx := errgroup.WithContext(ctx)
	for i, collection := range collections {
		g.Go(func() error {
			perCollection[i] = o.queryCollection(gctx, collection, question, limit, Threshold(collection))
			return nil
		})
	}
	if analysis.NeedsExternalSearch && o.web != nil {
		g.Go(func() error {
			official, open = o.searchWebForContent(gctx, analysis.SearchQueries, limit)
			return nil
		})
	}
	_ = g.Wait()

	// Tier order before sorting: first-party, prior answers, official web, third-party.
	var content []Result
	content = append(content, perCollection[0]...)
	content = append(content, perCollection[1]...)
	content = append(content, official...)
	content = append(content, perCollection[2]...)
	for _, r := range open {
		if r.Confidence() >= Threshold(CollectionOpenWeb) {
			content = append(content, r)
		}
	}
	sortByConfidence(content)
	return content, open
}

// queryCollection searches one collection and keeps results at or above threshold.
func (o *Orchestrator) queryCollection(ctx context.Context, collection, query string, limit int, threshold float64) []Result {
	passages := o.search(ctx, collection, query, limit)
	weight := TrustWeight(collection)

	results := make([]Result, 0, len(passages))
	for _, p := range passages {
		r := Result{
			Text:            p.Text,
			Collection:      collection,
			RawSimilarity:   p.Similarity,
			TrustMultiplier: weight,
			Metadata:        passageMetadata(p),
		}
		if r.Confidence() >= threshold {
			results = append(results, r)
		}
	}
	slog.Debug("Collection filtered",
		"collection", collection,
		"kept", len(results),
		"returned", len(passages),
		"threshold", threshold)
	return results
}

// search runs one Searcher call under its own timeout. A searcher that
// ignores cancellation is abandoned when the timeout fires.
func (o *Orchestrator) search(ctx context.Context, collection, query string, limit int) []knowledge.Passage {
	if o.searcher == nil {
		return nil
	}
	callCtx, cancel := context.WithTimeout(ctx, o.cfg.BackendTimeout)
	defer cancel()

	done := make(chan []knowledge.Passage, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Searcher panicked", "collection", collection, "panic", r)
				done <- nil
			}
		}()
		done <- o.searcher.Search(callCtx, collection, query, limit)
	}()

	select {
	case passages := <-done:
		if len(passages) == 0 {
			o.metrics.RecordRetrievalCall(collection, observability.OutcomeEmpty)
		} else {
			o.metrics.RecordRetrievalCall(collection, observability.OutcomeSuccess)
		}
		return passages
	case <-callCtx.Done():
		slog.Warn("Collection search timed out",
			"collection", collection,
			"timeout", o.cfg.BackendTimeout)
		o.metrics.RecordRetrievalCall(collection, observability.OutcomeTimeout)
		return nil
	}
}

// searchWeb runs one web query under its own timeout. Errors yield nil.
func (o *Orchestrator) searchWeb(ctx context.Context, query string, limit int) []websearch.Result {
	if o.web == nil || strings.TrimSpace(query) == "" {
		return nil
	}
	callCtx, cancel := context.WithTimeout(ctx, o.cfg.BackendTimeout)
	defer cancel()

	results, err := o.web.Search(callCtx, query, websearch.SearchOptions{Limit: limit})
	switch {
	case err != nil && callCtx.Err() != nil:
		slog.Warn("Web search timed out", "query", query, "timeout", o.cfg.BackendTimeout)
		o.metrics.RecordRetrievalCall(tierWeb, observability.OutcomeTimeout)
		return nil
	case err != nil:
		slog.Warn("Web search failed", "query", query, "error", err)
		o.metrics.RecordRetrievalCall(tierWeb, observability.OutcomeError)
		return nil
	case len(results) == 0:
		o.metrics.RecordRetrievalCall(tierWeb, observability.OutcomeEmpty)
	default:
		o.metrics.RecordRetrievalCall(tierWeb, observability.OutcomeSuccess)
	}
	return results
}

// searchWebForContent splits web hits into official-site results that pass
// the official threshold and open-web results.
func (o *Orchestrator) searchWebForContent(ctx context.Context, queries []string, limit int) (official, open []Result) {
	if len(queries) > maxWebQueries {
		queries = queries[:maxWebQueries]
	}
	for _, q := range queries {
		for _, hit := range o.searchWeb(ctx, q, limit) {
			if websearch.IsOfficialURL(hit.URL, o.cfg.OfficialDomain) {
				r := webResult(hit, CollectionOfficialWeb, webSimilarity, q)
				if r.Confidence() >= Threshold(CollectionOfficialWeb) {
					official = append(official, r)
				}
				continue
			}
			open = append(open, webResult(hit, CollectionOpenWeb, webSimilarity, q))
		}
	}
	return official, open
}

// =============================================================================
// Dual-source enforcement
// =============================================================================

// enforceDualSources retries each missing side of a comparison once.
func (o *Orchestrator) enforceDualSources(ctx context.Context, question string, analysis classifier.QuestionAnalysis, content []Result) []Result {
	ctx, span := tracer.Start(ctx, "retrieval.enforceDualSources")
	defer span.End()

	own, other := hasSides(content)
	if own && other {
		return content
	}

	targets := strings.Join(analysis.ComparisonTargets, " ")
	subject := targets
	if subject == "" {
		subject = question
	}

	if !own {
		o.metrics.RecordDualSourceRetry("own")
		slog.Warn("Comparison missing first-party sources, retrying", "subject", subject)
		added := o.queryCollection(ctx, knowledge.CollectionCandidatePlatform, subject, retryLimit, ownRetryThreshold)
		if len(added) == 0 && o.web != nil {
			added = o.ownSideWebFallback(ctx, question, targets)
		}
		content = append(content, added...)
		span.SetAttributes(attribute.Int("own_added", len(added)))
	}

	if !other {
		o.metrics.RecordDualSourceRetry("other")
		slog.Warn("Comparison missing third-party sources, retrying", "subject", subject)
		added := o.queryCollection(ctx, knowledge.CollectionPartyPlatform, subject, retryLimit, otherRetryThreshold)
		if len(added) == 0 && o.web != nil && len(analysis.ComparisonTargets) > 0 {
			added = o.otherSideWebFallback(ctx, question, analysis.ComparisonTargets)
		}
		content = append(content, added...)
		span.SetAttributes(attribute.Int("other_added", len(added)))
	}

	sortByConfidence(content)
	return content
}

// ownSideWebFallback asks the web for the candidate's stance. Without named
// targets the question itself is the query.
func (o *Orchestrator) ownSideWebFallback(ctx context.Context, question, targets string) []Result {
	query := question
	if targets != "" {
		query = strings.TrimSpace(fmt.Sprintf("%s position on %s", o.cfg.CandidateName, targets))
	}
	var out []Result
	for _, hit := range o.searchWeb(ctx, query, ownFallbackWebLimit) {
		if !websearch.IsOfficialURL(hit.URL, o.cfg.OfficialDomain) {
			continue
		}
		r := webResult(hit, CollectionOfficialWeb, officialRetrySimilarity, query)
		r.Text = strings.TrimSpace(hit.Title + "\n" + hit.Content)
		out = append(out, r)
	}
	return out
}

// otherSideWebFallback searches per target and stops at the first target
// that returns anything.
func (o *Orchestrator) otherSideWebFallback(ctx context.Context, question string, targets []string) []Result {
	if len(targets) > otherFallbackTargets {
		targets = targets[:otherFallbackTargets]
	}
	for i, target := range targets {
		subject := question
		if others := otherTargets(targets, i); others != "" {
			subject = others
		}
		query := fmt.Sprintf("%s position on %s", target, subject)

		hits := o.searchWeb(ctx, query, otherFallbackLimit)
		if len(hits) == 0 {
			continue
		}
		out := make([]Result, 0, len(hits))
		for _, hit := range hits {
			r := webResult(hit, CollectionOpenWeb, webSimilarity, query)
			r.Metadata["comparison_target"] = target
			out = append(out, r)
		}
		return out
	}
	return nil
}

func otherTargets(targets []string, skip int) string {
	var rest []string
	for i, t := range targets {
		if i != skip {
			rest = append(rest, t)
		}
	}
	return strings.Join(rest, " ")
}

// =============================================================================
// Style and scripture tiers
// =============================================================================

func (o *Orchestrator) retrieveStyle(ctx context.Context, question string, analysis classifier.QuestionAnalysis, best float64, limit int) []Result {
	keywords := analysis.StyleKeywords
	if len(keywords) > maxStyleKeywords {
		keywords = keywords[:maxStyleKeywords]
	}
	query := strings.Join(keywords, " ")
	if query == "" {
		query = question
	}
	results := o.queryCollection(ctx, knowledge.CollectionStyleGuidance, query, StyleGuidanceBudget(best, limit), 0)
	sortByConfidence(results)
	return results
}

func (o *Orchestrator) retrieveScripture(ctx context.Context, topics []string) []Result {
	if len(topics) > maxScriptureTopics {
		topics = topics[:maxScriptureTopics]
	}
	var out []Result
	for _, topic := range topics {
		collection := knowledge.ScriptureCollection(topic)
		for _, p := range o.search(ctx, collection, topic+" scripture biblical", scripturePerTopic) {
			meta := passageMetadata(p)
			meta["topic"] = topic
			out = append(out, Result{
				Text:            p.Text,
				Collection:      collection,
				RawSimilarity:   1.0,
				TrustMultiplier: 1.0,
				Metadata:        meta,
			})
		}
	}
	return out
}

// =============================================================================
// Helpers
// =============================================================================

func passageMetadata(p knowledge.Passage) map[string]string {
	meta := map[string]string{}
	if p.Source != "" {
		meta["source"] = p.Source
	}
	if p.Title != "" {
		meta["title"] = p.Title
	}
	return meta
}

func webResult(hit websearch.Result, collection string, similarity float64, query string) Result {
	return Result{
		Text:            hit.Content,
		Collection:      collection,
		RawSimilarity:   similarity,
		TrustMultiplier: TrustWeight(collection),
		Metadata: map[string]string{
			"url":   hit.URL,
			"title": hit.Title,
			"query": query,
		},
	}
}
