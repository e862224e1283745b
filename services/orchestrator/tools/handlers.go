// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/AleutianCivic/services/classifier"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/knowledge"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/retrieval"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/websearch"
)

// Tool limits. Contribution amounts are USD.
const (
	MaxContribution        = 3300.0
	DisclosureThreshold    = 200.0
	defaultResultLimit     = 5
	maxResultLimit         = 10
	styleResultLimit       = 3
	volunteerStatusPending = "pending_confirmation"
	donationStatusPending  = "pending_payment"
)

var (
	errSearcherUnavailable  = errors.New("knowledge base is not configured")
	errRetrieverUnavailable = errors.New("policy retrieval is not configured")
)

// neutralPrior classifies search queries without a confidence bias.
const neutralPrior = 0.5

const (
	noEvidenceText = "No sources met the confidence threshold for this query."
	oneSidedNote   = "NOTE: Only one side of this comparison is supported by retrieved sources. Say so instead of describing the unsupported side."
)

// =============================================================================
// search_policy_collections
// =============================================================================

// searchPolicyCollections runs tiered retrieval for the model's query and
// returns only evidence that cleared its collection threshold.
func (e *Executor) searchPolicyCollections(ctx context.Context, args map[string]any) (Result, error) {
	if e.deps.Retriever == nil {
		return Result{}, errRetrieverUnavailable
	}
	query := stringArg(args, "query", "")
	limit := clampLimit(intArg(args, "limit", defaultResultLimit))

	analysis := classifier.QuestionAnalysis{QuestionType: classifier.TypePolicy}
	if e.deps.Analyzer != nil {
		analysis = e.deps.Analyzer.Classify(query, neutralPrior)
	}

	rc := e.deps.Retriever.Retrieve(ctx, query, analysis, limit)
	rc.Content = keepCollections(rc.Content, stringSliceArg(args, "collections"))
	rc.BestConfidence = 0
	if len(rc.Content) > 0 {
		rc.BestConfidence = rc.Content[0].Confidence()
	}

	items := make([]map[string]any, 0, len(rc.Content))
	for _, r := range rc.Content {
		items = append(items, map[string]any{
			"content":    r.Text,
			"source":     r.Source(),
			"collection": r.Collection,
			"confidence": roundConfidence(r.Confidence()),
		})
	}

	text := retrieval.AssembleContext(rc)
	if text == "" {
		text = noEvidenceText
	}
	if !rc.HasDualSources {
		text += "\n\n" + oneSidedNote
	}

	best := rc.BestConfidence
	sources := rc.Sources()
	if sources == nil {
		sources = []string{}
	}
	return Result{
		ToolName:       SearchPolicyCollections,
		Success:        true,
		Data:           items,
		Confidence:     &best,
		Sources:        sources,
		HasDualSources: &rc.HasDualSources,
		Context:        text,
	}, nil
}

// keepCollections narrows content to the requested vector collections.
// Web evidence is always kept; an empty request keeps everything.
func keepCollections(content []retrieval.Result, requested []string) []retrieval.Result {
	if len(requested) == 0 {
		return content
	}
	allowed := make(map[string]struct{}, len(requested))
	for _, c := range requested {
		allowed[c] = struct{}{}
	}
	out := make([]retrieval.Result, 0, len(content))
	for _, r := range content {
		_, ok := allowed[r.Collection]
		if ok || r.Collection == retrieval.CollectionOfficialWeb || r.Collection == retrieval.CollectionOpenWeb {
			out = append(out, r)
		}
	}
	return out
}

// =============================================================================
// perform_web_search
// =============================================================================

func (e *Executor) performWebSearch(ctx context.Context, args map[string]any) (Result, error) {
	if e.deps.Web == nil {
		return failure(PerformWebSearch, "Web search is not configured"), nil
	}
	query := stringArg(args, "query", "")
	limit := clampLimit(intArg(args, "num_results", defaultResultLimit))
	if boolArg(args, "news_only") {
		query += " latest news"
	}

	callCtx, cancel := context.WithTimeout(ctx, e.deps.BackendTimeout)
	defer cancel()

	results, err := e.deps.Web.Search(callCtx, query, websearch.SearchOptions{Limit: limit})
	if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return failure(PerformWebSearch, "Web search timed out after %s", e.deps.BackendTimeout), nil
	}
	if err != nil {
		return failure(PerformWebSearch, "Web search failed: %v", err), nil
	}

	items := make([]map[string]any, 0, len(results))
	var sources []string
	for _, r := range results {
		items = append(items, map[string]any{
			"title":   r.Title,
			"snippet": r.Content,
			"url":     r.URL,
			"source":  "web",
		})
		if r.URL != "" {
			sources = append(sources, r.URL)
		}
	}
	return Result{ToolName: PerformWebSearch, Success: true, Data: items, Sources: sources}, nil
}

// =============================================================================
// retrieve_answer_style
// =============================================================================

func (e *Executor) retrieveAnswerStyle(ctx context.Context, args map[string]any) (Result, error) {
	if e.deps.Searcher == nil {
		return Result{}, errSearcherUnavailable
	}
	questionType := stringArg(args, "question_type", "simple_inquiry")
	topic := stringArg(args, "topic", "general")
	tone := stringArg(args, "desired_tone", "educational")
	query := fmt.Sprintf("%s %s %s marketing communication style", questionType, topic, tone)

	callCtx, cancel := context.WithTimeout(ctx, e.deps.BackendTimeout)
	defer cancel()

	passages := e.deps.Searcher.Search(callCtx, knowledge.CollectionStyleGuidance, query, styleResultLimit)
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return failure(RetrieveAnswerStyle, "Style guidance lookup timed out after %s", e.deps.BackendTimeout), nil
	}
	items := make([]map[string]any, 0, len(passages))
	var total float64
	for _, p := range passages {
		items = append(items, map[string]any{
			"content":    p.Text,
			"source":     p.Source,
			"confidence": roundConfidence(p.Similarity),
		})
		total += p.Similarity
	}
	avg := 0.0
	if len(passages) > 0 {
		avg = total / float64(len(passages))
	}
	return Result{ToolName: RetrieveAnswerStyle, Success: true, Data: items, Confidence: &avg}, nil
}

// =============================================================================
// register_volunteer
// =============================================================================

func (e *Executor) registerVolunteer(ctx context.Context, args map[string]any) (Result, error) {
	name := strings.TrimSpace(stringArg(args, "name", ""))
	email := strings.TrimSpace(stringArg(args, "email", ""))
	if name == "" || email == "" {
		return failure(RegisterVolunteer, "Name and email are required"), nil
	}
	if err := e.validate.Var(email, "required,email"); err != nil {
		return failure(RegisterVolunteer, "Invalid email format"), nil
	}

	v := Volunteer{
		ID:           "VOL-" + e.newID(),
		Name:         name,
		Email:        email,
		Phone:        stringArg(args, "phone", ""),
		ZipCode:      stringArg(args, "zip_code", ""),
		Interests:    stringSliceArg(args, "interests"),
		Availability: stringArg(args, "availability", "flexible"),
		Status:       volunteerStatusPending,
		RegisteredAt: e.now().UTC(),
	}
	if e.deps.Volunteers != nil {
		if err := e.deps.Volunteers.SaveVolunteer(ctx, v); err != nil {
			return Result{}, fmt.Errorf("failed to save volunteer: %w", err)
		}
	}
	slog.Info("Volunteer registered", "volunteer_id", v.ID, "availability", v.Availability)

	return Result{
		ToolName: RegisterVolunteer,
		Success:  true,
		Data: map[string]any{
			"volunteer_id": v.ID,
			"message":      fmt.Sprintf("Thank you, %s! You've been registered as a volunteer.", name),
			"next_steps": []string{
				"Check your email for a confirmation link",
				"Complete your volunteer profile",
				"Join our next volunteer orientation",
			},
		},
	}, nil
}

// =============================================================================
// make_donation
// =============================================================================

// CheckContribution applies the contribution rules to an amount and the
// donor's disclosure fields.
func CheckContribution(amount float64, employer, occupation string) error {
	switch {
	case amount <= 0:
		return errors.New("Donation amount must be greater than $0")
	case amount > MaxContribution:
		return errors.New("Donation exceeds limit of $3,300 per election (FEC regulation)")
	case amount > DisclosureThreshold && (strings.TrimSpace(employer) == "" || strings.TrimSpace(occupation) == ""):
		return errors.New("For donations over $200, employer/occupation required by FEC disclosure rules")
	}
	return nil
}

func (e *Executor) makeDonation(ctx context.Context, args map[string]any) (Result, error) {
	amount, _ := toFloat(args["amount"])
	employer := stringArg(args, "employer", "")
	occupation := stringArg(args, "occupation", "")
	if err := CheckContribution(amount, employer, occupation); err != nil {
		return failure(MakeDonation, "%s", err.Error()), nil
	}

	intent := DonationIntent{
		ID:         "DON-" + e.newID(),
		Amount:     amount,
		DonorName:  stringArg(args, "donor_name", ""),
		DonorEmail: stringArg(args, "donor_email", ""),
		Employer:   employer,
		Occupation: occupation,
		Recurring:  boolArg(args, "recurring"),
		Status:     donationStatusPending,
		CreatedAt:  e.now().UTC(),
	}

	link, err := e.deps.Payments.CreatePaymentLink(ctx, intent)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create payment link: %w", err)
	}
	intent.PaymentURL = link

	if e.deps.Donations != nil {
		if err := e.deps.Donations.SaveDonationIntent(ctx, intent); err != nil {
			return Result{}, fmt.Errorf("failed to save donation intent: %w", err)
		}
	}
	slog.Info("Donation intent created", "donation_id", intent.ID, "amount", intent.Amount, "recurring", intent.Recurring)

	monthly := ""
	if intent.Recurring {
		monthly = "monthly "
	}
	return Result{
		ToolName: MakeDonation,
		Success:  true,
		Data: map[string]any{
			"donation_id": intent.ID,
			"amount":      intent.Amount,
			"recurring":   intent.Recurring,
			"secure_link": link,
			"message":     fmt.Sprintf("Thank you for your $%.2f %scontribution!", intent.Amount, monthly),
			"next_steps": []string{
				"Click the secure link to complete your donation: " + link,
				"You'll receive a receipt via email",
			},
		},
	}, nil
}

// =============================================================================
// Argument helpers
// =============================================================================

func stringArg(args map[string]any, key, def string) string {
	if s, ok := args[key].(string); ok && s != "" {
		return s
	}
	return def
}

func intArg(args map[string]any, key string, def int) int {
	if f, ok := toFloat(args[key]); ok {
		return int(f)
	}
	return def
}

func boolArg(args map[string]any, key string) bool {
	b, _ := args[key].(bool)
	return b
}

func stringSliceArg(args map[string]any, key string) []string {
	items, ok := toSlice(args[key])
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func clampLimit(n int) int {
	return max(1, min(n, maxResultLimit))
}

func roundConfidence(c float64) float64 {
	return float64(int(c*1000+0.5)) / 1000
}
