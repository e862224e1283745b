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
	"github.com/AleutianAI/AleutianCivic/services/llm"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/knowledge"
)

// Name identifies a tool. The set is closed.
type Name string

const (
	SearchPolicyCollections Name = "search_policy_collections"
	PerformWebSearch        Name = "perform_web_search"
	RetrieveAnswerStyle     Name = "retrieve_answer_style"
	RegisterVolunteer       Name = "register_volunteer"
	MakeDonation            Name = "make_donation"
)

// Names lists every tool in catalog order.
func Names() []Name {
	return []Name{SearchPolicyCollections, PerformWebSearch, RetrieveAnswerStyle, RegisterVolunteer, MakeDonation}
}

// Valid reports whether n is a catalog tool.
func (n Name) Valid() bool {
	_, ok := schemas[n]
	return ok
}

// JSON-schema primitive types used by the catalog.
const (
	typeString  = "string"
	typeInteger = "integer"
	typeNumber  = "number"
	typeBoolean = "boolean"
	typeArray   = "array"
)

// Property describes one tool parameter.
type Property struct {
	Type        string
	Description string
	Enum        []string
	Items       *Property
}

// Schema describes one tool.
type Schema struct {
	Name        Name
	Description string
	Properties  map[string]Property
	Required    []string
}

var schemas = map[Name]Schema{
	SearchPolicyCollections: {
		Name: SearchPolicyCollections,
		Description: `Search the candidate's policy knowledge base for official positions and statements.

This tool searches three collections:
- CandidatePlatform: The candidate's own statements, speeches, and official platform (highest trust)
- PreviousQA: Previously answered questions with verified responses (high trust)
- PartyPlatform: Party and local platforms (moderate trust)

Use this tool when you need factual information about the candidate's positions, voting record,
or policy stances. The tool returns relevant documents with confidence scores.

DO NOT use this tool for copywriting advice or communication style - use retrieve_answer_style instead.`,
		Properties: map[string]Property{
			"query": {
				Type:        typeString,
				Description: "The search query. Be specific and include key policy terms. Example: 'healthcare position affordable care' or 'tax reform middle class'",
			},
			"collections": {
				Type: typeArray,
				Items: &Property{Type: typeString, Enum: []string{
					knowledge.CollectionCandidatePlatform,
					knowledge.CollectionPreviousQA,
					knowledge.CollectionPartyPlatform,
				}},
				Description: "Which collections to search. Defaults to all three if not specified.",
			},
			"limit": {
				Type:        typeInteger,
				Description: "Maximum number of results to return (1-10). Default is 5.",
			},
		},
		Required: []string{"query"},
	},

	PerformWebSearch: {
		Name: PerformWebSearch,
		Description: `Search the internet for current information, competitor positions, or recent news.

Use this tool when:
- The user asks about competitor/opponent positions
- You need current news or recent events
- The internal knowledge base doesn't have the answer
- You need to verify or fact-check external claims

The tool returns relevant web results with titles, snippets, and URLs.
Always cite sources when using information from web search results.`,
		Properties: map[string]Property{
			"query": {
				Type:        typeString,
				Description: "The search query. Be specific. For opponent research, include their name and the topic. Example: 'Jane Doe healthcare policy position 2024'",
			},
			"num_results": {
				Type:        typeInteger,
				Description: "Number of results to return (1-10). Default is 5.",
			},
			"news_only": {
				Type:        typeBoolean,
				Description: "If true, search only news sources. Useful for recent events.",
			},
		},
		Required: []string{"query"},
	},

	RetrieveAnswerStyle: {
		Name: RetrieveAnswerStyle,
		Description: `Retrieve copywriting and communication style guidance.

This tool provides advice from legendary copywriters (Ogilvy, Schwartz, Collier, etc.)
on how to frame and communicate your response based on the type of question.

Use this tool AFTER you have the facts (from search_policy_collections or perform_web_search)
to get guidance on HOW to present those facts persuasively.

Question types follow the Schwartz awareness stages and Ogilvy framework:
- unaware: Prospect doesn't know they have a problem
- problem_aware: Knows the problem, not the solution
- solution_aware: Knows solutions exist, not your specific solution
- product_aware: Knows about the candidate, needs convincing
- most_aware: Ready to support, needs a reason to act NOW
- oppositional: Disagrees or is hostile
- skeptical: Doubts claims, needs proof
- comparison: Comparing the candidate to other candidates
- trust_building: Building credibility and rapport`,
		Properties: map[string]Property{
			"question_type": {
				Type: typeString,
				Enum: []string{"unaware", "problem_aware", "solution_aware", "product_aware",
					"most_aware", "oppositional", "skeptical", "seeking_proof",
					"comparison", "simple_inquiry", "trust_building", "emotional_appeal"},
				Description: "The classified type of the user's question based on their awareness level and intent.",
			},
			"topic": {
				Type: typeString,
				Enum: []string{"economy", "healthcare", "education", "immigration", "environment",
					"foreign_policy", "taxes", "security", "infrastructure", "general",
					"values", "leadership"},
				Description: "The policy topic being discussed. Helps retrieve topic-specific style advice.",
			},
			"desired_tone": {
				Type: typeString,
				Enum: []string{"aspirational", "empathetic", "authoritative", "urgent",
					"reassuring", "educational", "persuasive", "storytelling", "direct"},
				Description: "The desired emotional tone for the response.",
			},
		},
		Required: []string{"question_type"},
	},

	RegisterVolunteer: {
		Name: RegisterVolunteer,
		Description: `Register a user as a campaign volunteer.

Use this tool when:
- User explicitly says they want to volunteer
- User asks how they can help the campaign
- User wants to get involved

Collect their contact information and preferred volunteer activities.
After registration, thank them warmly and provide next steps.`,
		Properties: map[string]Property{
			"name":     {Type: typeString, Description: "Volunteer's full name"},
			"email":    {Type: typeString, Description: "Volunteer's email address"},
			"phone":    {Type: typeString, Description: "Volunteer's phone number (optional)"},
			"zip_code": {Type: typeString, Description: "Volunteer's ZIP code for local event matching"},
			"interests": {
				Type: typeArray,
				Items: &Property{Type: typeString, Enum: []string{"phone_banking", "door_knocking",
					"event_help", "social_media", "data_entry", "transportation", "other"}},
				Description: "Types of volunteer activities they're interested in",
			},
			"availability": {
				Type:        typeString,
				Enum:        []string{"weekdays", "weekends", "evenings", "flexible"},
				Description: "When they're available to volunteer",
			},
		},
		Required: []string{"name", "email"},
	},

	MakeDonation: {
		Name: MakeDonation,
		Description: `Initiate a donation to the campaign.

Use this tool when:
- User wants to donate or contribute financially
- User asks how they can support the campaign financially
- User is ready to make a contribution

This tool generates a secure donation link and provides information about contribution limits.`,
		Properties: map[string]Property{
			"amount": {
				Type:        typeNumber,
				Description: "Donation amount in USD. Must be between $1 and $3,300 (federal limit).",
			},
			"donor_name":  {Type: typeString, Description: "Donor's full name (required by FEC)"},
			"donor_email": {Type: typeString, Description: "Donor's email for receipt"},
			"employer":    {Type: typeString, Description: "Donor's employer (required by FEC for donations over $200)"},
			"occupation":  {Type: typeString, Description: "Donor's occupation (required by FEC for donations over $200)"},
			"recurring":   {Type: typeBoolean, Description: "Whether this is a recurring monthly donation"},
		},
		Required: []string{"amount", "donor_name", "donor_email"},
	},
}

// SchemaFor returns the schema for a tool.
func SchemaFor(name Name) (Schema, bool) {
	s, ok := schemas[name]
	return s, ok
}

// Catalog returns the tool declarations offered to the model, in catalog order.
func Catalog() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(schemas))
	for _, name := range Names() {
		s := schemas[name]
		defs = append(defs, llm.ToolDefinition{
			Name:        string(s.Name),
			Description: s.Description,
			Parameters:  s.jsonSchema(),
		})
	}
	return defs
}

func (s Schema) jsonSchema() map[string]any {
	props := make(map[string]any, len(s.Properties))
	for name, p := range s.Properties {
		props[name] = p.jsonSchema()
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   append([]string(nil), s.Required...),
	}
}

func (p Property) jsonSchema() map[string]any {
	out := map[string]any{"type": p.Type}
	if p.Description != "" {
		out["description"] = p.Description
	}
	if len(p.Enum) > 0 {
		out["enum"] = append([]string(nil), p.Enum...)
	}
	if p.Items != nil {
		out["items"] = p.Items.jsonSchema()
	}
	return out
}
