// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianCivic/services/classifier"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/retrieval"
)

// Retriever gathers tiered evidence for a classified question.
type Retriever interface {
	Retrieve(ctx context.Context, question string, analysis classifier.QuestionAnalysis, limit int) retrieval.Context
}

// RetrieveRequest is the body of POST /v1/retrieve.
type RetrieveRequest struct {
	Question        string   `json:"question" binding:"required"`
	PriorConfidence *float64 `json:"prior_confidence,omitempty" binding:"omitempty,gte=0,lte=1"`
	Limit           int      `json:"limit,omitempty" binding:"omitempty,gte=1,lte=20"`
}

// RetrieveResponse shows the evidence an answer would be built from.
type RetrieveResponse struct {
	Analysis classifier.QuestionAnalysis `json:"analysis"`
	Context  retrieval.Context           `json:"context"`
	Prompt   string                      `json:"assembled_context"`
	Sources  []string                    `json:"sources"`
}

// HandleRetrieve serves POST /v1/retrieve: classify, retrieve and assemble
// without calling the model.
func HandleRetrieve(qc *classifier.Classifier, r Retriever) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RetrieveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		question := strings.TrimSpace(req.Question)
		if question == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "question must not be empty"})
			return
		}

		prior := 0.5
		if req.PriorConfidence != nil {
			prior = *req.PriorConfidence
		}
		analysis := qc.Classify(question, prior)
		rc := r.Retrieve(c.Request.Context(), question, analysis, req.Limit)

		c.JSON(http.StatusOK, RetrieveResponse{
			Analysis: analysis,
			Context:  rc,
			Prompt:   retrieval.AssembleContext(rc),
			Sources:  rc.Sources(),
		})
	}
}
