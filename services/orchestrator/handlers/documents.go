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
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianCivic/pkg/extensions"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/knowledge"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/middleware"
)

// DocumentIngester chunks, embeds and stores a document.
type DocumentIngester interface {
	Ingest(ctx context.Context, req knowledge.IngestRequest) (int, error)
}

// CreateDocument serves POST /v1/documents.
func CreateDocument(ingester DocumentIngester, audit extensions.AuditLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req knowledge.IngestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		chunksCreated, err := ingester.Ingest(c.Request.Context(), req)
		if err != nil {
			slog.Error("Ingestion failed", "source", req.Source, "collection", req.Collection, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		operator := ""
		if info := middleware.GetAuthInfo(c); info != nil {
			operator = info.UserID
		}
		logAudit(c.Request.Context(), audit, extensions.AuditEvent{
			EventType:    extensions.EventDocumentIngested,
			UserID:       operator,
			ResourceType: req.Collection,
			ResourceID:   req.Source,
			Outcome:      "success",
			Metadata:     map[string]any{"chunks": chunksCreated},
		})
		slog.Info("Successfully processed document via API",
			"source", req.Source, "collection", req.Collection, "chunks_processed", chunksCreated)
		c.JSON(http.StatusCreated, gin.H{
			"status":           "success",
			"source":           req.Source,
			"collection":       req.Collection,
			"chunks_processed": chunksCreated,
		})
	}
}
