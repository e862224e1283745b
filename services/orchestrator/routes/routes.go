// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AleutianCivic/pkg/extensions"
	"github.com/AleutianAI/AleutianCivic/services/classifier"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/handlers"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/middleware"
)

// Dependencies are the components routes are built from. Optional fields
// that are nil leave their routes unregistered.
type Dependencies struct {
	// Conversation answers /v1/query and the WebSocket. Required.
	Conversation *handlers.Conversation

	// Store backs consent, callbacks and stats.
	Store handlers.InteractionStore

	// Classifier and Retriever back the retrieval preview.
	Classifier *classifier.Classifier
	Retriever  handlers.Retriever

	// Ingester backs document ingestion.
	Ingester handlers.DocumentIngester

	// HealthChecks are probed by /health.
	HealthChecks map[string]handlers.HealthCheck

	// Gatherer is exposed at /metrics. Defaults to the global registry.
	Gatherer prometheus.Gatherer
}

// SetupRoutes registers every route on router.
//
// Voter-facing routes are public. Operator routes sit behind the auth
// provider in opts and require extensions.RoleOperator.
func SetupRoutes(router *gin.Engine, deps Dependencies, opts extensions.ServiceOptions) {
	opts = extensions.Normalize(opts)

	router.GET("/health", handlers.HandleHealth(deps.HealthChecks))

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := router.Group("/v1")
	{
		v1.POST("/query", handlers.HandleQuery(deps.Conversation))
		v1.GET("/conversation/ws", handlers.HandleConversationWebSocket(deps.Conversation))
		if deps.Store != nil {
			v1.POST("/consent", handlers.HandleConsent(deps.Store, opts.AuditLogger))
			v1.POST("/callback", handlers.HandleCallback(deps.Store, opts.AuditLogger))
		}

		admin := v1.Group("")
		admin.Use(middleware.AuthMiddleware(opts.AuthProvider), middleware.RequireRole(extensions.RoleOperator))
		{
			if deps.Store != nil {
				admin.GET("/stats", handlers.HandleStats(deps.Store))
			}
			if deps.Classifier != nil && deps.Retriever != nil {
				admin.POST("/retrieve", handlers.HandleRetrieve(deps.Classifier, deps.Retriever))
			}
			if deps.Ingester != nil {
				admin.POST("/documents", handlers.CreateDocument(deps.Ingester, opts.AuditLogger))
			}
		}
	}
}
