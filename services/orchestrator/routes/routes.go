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
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AleutianCoach/services/orchestrator/handlers"
	"github.com/AleutianAI/AleutianCoach/services/orchestrator/middleware"
)

// Deps are the values the routes are bound to.
type Deps struct {
	Engine handlers.InterviewEngine

	// Importer is nil when no knowledge base is configured.
	Importer handlers.KnowledgeImporter

	// Gatherer backs /metrics. Defaults to the global registry.
	Gatherer prometheus.Gatherer

	// APIKey protects /v1 when set.
	APIKey string

	Logger *slog.Logger
}

func SetupRoutes(router *gin.Engine, deps Deps) {
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	router.Use(middleware.RequestID(deps.Logger))
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// API version 1 group
	v1 := router.Group("/v1", middleware.APIKeyAuth(deps.APIKey))
	{
		interviews := v1.Group("/interviews")
		{
			interviews.POST("", handlers.StartInterview(deps.Engine))
			interviews.GET("/:sessionId", handlers.GetInterview(deps.Engine))
			interviews.POST("/:sessionId/answers", handlers.SubmitAnswer(deps.Engine))
		}
		v1.POST("/knowledge", handlers.ImportKnowledge(deps.Importer))
	}
}
