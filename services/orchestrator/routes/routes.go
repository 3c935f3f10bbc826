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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AleutianData/services/agent"
	"github.com/AleutianAI/AleutianData/services/dataset"
	"github.com/AleutianAI/AleutianData/services/history"
	"github.com/AleutianAI/AleutianData/services/orchestrator/handlers"
)

func SetupRoutes(router *gin.Engine, datasets *dataset.Store, sessions *history.Store,
	runner *agent.Runner) {

	runs := handlers.NewRunRegistry()

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.GET("/analyze/ws", handlers.HandleAnalyzeWebSocket(datasets, sessions, runner, runs))

		// Session administration routes
		sessionGroup := v1.Group("/sessions")
		{
			sessionGroup.POST("", handlers.CreateSession(datasets, sessions))
			sessionGroup.GET("", handlers.ListSessions(sessions))
			sessionGroup.GET("/:sessionId/history", handlers.GetSessionHistory(sessions))
			sessionGroup.POST("/:sessionId/dataset", handlers.ReplaceDataset(datasets, sessions))
			sessionGroup.PATCH("/:sessionId/title", handlers.UpdateSessionTitle(sessions))
			sessionGroup.DELETE("/:sessionId", handlers.DeleteSession(datasets, sessions, runs))
		}
	}
}
