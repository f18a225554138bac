// Copyright (c) 2025, the flowdeck contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/flowdeck/flowdeck/internal/api/handlers"
	"github.com/flowdeck/flowdeck/internal/api/middleware"
	"github.com/flowdeck/flowdeck/internal/database"
	"github.com/flowdeck/flowdeck/internal/services/cache"
	"github.com/flowdeck/flowdeck/internal/services/n8n"
)

// SetupRoutes configures all the routes for the application and
// returns the cache instance for cleanup.
func SetupRoutes(r *gin.Engine, db *database.DB, prober *n8n.Client) cache.Store {
	r.Use(middleware.Secure(nil))

	// InitCache falls back to the memory store when Redis is unreachable
	store, err := cache.InitCache()
	if err != nil {
		log.Warn().Err(err).Msg("Cache degraded to in-memory store")
	}

	apiRateLimiter := middleware.NewRateLimiter(store, time.Minute, 60, "api:")     // 60 requests per minute for API
	probeRateLimiter := middleware.NewRateLimiter(store, time.Minute, 10, "probe:") // 10 connectivity probes per minute

	instanceHandler := handlers.NewInstanceHandler(db, store, prober)
	workflowHandler := handlers.NewWorkflowHandler(db, store)
	executionHandler := handlers.NewExecutionHandler(db, store)
	dashboardHandler := handlers.NewDashboardHandler(db, store)

	// Liveness endpoint, unauthenticated and unthrottled
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.Use(apiRateLimiter.RateLimit())
	{
		instances := api.Group("/instances")
		{
			instances.GET("", instanceHandler.ListInstances)
			instances.POST("", instanceHandler.CreateInstance)
			instances.GET("/:id", instanceHandler.GetInstance)
			instances.PUT("/:id", instanceHandler.UpdateInstance)
			instances.DELETE("/:id", instanceHandler.DeleteInstance)
			instances.POST("/:id/test", probeRateLimiter.RateLimit(), instanceHandler.TestConnection)
		}

		workflows := api.Group("/workflows")
		{
			workflows.GET("", workflowHandler.ListWorkflows)
			workflows.POST("", workflowHandler.CreateWorkflow)
			workflows.GET("/:id", workflowHandler.GetWorkflow)
			workflows.PUT("/:id", workflowHandler.UpdateWorkflow)
			workflows.DELETE("/:id", workflowHandler.DeleteWorkflow)
		}

		executions := api.Group("/executions")
		{
			executions.GET("", executionHandler.ListExecutions)
			executions.POST("", executionHandler.CreateExecution)
			executions.DELETE("", executionHandler.DeleteExecutions)
			executions.GET("/:id", executionHandler.GetExecution)
			executions.DELETE("/:id", executionHandler.DeleteExecution)
		}

		api.GET("/dashboard/stats", dashboardHandler.GetStats)
	}

	return store
}
