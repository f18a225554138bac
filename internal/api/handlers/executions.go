// Copyright (c) 2025, the flowdeck contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/flowdeck/flowdeck/internal/database"
	"github.com/flowdeck/flowdeck/internal/models"
	"github.com/flowdeck/flowdeck/internal/services/cache"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 200
)

type ExecutionHandler struct {
	db    *database.DB
	cache cache.Store
}

func NewExecutionHandler(db *database.DB, store cache.Store) *ExecutionHandler {
	return &ExecutionHandler{
		db:    db,
		cache: store,
	}
}

type createExecutionRequest struct {
	ExecutionID string     `json:"executionId" binding:"required"`
	WorkflowID  int64      `json:"workflowId" binding:"required,gt=0"`
	Status      string     `json:"status" binding:"required,oneof=success error waiting running"`
	StartedAt   time.Time  `json:"startedAt" binding:"required"`
	FinishedAt  *time.Time `json:"finishedAt"`
	DurationMs  *int64     `json:"durationMs"`
	Data        *string    `json:"data"`
	Error       *string    `json:"error"`
}

// parseDate accepts RFC 3339 timestamps or plain dates. A plain date
// used as a range end covers the whole day.
func parseDate(raw string, endOfDay bool) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, false
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, true
}

func parseExecutionFilter(c *gin.Context) (database.ExecutionFilter, bool) {
	var filter database.ExecutionFilter

	if raw := c.Query("workflowId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid workflowId filter")
			return filter, false
		}
		filter.WorkflowID = &id
	}
	if raw := c.Query("instanceId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid instanceId filter")
			return filter, false
		}
		filter.InstanceID = &id
	}
	if status := c.Query("status"); status != "" {
		if !models.ValidExecutionStatus(status) {
			respondError(c, http.StatusBadRequest, "invalid status filter")
			return filter, false
		}
		filter.Status = status
	}
	if raw := c.Query("startDate"); raw != "" {
		t, ok := parseDate(raw, false)
		if !ok {
			respondError(c, http.StatusBadRequest, "invalid startDate filter")
			return filter, false
		}
		filter.StartedFrom = &t
	}
	if raw := c.Query("endDate"); raw != "" {
		t, ok := parseDate(raw, true)
		if !ok {
			respondError(c, http.StatusBadRequest, "invalid endDate filter")
			return filter, false
		}
		filter.StartedTo = &t
	}

	return filter, true
}

// ListExecutions handles GET /api/executions with filters and pagination
func (h *ExecutionHandler) ListExecutions(c *gin.Context) {
	filter, ok := parseExecutionFilter(c)
	if !ok {
		return
	}

	page := defaultPage
	if raw := c.Query("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondError(c, http.StatusBadRequest, "invalid page")
			return
		}
		page = parsed
	}

	limit := defaultLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxLimit {
			respondError(c, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	executions, total, err := h.db.ListExecutions(c.Request.Context(), filter, page, limit)
	if err != nil {
		log.Error().Err(err).Msg("Error fetching executions")
		respondInternalError(c)
		return
	}

	pages := int((total + int64(limit) - 1) / int64(limit))
	respondPage(c, executions, models.Pagination{
		Page:  page,
		Limit: limit,
		Total: total,
		Pages: pages,
	})
}

// CreateExecution handles POST /api/executions, recording a run of a
// mirrored workflow.
func (h *ExecutionHandler) CreateExecution(c *gin.Context) {
	var req createExecutionRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()

	workflow, err := h.db.GetWorkflow(ctx, req.WorkflowID)
	if err != nil {
		log.Error().Err(err).Int64("workflow", req.WorkflowID).Msg("Error fetching workflow")
		respondInternalError(c)
		return
	}
	if workflow == nil {
		respondError(c, http.StatusNotFound, "workflow not found")
		return
	}

	execution := models.Execution{
		ExecutionID: req.ExecutionID,
		WorkflowID:  req.WorkflowID,
		Status:      req.Status,
		StartedAt:   req.StartedAt,
		FinishedAt:  req.FinishedAt,
		DurationMs:  req.DurationMs,
		Data:        req.Data,
		Error:       req.Error,
	}

	if err := h.db.CreateExecution(ctx, &execution); err != nil {
		log.Error().Err(err).Int64("workflow", req.WorkflowID).Msg("Error recording execution")
		respondInternalError(c)
		return
	}

	h.invalidateStats()

	respondData(c, http.StatusCreated, execution)
}

// GetExecution handles GET /api/executions/:id
func (h *ExecutionHandler) GetExecution(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	execution, err := h.db.GetExecution(c.Request.Context(), id)
	if err != nil {
		log.Error().Err(err).Int64("id", id).Msg("Error fetching execution")
		respondInternalError(c)
		return
	}
	if execution == nil {
		respondError(c, http.StatusNotFound, "execution not found")
		return
	}

	respondData(c, http.StatusOK, execution)
}

// DeleteExecution handles DELETE /api/executions/:id
func (h *ExecutionHandler) DeleteExecution(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	deleted, err := h.db.DeleteExecution(c.Request.Context(), id)
	if err != nil {
		log.Error().Err(err).Int64("id", id).Msg("Error deleting execution")
		respondInternalError(c)
		return
	}
	if !deleted {
		respondError(c, http.StatusNotFound, "execution not found")
		return
	}

	h.invalidateStats()

	respondMessage(c, "execution deleted")
}

// DeleteExecutions handles DELETE /api/executions, bulk-deleting every
// record matching the list filters.
func (h *ExecutionHandler) DeleteExecutions(c *gin.Context) {
	filter, ok := parseExecutionFilter(c)
	if !ok {
		return
	}

	deleted, err := h.db.DeleteExecutions(c.Request.Context(), filter)
	if err != nil {
		log.Error().Err(err).Msg("Error bulk-deleting executions")
		respondInternalError(c)
		return
	}

	h.invalidateStats()

	log.Info().Int64("count", deleted).Msg("Executions bulk-deleted")
	respondData(c, http.StatusOK, gin.H{"deleted": deleted})
}

func (h *ExecutionHandler) invalidateStats() {
	if err := h.cache.Delete(context.Background(), statsCacheKey); err != nil && err != cache.ErrKeyNotFound {
		log.Warn().Err(err).Msg("Failed to invalidate dashboard stats cache")
	}
}
