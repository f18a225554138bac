// Copyright (c) 2025, the flowdeck contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/flowdeck/flowdeck/internal/database"
	"github.com/flowdeck/flowdeck/internal/models"
	"github.com/flowdeck/flowdeck/internal/services/cache"
)

const recentExecutionsPerWorkflow = 10

type WorkflowHandler struct {
	db    *database.DB
	cache cache.Store
}

func NewWorkflowHandler(db *database.DB, store cache.Store) *WorkflowHandler {
	return &WorkflowHandler{
		db:    db,
		cache: store,
	}
}

type createWorkflowRequest struct {
	InstanceID int64  `json:"instanceId" binding:"required,gt=0"`
	WorkflowID string `json:"workflowId" binding:"required"`
	Name       string `json:"name" binding:"required"`
	Active     bool   `json:"active"`
	Tags       string `json:"tags"`
	Project    string `json:"project"`
}

type updateWorkflowRequest struct {
	Name    *string `json:"name" binding:"omitempty,min=1"`
	Active  *bool   `json:"active"`
	Tags    *string `json:"tags"`
	Project *string `json:"project"`
}

// ListWorkflows handles GET /api/workflows with optional instanceId,
// active and project filters.
func (h *WorkflowHandler) ListWorkflows(c *gin.Context) {
	var filter database.WorkflowFilter

	if raw := c.Query("instanceId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid instanceId filter")
			return
		}
		filter.InstanceID = &id
	}
	if raw := c.Query("active"); raw != "" {
		active := raw == "true"
		filter.Active = &active
	}
	filter.Project = c.Query("project")

	workflows, err := h.db.ListWorkflows(c.Request.Context(), filter)
	if err != nil {
		log.Error().Err(err).Msg("Error fetching workflows")
		respondInternalError(c)
		return
	}

	respondData(c, http.StatusOK, workflows)
}

// CreateWorkflow handles POST /api/workflows
func (h *WorkflowHandler) CreateWorkflow(c *gin.Context) {
	var req createWorkflowRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()

	instance, err := h.db.GetInstance(ctx, req.InstanceID)
	if err != nil {
		log.Error().Err(err).Int64("instance", req.InstanceID).Msg("Error fetching instance")
		respondInternalError(c)
		return
	}
	if instance == nil {
		respondError(c, http.StatusNotFound, "instance not found")
		return
	}

	existing, err := h.db.FindWorkflowByRemoteID(ctx, req.InstanceID, req.WorkflowID)
	if err != nil {
		log.Error().Err(err).Int64("instance", req.InstanceID).Str("workflow_id", req.WorkflowID).Msg("Error checking workflow id")
		respondInternalError(c)
		return
	}
	if existing != nil {
		respondError(c, http.StatusBadRequest, "workflow id already exists in this instance")
		return
	}

	workflow := models.Workflow{
		InstanceID: req.InstanceID,
		WorkflowID: req.WorkflowID,
		Name:       req.Name,
		Active:     req.Active,
		Tags:       req.Tags,
		Project:    req.Project,
	}

	if err := h.db.CreateWorkflow(ctx, &workflow); err != nil {
		log.Error().Err(err).Int64("instance", req.InstanceID).Msg("Error creating workflow")
		respondInternalError(c)
		return
	}

	summary := instance.Summary()
	workflow.Instance = &summary

	h.invalidateStats()

	log.Info().Int64("id", workflow.ID).Int64("instance", workflow.InstanceID).Msg("Workflow registered")
	respondData(c, http.StatusCreated, workflow)
}

// GetWorkflow handles GET /api/workflows/:id, including the ten most
// recently recorded executions.
func (h *WorkflowHandler) GetWorkflow(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()

	workflow, err := h.db.GetWorkflow(ctx, id)
	if err != nil {
		log.Error().Err(err).Int64("id", id).Msg("Error fetching workflow")
		respondInternalError(c)
		return
	}
	if workflow == nil {
		respondError(c, http.StatusNotFound, "workflow not found")
		return
	}

	executions, err := h.db.ListRecentExecutionsByWorkflow(ctx, id, recentExecutionsPerWorkflow)
	if err != nil {
		log.Error().Err(err).Int64("id", id).Msg("Error fetching workflow executions")
		respondInternalError(c)
		return
	}
	workflow.Executions = executions

	respondData(c, http.StatusOK, workflow)
}

// UpdateWorkflow handles PUT /api/workflows/:id. Only name, active,
// tags and project are mutable.
func (h *WorkflowHandler) UpdateWorkflow(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req updateWorkflowRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()

	workflow, err := h.db.GetWorkflow(ctx, id)
	if err != nil {
		log.Error().Err(err).Int64("id", id).Msg("Error fetching workflow")
		respondInternalError(c)
		return
	}
	if workflow == nil {
		respondError(c, http.StatusNotFound, "workflow not found")
		return
	}

	if req.Name != nil {
		workflow.Name = *req.Name
	}
	if req.Active != nil {
		workflow.Active = *req.Active
	}
	if req.Tags != nil {
		workflow.Tags = *req.Tags
	}
	if req.Project != nil {
		workflow.Project = *req.Project
	}

	if err := h.db.UpdateWorkflow(ctx, workflow); err != nil {
		log.Error().Err(err).Int64("id", id).Msg("Error updating workflow")
		respondInternalError(c)
		return
	}

	h.invalidateStats()

	respondData(c, http.StatusOK, workflow)
}

// DeleteWorkflow handles DELETE /api/workflows/:id, cascading to the
// workflow's executions.
func (h *WorkflowHandler) DeleteWorkflow(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	deleted, err := h.db.DeleteWorkflow(c.Request.Context(), id)
	if err != nil {
		log.Error().Err(err).Int64("id", id).Msg("Error deleting workflow")
		respondInternalError(c)
		return
	}
	if !deleted {
		respondError(c, http.StatusNotFound, "workflow not found")
		return
	}

	h.invalidateStats()

	log.Info().Int64("id", id).Msg("Workflow deleted")
	respondMessage(c, "workflow deleted")
}

func (h *WorkflowHandler) invalidateStats() {
	if err := h.cache.Delete(context.Background(), statsCacheKey); err != nil && err != cache.ErrKeyNotFound {
		log.Warn().Err(err).Msg("Failed to invalidate dashboard stats cache")
	}
}
