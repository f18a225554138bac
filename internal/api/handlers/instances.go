// Copyright (c) 2025, the flowdeck contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/flowdeck/flowdeck/internal/database"
	"github.com/flowdeck/flowdeck/internal/models"
	"github.com/flowdeck/flowdeck/internal/services/cache"
	"github.com/flowdeck/flowdeck/internal/services/n8n"
)

type InstanceHandler struct {
	db     *database.DB
	cache  cache.Store
	prober *n8n.Client
}

func NewInstanceHandler(db *database.DB, store cache.Store, prober *n8n.Client) *InstanceHandler {
	return &InstanceHandler{
		db:     db,
		cache:  store,
		prober: prober,
	}
}

type createInstanceRequest struct {
	Name       string `json:"name" binding:"required"`
	APIBaseURL string `json:"apiBaseUrl" binding:"required,url"`
	APIKey     string `json:"apiKey" binding:"required"`
}

type updateInstanceRequest struct {
	Name       *string `json:"name" binding:"omitempty,min=1"`
	APIBaseURL *string `json:"apiBaseUrl" binding:"omitempty,url"`
	APIKey     *string `json:"apiKey" binding:"omitempty,min=1"`
	Status     *string `json:"status" binding:"omitempty,oneof=active inactive error"`
}

// ListInstances handles GET /api/instances
func (h *InstanceHandler) ListInstances(c *gin.Context) {
	instances, err := h.db.ListInstances(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Error fetching instances")
		respondInternalError(c)
		return
	}

	respondData(c, http.StatusOK, instances)
}

// CreateInstance handles POST /api/instances
func (h *InstanceHandler) CreateInstance(c *gin.Context) {
	var req createInstanceRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()

	existing, err := h.db.FindInstanceByName(ctx, req.Name, 0)
	if err != nil {
		log.Error().Err(err).Str("name", req.Name).Msg("Error checking instance name")
		respondInternalError(c)
		return
	}
	if existing != nil {
		respondError(c, http.StatusBadRequest, "instance name already exists")
		return
	}

	instance := models.Instance{
		Name:       req.Name,
		APIBaseURL: strings.TrimRight(req.APIBaseURL, "/"),
		APIKey:     req.APIKey,
	}

	if err := h.db.CreateInstance(ctx, &instance); err != nil {
		log.Error().Err(err).Str("name", req.Name).Msg("Error creating instance")
		respondInternalError(c)
		return
	}

	h.invalidateStats()

	log.Info().Int64("id", instance.ID).Str("name", instance.Name).Msg("Instance registered")
	respondData(c, http.StatusCreated, instance)
}

// GetInstance handles GET /api/instances/:id
func (h *InstanceHandler) GetInstance(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	instance, err := h.db.GetInstance(c.Request.Context(), id)
	if err != nil {
		log.Error().Err(err).Int64("id", id).Msg("Error fetching instance")
		respondInternalError(c)
		return
	}
	if instance == nil {
		respondError(c, http.StatusNotFound, "instance not found")
		return
	}

	respondData(c, http.StatusOK, instance)
}

// UpdateInstance handles PUT /api/instances/:id
func (h *InstanceHandler) UpdateInstance(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req updateInstanceRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()

	instance, err := h.db.GetInstance(ctx, id)
	if err != nil {
		log.Error().Err(err).Int64("id", id).Msg("Error fetching instance")
		respondInternalError(c)
		return
	}
	if instance == nil {
		respondError(c, http.StatusNotFound, "instance not found")
		return
	}

	if req.Name != nil && *req.Name != instance.Name {
		conflict, err := h.db.FindInstanceByName(ctx, *req.Name, id)
		if err != nil {
			log.Error().Err(err).Str("name", *req.Name).Msg("Error checking instance name")
			respondInternalError(c)
			return
		}
		if conflict != nil {
			respondError(c, http.StatusBadRequest, "instance name already exists")
			return
		}
		instance.Name = *req.Name
	}
	if req.APIBaseURL != nil {
		instance.APIBaseURL = strings.TrimRight(*req.APIBaseURL, "/")
	}
	if req.APIKey != nil {
		instance.APIKey = *req.APIKey
	}
	if req.Status != nil {
		instance.Status = *req.Status
	}

	if err := h.db.UpdateInstance(ctx, instance); err != nil {
		log.Error().Err(err).Int64("id", id).Msg("Error updating instance")
		respondInternalError(c)
		return
	}

	h.invalidateStats()

	respondData(c, http.StatusOK, instance)
}

// DeleteInstance handles DELETE /api/instances/:id. Owned workflows
// and executions are removed by the store's cascade rules.
func (h *InstanceHandler) DeleteInstance(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	deleted, err := h.db.DeleteInstance(c.Request.Context(), id)
	if err != nil {
		log.Error().Err(err).Int64("id", id).Msg("Error deleting instance")
		respondInternalError(c)
		return
	}
	if !deleted {
		respondError(c, http.StatusNotFound, "instance not found")
		return
	}

	h.invalidateStats()

	log.Info().Int64("id", id).Msg("Instance deleted")
	respondMessage(c, "instance deleted")
}

// TestConnection handles POST /api/instances/:id/test. Upstream
// failures come back as a 400 result, never a server fault.
func (h *InstanceHandler) TestConnection(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	instance, err := h.db.GetInstance(c.Request.Context(), id)
	if err != nil {
		log.Error().Err(err).Int64("id", id).Msg("Error fetching instance")
		respondInternalError(c)
		return
	}
	if instance == nil {
		respondError(c, http.StatusNotFound, "instance not found")
		return
	}

	result := h.prober.TestConnection(c.Request.Context(), instance)
	if result.Status != "success" {
		respondErrorDetails(c, http.StatusBadRequest, result.Message, result)
		return
	}

	respondData(c, http.StatusOK, result)
}

func (h *InstanceHandler) invalidateStats() {
	if err := h.cache.Delete(context.Background(), statsCacheKey); err != nil && err != cache.ErrKeyNotFound {
		log.Warn().Err(err).Msg("Failed to invalidate dashboard stats cache")
	}
}
