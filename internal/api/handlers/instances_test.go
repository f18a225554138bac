// Copyright (c) 2025, the flowdeck contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowdeck/flowdeck/internal/models"
)

func TestCreateInstance(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/instances", gin.H{
		"name":       "production",
		"apiBaseUrl": "http://n8n.local:5678",
		"apiKey":     "n8n-api-key",
	})

	require.Equal(t, http.StatusCreated, w.Code)
	resp := decodeEnvelope(t, w)
	assert.True(t, resp.Success)

	var created models.Instance
	require.NoError(t, json.Unmarshal(resp.Data, &created))
	assert.NotZero(t, created.ID)
	assert.Equal(t, "production", created.Name)
	assert.Equal(t, models.AuthTypeAPIKey, created.AuthType)
	assert.Equal(t, models.InstanceStatusActive, created.Status)

	// The stored key must never appear in any response body
	assert.NotContains(t, w.Body.String(), "n8n-api-key")
	assert.NotContains(t, w.Body.String(), `"apiKey"`)
}

func TestCreateInstanceValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name  string
		body  gin.H
		field string
	}{
		{"missing name", gin.H{"apiBaseUrl": "http://n8n.local", "apiKey": "k"}, "name"},
		{"missing key", gin.H{"name": "x", "apiBaseUrl": "http://n8n.local"}, "apiKey"},
		{"invalid url", gin.H{"name": "x", "apiBaseUrl": "not a url", "apiKey": "k"}, "apiBaseUrl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/instances", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code)

			resp := decodeEnvelope(t, w)
			assert.False(t, resp.Success)

			var details []FieldError
			require.NoError(t, json.Unmarshal(resp.Details, &details))
			require.NotEmpty(t, details)
			assert.Equal(t, tt.field, details[0].Field)
		})
	}
}

func TestCreateInstanceDuplicateName(t *testing.T) {
	env := newTestEnv(t)
	seedInstance(t, env.db, "production")

	w := env.do(t, http.MethodPost, "/api/instances", gin.H{
		"name":       "production",
		"apiBaseUrl": "http://other.local:5678",
		"apiKey":     "key",
	})

	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeEnvelope(t, w)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "already exists")

	// No second row was created
	instances, err := env.db.ListInstances(context.Background())
	require.NoError(t, err)
	assert.Len(t, instances, 1)
}

func TestListInstancesOmitsAPIKey(t *testing.T) {
	env := newTestEnv(t)
	seedInstance(t, env.db, "alpha")
	seedInstance(t, env.db, "beta")

	w := env.do(t, http.MethodGet, "/api/instances", nil)
	require.Equal(t, http.StatusOK, w.Code)

	assert.NotContains(t, w.Body.String(), "secret-key")
	assert.NotContains(t, w.Body.String(), `"apiKey"`)

	resp := decodeEnvelope(t, w)
	var instances []models.Instance
	require.NoError(t, json.Unmarshal(resp.Data, &instances))
	assert.Len(t, instances, 2)
}

func TestGetInstanceNotFound(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/instances/999", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, decodeEnvelope(t, w).Success)
}

func TestUpdateInstance(t *testing.T) {
	env := newTestEnv(t)
	instance := seedInstance(t, env.db, "production")
	seedInstance(t, env.db, "staging")

	t.Run("partial update", func(t *testing.T) {
		w := env.do(t, http.MethodPut, fmt.Sprintf("/api/instances/%d", instance.ID), gin.H{
			"status": "inactive",
		})
		require.Equal(t, http.StatusOK, w.Code)

		updated, err := env.db.GetInstance(context.Background(), instance.ID)
		require.NoError(t, err)
		assert.Equal(t, "inactive", updated.Status)
		assert.Equal(t, "production", updated.Name)
	})

	t.Run("rename conflict", func(t *testing.T) {
		w := env.do(t, http.MethodPut, fmt.Sprintf("/api/instances/%d", instance.ID), gin.H{
			"name": "staging",
		})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decodeEnvelope(t, w).Error, "already exists")
	})

	t.Run("missing instance", func(t *testing.T) {
		w := env.do(t, http.MethodPut, "/api/instances/999", gin.H{"name": "whatever"})
		require.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestDeleteInstanceCascades(t *testing.T) {
	env := newTestEnv(t)
	instance := seedInstance(t, env.db, "production")
	workflow := seedWorkflow(t, env.db, instance.ID, "wf-1")
	seedExecution(t, env.db, workflow.ID, models.ExecutionStatusSuccess, testTime(t, "2025-08-20T10:00:00Z"))
	seedExecution(t, env.db, workflow.ID, models.ExecutionStatusError, testTime(t, "2025-08-21T10:00:00Z"))

	w := env.do(t, http.MethodDelete, fmt.Sprintf("/api/instances/%d", instance.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	ctx := context.Background()

	workflows, err := env.db.ListWorkflows(ctx, listAllWorkflows())
	require.NoError(t, err)
	assert.Empty(t, workflows)

	executions, _, err := env.db.ListExecutions(ctx, listAllExecutions(), 1, 20)
	require.NoError(t, err)
	assert.Empty(t, executions)
}

func TestDeleteInstanceNotFound(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodDelete, "/api/instances/42", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestTestConnection(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var gotKey string
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotKey = r.Header.Get("X-N8N-API-KEY")
			if r.URL.Path != "/rest/active-workflows" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `["1","2"]`)
		}))
		defer upstream.Close()

		env := newTestEnv(t)
		instance := seedInstance(t, env.db, "production")
		instance.APIBaseURL = upstream.URL
		require.NoError(t, env.db.UpdateInstance(context.Background(), instance))

		w := env.do(t, http.MethodPost, fmt.Sprintf("/api/instances/%d/test", instance.ID), nil)
		require.Equal(t, http.StatusOK, w.Code)

		resp := decodeEnvelope(t, w)
		assert.True(t, resp.Success)

		var result models.ConnectionTestResult
		require.NoError(t, json.Unmarshal(resp.Data, &result))
		assert.Equal(t, "success", result.Status)
		assert.Equal(t, instance.APIKey, gotKey)
	})

	t.Run("upstream error status", func(t *testing.T) {
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		}))
		defer upstream.Close()

		env := newTestEnv(t)
		instance := seedInstance(t, env.db, "production")
		instance.APIBaseURL = upstream.URL
		require.NoError(t, env.db.UpdateInstance(context.Background(), instance))

		w := env.do(t, http.MethodPost, fmt.Sprintf("/api/instances/%d/test", instance.ID), nil)
		require.Equal(t, http.StatusBadRequest, w.Code)

		resp := decodeEnvelope(t, w)
		assert.False(t, resp.Success)
		assert.Contains(t, resp.Error, "401")
	})

	t.Run("network failure", func(t *testing.T) {
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		upstream.Close() // no listener left

		env := newTestEnv(t)
		instance := seedInstance(t, env.db, "production")
		instance.APIBaseURL = upstream.URL
		require.NoError(t, env.db.UpdateInstance(context.Background(), instance))

		w := env.do(t, http.MethodPost, fmt.Sprintf("/api/instances/%d/test", instance.ID), nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.True(t, strings.Contains(decodeEnvelope(t, w).Error, "network") ||
			strings.Contains(decodeEnvelope(t, w).Error, "timeout"))
	})

	t.Run("missing instance", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(t, http.MethodPost, "/api/instances/7/test", nil)
		require.Equal(t, http.StatusNotFound, w.Code)
	})
}
