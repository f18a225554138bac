// Copyright (c) 2025, the flowdeck contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/flowdeck/flowdeck/internal/database"
	"github.com/flowdeck/flowdeck/internal/models"
	"github.com/flowdeck/flowdeck/internal/services/cache"
	"github.com/flowdeck/flowdeck/internal/services/n8n"
)

type testEnv struct {
	router *gin.Engine
	db     *database.DB
	store  cache.Store
}

func newTestEnv(t *testing.T, proberOpts ...n8n.Option) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.InitDBWithConfig(&database.Config{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "flowdeck.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := cache.NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	prober := n8n.NewClient(proberOpts...)

	instanceHandler := NewInstanceHandler(db, store, prober)
	workflowHandler := NewWorkflowHandler(db, store)
	executionHandler := NewExecutionHandler(db, store)
	dashboardHandler := NewDashboardHandler(db, store)

	r := gin.New()
	api := r.Group("/api")
	{
		api.GET("/instances", instanceHandler.ListInstances)
		api.POST("/instances", instanceHandler.CreateInstance)
		api.GET("/instances/:id", instanceHandler.GetInstance)
		api.PUT("/instances/:id", instanceHandler.UpdateInstance)
		api.DELETE("/instances/:id", instanceHandler.DeleteInstance)
		api.POST("/instances/:id/test", instanceHandler.TestConnection)

		api.GET("/workflows", workflowHandler.ListWorkflows)
		api.POST("/workflows", workflowHandler.CreateWorkflow)
		api.GET("/workflows/:id", workflowHandler.GetWorkflow)
		api.PUT("/workflows/:id", workflowHandler.UpdateWorkflow)
		api.DELETE("/workflows/:id", workflowHandler.DeleteWorkflow)

		api.GET("/executions", executionHandler.ListExecutions)
		api.POST("/executions", executionHandler.CreateExecution)
		api.DELETE("/executions", executionHandler.DeleteExecutions)
		api.GET("/executions/:id", executionHandler.GetExecution)
		api.DELETE("/executions/:id", executionHandler.DeleteExecution)

		api.GET("/dashboard/stats", dashboardHandler.GetStats)
	}

	return &testEnv{router: r, db: db, store: store}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success    bool               `json:"success"`
	Data       json.RawMessage    `json:"data"`
	Error      string             `json:"error"`
	Details    json.RawMessage    `json:"details"`
	Message    string             `json:"message"`
	Pagination *models.Pagination `json:"pagination"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func seedInstance(t *testing.T, db *database.DB, name string) *models.Instance {
	t.Helper()
	instance := &models.Instance{
		Name:       name,
		APIBaseURL: "http://n8n.local:5678",
		APIKey:     "secret-key-" + name,
	}
	require.NoError(t, db.CreateInstance(context.Background(), instance))
	return instance
}

func seedWorkflow(t *testing.T, db *database.DB, instanceID int64, remoteID string) *models.Workflow {
	t.Helper()
	workflow := &models.Workflow{
		InstanceID: instanceID,
		WorkflowID: remoteID,
		Name:       "workflow " + remoteID,
		Active:     true,
	}
	require.NoError(t, db.CreateWorkflow(context.Background(), workflow))
	return workflow
}

func seedExecution(t *testing.T, db *database.DB, workflowID int64, status string, startedAt time.Time) *models.Execution {
	t.Helper()
	execution := &models.Execution{
		ExecutionID: fmt.Sprintf("exec-%d-%d", workflowID, startedAt.UnixNano()),
		WorkflowID:  workflowID,
		Status:      status,
		StartedAt:   startedAt,
	}
	require.NoError(t, db.CreateExecution(context.Background(), execution))
	return execution
}

func testTime(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return ts
}

func listAllWorkflows() database.WorkflowFilter {
	return database.WorkflowFilter{}
}

func listAllExecutions() database.ExecutionFilter {
	return database.ExecutionFilter{}
}
