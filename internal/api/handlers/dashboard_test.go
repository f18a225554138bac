// Copyright (c) 2025, the flowdeck contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowdeck/flowdeck/internal/database"
	"github.com/flowdeck/flowdeck/internal/models"
)

func TestFormatSuccessRate(t *testing.T) {
	assert.Equal(t, "0%", formatSuccessRate(0, 0))
	assert.Equal(t, "66.7%", formatSuccessRate(2, 3))
	assert.Equal(t, "100.0%", formatSuccessRate(5, 5))
	assert.Equal(t, "0.0%", formatSuccessRate(0, 4))
}

func TestBuildDailyStats(t *testing.T) {
	now := testTime(t, "2025-08-20T15:30:00Z")

	samples := []database.ExecutionSample{
		{StartedAt: testTime(t, "2025-08-20T01:00:00Z"), Status: models.ExecutionStatusSuccess},
		{StartedAt: testTime(t, "2025-08-20T02:00:00Z"), Status: models.ExecutionStatusError},
		{StartedAt: testTime(t, "2025-08-18T12:00:00Z"), Status: models.ExecutionStatusSuccess},
		// Outside the window, dropped.
		{StartedAt: testTime(t, "2025-08-01T12:00:00Z"), Status: models.ExecutionStatusSuccess},
	}

	stats := buildDailyStats(samples, now)
	require.Len(t, stats, 7)

	// Oldest first, ending with today.
	assert.Equal(t, "2025-08-14", stats[0].Date)
	assert.Equal(t, "2025-08-20", stats[6].Date)

	today := stats[6]
	assert.Equal(t, int64(2), today.Total)
	assert.Equal(t, int64(1), today.Success)
	assert.Equal(t, int64(1), today.Error)

	assert.Equal(t, int64(1), stats[4].Total)
	assert.Zero(t, stats[5].Total)
}

func TestBuildDailyStatsOffsetSample(t *testing.T) {
	now := testTime(t, "2025-08-20T15:30:00Z")

	// 07:00 at +08:00 on the 21st is 23:00 UTC on the 20th; buckets
	// follow the reference time's zone, not the sample's offset.
	samples := []database.ExecutionSample{
		{StartedAt: testTime(t, "2025-08-21T07:00:00+08:00"), Status: models.ExecutionStatusSuccess},
	}

	stats := buildDailyStats(samples, now)
	require.Len(t, stats, 7)
	assert.Equal(t, "2025-08-20", stats[6].Date)
	assert.Equal(t, int64(1), stats[6].Total)
	assert.Equal(t, int64(1), stats[6].Success)
}

func getStats(t *testing.T, env *testEnv) models.DashboardStats {
	t.Helper()
	w := env.do(t, http.MethodGet, "/api/dashboard/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats models.DashboardStats
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &stats))
	return stats
}

func TestGetStatsEmpty(t *testing.T) {
	env := newTestEnv(t)

	stats := getStats(t, env)
	assert.Zero(t, stats.Overview.TotalInstances)
	assert.Zero(t, stats.Overview.TodayExecutions)
	assert.Equal(t, "0%", stats.Overview.SuccessRate)
	assert.Len(t, stats.DailyStats, 7)
	assert.NotNil(t, stats.InstanceStats)
	assert.Empty(t, stats.InstanceStats)
	assert.NotNil(t, stats.RecentExecutions)
	assert.Empty(t, stats.RecentExecutions)
}

func TestGetStats(t *testing.T) {
	env := newTestEnv(t)
	instance := seedInstance(t, env.db, "prod")
	workflow := seedWorkflow(t, env.db, instance.ID, "wf-1")

	inactive := &models.Workflow{
		InstanceID: instance.ID,
		WorkflowID: "wf-2",
		Name:       "paused",
		Active:     false,
	}
	require.NoError(t, env.db.CreateWorkflow(context.Background(), inactive))

	today := startOfDay(time.Now())
	seedExecution(t, env.db, workflow.ID, models.ExecutionStatusSuccess, today.Add(1*time.Hour))
	seedExecution(t, env.db, workflow.ID, models.ExecutionStatusSuccess, today.Add(2*time.Hour))
	seedExecution(t, env.db, workflow.ID, models.ExecutionStatusError, today.Add(3*time.Hour))

	stats := getStats(t, env)

	assert.Equal(t, int64(1), stats.Overview.TotalInstances)
	assert.Equal(t, int64(1), stats.Overview.ActiveInstances)
	assert.Equal(t, int64(2), stats.Overview.TotalWorkflows)
	assert.Equal(t, int64(1), stats.Overview.ActiveWorkflows)
	assert.Equal(t, int64(3), stats.Overview.TodayExecutions)
	assert.Equal(t, "66.7%", stats.Overview.SuccessRate)

	require.Len(t, stats.DailyStats, 7)
	todayBucket := stats.DailyStats[6]
	assert.Equal(t, today.Format("2006-01-02"), todayBucket.Date)
	assert.Equal(t, int64(3), todayBucket.Total)
	assert.Equal(t, int64(2), todayBucket.Success)
	assert.Equal(t, int64(1), todayBucket.Error)

	require.Len(t, stats.InstanceStats, 1)
	assert.Equal(t, models.InstanceStatusActive, stats.InstanceStats[0].Status)
	assert.Equal(t, int64(1), stats.InstanceStats[0].Count)

	assert.Len(t, stats.RecentExecutions, 3)
}

func TestGetStatsRecentExecutionsCapped(t *testing.T) {
	env := newTestEnv(t)
	instance := seedInstance(t, env.db, "prod")
	workflow := seedWorkflow(t, env.db, instance.ID, "wf-1")

	today := startOfDay(time.Now())
	for i := 0; i < 8; i++ {
		seedExecution(t, env.db, workflow.ID, models.ExecutionStatusSuccess, today.Add(time.Duration(i)*time.Minute))
	}

	stats := getStats(t, env)
	assert.Len(t, stats.RecentExecutions, 5)
}

func TestGetStatsCacheInvalidation(t *testing.T) {
	env := newTestEnv(t)
	instance := seedInstance(t, env.db, "prod")
	workflow := seedWorkflow(t, env.db, instance.ID, "wf-1")

	stats := getStats(t, env)
	assert.Zero(t, stats.Overview.TodayExecutions)

	// A mutation through the API drops the cached aggregate.
	w := env.do(t, http.MethodPost, "/api/executions", map[string]interface{}{
		"executionId": "run-1",
		"workflowId":  workflow.ID,
		"status":      "success",
		"startedAt":   time.Now().Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code)

	stats = getStats(t, env)
	assert.Equal(t, int64(1), stats.Overview.TodayExecutions)
}
