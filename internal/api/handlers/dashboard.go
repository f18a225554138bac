// Copyright (c) 2025, the flowdeck contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/flowdeck/flowdeck/internal/database"
	"github.com/flowdeck/flowdeck/internal/models"
	"github.com/flowdeck/flowdeck/internal/services/cache"
)

const (
	statsCacheKey = "dashboard:stats"
	statsCacheTTL = 30 * time.Second

	trendDays        = 7
	recentExecutions = 5
)

type DashboardHandler struct {
	db    *database.DB
	cache cache.Store
}

func NewDashboardHandler(db *database.DB, store cache.Store) *DashboardHandler {
	return &DashboardHandler{
		db:    db,
		cache: store,
	}
}

// formatSuccessRate renders successes/total as a percentage with one
// decimal, or the literal "0%" when there were no executions.
func formatSuccessRate(success, total int64) string {
	if total == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.1f%%", float64(success)/float64(total)*100)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// buildDailyStats buckets samples into one entry per calendar day,
// oldest first, ending with today.
func buildDailyStats(samples []database.ExecutionSample, now time.Time) []models.DailyStat {
	stats := make([]models.DailyStat, trendDays)
	index := make(map[string]*models.DailyStat, trendDays)

	for i := 0; i < trendDays; i++ {
		day := startOfDay(now).AddDate(0, 0, i-(trendDays-1))
		stats[i] = models.DailyStat{Date: day.Format("2006-01-02")}
		index[stats[i].Date] = &stats[i]
	}

	for _, sample := range samples {
		bucket, ok := index[startOfDay(sample.StartedAt.In(now.Location())).Format("2006-01-02")]
		if !ok {
			continue
		}
		bucket.Total++
		switch sample.Status {
		case models.ExecutionStatusSuccess:
			bucket.Success++
		case models.ExecutionStatusError:
			bucket.Error++
		}
	}

	return stats
}

// GetStats handles GET /api/dashboard/stats. The constituent queries
// are independent reads and run concurrently.
func (h *DashboardHandler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()

	var cached models.DashboardStats
	if err := h.cache.Get(ctx, statsCacheKey, &cached); err == nil {
		respondData(c, http.StatusOK, cached)
		return
	}

	now := time.Now()
	today := startOfDay(now)
	tomorrow := today.AddDate(0, 0, 1)
	trendStart := today.AddDate(0, 0, -(trendDays - 1))

	var (
		stats        models.DashboardStats
		todayTotal   int64
		todaySuccess int64
		samples      []database.ExecutionSample
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		stats.Overview.TotalInstances, err = h.db.CountInstances(gctx, "")
		return err
	})
	g.Go(func() (err error) {
		stats.Overview.ActiveInstances, err = h.db.CountInstances(gctx, models.InstanceStatusActive)
		return err
	})
	g.Go(func() (err error) {
		stats.Overview.TotalWorkflows, err = h.db.CountWorkflows(gctx, false)
		return err
	})
	g.Go(func() (err error) {
		stats.Overview.ActiveWorkflows, err = h.db.CountWorkflows(gctx, true)
		return err
	})
	g.Go(func() (err error) {
		todayTotal, err = h.db.CountExecutionsInRange(gctx, today, tomorrow, "")
		return err
	})
	g.Go(func() (err error) {
		todaySuccess, err = h.db.CountExecutionsInRange(gctx, today, tomorrow, models.ExecutionStatusSuccess)
		return err
	})
	g.Go(func() (err error) {
		samples, err = h.db.ExecutionSamplesSince(gctx, trendStart)
		return err
	})
	g.Go(func() (err error) {
		stats.InstanceStats, err = h.db.InstanceStatusCounts(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.RecentExecutions, err = h.db.RecentExecutions(gctx, recentExecutions)
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Error aggregating dashboard stats")
		respondInternalError(c)
		return
	}

	stats.Overview.TodayExecutions = todayTotal
	stats.Overview.SuccessRate = formatSuccessRate(todaySuccess, todayTotal)
	stats.DailyStats = buildDailyStats(samples, now)
	if stats.InstanceStats == nil {
		stats.InstanceStats = []models.InstanceStatusCount{}
	}
	if stats.RecentExecutions == nil {
		stats.RecentExecutions = []models.Execution{}
	}

	if err := h.cache.Set(ctx, statsCacheKey, stats, statsCacheTTL); err != nil {
		log.Warn().Err(err).Msg("Failed to cache dashboard stats")
	}

	respondData(c, http.StatusOK, stats)
}
