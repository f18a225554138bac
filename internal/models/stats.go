// Copyright (c) 2025, the flowdeck contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

// DashboardOverview holds the headline counters on the dashboard.
type DashboardOverview struct {
	TotalInstances  int64  `json:"totalInstances"`
	ActiveInstances int64  `json:"activeInstances"`
	TotalWorkflows  int64  `json:"totalWorkflows"`
	ActiveWorkflows int64  `json:"activeWorkflows"`
	TodayExecutions int64  `json:"todayExecutions"`
	SuccessRate     string `json:"successRate"`
}

// DailyStat is one calendar-day bucket of the 7-day execution trend.
type DailyStat struct {
	Date    string `json:"date"`
	Total   int64  `json:"total"`
	Success int64  `json:"success"`
	Error   int64  `json:"error"`
}

// InstanceStatusCount is the number of instances in a given status.
type InstanceStatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// DashboardStats is the full dashboard aggregation payload.
type DashboardStats struct {
	Overview         DashboardOverview     `json:"overview"`
	DailyStats       []DailyStat           `json:"dailyStats"`
	InstanceStats    []InstanceStatusCount `json:"instanceStats"`
	RecentExecutions []Execution           `json:"recentExecutions"`
}
