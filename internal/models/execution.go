// Copyright (c) 2025, the flowdeck contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import "time"

// Execution statuses, assigned by the external system and stored as-is.
const (
	ExecutionStatusSuccess = "success"
	ExecutionStatusError   = "error"
	ExecutionStatusWaiting = "waiting"
	ExecutionStatusRunning = "running"
)

// ValidExecutionStatus reports whether s is a known execution status.
func ValidExecutionStatus(s string) bool {
	switch s {
	case ExecutionStatusSuccess, ExecutionStatusError, ExecutionStatusWaiting, ExecutionStatusRunning:
		return true
	}
	return false
}

// Execution is a recorded run of a mirrored workflow.
type Execution struct {
	ID          int64      `json:"id"`
	ExecutionID string     `json:"executionId"`
	WorkflowID  int64      `json:"workflowId"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"startedAt"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
	DurationMs  *int64     `json:"durationMs,omitempty"`
	Data        *string    `json:"data,omitempty"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`

	Workflow *WorkflowSummary `json:"workflow,omitempty"`
}

// Pagination describes the page window of a list response.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}
