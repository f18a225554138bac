// Copyright (c) 2025, the flowdeck contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import "time"

// Workflow mirrors an automation defined in a registered n8n
// instance. WorkflowID is the identifier in the remote system;
// (InstanceID, WorkflowID) is unique.
type Workflow struct {
	ID         int64     `json:"id"`
	InstanceID int64     `json:"instanceId"`
	WorkflowID string    `json:"workflowId"`
	Name       string    `json:"name"`
	Active     bool      `json:"active"`
	Tags       string    `json:"tags,omitempty"`
	Project    string    `json:"project,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`

	Instance       *InstanceSummary `json:"instance,omitempty"`
	ExecutionCount *int64           `json:"executionCount,omitempty"`
	Executions     []Execution      `json:"executions,omitempty"`
}

// WorkflowSummary is the subset of workflow fields embedded in
// execution responses.
type WorkflowSummary struct {
	ID         int64            `json:"id"`
	WorkflowID string           `json:"workflowId"`
	Name       string           `json:"name"`
	Instance   *InstanceSummary `json:"instance,omitempty"`
}
