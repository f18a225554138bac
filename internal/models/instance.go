// Copyright (c) 2025, the flowdeck contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import "time"

// Instance auth types
const (
	AuthTypeAPIKey = "API_KEY"
)

// Instance statuses
const (
	InstanceStatusActive   = "active"
	InstanceStatusInactive = "inactive"
	InstanceStatusError    = "error"
)

// Instance is a registered external n8n endpoint. The API key is
// stored for outbound calls but is never serialized in responses.
type Instance struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	APIBaseURL string    `json:"apiBaseUrl"`
	APIKey     string    `json:"-"`
	AuthType   string    `json:"authType"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// InstanceSummary is the subset of instance fields embedded in
// workflow and execution responses.
type InstanceSummary struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	APIBaseURL string `json:"apiBaseUrl"`
}

// Summary returns the embeddable representation of the instance.
func (i *Instance) Summary() InstanceSummary {
	return InstanceSummary{
		ID:         i.ID,
		Name:       i.Name,
		APIBaseURL: i.APIBaseURL,
	}
}

// ConnectionTestResult is the outcome of probing a registered
// instance's API. Failures are results, not errors.
type ConnectionTestResult struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	ResponseTime int64  `json:"responseTime,omitempty"`
	Details      string `json:"details,omitempty"`
}
