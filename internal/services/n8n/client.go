// Copyright (c) 2025, the flowdeck contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package n8n

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/flowdeck/flowdeck/internal/models"
)

const (
	// DefaultHealthPath is probed on the instance's base URL. The
	// endpoint requires a valid API key, so a 2xx also proves the
	// stored credentials.
	DefaultHealthPath = "/rest/active-workflows"

	// DefaultTimeout bounds one connectivity probe.
	DefaultTimeout = 10 * time.Second

	apiKeyHeader = "X-N8N-API-KEY"

	maxDetailBytes = 2048
)

// Global HTTP client pool, keyed by timeout
var httpClients sync.Map

// getHTTPClient returns a pooled client with the specified timeout
func getHTTPClient(timeout time.Duration) *http.Client {
	if client, ok := httpClients.Load(timeout); ok {
		return client.(*http.Client)
	}

	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			DisableKeepAlives:   false,
		},
		Timeout: timeout,
	}

	httpClients.Store(timeout, client)
	return client
}

// Client probes registered n8n instances over their REST API.
type Client struct {
	healthPath string
	timeout    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHealthPath overrides the probed endpoint path.
func WithHealthPath(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.healthPath = path
		}
	}
}

// WithTimeout overrides the probe timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// NewClient creates an instance prober with the default health
// endpoint and timeout.
func NewClient(opts ...Option) *Client {
	c := &Client{
		healthPath: DefaultHealthPath,
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TestConnection issues one GET against the instance's health endpoint
// with the stored API key. Upstream failures of any kind come back as
// a failure result, never as an error.
func (c *Client) TestConnection(ctx context.Context, instance *models.Instance) models.ConnectionTestResult {
	url := strings.TrimRight(instance.APIBaseURL, "/") + c.healthPath

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.ConnectionTestResult{
			Status:  "error",
			Message: "invalid instance URL",
			Details: err.Error(),
		}
	}

	req.Header.Set("User-Agent", "flowdeck/1.0")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, instance.APIKey)

	start := time.Now()

	resp, err := getHTTPClient(c.timeout).Do(req)
	if err != nil {
		log.Warn().Err(err).Int64("instance", instance.ID).Str("url", url).Msg("Connection test failed")
		return models.ConnectionTestResult{
			Status:  "error",
			Message: "connection timeout or network error",
			Details: err.Error(),
		}
	}
	defer resp.Body.Close()

	elapsed := time.Since(start).Milliseconds()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return models.ConnectionTestResult{
			Status:       "success",
			Message:      "connection test succeeded",
			ResponseTime: elapsed,
		}
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxDetailBytes))
	log.Warn().
		Int64("instance", instance.ID).
		Str("url", url).
		Int("status", resp.StatusCode).
		Msg("Connection test returned non-2xx status")

	return models.ConnectionTestResult{
		Status:       "error",
		Message:      fmt.Sprintf("connection failed: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		ResponseTime: elapsed,
		Details:      string(body),
	}
}
