// Copyright (c) 2025, the flowdeck contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Logger returns a gin middleware for logging HTTP requests with zerolog
func Logger() gin.HandlerFunc {
	sensitiveParams := []string{
		"apiKey",
		"api_key",
		"key",
		"token",
		"password",
		"secret",
	}

	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// Redact sensitive query parameters before logging
		query := c.Request.URL.RawQuery
		if query != "" {
			parsed, err := url.ParseQuery(query)
			if err == nil {
				for param := range parsed {
					for _, sensitive := range sensitiveParams {
						if strings.Contains(strings.ToLower(param), strings.ToLower(sensitive)) {
							parsed.Set(param, "[REDACTED]")
						}
					}
				}
				query = parsed.Encode()
			}
		}

		path := c.Request.URL.Path
		if query != "" {
			path = path + "?" + query
		}

		event := log.Info()
		if len(c.Errors) > 0 {
			event = log.Error().Err(c.Errors.Last())
		}

		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("ip", c.ClientIP()).
			Msg("HTTP Request")
	}
}
