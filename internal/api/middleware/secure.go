// Copyright (c) 2025, the flowdeck contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import "github.com/gin-gonic/gin"

// SecureConfig holds configuration for secure headers
type SecureConfig struct {
	FrameGuardAction   string // DENY, SAMEORIGIN
	ContentTypeNosniff bool
	ReferrerPolicy     string
}

// DefaultSecureConfig returns the default secure configuration
func DefaultSecureConfig() *SecureConfig {
	return &SecureConfig{
		FrameGuardAction:   "DENY",
		ContentTypeNosniff: true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}
}

// Secure returns a middleware that sets security-related headers
func Secure(config *SecureConfig) gin.HandlerFunc {
	if config == nil {
		config = DefaultSecureConfig()
	}

	return func(c *gin.Context) {
		if config.FrameGuardAction != "" {
			c.Header("X-Frame-Options", config.FrameGuardAction)
		}
		if config.ContentTypeNosniff {
			c.Header("X-Content-Type-Options", "nosniff")
		}
		if config.ReferrerPolicy != "" {
			c.Header("Referrer-Policy", config.ReferrerPolicy)
		}
		c.Next()
	}
}
