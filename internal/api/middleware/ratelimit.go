// Copyright (c) 2025, the flowdeck contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/flowdeck/flowdeck/internal/services/cache"
)

type RateLimiter struct {
	cache     cache.Store
	window    time.Duration
	limit     int
	keyPrefix string
}

// NewRateLimiter creates a new rate limiter with the specified configuration
func NewRateLimiter(store cache.Store, window time.Duration, limit int, keyPrefix string) *RateLimiter {
	if window == 0 {
		window = time.Hour
	}
	if limit == 0 {
		limit = 1000
	}
	return &RateLimiter{
		cache:     store,
		window:    window,
		limit:     limit,
		keyPrefix: keyPrefix,
	}
}

// RateLimit returns a Gin middleware that enforces a sliding-window
// request limit per client IP and endpoint. Cache failures fail open.
func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if clientIP == "" {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "could not determine client IP"})
			c.Abort()
			return
		}

		key := fmt.Sprintf("%s%s:%s", rl.keyPrefix, c.Request.URL.Path, clientIP)
		now := time.Now().Unix()
		windowStart := now - int64(rl.window.Seconds())

		if err := rl.cache.CleanAndCount(c, key, windowStart); err != nil {
			log.Error().Err(err).Msg("Failed to clean rate limit data")
			c.Next()
			return
		}

		count, err := rl.cache.GetCount(c, key)
		if err != nil {
			log.Error().Err(err).Msg("Failed to get rate limit count")
			c.Next()
			return
		}

		if count >= int64(rl.limit) {
			// The store doesn't expose the oldest retained timestamp, so
			// advertise the full window as the upper bound on the wait.
			retryAfter := int64(rl.window.Seconds())
			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", rl.limit))
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", now+retryAfter))

			c.JSON(http.StatusTooManyRequests, gin.H{"success": false, "error": "rate limit exceeded"})
			c.Abort()
			return
		}

		if err := rl.cache.Increment(c, key, now); err != nil {
			log.Error().Err(err).Msg("Failed to record rate limit hit")
			c.Next()
			return
		}
		if err := rl.cache.Expire(c, key, rl.window); err != nil {
			log.Error().Err(err).Msg("Failed to set rate limit expiry")
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", rl.limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", rl.limit-int(count)-1))

		c.Next()
	}
}
