// Copyright (c) 2025, the flowdeck contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cache

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

// CacheType represents the type of cache to use
type CacheType string

const (
	CacheTypeRedis  CacheType = "redis"
	CacheTypeMemory CacheType = "memory"
)

// getRedisOptions returns Redis configuration from the environment
func getRedisOptions() *redis.Options {
	host := os.Getenv("REDIS_HOST")
	if host == "" {
		host = "localhost"
	}
	port := os.Getenv("REDIS_PORT")
	if port == "" {
		port = "6379"
	}

	return &redis.Options{
		Addr:            fmt.Sprintf("%s:%s", host, port),
		PoolSize:        10,
		MinIdleConns:    2,
		MaxRetries:      RetryAttempts,
		MinRetryBackoff: RetryDelay,
		MaxRetryBackoff: time.Second,
		ReadTimeout:     DefaultTimeout,
		WriteTimeout:    DefaultTimeout,
		PoolTimeout:     DefaultTimeout * 2,
	}
}

// getCacheType determines which cache implementation to use based on environment
func getCacheType() CacheType {
	cacheType := os.Getenv("CACHE_TYPE")
	if cacheType == "" {
		if os.Getenv("REDIS_HOST") == "" {
			return CacheTypeMemory
		}
		return CacheTypeRedis
	}

	switch strings.ToLower(cacheType) {
	case "redis":
		return CacheTypeRedis
	case "memory":
		return CacheTypeMemory
	default:
		log.Warn().Str("type", cacheType).Msg("Unknown cache type specified, defaulting to memory cache")
		return CacheTypeMemory
	}
}

// InitCache initializes a cache instance based on environment
// configuration. When Redis is unreachable it falls back to the
// in-memory store and returns the connection error for logging.
func InitCache() (Store, error) {
	cacheType := getCacheType()

	log.Debug().Str("type", string(cacheType)).Msg("Initializing cache")

	if cacheType == CacheTypeRedis {
		opts := getRedisOptions()

		ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
		defer cancel()

		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			log.Warn().Err(err).Str("addr", opts.Addr).Msg("Redis connection failed, falling back to memory cache")
			return NewMemoryStore(), err
		}

		log.Info().Str("addr", opts.Addr).Msg("Connected to Redis cache")
		return NewRedisStore(client), nil
	}

	return NewMemoryStore(), nil
}
