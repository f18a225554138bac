// Copyright (c) 2025, the flowdeck contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore implements Store backed by a Redis server.
type RedisStore struct {
	client *redis.Client
	mu     sync.RWMutex
	closed bool
}

// NewRedisStore creates a Store backed by the given Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// withRetries runs op up to RetryAttempts times with a bounded
// per-attempt timeout.
func (s *RedisStore) withRetries(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error
	for i := 0; i < RetryAttempts; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			timeoutCtx, cancel := context.WithTimeout(ctx, DefaultTimeout)
			err := op(timeoutCtx)
			cancel()

			if err == nil {
				return nil
			}

			lastErr = err
			if i < RetryAttempts-1 {
				time.Sleep(RetryDelay)
			}
		}
	}
	return lastErr
}

// Get retrieves a value from Redis
func (s *RedisStore) Get(ctx context.Context, key string, value interface{}) error {
	if s.isClosed() {
		return ErrClosed
	}

	var data []byte
	err := s.withRetries(ctx, func(ctx context.Context) error {
		result, err := s.client.Get(ctx, key).Bytes()
		if err != nil {
			return err
		}
		data = result
		return nil
	})
	if err == redis.Nil {
		return ErrKeyNotFound
	}
	if err != nil {
		return err
	}

	return json.Unmarshal(data, value)
}

// Set stores a value in Redis
func (s *RedisStore) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if s.isClosed() {
		return ErrClosed
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	if expiration == 0 {
		expiration = DefaultTTL
	}

	return s.withRetries(ctx, func(ctx context.Context) error {
		return s.client.Set(ctx, key, data, expiration).Err()
	})
}

// Delete removes a value from Redis
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if s.isClosed() {
		return ErrClosed
	}

	return s.withRetries(ctx, func(ctx context.Context) error {
		return s.client.Del(ctx, key).Err()
	})
}

// Increment records a timestamp in the rate limit window for key
func (s *RedisStore) Increment(ctx context.Context, key string, timestamp int64) error {
	if s.isClosed() {
		return ErrClosed
	}

	return s.withRetries(ctx, func(ctx context.Context) error {
		return s.client.ZAdd(ctx, key, &redis.Z{
			Score:  float64(timestamp),
			Member: strconv.FormatInt(timestamp, 10),
		}).Err()
	})
}

// CleanAndCount drops timestamps older than windowStart
func (s *RedisStore) CleanAndCount(ctx context.Context, key string, windowStart int64) error {
	if s.isClosed() {
		return ErrClosed
	}

	return s.withRetries(ctx, func(ctx context.Context) error {
		return s.client.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(windowStart, 10)).Err()
	})
}

// GetCount returns the number of timestamps in the current window
func (s *RedisStore) GetCount(ctx context.Context, key string) (int64, error) {
	if s.isClosed() {
		return 0, ErrClosed
	}

	var count int64
	err := s.withRetries(ctx, func(ctx context.Context) error {
		result, err := s.client.ZCard(ctx, key).Result()
		if err != nil {
			return err
		}
		count = result
		return nil
	})
	return count, err
}

// Expire sets the retention of a key
func (s *RedisStore) Expire(ctx context.Context, key string, expiration time.Duration) error {
	if s.isClosed() {
		return ErrClosed
	}

	if expiration == 0 {
		expiration = DefaultTTL
	}

	return s.withRetries(ctx, func(ctx context.Context) error {
		return s.client.Expire(ctx, key, expiration).Err()
	})
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}
