// Copyright (c) 2025, the flowdeck contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MemoryStore implements Store using in-process storage. It is the
// fallback when no Redis is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	items  map[string]memoryItem
	rates  map[string]*rateWindow
	closed bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type memoryItem struct {
	value      []byte
	expiration time.Time
}

type rateWindow struct {
	timestamps []int64
	expiration time.Time
}

// NewMemoryStore creates a new in-memory cache instance with a
// background janitor for expired entries.
func NewMemoryStore() *MemoryStore {
	ctx, cancel := context.WithCancel(context.Background())

	s := &MemoryStore{
		items:  make(map[string]memoryItem),
		rates:  make(map[string]*rateWindow),
		cancel: cancel,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.cleanupLoop(ctx)
	}()

	return s
}

func (s *MemoryStore) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for key, item := range s.items {
				if now.After(item.expiration) {
					delete(s.items, key)
				}
			}
			for key, window := range s.rates {
				if !window.expiration.IsZero() && now.After(window.expiration) {
					delete(s.rates, key)
				}
			}
			s.mu.Unlock()
		}
	}
}

// Get retrieves a value from the cache
func (s *MemoryStore) Get(ctx context.Context, key string, value interface{}) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}

	item, ok := s.items[key]
	if !ok || time.Now().After(item.expiration) {
		return ErrKeyNotFound
	}

	return json.Unmarshal(item.value, value)
}

// Set stores a value in the cache
func (s *MemoryStore) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	if expiration == 0 {
		expiration = DefaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	s.items[key] = memoryItem{
		value:      data,
		expiration: time.Now().Add(expiration),
	}
	return nil
}

// Delete removes a value from the cache
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	delete(s.items, key)
	return nil
}

// Increment records a timestamp in the rate limit window for key
func (s *MemoryStore) Increment(ctx context.Context, key string, timestamp int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	window, ok := s.rates[key]
	if !ok {
		window = &rateWindow{}
		s.rates[key] = window
	}
	window.timestamps = append(window.timestamps, timestamp)
	return nil
}

// CleanAndCount drops timestamps older than windowStart
func (s *MemoryStore) CleanAndCount(ctx context.Context, key string, windowStart int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	window, ok := s.rates[key]
	if !ok {
		return nil
	}

	kept := window.timestamps[:0]
	for _, ts := range window.timestamps {
		if ts >= windowStart {
			kept = append(kept, ts)
		}
	}
	window.timestamps = kept
	return nil
}

// GetCount returns the number of timestamps in the current window
func (s *MemoryStore) GetCount(ctx context.Context, key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrClosed
	}

	window, ok := s.rates[key]
	if !ok {
		return 0, nil
	}
	return int64(len(window.timestamps)), nil
}

// Expire sets the retention of a rate limit window
func (s *MemoryStore) Expire(ctx context.Context, key string, expiration time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if window, ok := s.rates[key]; ok {
		window.expiration = time.Now().Add(expiration)
	}
	return nil
}

// Close stops the janitor and releases all entries
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()

	s.mu.Lock()
	s.items = make(map[string]memoryItem)
	s.rates = make(map[string]*rateWindow)
	s.mu.Unlock()

	return nil
}
