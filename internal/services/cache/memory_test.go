// Copyright (c) 2025, the flowdeck contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testStruct struct {
	Name  string
	Value int
}

func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	return store
}

func TestMemoryStoreSetGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	want := testStruct{Name: "dashboard", Value: 42}
	require.NoError(t, store.Set(ctx, "test:key", want, time.Minute))

	var got testStruct
	require.NoError(t, store.Get(ctx, "test:key", &got))
	assert.Equal(t, want, got)
}

func TestMemoryStoreGetMissing(t *testing.T) {
	store := newTestStore(t)

	var got testStruct
	err := store.Get(context.Background(), "nope", &got)
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestMemoryStoreExpiration(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "test:key", "value", 10*time.Millisecond))

	var got string
	require.NoError(t, store.Get(ctx, "test:key", &got))

	time.Sleep(20 * time.Millisecond)

	err := store.Get(ctx, "test:key", &got)
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestMemoryStoreDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "test:key", "value", time.Minute))
	require.NoError(t, store.Delete(ctx, "test:key"))

	var got string
	assert.ErrorIs(t, store.Get(ctx, "test:key", &got), ErrKeyNotFound)

	// Deleting an absent key is not an error.
	assert.NoError(t, store.Delete(ctx, "test:key"))
}

func TestMemoryStoreRateWindow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().Unix()
	for i := int64(0); i < 5; i++ {
		require.NoError(t, store.Increment(ctx, "rate:client", now-i*10))
	}

	count, err := store.GetCount(ctx, "rate:client")
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)

	// Drop everything older than 25 seconds.
	require.NoError(t, store.CleanAndCount(ctx, "rate:client", now-25))

	count, err = store.GetCount(ctx, "rate:client")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	require.NoError(t, store.Expire(ctx, "rate:client", time.Minute))
}

func TestMemoryStoreRateWindowMissingKey(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	count, err := store.GetCount(ctx, "rate:unknown")
	require.NoError(t, err)
	assert.Zero(t, count)

	assert.NoError(t, store.CleanAndCount(ctx, "rate:unknown", time.Now().Unix()))
	assert.NoError(t, store.Expire(ctx, "rate:unknown", time.Minute))
}

func TestMemoryStoreClosed(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Close())

	ctx := context.Background()

	var got string
	assert.ErrorIs(t, store.Get(ctx, "k", &got), ErrClosed)
	assert.ErrorIs(t, store.Set(ctx, "k", "v", time.Minute), ErrClosed)
	assert.ErrorIs(t, store.Delete(ctx, "k"), ErrClosed)
	assert.ErrorIs(t, store.Increment(ctx, "k", 0), ErrClosed)

	// Closing twice is safe.
	assert.NoError(t, store.Close())
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 50; j++ {
				_ = store.Set(ctx, "shared", n*100+j, time.Minute)
				var got int
				_ = store.Get(ctx, "shared", &got)
				_ = store.Increment(ctx, "rate:shared", int64(j))
			}
		}(i)
	}
	for i := 0; i < 4; i++ {
		<-done
	}

	count, err := store.GetCount(ctx, "rate:shared")
	require.NoError(t, err)
	assert.Equal(t, int64(200), count)
}
