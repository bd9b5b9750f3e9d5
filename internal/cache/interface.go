// Copyright (c) 2025-2026 Verso Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package cache provides the caching layer: a byte-oriented Cacher
// interface with in-memory and Redis backends, a generic typed wrapper,
// and the published-post cache built on top of them.
package cache

import (
	"context"
	"time"
)

// Cacher is the backend contract. Values are []byte so the same
// interface serves both the in-process and the Redis implementation.
// Implementations must be safe for concurrent use.
type Cacher interface {
	// Get returns the value for key, or ErrCacheMiss when absent or
	// expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value. A zero ttl means the backend's default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key.
	Delete(ctx context.Context, key string) error

	// Clear removes all entries owned by this cache.
	Clear(ctx context.Context) error

	// Has reports whether a live entry exists for key.
	Has(ctx context.Context, key string) (bool, error)

	// Close releases backend resources.
	Close() error
}

// Stats holds cache counters.
type Stats struct {
	Hits    int64
	Misses  int64
	Sets    int64
	Entries int64
	HitRate float64
}

// StatsProvider is implemented by backends that track counters.
type StatsProvider interface {
	Stats() Stats
}

// Error is a sentinel cache error.
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	// ErrCacheMiss indicates the key was not found or has expired.
	ErrCacheMiss Error = "cache miss"

	// ErrCacheClosed indicates the cache has been closed.
	ErrCacheClosed Error = "cache closed"
)
