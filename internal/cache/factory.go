// Copyright (c) 2025-2026 Verso Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"time"
)

// Config selects and tunes the cache backend.
type Config struct {
	// RedisURL selects the Redis backend when non-empty.
	RedisURL string

	// Prefix namespaces keys within a shared Redis instance.
	Prefix string

	// DefaultTTL applies to entries stored with a zero TTL.
	DefaultTTL time.Duration

	// MaxSize caps memory cache entries (0 = unlimited).
	MaxSize int

	// CleanupInterval is the memory cache sweep period.
	CleanupInterval time.Duration
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		DefaultTTL:      time.Hour,
		MaxSize:         10000,
		CleanupInterval: time.Minute,
	}
}

// New creates a cache from the configuration: Redis when a URL is
// configured, in-memory otherwise.
func New(cfg Config) (Cacher, error) {
	if cfg.RedisURL != "" {
		return NewRedisCacheFromURL(cfg.RedisURL, cfg.Prefix, cfg.DefaultTTL)
	}

	return NewMemoryCache(MemoryCacheOptions{
		DefaultTTL:      cfg.DefaultTTL,
		MaxSize:         cfg.MaxSize,
		CleanupInterval: cfg.CleanupInterval,
	}), nil
}

// NewDefault creates a memory cache with default configuration.
func NewDefault() Cacher {
	c, _ := New(DefaultConfig())
	return c
}
