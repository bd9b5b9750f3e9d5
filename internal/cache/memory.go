// Copyright (c) 2025-2026 Verso Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-process Cacher. It is the default backend and
// the fallback when Redis is configured but unreachable.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	closed  bool

	defaultTTL time.Duration
	maxSize    int
	stopCh     chan struct{}

	hits   int64
	misses int64
	sets   int64
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCacheOptions configures the memory cache.
type MemoryCacheOptions struct {
	DefaultTTL      time.Duration
	MaxSize         int           // entry cap, 0 = unlimited
	CleanupInterval time.Duration // 0 = no background sweep
}

// NewMemoryCache creates a memory cache with the given options.
func NewMemoryCache(opts MemoryCacheOptions) *MemoryCache {
	c := &MemoryCache{
		entries:    make(map[string]memoryEntry),
		defaultTTL: opts.DefaultTTL,
		maxSize:    opts.MaxSize,
		stopCh:     make(chan struct{}),
	}
	if opts.CleanupInterval > 0 {
		go c.sweep(opts.CleanupInterval)
	}
	return c
}

// NewSimpleMemoryCache creates a memory cache with just a TTL.
func NewSimpleMemoryCache(ttl time.Duration) *MemoryCache {
	return NewMemoryCache(MemoryCacheOptions{
		DefaultTTL:      ttl,
		CleanupInterval: time.Minute,
	})
}

// Get retrieves a value. Expired entries count as misses and are
// dropped on read.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrCacheClosed
	}

	entry, ok := c.entries[key]
	if ok && time.Now().After(entry.expiresAt) {
		delete(c.entries, key)
		ok = false
	}
	if !ok {
		c.misses++
		return nil, ErrCacheMiss
	}

	c.hits++
	// Callers may mutate the returned slice.
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

// Set stores a value with the specified TTL, or the default when ttl
// is zero.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCacheClosed
	}

	if ttl == 0 {
		ttl = c.defaultTTL
	}

	if c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.evictExpiredLocked()
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	c.entries[key] = memoryEntry{value: stored, expiresAt: time.Now().Add(ttl)}
	c.sets++
	return nil
}

// Delete removes a key.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCacheClosed
	}
	delete(c.entries, key)
	return nil
}

// Clear removes all entries.
func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCacheClosed
	}
	c.entries = make(map[string]memoryEntry)
	return nil
}

// Has reports whether a live entry exists for the key.
func (c *MemoryCache) Has(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, ErrCacheClosed
	}

	entry, ok := c.entries[key]
	if ok && time.Now().After(entry.expiresAt) {
		delete(c.entries, key)
		return false, nil
	}
	return ok, nil
}

// Close stops the sweep goroutine. Further operations fail with
// ErrCacheClosed.
func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.stopCh)
	}
	return nil
}

// Stats returns counters accumulated since creation.
func (c *MemoryCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Stats{
		Hits:    c.hits,
		Misses:  c.misses,
		Sets:    c.sets,
		Entries: int64(len(c.entries)),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total) * 100
	}
	return s
}

func (c *MemoryCache) evictExpiredLocked() {
	now := time.Now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *MemoryCache) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			c.evictExpiredLocked()
			c.mu.Unlock()
		case <-c.stopCh:
			return
		}
	}
}

var (
	_ Cacher        = (*MemoryCache)(nil)
	_ StatsProvider = (*MemoryCache)(nil)
)
