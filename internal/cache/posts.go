// Copyright (c) 2025-2026 Verso Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"time"

	"github.com/verso-cms/verso/internal/store"
)

// PostCache caches anonymous slug lookups of published posts.
// Only the public read path goes through it; authenticated reads always
// hit the database so editors never see stale drafts. Invalidation
// happens on publish, keyed by both the pre- and post-publish slug.
type PostCache struct {
	posts *TypedCache[PostEntry]
}

// PostEntry is the cached payload for a slug: the live post row plus
// the public version attachment the read path returns with it, so a
// cache hit has the same shape as a database read.
type PostEntry struct {
	Post          store.Post
	PublicVersion *store.Version
}

// NewPostCache creates a post cache on top of the given backend.
func NewPostCache(backend Cacher, ttl time.Duration) *PostCache {
	if ttl == 0 {
		ttl = time.Hour
	}
	return &PostCache{
		posts: NewTypedCache[PostEntry](backend, ttl),
	}
}

func postSlugKey(slug string) string {
	return "post:slug:" + slug
}

// GetBySlug returns the cached entry for a slug, if present.
func (c *PostCache) GetBySlug(ctx context.Context, slug string) (*PostEntry, bool) {
	return c.posts.Get(ctx, postSlugKey(slug))
}

// SetBySlug caches a published post, with its public version, under
// the post's current slug.
func (c *PostCache) SetBySlug(ctx context.Context, post *store.Post, publicVersion *store.Version) {
	if post == nil || !post.Published {
		return
	}
	entry := &PostEntry{Post: *post, PublicVersion: publicVersion}
	_ = c.posts.Set(ctx, postSlugKey(post.Slug), entry)
}

// InvalidateSlugs drops cached entries for the given slugs. Publish
// passes the old and new slug so a slug change evicts both.
func (c *PostCache) InvalidateSlugs(ctx context.Context, slugs ...string) {
	for _, slug := range slugs {
		if slug == "" {
			continue
		}
		_ = c.posts.Delete(ctx, postSlugKey(slug))
	}
}
