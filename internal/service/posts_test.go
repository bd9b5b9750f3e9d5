// Copyright (c) 2025-2026 Verso Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/verso-cms/verso/internal/cache"
	"github.com/verso-cms/verso/internal/testutil"
)

func TestSaveDraft_SlugConflict(t *testing.T) {
	env := newTestEnv(t)
	editor := env.createUser(t, "maya@example.com", "Maya")

	taken := env.saveDraft(t, editor.ID, 0, validDraft("taken"))

	_, err := env.versions.SaveDraft(context.Background(), editor.ID, 0, validDraft("taken"))
	var conflict *SlugConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("got %v, want SlugConflictError", err)
	}
	if len(conflict.PostIDs) != 1 || conflict.PostIDs[0] != taken.PostID {
		t.Errorf("conflict ids = %v, want [%d]", conflict.PostIDs, taken.PostID)
	}
	want := fmt.Sprintf("slug %q is unavailable, used on post(s) %d", "taken", taken.PostID)
	if conflict.Error() != want {
		t.Errorf("message = %q, want %q", conflict.Error(), want)
	}
}

func TestSaveDraft_OwnSlugReuse(t *testing.T) {
	env := newTestEnv(t)
	editor := env.createUser(t, "maya@example.com", "Maya")

	first := env.saveDraft(t, editor.ID, 0, validDraft("mine"))

	// Re-saving the same post under its own slug is always allowed.
	if _, err := env.versions.SaveDraft(context.Background(), editor.ID, first.PostID, validDraft("mine")); err != nil {
		t.Fatalf("re-save under own slug: %v", err)
	}
}

func TestSaveDraft_HistoricalSlugBlocks(t *testing.T) {
	env := newTestEnv(t)
	editor := env.createUser(t, "maya@example.com", "Maya")

	// Post A publishes under "original", then moves to "renamed".
	a := validDraft("original")
	a.Published = true
	first := env.saveDraft(t, editor.ID, 0, a)

	renamed := validDraft("renamed")
	renamed.Published = true
	env.saveDraft(t, editor.ID, first.PostID, renamed)

	// "original" is no longer live anywhere, but history still owns it.
	_, err := env.versions.SaveDraft(context.Background(), editor.ID, 0, validDraft("original"))
	var conflict *SlugConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("got %v, want SlugConflictError for a historical slug", err)
	}
	if len(conflict.PostIDs) != 1 || conflict.PostIDs[0] != first.PostID {
		t.Errorf("conflict ids = %v, want [%d]", conflict.PostIDs, first.PostID)
	}

	// The owning post itself may return to its old slug.
	back := validDraft("original")
	if _, err := env.versions.SaveDraft(context.Background(), editor.ID, first.PostID, back); err != nil {
		t.Fatalf("owner reclaiming historical slug: %v", err)
	}
}

func TestIsSlugTaken(t *testing.T) {
	env := newTestEnv(t)
	editor := env.createUser(t, "maya@example.com", "Maya")

	result := env.saveDraft(t, editor.ID, 0, validDraft("claimed"))
	ctx := context.Background()

	conflict, err := env.posts.IsSlugTaken(ctx, "claimed", 0)
	if err != nil {
		t.Fatalf("IsSlugTaken: %v", err)
	}
	if conflict == nil {
		t.Fatal("expected a conflict")
	}
	if len(conflict.PostIDs) != 1 || conflict.PostIDs[0] != result.PostID {
		t.Errorf("conflict ids = %v, want [%d]", conflict.PostIDs, result.PostID)
	}

	// Excluding the owner clears the conflict.
	conflict, err = env.posts.IsSlugTaken(ctx, "claimed", result.PostID)
	if err != nil {
		t.Fatalf("IsSlugTaken: %v", err)
	}
	if conflict != nil {
		t.Errorf("own slug reported taken: %v", conflict.PostIDs)
	}

	conflict, err = env.posts.IsSlugTaken(ctx, "never-used", 0)
	if err != nil {
		t.Fatalf("IsSlugTaken: %v", err)
	}
	if conflict != nil {
		t.Errorf("fresh slug reported taken: %v", conflict.PostIDs)
	}
}

func TestPublish_PromotesVersion(t *testing.T) {
	env := newTestEnv(t)
	editor := env.createUser(t, "maya@example.com", "Maya")

	draft := validDraft("launch")
	draft.Title = "Launch Day"
	result := env.saveDraft(t, editor.ID, 0, draft)

	post := env.publish(t, editor.ID, result.VersionID)
	if !post.Published {
		t.Error("post not marked published")
	}
	if post.Title != "Launch Day" || post.Slug != "launch" {
		t.Errorf("projection = %q/%q, want Launch Day/launch", post.Title, post.Slug)
	}
	if !post.PublishTime.Valid || !post.UpdateTime.Valid {
		t.Fatal("publish/update time not set")
	}
}

func TestPublish_PublishTimeIsFirstWins(t *testing.T) {
	env := newTestEnv(t)
	editor := env.createUser(t, "maya@example.com", "Maya")

	a := validDraft("evolving")
	a.Title = "Version A"
	first := env.saveDraft(t, editor.ID, 0, a)
	postA := env.publish(t, editor.ID, first.VersionID)

	time.Sleep(5 * time.Millisecond)

	b := validDraft("evolving")
	b.Title = "Version B"
	second := env.saveDraft(t, editor.ID, first.PostID, b)
	postB := env.publish(t, editor.ID, second.VersionID)

	if postB.Title != "Version B" {
		t.Errorf("title = %q, want Version B", postB.Title)
	}
	if !postB.PublishTime.Time.Equal(postA.PublishTime.Time) {
		t.Errorf("publish time moved: %v -> %v", postA.PublishTime.Time, postB.PublishTime.Time)
	}
	if !postB.UpdateTime.Time.After(postA.UpdateTime.Time) {
		t.Errorf("update time did not advance: %v -> %v", postA.UpdateTime.Time, postB.UpdateTime.Time)
	}
}

func TestPublish_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	editor := env.createUser(t, "maya@example.com", "Maya")

	result := env.saveDraft(t, editor.ID, 0, validDraft("repeat"))

	once := env.publish(t, editor.ID, result.VersionID)
	twice := env.publish(t, editor.ID, result.VersionID)

	if twice.Title != once.Title || twice.Slug != once.Slug || twice.Content != once.Content {
		t.Error("republishing the same version changed the projection")
	}
	if !twice.PublishTime.Time.Equal(once.PublishTime.Time) {
		t.Errorf("publish time moved on republish: %v -> %v", once.PublishTime.Time, twice.PublishTime.Time)
	}
}

func TestPublish_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	editor := env.createUser(t, "maya@example.com", "Maya")
	result := env.saveDraft(t, editor.ID, 0, validDraft("locked"))

	if _, err := env.posts.Publish(context.Background(), AnonymousID, result.VersionID); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("got %v, want ErrUnauthenticated", err)
	}
}

func TestPublish_UnknownVersion(t *testing.T) {
	env := newTestEnv(t)
	editor := env.createUser(t, "maya@example.com", "Maya")

	if _, err := env.posts.Publish(context.Background(), editor.ID, 4242); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestList_VisibilityByViewer(t *testing.T) {
	env := newTestEnv(t)
	editor := env.createUser(t, "maya@example.com", "Maya")
	ctx := context.Background()

	live := validDraft("live-post")
	live.Published = true
	env.saveDraft(t, editor.ID, 0, live)
	env.saveDraft(t, editor.ID, 0, validDraft("hidden-draft"))

	public, err := env.posts.List(ctx, AnonymousID)
	if err != nil {
		t.Fatalf("List anonymous: %v", err)
	}
	if len(public) != 1 || public[0].Slug != "live-post" {
		t.Fatalf("anonymous list = %v, want only live-post", slugs(public))
	}

	all, err := env.posts.List(ctx, editor.ID)
	if err != nil {
		t.Fatalf("List authenticated: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("authenticated list = %v, want both posts", slugs(all))
	}
	for _, p := range all {
		if p.Author == nil || p.Author.ID != editor.ID {
			t.Errorf("post %q missing joined author", p.Slug)
		}
	}
}

func slugs(posts []PostWithAuthor) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.Slug
	}
	return out
}

func TestGetBySlug_AnonymousDeniedDraft(t *testing.T) {
	env := newTestEnv(t)
	editor := env.createUser(t, "maya@example.com", "Maya")
	ctx := context.Background()

	env.saveDraft(t, editor.ID, 0, validDraft("unreleased"))

	// Anonymous readers cannot tell a draft from a missing post.
	_, err := env.posts.GetBySlug(ctx, AnonymousID, "unreleased", GetBySlugOptions{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}

	// The editor sees it fine.
	detail, err := env.posts.GetBySlug(ctx, editor.ID, "unreleased", GetBySlugOptions{})
	if err != nil {
		t.Fatalf("GetBySlug as editor: %v", err)
	}
	if detail.Slug != "unreleased" {
		t.Errorf("slug = %q, want unreleased", detail.Slug)
	}
}

func TestGetBySlug_OldSlugResolvesAfterRename(t *testing.T) {
	env := newTestEnv(t)
	editor := env.createUser(t, "maya@example.com", "Maya")
	ctx := context.Background()

	a := validDraft("before")
	a.Published = true
	first := env.saveDraft(t, editor.ID, 0, a)

	time.Sleep(2 * time.Millisecond)

	b := validDraft("after")
	b.Published = true
	env.saveDraft(t, editor.ID, first.PostID, b)

	// The retired slug still resolves, via the published version that
	// carried it, so callers can redirect to the current one.
	detail, err := env.posts.GetBySlug(ctx, AnonymousID, "before", GetBySlugOptions{})
	if err != nil {
		t.Fatalf("GetBySlug old slug: %v", err)
	}
	if detail.ID != first.PostID {
		t.Errorf("resolved post %d, want %d", detail.ID, first.PostID)
	}
	if detail.Slug != "after" {
		t.Errorf("live slug = %q, want after", detail.Slug)
	}
	if detail.PublicVersion == nil || detail.PublicVersion.Slug != "before" {
		t.Error("public version carrying the requested slug not attached")
	}
}

func TestGetBySlug_CacheHitKeepsPublicVersion(t *testing.T) {
	env := newTestEnv(t)
	editor := env.createUser(t, "maya@example.com", "Maya")
	ctx := context.Background()

	draft := validDraft("steady-slug")
	draft.Published = true
	env.saveDraft(t, editor.ID, 0, draft)

	backend := cache.NewSimpleMemoryCache(time.Minute)
	t.Cleanup(func() { _ = backend.Close() })
	cached := NewPostService(env.db, testutil.TestLoggerSilent(), cache.NewPostCache(backend, time.Minute))

	// First read fills the cache, second is served from it. Both must
	// carry the public version attachment.
	for i := 0; i < 2; i++ {
		detail, err := cached.GetBySlug(ctx, AnonymousID, "steady-slug", GetBySlugOptions{})
		if err != nil {
			t.Fatalf("GetBySlug (read %d): %v", i+1, err)
		}
		if detail.PublicVersion == nil || detail.PublicVersion.Slug != "steady-slug" {
			t.Fatalf("read %d: public version = %+v, want slug steady-slug", i+1, detail.PublicVersion)
		}
	}
}

func TestGetBySlug_OldSlugNotCachedUnderLiveKey(t *testing.T) {
	env := newTestEnv(t)
	editor := env.createUser(t, "maya@example.com", "Maya")
	ctx := context.Background()

	a := validDraft("early-name")
	a.Published = true
	first := env.saveDraft(t, editor.ID, 0, a)

	time.Sleep(2 * time.Millisecond)

	b := validDraft("final-name")
	b.Published = true
	env.saveDraft(t, editor.ID, first.PostID, b)

	backend := cache.NewSimpleMemoryCache(time.Minute)
	t.Cleanup(func() { _ = backend.Close() })
	postCache := cache.NewPostCache(backend, time.Minute)
	cached := NewPostService(env.db, testutil.TestLoggerSilent(), postCache)

	// Resolving the retired slug must not plant its version under the
	// live slug's key.
	if _, err := cached.GetBySlug(ctx, AnonymousID, "early-name", GetBySlugOptions{}); err != nil {
		t.Fatalf("GetBySlug old slug: %v", err)
	}
	if _, ok := postCache.GetBySlug(ctx, "final-name"); ok {
		t.Fatal("old-slug resolution cached under the live slug")
	}

	detail, err := cached.GetBySlug(ctx, AnonymousID, "final-name", GetBySlugOptions{})
	if err != nil {
		t.Fatalf("GetBySlug live slug: %v", err)
	}
	if detail.PublicVersion == nil || detail.PublicVersion.Slug != "final-name" {
		t.Errorf("public version = %+v, want slug final-name", detail.PublicVersion)
	}
}

func TestGetBySlug_UnpublishedVersionDoesNotResolve(t *testing.T) {
	env := newTestEnv(t)
	editor := env.createUser(t, "maya@example.com", "Maya")
	ctx := context.Background()

	// A slug that only ever appeared on an unpublished draft must not
	// leak to anonymous readers.
	live := validDraft("public-name")
	live.Published = true
	first := env.saveDraft(t, editor.ID, 0, live)
	env.saveDraft(t, editor.ID, first.PostID, validDraft("working-name"))

	if _, err := env.posts.GetBySlug(ctx, AnonymousID, "working-name", GetBySlugOptions{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestGetBySlug_WithDraftAndAuthor(t *testing.T) {
	env := newTestEnv(t)
	editor := env.createUser(t, "maya@example.com", "Maya")
	ctx := context.Background()

	live := validDraft("in-progress")
	live.Published = true
	first := env.saveDraft(t, editor.ID, 0, live)

	time.Sleep(2 * time.Millisecond)

	newer := validDraft("in-progress")
	newer.Title = "Unfinished Rewrite"
	env.saveDraft(t, editor.ID, first.PostID, newer)

	detail, err := env.posts.GetBySlug(ctx, editor.ID, "in-progress", GetBySlugOptions{WithDraft: true, WithAuthor: true})
	if err != nil {
		t.Fatalf("GetBySlug: %v", err)
	}
	if detail.Draft == nil || detail.Draft.Title != "Unfinished Rewrite" {
		t.Error("newest draft not attached")
	}
	if detail.Author == nil || detail.Author.ID != editor.ID {
		t.Error("author not attached")
	}
	// The live projection still shows the published content.
	if detail.Title != live.Title {
		t.Errorf("live title = %q, want %q", detail.Title, live.Title)
	}
}

func TestGetBySlug_Missing(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.posts.GetBySlug(context.Background(), AnonymousID, "nothing-here", GetBySlugOptions{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestGetByID_Visibility(t *testing.T) {
	env := newTestEnv(t)
	editor := env.createUser(t, "maya@example.com", "Maya")
	ctx := context.Background()

	result := env.saveDraft(t, editor.ID, 0, validDraft("by-id"))

	if _, err := env.posts.GetByID(ctx, AnonymousID, result.PostID, false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound for anonymous draft read", err)
	}

	detail, err := env.posts.GetByID(ctx, editor.ID, result.PostID, true)
	if err != nil {
		t.Fatalf("GetByID as editor: %v", err)
	}
	if detail.Author == nil {
		t.Error("author not attached")
	}
}

func TestSearch(t *testing.T) {
	env := newTestEnv(t)
	editor := env.createUser(t, "maya@example.com", "Maya")
	ctx := context.Background()

	published := validDraft("gardening-tips")
	published.Title = "Gardening Tips for Spring"
	published.Content = "Start seedlings indoors before the last frost."
	published.Published = true
	env.saveDraft(t, editor.ID, 0, published)

	hidden := validDraft("gardening-secrets")
	hidden.Title = "Gardening Secrets"
	env.saveDraft(t, editor.ID, 0, hidden)

	// Anonymous search only sees published content.
	hits, err := env.posts.Search(ctx, AnonymousID, "gardening")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Slug != "gardening-tips" {
		t.Fatalf("anonymous hits = %v, want only gardening-tips", slugs(hits))
	}

	// Authenticated search sees drafts too.
	hits, err = env.posts.Search(ctx, editor.ID, "gardening")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("authenticated hits = %v, want both", slugs(hits))
	}

	// Body text matches as well, with prefix expansion.
	hits, err = env.posts.Search(ctx, AnonymousID, "seedling")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("body hits = %v, want one", slugs(hits))
	}
}

func TestSearch_HostileInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// FTS operator characters must not surface as query errors.
	for _, q := range []string{`"unbalanced`, "a AND b OR", "col:value", "(((", "-", ""} {
		if _, err := env.posts.Search(ctx, AnonymousID, q); err != nil {
			t.Errorf("Search(%q): %v", q, err)
		}
	}
}

func TestEscapeSearchQuery(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"hello", `"hello"*`},
		{"hello world", `"hello"* OR "world"*`},
		{`select * from"posts`, `"select"* OR "from"* OR "posts"*`},
		{"semi-final", `"semi-final"*`},
		{"   ", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := escapeSearchQuery(tt.in); got != tt.want {
			t.Errorf("escapeSearchQuery(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
