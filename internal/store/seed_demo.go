// Copyright (c) 2025-2026 Verso Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/verso-cms/verso/internal/auth"
	"github.com/verso-cms/verso/internal/model"
)

// DemoPassword is shared by every seeded demo account.
const DemoPassword = "demo1234demo"

type demoUser struct {
	email string
	name  string
	image string
}

type demoPost struct {
	authorIndex int
	title       string
	slug        string
	summary     string
	content     string
	published   bool
}

var demoUsers = []demoUser{
	{email: "maya@example.com", name: "Maya Lindqvist", image: "https://i.pravatar.cc/150?u=maya"},
	{email: "soren@example.com", name: "Søren Aagard", image: "https://i.pravatar.cc/150?u=soren"},
	{email: "priya@example.com", name: "Priya Raman", image: "https://i.pravatar.cc/150?u=priya"},
	{email: "diego@example.com", name: "Diego Fuentes", image: "https://i.pravatar.cc/150?u=diego"},
}

var demoPosts = []demoPost{
	{
		authorIndex: 1,
		title:       "Why We Keep Every Draft",
		slug:        "why-we-keep-every-draft",
		summary:     "Treating post history as append-only makes editing fearless: nothing a writer does can destroy earlier work.",
		content: `Most publishing tools treat a post as a single mutable document. Save over it enough times and the early shape of an idea is gone.

We store every save as its own immutable version instead. The live post is just a projection of whichever version was last promoted, which means rolling back is reading, not repairing.

The surprising benefit was not safety but confidence. Writers experiment more when the cost of a bad edit is zero.`,
		published: true,
	},
	{
		authorIndex: 0,
		title:       "Slugs Are Forever",
		slug:        "slugs-are-forever",
		summary:     "A URL that once pointed at a post should keep pointing at that post, even after a rename.",
		content: `Renaming a post usually breaks links. The old slug either 404s or, worse, gets claimed by a different post and silently serves the wrong content.

Our rule is simple: a slug used by a post at any point in its history belongs to that post permanently. Lookups fall back through version history, so a reader following a years-old link still lands on the article they were promised.

The cost is that slugs are never recycled. We think that trade is obviously right.`,
		published: true,
	},
	{
		authorIndex: 3,
		title:       "Deferred Image Work",
		slug:        "deferred-image-work",
		summary:     "Uploads should return as soon as the bytes are durable; optimization is a background concern.",
		content: `Image optimization is slow and nobody wants to watch a progress bar for it. We record the upload immediately and schedule the re-encode to run after the response is sent.

Readers might briefly see the original file. That is fine. The swap to the optimized object is atomic, so they never see anything broken.`,
		published: false,
	},
}

// SeedDemo creates demo authors and published posts for showcasing the
// engine. Runs only when enabled by config and only on an empty
// directory.
func SeedDemo(ctx context.Context, db *sql.DB) error {
	queries := New(db)

	_, err := queries.GetUserByEmail(ctx, demoUsers[0].email)
	if err == nil {
		slog.Info("demo content already exists, skipping")
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("checking for demo users: %w", err)
	}

	slog.Info("seeding demo content")

	passwordHash, err := auth.HashPassword(DemoPassword)
	if err != nil {
		return fmt.Errorf("hashing demo password: %w", err)
	}

	now := time.Now()
	userIDs := make([]int64, 0, len(demoUsers))
	for _, du := range demoUsers {
		user, err := queries.CreateUser(ctx, CreateUserParams{
			Email:        du.email,
			PasswordHash: passwordHash,
			Name:         du.name,
			ImageUrl:     du.image,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if err != nil {
			return fmt.Errorf("creating demo user %s: %w", du.email, err)
		}
		userIDs = append(userIDs, user.ID)
	}

	for i, dp := range demoPosts {
		authorID := userIDs[dp.authorIndex]
		// Stagger timestamps so list ordering is deterministic.
		createdAt := now.Add(time.Duration(i-len(demoPosts)) * time.Minute)

		post, err := queries.CreatePost(ctx, CreatePostParams{
			Title:     dp.title,
			Slug:      dp.slug,
			Summary:   dp.summary,
			Content:   dp.content,
			AuthorID:  authorID,
			Published: false,
			Search:    model.SearchText(dp.title, dp.content, dp.summary, dp.slug),
			CreatedAt: createdAt,
			UpdatedAt: createdAt,
		})
		if err != nil {
			return fmt.Errorf("creating demo post %q: %w", dp.slug, err)
		}

		version, err := queries.CreateVersion(ctx, CreateVersionParams{
			PostID:    post.ID,
			Title:     dp.title,
			Slug:      dp.slug,
			Summary:   dp.summary,
			Content:   dp.content,
			AuthorID:  authorID,
			EditorID:  authorID,
			Published: dp.published,
			CreatedAt: createdAt,
		})
		if err != nil {
			return fmt.Errorf("creating demo version for %q: %w", dp.slug, err)
		}

		if dp.published {
			publishTime := createdAt.Add(time.Minute)
			if _, err := queries.PublishPost(ctx, PublishPostParams{
				Title:       version.Title,
				Slug:        version.Slug,
				Summary:     version.Summary,
				Content:     version.Content,
				ImageUrl:    version.ImageUrl,
				AuthorID:    version.AuthorID,
				PublishTime: publishTime,
				UpdateTime:  publishTime,
				Search:      model.SearchText(version.Title, version.Content, version.Summary, version.Slug),
				UpdatedAt:   publishTime,
				ID:          post.ID,
			}); err != nil {
				return fmt.Errorf("publishing demo post %q: %w", dp.slug, err)
			}
		}
	}

	slog.Info("demo content seeded successfully")
	return nil
}
