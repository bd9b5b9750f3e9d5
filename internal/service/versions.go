// Copyright (c) 2025-2026 Verso Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/verso-cms/verso/internal/cache"
	"github.com/verso-cms/verso/internal/model"
	"github.com/verso-cms/verso/internal/store"
)

// VersionService appends to the immutable version history and reads it
// back.
type VersionService struct {
	db      *sql.DB
	queries *store.Queries
	cache   *cache.PostCache
	logger  *slog.Logger
}

// NewVersionService creates a version service. The cache may be nil.
func NewVersionService(db *sql.DB, logger *slog.Logger, postCache *cache.PostCache) *VersionService {
	return &VersionService{
		db:      db,
		queries: store.New(db),
		cache:   postCache,
		logger:  logger,
	}
}

// SaveDraftResult identifies the version just written and the post it
// belongs to. PostID matters to first-save callers, which did not have
// one yet. Post is the live projection after the save, set only when
// the save also published.
type SaveDraftResult struct {
	PostID    int64
	VersionID int64
	Post      *store.Post
}

// SaveDraft appends a version, creating the post on first save.
// Content is stored exactly as submitted. When the draft carries the
// published flag, the version is promoted into the live post in the
// same transaction. The slug check and the insert run in one
// transaction, with the unique index on the live slug column as the
// storage-level backstop for concurrent saves.
func (s *VersionService) SaveDraft(ctx context.Context, editorID, postID int64, draft model.DraftContent) (*SaveDraftResult, error) {
	if editorID == AnonymousID {
		return nil, ErrUnauthenticated
	}
	if fields := draft.Validate(); len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning draft save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	q := s.queries.WithTx(tx)

	blocking, err := slugTakenBy(ctx, q, draft.Slug, postID)
	if err != nil {
		return nil, err
	}
	if len(blocking) > 0 {
		return nil, &SlugConflictError{Slug: draft.Slug, PostIDs: blocking}
	}

	now := time.Now()
	authorID := draft.AuthorID
	if authorID == 0 {
		authorID = editorID
	}

	if postID == 0 {
		post, err := q.CreatePost(ctx, store.CreatePostParams{
			Title:     draft.Title,
			Slug:      draft.Slug,
			Summary:   draft.Summary,
			Content:   draft.Content,
			ImageUrl:  draft.ImageURL,
			AuthorID:  authorID,
			Published: false,
			Search:    model.SearchText(draft.Title, draft.Content, draft.Summary, draft.Slug),
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return nil, fmt.Errorf("creating post: %w", err)
		}
		postID = post.ID
	} else {
		if _, err := q.GetPostByID(ctx, postID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, &NotFoundError{Entity: "post", ID: postID}
			}
			return nil, fmt.Errorf("loading post %d: %w", postID, err)
		}
	}

	version, err := q.CreateVersion(ctx, store.CreateVersionParams{
		PostID:    postID,
		Title:     draft.Title,
		Slug:      draft.Slug,
		Summary:   draft.Summary,
		Content:   draft.Content,
		ImageUrl:  draft.ImageURL,
		AuthorID:  authorID,
		EditorID:  editorID,
		Published: draft.Published,
		CreatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("creating version: %w", err)
	}

	result := &SaveDraftResult{PostID: postID, VersionID: version.ID}

	var oldSlug string
	if draft.Published {
		var updated store.Post
		oldSlug, updated, err = promoteVersion(ctx, q, version)
		if err != nil {
			return nil, err
		}
		result.Post = &updated
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing draft save: %w", err)
	}

	if draft.Published && s.cache != nil {
		s.cache.InvalidateSlugs(ctx, oldSlug, draft.Slug)
	}

	s.logger.Info("version saved",
		"category", model.EventCategoryVersion,
		"post_id", postID,
		"version_id", version.ID,
		"editor_id", editorID,
		"slug", draft.Slug,
		"published", draft.Published,
	)

	return result, nil
}

// VersionWithUsers is a version joined with the profiles of its author
// and the editor who saved it.
type VersionWithUsers struct {
	store.Version
	Author *store.User
	Editor *store.User
}

// GetPostHistory returns every version of a post, newest first, with
// author and editor profiles joined. History includes unpublished
// drafts and so requires authentication.
func (s *VersionService) GetPostHistory(ctx context.Context, viewerID, postID int64) ([]VersionWithUsers, error) {
	if viewerID == AnonymousID {
		return nil, ErrUnauthenticated
	}

	if _, err := s.queries.GetPostByID(ctx, postID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Entity: "post", ID: postID}
		}
		return nil, fmt.Errorf("loading post %d: %w", postID, err)
	}

	versions, err := s.queries.ListVersionsByPostID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("listing versions for post %d: %w", postID, err)
	}

	lookup := s.userResolver(ctx)

	results := make([]VersionWithUsers, 0, len(versions))
	for _, v := range versions {
		author, err := lookup(v.AuthorID)
		if err != nil {
			return nil, err
		}
		editor, err := lookup(v.EditorID)
		if err != nil {
			return nil, err
		}
		results = append(results, VersionWithUsers{Version: v, Author: author, Editor: editor})
	}
	return results, nil
}

// userResolver returns a lookup memoizing user rows for the duration
// of one request. Missing users resolve to nil, not an error: a
// version must stay readable after its editor's account is gone.
func (s *VersionService) userResolver(ctx context.Context) func(int64) (*store.User, error) {
	users := make(map[int64]*store.User)
	return func(id int64) (*store.User, error) {
		if u, ok := users[id]; ok {
			return u, nil
		}
		u, err := s.queries.GetUserByID(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				users[id] = nil
				return nil, nil
			}
			return nil, fmt.Errorf("loading user %d: %w", id, err)
		}
		users[id] = &u
		return &u, nil
	}
}

// GetByID returns a single version, optionally with author and editor
// profiles joined. Versions can embody unpublished drafts, so reads
// require authentication.
func (s *VersionService) GetByID(ctx context.Context, viewerID, versionID int64, withUsers bool) (*VersionWithUsers, error) {
	if viewerID == AnonymousID {
		return nil, ErrUnauthenticated
	}

	version, err := s.queries.GetVersionByID(ctx, versionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Entity: "version", ID: versionID}
		}
		return nil, fmt.Errorf("loading version %d: %w", versionID, err)
	}

	result := &VersionWithUsers{Version: version}
	if withUsers {
		lookup := s.userResolver(ctx)
		if result.Author, err = lookup(version.AuthorID); err != nil {
			return nil, err
		}
		if result.Editor, err = lookup(version.EditorID); err != nil {
			return nil, err
		}
	}
	return result, nil
}
