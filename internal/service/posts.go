// Copyright (c) 2025-2026 Verso Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/verso-cms/verso/internal/cache"
	"github.com/verso-cms/verso/internal/model"
	"github.com/verso-cms/verso/internal/store"
)

// AnonymousID is the acting-user id of an unauthenticated caller.
// Identity is always threaded explicitly; services never read it from
// ambient state.
const AnonymousID int64 = 0

// PostService reads the live post projection and drives the publish
// state machine.
type PostService struct {
	db      *sql.DB
	queries *store.Queries
	cache   *cache.PostCache
	logger  *slog.Logger
}

// NewPostService creates a post service. The cache may be nil.
func NewPostService(db *sql.DB, logger *slog.Logger, postCache *cache.PostCache) *PostService {
	return &PostService{
		db:      db,
		queries: store.New(db),
		cache:   postCache,
		logger:  logger,
	}
}

// PostWithAuthor is a post joined with its author's profile.
type PostWithAuthor struct {
	store.Post
	Author *store.User
}

// PostDetail is the getBySlug result shape: the live post plus optional
// attachments resolved in the same read.
type PostDetail struct {
	store.Post

	// PublicVersion is the newest published version carrying the
	// requested slug, when one exists.
	PublicVersion *store.Version

	// Draft is the newest unpublished version created after the post
	// was last updated, when requested and present.
	Draft *store.Version

	// Author is the post author's profile, when requested.
	Author *store.User
}

// GetBySlugOptions selects optional attachments for GetBySlug.
type GetBySlugOptions struct {
	WithDraft  bool
	WithAuthor bool
}

// slugTakenBy returns the ids of posts, live or historical, that block
// the candidate slug for the given post. Runs on the supplied Queries
// so SaveDraft can execute it inside its insert transaction.
func slugTakenBy(ctx context.Context, q *store.Queries, slug string, excludePostID int64) ([]int64, error) {
	blocking := make(map[int64]struct{})

	// Live posts currently holding the slug.
	liveIDs, err := q.ListPostIDsBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("checking live slugs: %w", err)
	}
	for _, id := range liveIDs {
		if id != excludePostID {
			blocking[id] = struct{}{}
		}
	}

	// Posts that carried the slug in any historical version. A slug
	// once used by post A can never be claimed by post B, even after
	// A moves on, so old links never resolve to the wrong content.
	versionIDs, err := q.ListVersionPostIDsBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("checking historical slugs: %w", err)
	}
	for _, id := range versionIDs {
		if id != excludePostID {
			blocking[id] = struct{}{}
		}
	}

	if len(blocking) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(blocking))
	for id := range blocking {
		ids = append(ids, id)
	}
	// Stable order for error messages.
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// IsSlugTaken reports whether the candidate slug is blocked for the
// post being saved (0 for a new post). A non-nil conflict lists the
// blocking post ids; reusing one's own historical slug never conflicts.
func (s *PostService) IsSlugTaken(ctx context.Context, slug string, excludePostID int64) (*SlugConflictError, error) {
	ids, err := slugTakenBy(ctx, s.queries, slug, excludePostID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return &SlugConflictError{Slug: slug, PostIDs: ids}, nil
}

// Publish promotes a version's content into the live post projection.
// The first publish of a post fixes publish_time forever; every publish
// advances update_time. Republishing the same version is content
// idempotent. The search aggregate is recomputed in the same
// transaction as the content patch.
func (s *PostService) Publish(ctx context.Context, editorID, versionID int64) (*store.Post, error) {
	if editorID == AnonymousID {
		return nil, ErrUnauthenticated
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning publish: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	q := s.queries.WithTx(tx)

	version, err := q.GetVersionByID(ctx, versionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Entity: "version", ID: versionID}
		}
		return nil, fmt.Errorf("loading version %d: %w", versionID, err)
	}

	oldSlug, updated, err := promoteVersion(ctx, q, version)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing publish: %w", err)
	}

	if s.cache != nil {
		// The slug may have changed with this publish; evict both.
		s.cache.InvalidateSlugs(ctx, oldSlug, updated.Slug)
	}

	s.logger.Info("version published",
		"category", model.EventCategoryPost,
		"post_id", updated.ID,
		"version_id", versionID,
		"editor_id", editorID,
		"slug", updated.Slug,
	)

	return &updated, nil
}

// promoteVersion patches a version's content into its live post row.
// The first publish of a post fixes publish_time; update_time and the
// search aggregate are rewritten on every promotion. Returns the slug
// the post held before the promotion.
func promoteVersion(ctx context.Context, q *store.Queries, version store.Version) (string, store.Post, error) {
	post, err := q.GetPostByID(ctx, version.PostID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", store.Post{}, &NotFoundError{Entity: "post", ID: version.PostID}
		}
		return "", store.Post{}, fmt.Errorf("loading post %d: %w", version.PostID, err)
	}

	now := time.Now()
	publishTime := now
	if post.PublishTime.Valid {
		publishTime = post.PublishTime.Time
	}

	updated, err := q.PublishPost(ctx, store.PublishPostParams{
		Title:       version.Title,
		Slug:        version.Slug,
		Summary:     version.Summary,
		Content:     version.Content,
		ImageUrl:    version.ImageUrl,
		AuthorID:    version.AuthorID,
		PublishTime: publishTime,
		UpdateTime:  now,
		Search:      model.SearchText(version.Title, version.Content, version.Summary, version.Slug),
		UpdatedAt:   now,
		ID:          post.ID,
	})
	if err != nil {
		return "", store.Post{}, fmt.Errorf("publishing version %d: %w", version.ID, err)
	}
	return post.Slug, updated, nil
}

// List returns posts ordered by recency. Anonymous callers see only
// published posts in publish order; authenticated callers also see
// drafts, in creation order. Author profiles are joined.
func (s *PostService) List(ctx context.Context, viewerID int64) ([]PostWithAuthor, error) {
	var (
		posts []store.Post
		err   error
	)
	if viewerID == AnonymousID {
		posts, err = s.queries.ListPublishedPosts(ctx)
	} else {
		posts, err = s.queries.ListPosts(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}

	return s.joinAuthors(ctx, posts)
}

// GetByID returns a post by id, honoring the same visibility rule as
// GetBySlug: anonymous callers cannot observe unpublished posts.
func (s *PostService) GetByID(ctx context.Context, viewerID, id int64, withAuthor bool) (*PostDetail, error) {
	post, err := s.queries.GetPostByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Entity: "post", ID: id}
		}
		return nil, fmt.Errorf("loading post %d: %w", id, err)
	}

	if viewerID == AnonymousID && !post.Published {
		// Deliberately indistinguishable from a missing post.
		return nil, &NotFoundError{Entity: "post", ID: id}
	}

	detail := &PostDetail{Post: post}
	if withAuthor {
		author, err := s.queries.GetUserByID(ctx, post.AuthorID)
		if err == nil {
			detail.Author = &author
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("loading author %d: %w", post.AuthorID, err)
		}
	}
	return detail, nil
}

// GetBySlug resolves a post by its current slug, falling back to
// historical version slugs so superseded slugs keep resolving to the
// post that owned them. Unpublished posts are invisible to anonymous
// callers.
func (s *PostService) GetBySlug(ctx context.Context, viewerID int64, slug string, opts GetBySlugOptions) (*PostDetail, error) {
	// Cache serves only the anonymous plain lookup.
	cacheable := viewerID == AnonymousID && !opts.WithDraft && !opts.WithAuthor
	if cacheable && s.cache != nil {
		if entry, ok := s.cache.GetBySlug(ctx, slug); ok {
			return &PostDetail{Post: entry.Post, PublicVersion: entry.PublicVersion}, nil
		}
	}

	// The newest published version with this slug, for the redirect
	// fallback and the publicVersion attachment.
	var publicVersion *store.Version
	if v, err := s.queries.GetLatestPublishedVersionBySlug(ctx, slug); err == nil {
		publicVersion = &v
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("looking up version slug %q: %w", slug, err)
	}

	post, err := s.queries.GetPostBySlug(ctx, slug)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("looking up slug %q: %w", slug, err)
		}
		// The slug is not live; it may have been superseded. Resolve
		// through version history to the owning post.
		if publicVersion == nil {
			return nil, fmt.Errorf("post %q: %w", slug, ErrNotFound)
		}
		post, err = s.queries.GetPostByID(ctx, publicVersion.PostID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, &NotFoundError{Entity: "post", ID: publicVersion.PostID}
			}
			return nil, fmt.Errorf("loading post %d: %w", publicVersion.PostID, err)
		}
	}

	if viewerID == AnonymousID && !post.Published {
		// Unpublished drafts do not exist for anonymous viewers.
		return nil, fmt.Errorf("post %q: %w", slug, ErrNotFound)
	}

	detail := &PostDetail{Post: post, PublicVersion: publicVersion}

	if opts.WithDraft {
		after := post.CreatedAt
		if post.UpdateTime.Valid {
			after = post.UpdateTime.Time
		}
		draft, err := s.queries.GetNewestDraftAfter(ctx, store.GetNewestDraftAfterParams{
			PostID: post.ID,
			After:  after,
		})
		if err == nil {
			detail.Draft = &draft
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("loading draft for post %d: %w", post.ID, err)
		}
	}

	if opts.WithAuthor {
		author, err := s.queries.GetUserByID(ctx, post.AuthorID)
		if err == nil {
			detail.Author = &author
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("loading author %d: %w", post.AuthorID, err)
		}
	}

	// Only a live-slug lookup is stored: an old-slug resolution
	// carries the superseded slug's version, which does not belong
	// under the post's current key.
	if cacheable && s.cache != nil && slug == post.Slug {
		s.cache.SetBySlug(ctx, &post, publicVersion)
	}

	return detail, nil
}

// ftsSpecials strips characters with meaning to the FTS5 query parser.
var ftsSpecials = regexp.MustCompile(`[^\p{L}\p{N}\s_-]`)

// escapeSearchQuery turns free text into a forgiving FTS5 query:
// each word becomes a quoted prefix term, joined with OR.
func escapeSearchQuery(term string) string {
	term = ftsSpecials.ReplaceAllString(strings.TrimSpace(term), " ")

	words := strings.Fields(term)
	if len(words) == 0 {
		return ""
	}

	terms := make([]string, 0, len(words))
	for _, w := range words {
		terms = append(terms, `"`+w+`"*`)
	}
	return strings.Join(terms, " OR ")
}

// Search runs a full-text query over the search aggregate. Anonymous
// callers match only published posts; author profiles are joined.
func (s *PostService) Search(ctx context.Context, viewerID int64, term string) ([]PostWithAuthor, error) {
	query := escapeSearchQuery(term)
	if query == "" {
		return nil, nil
	}

	posts, err := s.queries.SearchPosts(ctx, store.SearchPostsParams{
		Query:         query,
		PublishedOnly: viewerID == AnonymousID,
	})
	if err != nil {
		return nil, fmt.Errorf("searching posts: %w", err)
	}

	return s.joinAuthors(ctx, posts)
}

func (s *PostService) joinAuthors(ctx context.Context, posts []store.Post) ([]PostWithAuthor, error) {
	results := make([]PostWithAuthor, 0, len(posts))
	authors := make(map[int64]*store.User)

	for _, p := range posts {
		author, ok := authors[p.AuthorID]
		if !ok {
			u, err := s.queries.GetUserByID(ctx, p.AuthorID)
			if err != nil {
				if !errors.Is(err, sql.ErrNoRows) {
					return nil, fmt.Errorf("loading author %d: %w", p.AuthorID, err)
				}
			} else {
				author = &u
			}
			authors[p.AuthorID] = author
		}
		results = append(results, PostWithAuthor{Post: p, Author: author})
	}
	return results, nil
}
