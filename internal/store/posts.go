// Copyright (c) 2025-2026 Verso Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"
)

const postColumns = `id, title, slug, summary, content, image_url, author_id, published, publish_time, update_time, search, created_at, updated_at`

func scanPost(row interface{ Scan(...interface{}) error }) (Post, error) {
	var p Post
	err := row.Scan(
		&p.ID,
		&p.Title,
		&p.Slug,
		&p.Summary,
		&p.Content,
		&p.ImageUrl,
		&p.AuthorID,
		&p.Published,
		&p.PublishTime,
		&p.UpdateTime,
		&p.Search,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

func (q *Queries) collectPosts(rows *sql.Rows) ([]Post, error) {
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// CreatePostParams holds parameters for CreatePost.
type CreatePostParams struct {
	Title     string
	Slug      string
	Summary   string
	Content   string
	ImageUrl  string
	AuthorID  int64
	Published bool
	Search    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreatePost inserts a new live post row. The returned row's id is the
// stable postId its versions will reference.
func (q *Queries) CreatePost(ctx context.Context, arg CreatePostParams) (Post, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO posts (title, slug, summary, content, image_url, author_id, published, search, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+postColumns,
		arg.Title, arg.Slug, arg.Summary, arg.Content, arg.ImageUrl, arg.AuthorID, arg.Published, arg.Search, arg.CreatedAt, arg.UpdatedAt,
	)
	return scanPost(row)
}

// GetPostByID returns the post with the given id, any status.
func (q *Queries) GetPostByID(ctx context.Context, id int64) (Post, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id)
	return scanPost(row)
}

// GetPostBySlug returns the post currently holding the given slug,
// regardless of publication state. Visibility is the caller's concern.
func (q *Queries) GetPostBySlug(ctx context.Context, slug string) (Post, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE slug = ?`, slug)
	return scanPost(row)
}

// ListPosts returns all posts, drafts included, newest first.
func (q *Queries) ListPosts(ctx context.Context) ([]Post, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+postColumns+` FROM posts ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	return q.collectPosts(rows)
}

// ListPublishedPosts returns published posts ordered by publish recency.
// The published predicate rides the (published, publish_time) index.
func (q *Queries) ListPublishedPosts(ctx context.Context) ([]Post, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+postColumns+` FROM posts
		WHERE published = 1
		ORDER BY publish_time DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	return q.collectPosts(rows)
}

type ListPostsByAuthorParams struct {
	AuthorID      int64
	PublishedOnly bool
}

// ListPostsByAuthor returns posts owned by the given author, optionally
// restricted to published posts.
func (q *Queries) ListPostsByAuthor(ctx context.Context, arg ListPostsByAuthorParams) ([]Post, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+postColumns+` FROM posts
		WHERE author_id = ? AND (? = 0 OR published = 1)
		ORDER BY created_at DESC, id DESC`, arg.AuthorID, arg.PublishedOnly)
	if err != nil {
		return nil, err
	}
	return q.collectPosts(rows)
}

// ListPostIDsBySlug returns the ids of live posts holding the given slug.
// The unique index keeps this to at most one row, but the slug checker
// treats it as a set to mirror the historical lookup.
func (q *Queries) ListPostIDsBySlug(ctx context.Context, slug string) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id FROM posts WHERE slug = ?`, slug)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// PublishPostParams holds parameters for PublishPost.
type PublishPostParams struct {
	Title       string
	Slug        string
	Summary     string
	Content     string
	ImageUrl    string
	AuthorID    int64
	PublishTime time.Time
	UpdateTime  time.Time
	Search      string
	UpdatedAt   time.Time
	ID          int64
}

// PublishPost patches the live post row in place with a promoted
// version's content and marks it published.
func (q *Queries) PublishPost(ctx context.Context, arg PublishPostParams) (Post, error) {
	row := q.db.QueryRowContext(ctx, `
		UPDATE posts
		SET title = ?, slug = ?, summary = ?, content = ?, image_url = ?, author_id = ?,
		    published = 1, publish_time = ?, update_time = ?, search = ?, updated_at = ?
		WHERE id = ?
		RETURNING `+postColumns,
		arg.Title, arg.Slug, arg.Summary, arg.Content, arg.ImageUrl, arg.AuthorID,
		arg.PublishTime, arg.UpdateTime, arg.Search, arg.UpdatedAt, arg.ID,
	)
	return scanPost(row)
}

// SearchPostsParams holds parameters for SearchPosts.
type SearchPostsParams struct {
	Query         string
	PublishedOnly bool
}

// SearchPosts runs a full-text query against the search aggregate.
// FTS5 MATCH and rank are SQLite-specific and stay as direct SQL.
func (q *Queries) SearchPosts(ctx context.Context, arg SearchPostsParams) ([]Post, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT p.id, p.title, p.slug, p.summary, p.content, p.image_url, p.author_id,
		       p.published, p.publish_time, p.update_time, p.search, p.created_at, p.updated_at
		FROM posts_fts f
		JOIN posts p ON p.id = f.rowid
		WHERE posts_fts MATCH ?
		  AND (? = 0 OR p.published = 1)
		ORDER BY rank`,
		arg.Query, arg.PublishedOnly)
	if err != nil {
		return nil, err
	}
	return q.collectPosts(rows)
}
