// Copyright (c) 2025-2026 Verso Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"time"
)

const versionColumns = `id, post_id, title, slug, summary, content, image_url, author_id, editor_id, published, created_at`

func scanVersion(row interface{ Scan(...interface{}) error }) (Version, error) {
	var v Version
	err := row.Scan(
		&v.ID,
		&v.PostID,
		&v.Title,
		&v.Slug,
		&v.Summary,
		&v.Content,
		&v.ImageUrl,
		&v.AuthorID,
		&v.EditorID,
		&v.Published,
		&v.CreatedAt,
	)
	return v, err
}

// CreateVersionParams holds parameters for CreateVersion.
type CreateVersionParams struct {
	PostID    int64
	Title     string
	Slug      string
	Summary   string
	Content   string
	ImageUrl  string
	AuthorID  int64
	EditorID  int64
	Published bool
	CreatedAt time.Time
}

// CreateVersion appends an immutable version row. Versions are never
// updated or deleted once written.
func (q *Queries) CreateVersion(ctx context.Context, arg CreateVersionParams) (Version, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO versions (post_id, title, slug, summary, content, image_url, author_id, editor_id, published, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+versionColumns,
		arg.PostID, arg.Title, arg.Slug, arg.Summary, arg.Content, arg.ImageUrl,
		arg.AuthorID, arg.EditorID, arg.Published, arg.CreatedAt,
	)
	return scanVersion(row)
}

// GetVersionByID returns the version with the given id.
func (q *Queries) GetVersionByID(ctx context.Context, id int64) (Version, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+versionColumns+` FROM versions WHERE id = ?`, id)
	return scanVersion(row)
}

// ListVersionsByPostID returns all versions of a post, newest first.
func (q *Queries) ListVersionsByPostID(ctx context.Context, postID int64) ([]Version, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+versionColumns+` FROM versions
		WHERE post_id = ?
		ORDER BY created_at DESC, id DESC`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// ListVersionPostIDsBySlug returns the distinct post ids that have ever
// carried the given slug in any version.
func (q *Queries) ListVersionPostIDsBySlug(ctx context.Context, slug string) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT DISTINCT post_id FROM versions WHERE slug = ?`, slug)
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

// GetLatestPublishedVersionBySlug returns the newest published version
// carrying the given slug. Used to resolve superseded slugs to their post.
func (q *Queries) GetLatestPublishedVersionBySlug(ctx context.Context, slug string) (Version, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+versionColumns+` FROM versions
		WHERE slug = ? AND published = 1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, slug)
	return scanVersion(row)
}

// GetNewestDraftAfterParams holds parameters for GetNewestDraftAfter.
type GetNewestDraftAfterParams struct {
	PostID int64
	After  time.Time
}

// GetNewestDraftAfter returns the most recent unpublished version of a
// post created after the given instant, representing unseen newer edits.
func (q *Queries) GetNewestDraftAfter(ctx context.Context, arg GetNewestDraftAfterParams) (Version, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+versionColumns+` FROM versions
		WHERE post_id = ? AND published = 0 AND created_at > ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, arg.PostID, arg.After)
	return scanVersion(row)
}
