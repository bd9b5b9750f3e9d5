// Copyright (c) 2025-2026 Verso Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"database/sql"
	"time"
)

// User is a row in the users table. IsAdmin marks the author/editor
// role; profile fields are optional and empty when unset. Slug is NULL
// until first requested, then permanent.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Name         string
	Slug         sql.NullString
	ImageUrl     string
	Url          string
	Tagline      string
	Bio          string
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Post is the live projection of a logical post. Its id is the stable
// postId grouping key shared with all versions; the slug may change
// across edits. PublishTime is set on first publish and never changes;
// UpdateTime advances on every publish.
type Post struct {
	ID          int64
	Title       string
	Slug        string
	Summary     string
	Content     string
	ImageUrl    string
	AuthorID    int64
	Published   bool
	PublishTime sql.NullTime
	UpdateTime  sql.NullTime
	Search      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Version is one immutable edit record for a post. AuthorID is the
// content owner; EditorID is whoever made this particular edit.
// Published records whether this edit was submitted for publication.
type Version struct {
	ID        int64
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

// Image is an uploaded media object. Url may be rewritten in place by
// the deferred optimization task.
type Image struct {
	ID        int64
	Name      string
	StorageID string
	Url       string
	Width     int64
	Height    int64
	Size      int64
	Optimized bool
	CreatedAt time.Time
}

// Event is a row in the event log.
type Event struct {
	ID        int64
	Level     string
	Category  string
	Message   string
	UserID    sql.NullInt64
	Metadata  string
	CreatedAt time.Time
}
