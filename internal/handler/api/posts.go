// Copyright (c) 2025-2026 Verso Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/verso-cms/verso/internal/middleware"
	"github.com/verso-cms/verso/internal/service"
	"github.com/verso-cms/verso/internal/store"
	"github.com/verso-cms/verso/internal/util"
)

// ExcerptLength bounds the derived post excerpt.
const ExcerptLength = 200

// PostResponse represents a post in API responses.
type PostResponse struct {
	ID          int64            `json:"id"`
	Title       string           `json:"title"`
	Slug        string           `json:"slug"`
	Summary     string           `json:"summary"`
	Content     string           `json:"content"`
	Excerpt     string           `json:"excerpt,omitempty"`
	ImageURL    string           `json:"image_url,omitempty"`
	AuthorID    int64            `json:"author_id"`
	Published   bool             `json:"published"`
	PublishTime *time.Time       `json:"publish_time,omitempty"`
	UpdateTime  *time.Time       `json:"update_time,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	Author      *AuthorResponse  `json:"author,omitempty"`
	Draft       *VersionResponse `json:"draft,omitempty"`
	Public      *VersionResponse `json:"public_version,omitempty"`
}

// AuthorResponse represents an author in API responses.
type AuthorResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	Tagline  string `json:"tagline,omitempty"`
}

func storePostToResponse(p store.Post) PostResponse {
	resp := PostResponse{
		ID:        p.ID,
		Title:     p.Title,
		Slug:      p.Slug,
		Summary:   p.Summary,
		Content:   p.Content,
		Excerpt:   util.Excerpt(p.Content, ExcerptLength),
		ImageURL:  p.ImageUrl,
		AuthorID:  p.AuthorID,
		Published: p.Published,
		CreatedAt: p.CreatedAt,
	}
	if p.PublishTime.Valid {
		t := p.PublishTime.Time
		resp.PublishTime = &t
	}
	if p.UpdateTime.Valid {
		t := p.UpdateTime.Time
		resp.UpdateTime = &t
	}
	return resp
}

func storeUserToAuthor(u *store.User) *AuthorResponse {
	if u == nil {
		return nil
	}
	return &AuthorResponse{
		ID:       u.ID,
		Name:     u.Name,
		Slug:     u.Slug.String,
		ImageURL: u.ImageUrl,
		Tagline:  u.Tagline,
	}
}

// ListPosts returns posts visible to the caller, with authors joined.
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.List(r.Context(), middleware.GetUserID(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := make([]PostResponse, 0, len(posts))
	for _, p := range posts {
		pr := storePostToResponse(p.Post)
		pr.Author = storeUserToAuthor(p.Author)
		resp = append(resp, pr)
	}
	WriteSuccess(w, resp, &Meta{Total: len(resp)})
}

// GetPostBySlug resolves a post by slug, following historical slugs to
// the post that owned them.
func (h *Handler) GetPostBySlug(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	detail, err := h.posts.GetBySlug(r.Context(), middleware.GetUserID(r), slug, service.GetBySlugOptions{
		WithDraft:  r.URL.Query().Get("draft") == "1",
		WithAuthor: r.URL.Query().Get("author") == "1",
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := storePostToResponse(detail.Post)
	resp.Author = storeUserToAuthor(detail.Author)
	if detail.Draft != nil {
		vr := storeVersionToResponse(*detail.Draft)
		resp.Draft = &vr
	}
	if detail.PublicVersion != nil {
		vr := storeVersionToResponse(*detail.PublicVersion)
		resp.Public = &vr
	}
	WriteSuccess(w, resp, nil)
}

// GetPost returns a post by id.
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		WriteBadRequest(w, "Invalid post ID", nil)
		return
	}

	detail, err := h.posts.GetByID(r.Context(), middleware.GetUserID(r), id, r.URL.Query().Get("author") == "1")
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := storePostToResponse(detail.Post)
	resp.Author = storeUserToAuthor(detail.Author)
	WriteSuccess(w, resp, nil)
}

// SearchPosts runs a full-text query over titles, content, summaries,
// and slugs.
func (h *Handler) SearchPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.Search(r.Context(), middleware.GetUserID(r), r.URL.Query().Get("q"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := make([]PostResponse, 0, len(posts))
	for _, p := range posts {
		pr := storePostToResponse(p.Post)
		pr.Author = storeUserToAuthor(p.Author)
		resp = append(resp, pr)
	}
	WriteSuccess(w, resp, &Meta{Total: len(resp)})
}

// CheckSlug reports whether a slug is free for the given post.
func (h *Handler) CheckSlug(w http.ResponseWriter, r *http.Request) {
	slug := r.URL.Query().Get("slug")
	if slug == "" {
		WriteBadRequest(w, "Missing slug parameter", nil)
		return
	}

	var excludeID int64
	if v := r.URL.Query().Get("post_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			WriteBadRequest(w, "Invalid post_id parameter", nil)
			return
		}
		excludeID = id
	}

	conflict, err := h.posts.IsSlugTaken(r.Context(), slug, excludeID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	type slugCheck struct {
		Slug  string  `json:"slug"`
		Taken bool    `json:"taken"`
		Used  []int64 `json:"used_on,omitempty"`
	}
	resp := slugCheck{Slug: slug, Taken: conflict != nil}
	if conflict != nil {
		resp.Used = conflict.PostIDs
	}
	WriteSuccess(w, resp, nil)
}

// PublishPost promotes a version into the live post projection.
func (h *Handler) PublishPost(w http.ResponseWriter, r *http.Request) {
	versionID, err := idParam(r, "id")
	if err != nil {
		WriteBadRequest(w, "Invalid version ID", nil)
		return
	}

	post, err := h.posts.Publish(r.Context(), middleware.GetUserID(r), versionID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	WriteSuccess(w, storePostToResponse(*post), nil)
}
