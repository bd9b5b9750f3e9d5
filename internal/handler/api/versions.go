// Copyright (c) 2025-2026 Verso Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/verso-cms/verso/internal/middleware"
	"github.com/verso-cms/verso/internal/model"
	"github.com/verso-cms/verso/internal/store"
)

// VersionResponse represents a version in API responses.
type VersionResponse struct {
	ID        int64           `json:"id"`
	PostID    int64           `json:"post_id"`
	Title     string          `json:"title"`
	Slug      string          `json:"slug"`
	Summary   string          `json:"summary"`
	Content   string          `json:"content"`
	ImageURL  string          `json:"image_url,omitempty"`
	AuthorID  int64           `json:"author_id"`
	EditorID  int64           `json:"editor_id"`
	Published bool            `json:"published"`
	CreatedAt time.Time       `json:"created_at"`
	Author    *AuthorResponse `json:"author,omitempty"`
	Editor    *AuthorResponse `json:"editor,omitempty"`
}

func storeVersionToResponse(v store.Version) VersionResponse {
	return VersionResponse{
		ID:        v.ID,
		PostID:    v.PostID,
		Title:     v.Title,
		Slug:      v.Slug,
		Summary:   v.Summary,
		Content:   v.Content,
		ImageURL:  v.ImageUrl,
		AuthorID:  v.AuthorID,
		EditorID:  v.EditorID,
		Published: v.Published,
		CreatedAt: v.CreatedAt,
	}
}

// SaveDraftRequest is the request body for saving a draft. Setting
// published also promotes the new version in the same operation.
type SaveDraftRequest struct {
	PostID    int64  `json:"post_id,omitempty"`
	Title     string `json:"title"`
	Slug      string `json:"slug"`
	Summary   string `json:"summary"`
	Content   string `json:"content"`
	ImageURL  string `json:"image_url,omitempty"`
	AuthorID  int64  `json:"author_id,omitempty"`
	Published bool   `json:"published,omitempty"`
}

// SaveDraft appends a draft version, creating the post on first save.
func (h *Handler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	var req SaveDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid JSON body", nil)
		return
	}

	result, err := h.versions.SaveDraft(r.Context(), middleware.GetUserID(r), req.PostID, model.DraftContent{
		Title:     req.Title,
		Slug:      req.Slug,
		Summary:   req.Summary,
		Content:   req.Content,
		ImageURL:  req.ImageURL,
		AuthorID:  req.AuthorID,
		Published: req.Published,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	type saveDraftResponse struct {
		PostID    int64         `json:"post_id"`
		VersionID int64         `json:"version_id"`
		Post      *PostResponse `json:"post,omitempty"`
	}
	resp := saveDraftResponse{PostID: result.PostID, VersionID: result.VersionID}
	if result.Post != nil {
		pr := storePostToResponse(*result.Post)
		resp.Post = &pr
	}
	WriteCreated(w, resp)
}

// GetPostHistory returns the full version history of a post, newest
// first, with author and editor profiles joined.
func (h *Handler) GetPostHistory(w http.ResponseWriter, r *http.Request) {
	postID, err := idParam(r, "id")
	if err != nil {
		WriteBadRequest(w, "Invalid post ID", nil)
		return
	}

	versions, err := h.versions.GetPostHistory(r.Context(), middleware.GetUserID(r), postID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := make([]VersionResponse, 0, len(versions))
	for _, v := range versions {
		vr := storeVersionToResponse(v.Version)
		vr.Author = storeUserToAuthor(v.Author)
		vr.Editor = storeUserToAuthor(v.Editor)
		resp = append(resp, vr)
	}
	WriteSuccess(w, resp, &Meta{Total: len(resp)})
}

// GetVersion returns a single version by id. `?users=1` joins the
// author and editor profiles.
func (h *Handler) GetVersion(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		WriteBadRequest(w, "Invalid version ID", nil)
		return
	}

	withUsers := r.URL.Query().Get("users") == "1"
	version, err := h.versions.GetByID(r.Context(), middleware.GetUserID(r), id, withUsers)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := storeVersionToResponse(version.Version)
	resp.Author = storeUserToAuthor(version.Author)
	resp.Editor = storeUserToAuthor(version.Editor)
	WriteSuccess(w, resp, nil)
}
