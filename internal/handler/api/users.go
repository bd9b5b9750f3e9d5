// Copyright (c) 2025-2026 Verso Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/verso-cms/verso/internal/middleware"
	"github.com/verso-cms/verso/internal/model"
	"github.com/verso-cms/verso/internal/store"
)

// UserResponse represents a user profile in API responses.
type UserResponse struct {
	ID        int64          `json:"id"`
	Email     string         `json:"email,omitempty"`
	Name      string         `json:"name"`
	Slug      string         `json:"slug,omitempty"`
	ImageURL  string         `json:"image_url,omitempty"`
	URL       string         `json:"url,omitempty"`
	Tagline   string         `json:"tagline,omitempty"`
	Bio       string         `json:"bio,omitempty"`
	IsAdmin   bool           `json:"is_admin,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Posts     []PostResponse `json:"posts,omitempty"`
}

// storeUserToResponse converts a user row to its public API shape.
// The email is only exposed on the viewer's own profile.
func storeUserToResponse(u store.User, includeEmail bool) UserResponse {
	resp := UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Slug:      u.Slug.String,
		ImageURL:  u.ImageUrl,
		URL:       u.Url,
		Tagline:   u.Tagline,
		Bio:       u.Bio,
		IsAdmin:   u.IsAdmin,
		CreatedAt: u.CreatedAt,
	}
	if includeEmail {
		resp.Email = u.Email
	}
	return resp
}

// Viewer returns the caller's own profile, or null when anonymous.
func (h *Handler) Viewer(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Viewer(r.Context(), middleware.GetUserID(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if user == nil {
		WriteSuccess(w, nil, nil)
		return
	}
	resp := storeUserToResponse(*user, true)
	WriteSuccess(w, resp, nil)
}

// ListUsers returns the author directory, optionally with each
// author's posts visible to the caller.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	authors, err := h.users.List(r.Context(), middleware.GetUserID(r), r.URL.Query().Get("posts") == "1")
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := make([]UserResponse, 0, len(authors))
	for _, a := range authors {
		ur := storeUserToResponse(a.User, false)
		for _, p := range a.Posts {
			ur.Posts = append(ur.Posts, storePostToResponse(p))
		}
		resp = append(resp, ur)
	}
	WriteSuccess(w, resp, &Meta{Total: len(resp)})
}

// GetUserBySlug resolves an author directory slug to a profile with
// the author's visible posts.
func (h *Handler) GetUserBySlug(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	posts, err := h.users.AuthoredPosts(r.Context(), middleware.GetUserID(r), user.ID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := storeUserToResponse(*user, false)
	for _, p := range posts {
		resp.Posts = append(resp.Posts, storePostToResponse(p))
	}
	WriteSuccess(w, resp, nil)
}

// UpdateProfileRequest is the request body for profile updates.
type UpdateProfileRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	ImageURL string `json:"image_url,omitempty"`
	URL      string `json:"url,omitempty"`
	Tagline  string `json:"tagline,omitempty"`
	Bio      string `json:"bio,omitempty"`
}

// UpdateProfile applies a profile update for the addressed user.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := idParam(r, "id")
	if err != nil {
		WriteBadRequest(w, "Invalid user ID", nil)
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid JSON body", nil)
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), middleware.GetUserID(r), userID, model.ProfileUpdate{
		Name:     req.Name,
		Email:    req.Email,
		ImageURL: req.ImageURL,
		URL:      req.URL,
		Tagline:  req.Tagline,
		Bio:      req.Bio,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	WriteSuccess(w, storeUserToResponse(*user, userID == middleware.GetUserID(r)), nil)
}

// EnsureUserSlug assigns the caller's directory slug if not set yet
// and returns it.
func (h *Handler) EnsureUserSlug(w http.ResponseWriter, r *http.Request) {
	slug, err := h.users.EnsureSlug(r.Context(), middleware.GetUserID(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	type slugResponse struct {
		Slug string `json:"slug"`
	}
	WriteSuccess(w, slugResponse{Slug: slug}, nil)
}
