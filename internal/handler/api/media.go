// Copyright (c) 2025-2026 Verso Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"
	"time"

	"github.com/verso-cms/verso/internal/middleware"
	"github.com/verso-cms/verso/internal/service"
	"github.com/verso-cms/verso/internal/store"
)

// ImageResponse represents an uploaded image in API responses.
type ImageResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Width     int64     `json:"width"`
	Height    int64     `json:"height"`
	Size      int64     `json:"size"`
	Optimized bool      `json:"optimized"`
	CreatedAt time.Time `json:"created_at"`
}

func storeImageToResponse(img store.Image) ImageResponse {
	return ImageResponse{
		ID:        img.ID,
		Name:      img.Name,
		URL:       img.Url,
		Width:     img.Width,
		Height:    img.Height,
		Size:      img.Size,
		Optimized: img.Optimized,
		CreatedAt: img.CreatedAt,
	}
}

// UploadImage accepts a multipart image upload, stores it, and
// schedules its optimization to run after the response is sent.
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(service.MaxUploadSize); err != nil {
		WriteBadRequest(w, "Invalid multipart form", nil)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteBadRequest(w, "Missing file field", nil)
		return
	}
	defer file.Close()

	img, err := h.media.SaveOptimized(r.Context(), middleware.GetUserID(r), header.Filename, file)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	WriteCreated(w, storeImageToResponse(*img))
}

// GetImage returns an image record by id.
func (h *Handler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		WriteBadRequest(w, "Invalid image ID", nil)
		return
	}

	img, err := h.media.GetByID(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	WriteSuccess(w, storeImageToResponse(*img), nil)
}
