// Copyright (c) 2025-2026 Verso Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package api provides the REST surface of the content engine.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/verso-cms/verso/internal/service"
	"github.com/verso-cms/verso/internal/version"
)

// Handler holds shared dependencies for all API handlers.
type Handler struct {
	posts    *service.PostService
	versions *service.VersionService
	users    *service.UserService
	media    *service.MediaService
	logger   *slog.Logger
}

// NewHandler creates the API handler over the service layer.
func NewHandler(posts *service.PostService, versions *service.VersionService, users *service.UserService, media *service.MediaService, logger *slog.Logger) *Handler {
	return &Handler{
		posts:    posts,
		versions: versions,
		users:    users,
		media:    media,
		logger:   logger,
	}
}

// Response is the standard API response wrapper.
type Response struct {
	Data any   `json:"data,omitempty"`
	Meta *Meta `json:"meta,omitempty"`
}

// Meta contains list metadata.
type Meta struct {
	Total int `json:"total,omitempty"`
}

// ErrorResponse is the standard API error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a successful JSON response.
func WriteSuccess(w http.ResponseWriter, data any, meta *Meta) {
	WriteJSON(w, http.StatusOK, Response{Data: data, Meta: meta})
}

// WriteCreated writes a 201 Created JSON response.
func WriteCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, Response{Data: data})
}

// WriteError writes an error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, code, message string, details map[string]string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error: ErrorDetail{Code: code, Message: message, Details: details},
	})
}

// WriteBadRequest writes a 400 Bad Request response.
func WriteBadRequest(w http.ResponseWriter, message string, details map[string]string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message, details)
}

// WriteNotFound writes a 404 Not Found response.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message, nil)
}

// WriteUnauthorized writes a 401 Unauthorized response.
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", message, nil)
}

// WriteForbidden writes a 403 Forbidden response.
func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, "forbidden", message, nil)
}

// WriteInternalError writes a 500 Internal Server Error response.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message, nil)
}

// WriteValidationError writes a 422 response with per-field errors.
func WriteValidationError(w http.ResponseWriter, fieldErrors map[string]string) {
	WriteError(w, http.StatusUnprocessableEntity, "validation_error", "Validation failed", fieldErrors)
}

// writeServiceError maps service-layer errors onto the HTTP surface.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var conflict *service.SlugConflictError
	var validation *service.ValidationError

	switch {
	case errors.As(err, &conflict):
		WriteError(w, http.StatusConflict, "slug_conflict", conflict.Error(), nil)
	case errors.As(err, &validation):
		WriteValidationError(w, validation.Fields)
	case errors.Is(err, service.ErrNotFound):
		WriteNotFound(w, err.Error())
	case errors.Is(err, service.ErrUnauthenticated):
		WriteUnauthorized(w, "Authentication required")
	case errors.Is(err, service.ErrForbidden):
		WriteForbidden(w, "Permission denied")
	default:
		logger.Error("request failed", "error", err)
		WriteInternalError(w, "Internal error")
	}
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	writeServiceError(w, h.logger, err)
}

// idParam parses a numeric chi URL parameter.
func idParam(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

// StatusResponse contains API status information.
type StatusResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Status reports API liveness and the build version.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	WriteSuccess(w, StatusResponse{Status: "ok", Version: version.Version}, nil)
}
