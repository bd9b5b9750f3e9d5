// Copyright (c) 2025-2026 Verso Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/verso-cms/verso/internal/store"
)

// AdminHandler serves the admin-only surface. Routes using it must sit
// behind middleware.RequireAdmin.
type AdminHandler struct {
	queries *store.Queries
	logger  *slog.Logger
}

func NewAdminHandler(db *sql.DB, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		queries: store.New(db),
		logger:  logger,
	}
}

// EventResponse represents an event log row in API responses.
type EventResponse struct {
	ID        int64     `json:"id"`
	Level     string    `json:"level"`
	Category  string    `json:"category"`
	Message   string    `json:"message"`
	UserID    int64     `json:"user_id,omitempty"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	defaultEventLimit = 100
	maxEventLimit     = 500
)

// ListEvents returns the newest event log entries.
func (h *AdminHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit := int64(defaultEventLimit)
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 1 {
			WriteBadRequest(w, "Invalid limit parameter", nil)
			return
		}
		limit = min(n, maxEventLimit)
	}

	events, err := h.queries.ListRecentEvents(r.Context(), limit)
	if err != nil {
		h.logger.Error("listing events", "error", err)
		WriteInternalError(w, "Internal error")
		return
	}

	resp := make([]EventResponse, 0, len(events))
	for _, e := range events {
		er := EventResponse{
			ID:        e.ID,
			Level:     e.Level,
			Category:  e.Category,
			Message:   e.Message,
			Metadata:  e.Metadata,
			CreatedAt: e.CreatedAt,
		}
		if e.UserID.Valid {
			er.UserID = e.UserID.Int64
		}
		resp = append(resp, er)
	}
	WriteSuccess(w, resp, &Meta{Total: len(resp)})
}
