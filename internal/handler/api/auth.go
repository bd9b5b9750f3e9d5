// Copyright (c) 2025-2026 Verso Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/alexedwards/scs/v2"

	"github.com/verso-cms/verso/internal/middleware"
	"github.com/verso-cms/verso/internal/model"
	"github.com/verso-cms/verso/internal/service"
	"github.com/verso-cms/verso/internal/session"
)

// AuthHandler serves login and logout.
type AuthHandler struct {
	users      *service.UserService
	sessions   *scs.SessionManager
	protection *middleware.LoginProtection
	logger     *slog.Logger
}

func NewAuthHandler(users *service.UserService, sessions *scs.SessionManager, protection *middleware.LoginProtection, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		users:      users,
		sessions:   sessions,
		protection: protection,
		logger:     logger,
	}
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login verifies credentials and starts a session. The session token
// is renewed on privilege change to prevent fixation.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid JSON body", nil)
		return
	}

	if locked, remaining := h.protection.IsAccountLocked(req.Email); locked {
		WriteError(w, http.StatusTooManyRequests, "account_locked",
			fmt.Sprintf("Account locked, try again in %s", remaining.Round(1e9)), nil)
		return
	}

	user, err := h.users.VerifyCredentials(r.Context(), req.Email, req.Password)
	if err != nil {
		if locked, duration := h.protection.RecordFailedAttempt(req.Email); locked {
			h.logger.Warn("account locked",
				"category", model.EventCategoryAuth,
				"email", req.Email,
				"duration", duration,
			)
		}
		WriteUnauthorized(w, "Invalid email or password")
		return
	}

	h.protection.RecordSuccessfulLogin(req.Email)

	if err := h.sessions.RenewToken(r.Context()); err != nil {
		h.logger.Error("session renew failed", "error", err)
		WriteInternalError(w, "Internal error")
		return
	}
	h.sessions.Put(r.Context(), session.UserIDKey, user.ID)

	h.logger.Info("user logged in",
		"category", model.EventCategoryAuth,
		"user_id", user.ID,
	)

	WriteSuccess(w, storeUserToResponse(*user, true), nil)
}

// RegisterRequest is the request body for account registration.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Register creates an author account. The first account on an empty
// install bootstraps itself as admin and is logged in immediately;
// after that, registration requires an admin caller and the new
// account is not signed in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid JSON body", nil)
		return
	}

	viewerID := middleware.GetUserID(r)
	user, err := h.users.CreateAuthor(r.Context(), viewerID, req.Email, req.Password, req.Name)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	if viewerID == service.AnonymousID {
		if err := h.sessions.RenewToken(r.Context()); err != nil {
			h.logger.Error("session renew failed", "error", err)
			WriteInternalError(w, "Internal error")
			return
		}
		h.sessions.Put(r.Context(), session.UserIDKey, user.ID)
	}

	h.logger.Info("author registered",
		"category", model.EventCategoryUser,
		"user_id", user.ID,
		"created_by", viewerID,
	)

	WriteCreated(w, storeUserToResponse(*user, true))
}

// Logout destroys the caller's session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID := h.sessions.GetInt64(r.Context(), session.UserIDKey)

	if err := h.sessions.Destroy(r.Context()); err != nil {
		h.logger.Error("session destroy failed", "error", err)
		WriteInternalError(w, "Internal error")
		return
	}

	if userID != 0 {
		h.logger.Info("user logged out",
			"category", model.EventCategoryAuth,
			"user_id", userID,
		)
	}

	WriteSuccess(w, map[string]bool{"ok": true}, nil)
}
