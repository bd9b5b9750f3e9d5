// Copyright (c) 2025-2026 Verso Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/verso-cms/verso/internal/auth"
	"github.com/verso-cms/verso/internal/model"
	"github.com/verso-cms/verso/internal/store"
	"github.com/verso-cms/verso/internal/util"
)

// UserService manages author profiles and credentials.
type UserService struct {
	db      *sql.DB
	queries *store.Queries
	logger  *slog.Logger
}

func NewUserService(db *sql.DB, logger *slog.Logger) *UserService {
	return &UserService{
		db:      db,
		queries: store.New(db),
		logger:  logger,
	}
}

// AuthorWithPosts is an author joined with their live posts, newest
// publish first.
type AuthorWithPosts struct {
	store.User
	Posts []store.Post
}

// Viewer returns the acting user's own profile, or nil for anonymous
// callers. It never fails on an unknown id; a stale session simply
// resolves to anonymous.
func (s *UserService) Viewer(ctx context.Context, viewerID int64) (*store.User, error) {
	if viewerID == AnonymousID {
		return nil, nil
	}
	user, err := s.queries.GetUserByID(ctx, viewerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading viewer %d: %w", viewerID, err)
	}
	return &user, nil
}

// GetByID returns a user's public profile.
func (s *UserService) GetByID(ctx context.Context, id int64) (*store.User, error) {
	user, err := s.queries.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Entity: "user", ID: id}
		}
		return nil, fmt.Errorf("loading user %d: %w", id, err)
	}
	return &user, nil
}

// GetBySlug resolves an author's directory slug to their profile.
func (s *UserService) GetBySlug(ctx context.Context, slug string) (*store.User, error) {
	user, err := s.queries.GetUserBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", slug, ErrNotFound)
		}
		return nil, fmt.Errorf("looking up user slug %q: %w", slug, err)
	}
	return &user, nil
}

// List returns the author directory. Posts, when requested, honor the
// viewer's visibility: anonymous callers see only published posts.
func (s *UserService) List(ctx context.Context, viewerID int64, includePosts bool) ([]AuthorWithPosts, error) {
	users, err := s.queries.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}

	results := make([]AuthorWithPosts, 0, len(users))
	for _, u := range users {
		entry := AuthorWithPosts{User: u}
		if includePosts {
			posts, err := s.AuthoredPosts(ctx, viewerID, u.ID)
			if err != nil {
				return nil, err
			}
			entry.Posts = posts
		}
		results = append(results, entry)
	}
	return results, nil
}

// AuthoredPosts lists a user's posts visible to the viewer.
func (s *UserService) AuthoredPosts(ctx context.Context, viewerID, authorID int64) ([]store.Post, error) {
	posts, err := s.queries.ListPostsByAuthor(ctx, store.ListPostsByAuthorParams{
		AuthorID:      authorID,
		PublishedOnly: viewerID == AnonymousID,
	})
	if err != nil {
		return nil, fmt.Errorf("listing posts for author %d: %w", authorID, err)
	}
	return posts, nil
}

// UpdateProfile applies a profile update. Only the profile owner or an
// admin may edit a profile.
func (s *UserService) UpdateProfile(ctx context.Context, viewerID, userID int64, update model.ProfileUpdate) (*store.User, error) {
	if viewerID == AnonymousID {
		return nil, ErrUnauthenticated
	}
	if fields := update.Validate(); len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	if viewerID != userID {
		viewer, err := s.queries.GetUserByID(ctx, viewerID)
		if err != nil {
			return nil, fmt.Errorf("loading viewer %d: %w", viewerID, err)
		}
		if !viewer.IsAdmin {
			return nil, ErrForbidden
		}
	}

	user, err := s.queries.UpdateUserProfile(ctx, store.UpdateUserProfileParams{
		Name:      update.Name,
		Email:     update.Email,
		ImageUrl:  update.ImageURL,
		Url:       update.URL,
		Tagline:   update.Tagline,
		Bio:       update.Bio,
		UpdatedAt: time.Now(),
		ID:        userID,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Entity: "user", ID: userID}
		}
		return nil, fmt.Errorf("updating profile %d: %w", userID, err)
	}

	s.logger.Info("profile updated",
		"category", model.EventCategoryUser,
		"user_id", userID,
		"editor_id", viewerID,
	)

	return &user, nil
}

// EnsureSlug lazily assigns the user a directory slug derived from
// their name, or the local part of their email when the name is empty.
// Assignment is first write wins: a slug, once set, never changes, so
// author URLs stay stable. Collisions get a numeric suffix.
func (s *UserService) EnsureSlug(ctx context.Context, userID int64) (string, error) {
	user, err := s.queries.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", &NotFoundError{Entity: "user", ID: userID}
		}
		return "", fmt.Errorf("loading user %d: %w", userID, err)
	}
	if user.Slug.Valid {
		return user.Slug.String, nil
	}

	source := user.Name
	if strings.TrimSpace(source) == "" {
		source, _, _ = strings.Cut(user.Email, "@")
	}
	base := util.Slugify(source)
	if base == "" {
		base = fmt.Sprintf("author-%d", userID)
	}

	candidate := base
	for i := 2; ; i++ {
		_, err := s.queries.GetUserBySlug(ctx, candidate)
		if errors.Is(err, sql.ErrNoRows) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("checking slug %q: %w", candidate, err)
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}

	n, err := s.queries.SetUserSlug(ctx, store.SetUserSlugParams{Slug: candidate, ID: userID})
	if err != nil {
		return "", fmt.Errorf("assigning slug %q: %w", candidate, err)
	}
	if n == 0 {
		// Lost the race to a concurrent assignment; the winner's slug
		// stands.
		user, err = s.queries.GetUserByID(ctx, userID)
		if err != nil {
			return "", fmt.Errorf("reloading user %d: %w", userID, err)
		}
		return user.Slug.String, nil
	}
	return candidate, nil
}

// VerifyCredentials checks an email and password pair and returns the
// matching user. Unknown emails and wrong passwords fail identically.
func (s *UserService) VerifyCredentials(ctx context.Context, email, password string) (*store.User, error) {
	user, err := s.queries.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Burn comparable time so missing accounts are not
			// distinguishable by response latency.
			auth.CheckPassword(password, auth.DummyHash)
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("loading user by email: %w", err)
	}

	ok, err := auth.CheckPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return nil, ErrUnauthenticated
	}

	if auth.NeedsRehash(user.PasswordHash) {
		if hash, err := auth.HashPassword(password); err == nil {
			_ = s.queries.UpdateUserPassword(ctx, store.UpdateUserPasswordParams{
				PasswordHash: hash,
				UpdatedAt:    time.Now(),
				ID:           user.ID,
			})
		}
	}

	return &user, nil
}

// CreateAuthor registers a new author. The first account in an empty
// directory becomes the admin and may be created by anyone; after
// that, only an admin may register accounts. Admin count, create, and
// promotion share one transaction so concurrent first registrations
// cannot both bootstrap.
func (s *UserService) CreateAuthor(ctx context.Context, viewerID int64, email, password, name string) (*store.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !emailOK(email) {
		return nil, &ValidationError{Fields: map[string]string{"email": "email address is not valid"}}
	}
	if len(password) < auth.MinPasswordLength {
		return nil, &ValidationError{Fields: map[string]string{
			"password": fmt.Sprintf("password must be at least %d characters", auth.MinPasswordLength),
		}}
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning registration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	q := s.queries.WithTx(tx)

	admins, err := q.CountAdmins(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting admins: %w", err)
	}
	bootstrap := admins == 0

	if !bootstrap {
		if viewerID == AnonymousID {
			return nil, ErrUnauthenticated
		}
		viewer, err := q.GetUserByID(ctx, viewerID)
		if err != nil {
			return nil, fmt.Errorf("loading viewer %d: %w", viewerID, err)
		}
		if !viewer.IsAdmin {
			return nil, ErrForbidden
		}
	}

	now := time.Now()
	user, err := q.CreateUser(ctx, store.CreateUserParams{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	if bootstrap {
		user, err = q.SetUserAdmin(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("promoting first user: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing registration: %w", err)
	}

	if bootstrap {
		s.logger.Info("first author promoted to admin",
			"category", model.EventCategoryUser,
			"user_id", user.ID,
		)
	}

	return &user, nil
}

func emailOK(email string) bool {
	return model.ProfileUpdate{Name: "x", Email: email}.Validate()["email"] == ""
}
