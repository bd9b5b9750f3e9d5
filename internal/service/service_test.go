// Copyright (c) 2025-2026 Verso Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/verso-cms/verso/internal/model"
	"github.com/verso-cms/verso/internal/store"
	"github.com/verso-cms/verso/internal/testutil"
)

type testEnv struct {
	db       *sql.DB
	queries  *store.Queries
	posts    *PostService
	versions *VersionService
	users    *UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)

	logger := testutil.TestLoggerSilent()
	return &testEnv{
		db:       db,
		queries:  store.New(db),
		posts:    NewPostService(db, logger, nil),
		versions: NewVersionService(db, logger, nil),
		users:    NewUserService(db, logger),
	}
}

// createUser inserts a user directly, bypassing password hashing for
// speed.
func (e *testEnv) createUser(t *testing.T, email, name string) store.User {
	t.Helper()

	now := time.Now()
	user, err := e.queries.CreateUser(context.Background(), store.CreateUserParams{
		Email:        email,
		PasswordHash: "x",
		Name:         name,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return user
}

func validDraft(slug string) model.DraftContent {
	return model.DraftContent{
		Title:   "A Perfectly Good Title",
		Slug:    slug,
		Summary: "A summary long enough to pass validation.",
		Content: "Some *markdown* content.",
	}
}

// saveDraft saves a draft and fails the test on error.
func (e *testEnv) saveDraft(t *testing.T, editorID, postID int64, draft model.DraftContent) *SaveDraftResult {
	t.Helper()

	result, err := e.versions.SaveDraft(context.Background(), editorID, postID, draft)
	if err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	return result
}

// publish promotes a version and fails the test on error.
func (e *testEnv) publish(t *testing.T, editorID, versionID int64) *store.Post {
	t.Helper()

	post, err := e.posts.Publish(context.Background(), editorID, versionID)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	return post
}
