// Copyright (c) 2025-2026 Verso Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package service implements the content engine: draft versioning,
// publication, slug uniqueness, read visibility, author profiles,
// and media handling.
package service

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Sentinel errors shared by all services. Use errors.Is to classify.
var (
	// ErrNotFound reports a missing post, version, user, or image.
	ErrNotFound = errors.New("not found")

	// ErrUnauthenticated reports a write attempted without an identity.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrForbidden reports an authenticated caller acting on a resource
	// it does not own.
	ErrForbidden = errors.New("permission denied")
)

// NotFoundError names the missing entity. It matches ErrNotFound.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// SlugConflictError reports a slug already claimed, live or
// historically, by one or more other posts.
type SlugConflictError struct {
	Slug    string
	PostIDs []int64
}

func (e *SlugConflictError) Error() string {
	ids := make([]string, len(e.PostIDs))
	for i, id := range e.PostIDs {
		ids[i] = strconv.FormatInt(id, 10)
	}
	return fmt.Sprintf("slug %q is unavailable, used on post(s) %s", e.Slug, strings.Join(ids, ", "))
}

// ValidationError carries per-field problems from request validation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid input: %d field(s) rejected", len(e.Fields))
}
