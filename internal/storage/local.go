// Copyright (c) 2025-2026 Verso Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Local stores objects on the local filesystem under a base directory,
// sharded by the first two characters of the object id.
type Local struct {
	dir     string
	baseURL string
}

// NewLocal creates a local store rooted at dir. Objects are served
// under baseURL + "/uploads/".
func NewLocal(dir, baseURL string) (*Local, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating uploads directory: %w", err)
	}
	return &Local{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Dir returns the base directory, for mounting a static file server.
func (l *Local) Dir() string {
	return l.dir
}

func (l *Local) path(id string) string {
	return filepath.Join(l.dir, id[:2], id)
}

// Save writes the object and returns its storage id.
func (l *Local) Save(_ context.Context, r io.Reader) (string, error) {
	id := uuid.NewString()

	if err := os.MkdirAll(filepath.Dir(l.path(id)), 0755); err != nil {
		return "", fmt.Errorf("creating shard directory: %w", err)
	}

	// Write to a temp file first so a crash never leaves a partial object.
	f, err := os.CreateTemp(l.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := f.Name()

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("writing object: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("closing object: %w", err)
	}

	if err := os.Rename(tmpName, l.path(id)); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("placing object: %w", err)
	}

	return id, nil
}

// Open returns a reader for the stored object.
func (l *Local) Open(_ context.Context, id string) (io.ReadCloser, error) {
	if !validID(id) {
		return nil, fmt.Errorf("invalid storage id %q", id)
	}
	f, err := os.Open(l.path(id))
	if err != nil {
		return nil, fmt.Errorf("opening object %s: %w", id, err)
	}
	return f, nil
}

// URL returns the public URL for the stored object. The path mirrors
// the on-disk shard layout so a plain file server can serve it.
func (l *Local) URL(id string) string {
	if len(id) < 2 {
		return l.baseURL + "/uploads/" + id
	}
	return l.baseURL + "/uploads/" + id[:2] + "/" + id
}

// Remove deletes the stored object.
func (l *Local) Remove(_ context.Context, id string) error {
	if !validID(id) {
		return fmt.Errorf("invalid storage id %q", id)
	}
	if err := os.Remove(l.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing object %s: %w", id, err)
	}
	return nil
}

// validID guards against path traversal through crafted ids.
func validID(id string) bool {
	if len(id) < 3 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

var _ Store = (*Local)(nil)
