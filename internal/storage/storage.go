// Copyright (c) 2025-2026 Verso Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package storage abstracts object storage for uploaded media. The core
// stores only opaque storage ids and URLs; bytes never enter the database.
package storage

import (
	"context"
	"io"
)

// Store is the object storage collaborator. Implementations must be
// safe for concurrent use.
type Store interface {
	// Save writes the object and returns its storage id.
	Save(ctx context.Context, r io.Reader) (string, error)

	// Open returns a reader for the stored object.
	Open(ctx context.Context, id string) (io.ReadCloser, error)

	// URL returns the public URL for the stored object.
	URL(id string) string

	// Remove deletes the stored object.
	Remove(ctx context.Context, id string) error
}
