// Copyright (c) 2025-2026 Verso Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"time"
)

const imageColumns = `id, name, storage_id, url, width, height, size, optimized, created_at`

func scanImage(row interface{ Scan(...interface{}) error }) (Image, error) {
	var img Image
	err := row.Scan(
		&img.ID,
		&img.Name,
		&img.StorageID,
		&img.Url,
		&img.Width,
		&img.Height,
		&img.Size,
		&img.Optimized,
		&img.CreatedAt,
	)
	return img, err
}

// CreateImageParams holds parameters for CreateImage.
type CreateImageParams struct {
	Name      string
	StorageID string
	Url       string
	Width     int64
	Height    int64
	Size      int64
	CreatedAt time.Time
}

// CreateImage records an uploaded media object.
func (q *Queries) CreateImage(ctx context.Context, arg CreateImageParams) (Image, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO images (name, storage_id, url, width, height, size, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING `+imageColumns,
		arg.Name, arg.StorageID, arg.Url, arg.Width, arg.Height, arg.Size, arg.CreatedAt,
	)
	return scanImage(row)
}

// GetImageByID returns the image with the given id.
func (q *Queries) GetImageByID(ctx context.Context, id int64) (Image, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+imageColumns+` FROM images WHERE id = ?`, id)
	return scanImage(row)
}

// GetImageByStorageID returns the image referencing the given object.
func (q *Queries) GetImageByStorageID(ctx context.Context, storageID string) (Image, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+imageColumns+` FROM images WHERE storage_id = ?`, storageID)
	return scanImage(row)
}

// UpdateImageObjectParams holds parameters for UpdateImageObject.
type UpdateImageObjectParams struct {
	StorageID string
	Url       string
	Width     int64
	Height    int64
	Size      int64
	ID        int64
}

// UpdateImageObject swaps an image's backing object in place after the
// deferred optimization completes. Readers see either the original or
// the optimized object, never a partial state.
func (q *Queries) UpdateImageObject(ctx context.Context, arg UpdateImageObjectParams) (Image, error) {
	row := q.db.QueryRowContext(ctx, `
		UPDATE images
		SET storage_id = ?, url = ?, width = ?, height = ?, size = ?, optimized = 1
		WHERE id = ?
		RETURNING `+imageColumns,
		arg.StorageID, arg.Url, arg.Width, arg.Height, arg.Size, arg.ID,
	)
	return scanImage(row)
}
