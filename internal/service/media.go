// Copyright (c) 2025-2026 Verso Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/verso-cms/verso/internal/imaging"
	"github.com/verso-cms/verso/internal/model"
	"github.com/verso-cms/verso/internal/scheduler"
	"github.com/verso-cms/verso/internal/storage"
	"github.com/verso-cms/verso/internal/store"
)

// MaxUploadSize bounds a single image upload.
const MaxUploadSize = 10 << 20 // 10 MB

// MediaService stores uploaded images and schedules their deferred
// optimization.
type MediaService struct {
	queries   *store.Queries
	storage   storage.Store
	optimizer *imaging.Optimizer
	scheduler *scheduler.Scheduler
	logger    *slog.Logger
}

func NewMediaService(db *sql.DB, st storage.Store, sched *scheduler.Scheduler, logger *slog.Logger) *MediaService {
	return &MediaService{
		queries:   store.New(db),
		storage:   st,
		optimizer: imaging.NewOptimizer(0, 0),
		scheduler: sched,
		logger:    logger,
	}
}

// Save stores an upload as-is and records it, without optimization.
func (s *MediaService) Save(ctx context.Context, uploaderID int64, name string, r io.Reader) (*store.Image, error) {
	if uploaderID == AnonymousID {
		return nil, ErrUnauthenticated
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if len(data) > MaxUploadSize {
		return nil, &ValidationError{Fields: map[string]string{
			"file": fmt.Sprintf("upload exceeds %d bytes", MaxUploadSize),
		}}
	}

	width, height, err := imaging.Dimensions(bytes.NewReader(data))
	if err != nil {
		return nil, &ValidationError{Fields: map[string]string{"file": "not a supported image"}}
	}

	storageID, err := s.storage.Save(ctx, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("storing upload: %w", err)
	}

	img, err := s.queries.CreateImage(ctx, store.CreateImageParams{
		Name:      name,
		StorageID: storageID,
		Url:       s.storage.URL(storageID),
		Width:     int64(width),
		Height:    int64(height),
		Size:      int64(len(data)),
		CreatedAt: time.Now(),
	})
	if err != nil {
		// The object is orphaned without its row; clean it up.
		_ = s.storage.Remove(ctx, storageID)
		return nil, fmt.Errorf("recording upload: %w", err)
	}

	s.logger.Info("image uploaded",
		"category", model.EventCategoryMedia,
		"image_id", img.ID,
		"uploader_id", uploaderID,
		"size", img.Size,
	)

	return &img, nil
}

// SaveOptimized stores an upload and schedules its optimization to run
// after the request returns. The image is usable immediately in its
// original form; the backing object is swapped once the deferred work
// finishes.
func (s *MediaService) SaveOptimized(ctx context.Context, uploaderID int64, name string, r io.Reader) (*store.Image, error) {
	img, err := s.Save(ctx, uploaderID, name, r)
	if err != nil {
		return nil, err
	}

	imageID := img.ID
	s.scheduler.RunAfter(0, fmt.Sprintf("optimize image %d", imageID), func(ctx context.Context) error {
		return s.optimize(ctx, imageID)
	})

	return img, nil
}

// optimize re-encodes the stored object and swaps the image row to
// point at it. Failures leave the original object in place.
func (s *MediaService) optimize(ctx context.Context, imageID int64) error {
	img, err := s.queries.GetImageByID(ctx, imageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("loading image %d: %w", imageID, err)
	}
	if img.Optimized {
		return nil
	}

	rc, err := s.storage.Open(ctx, img.StorageID)
	if err != nil {
		return fmt.Errorf("opening object %s: %w", img.StorageID, err)
	}
	defer rc.Close()

	result, err := s.optimizer.Optimize(rc)
	if err != nil {
		return fmt.Errorf("optimizing image %d: %w", imageID, err)
	}
	if int64(len(result.Data)) >= img.Size {
		// Nothing gained; keep the original bytes.
		return nil
	}

	newID, err := s.storage.Save(ctx, bytes.NewReader(result.Data))
	if err != nil {
		return fmt.Errorf("storing optimized object: %w", err)
	}

	oldID := img.StorageID
	if _, err := s.queries.UpdateImageObject(ctx, store.UpdateImageObjectParams{
		StorageID: newID,
		Url:       s.storage.URL(newID),
		Width:     int64(result.Width),
		Height:    int64(result.Height),
		Size:      int64(len(result.Data)),
		ID:        imageID,
	}); err != nil {
		_ = s.storage.Remove(ctx, newID)
		return fmt.Errorf("swapping image %d object: %w", imageID, err)
	}
	_ = s.storage.Remove(ctx, oldID)

	s.logger.Info("image optimized",
		"category", model.EventCategoryMedia,
		"image_id", imageID,
		"size", len(result.Data),
	)
	return nil
}

// GetByID returns an image record.
func (s *MediaService) GetByID(ctx context.Context, id int64) (*store.Image, error) {
	img, err := s.queries.GetImageByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Entity: "image", ID: id}
		}
		return nil, fmt.Errorf("loading image %d: %w", id, err)
	}
	return &img, nil
}
