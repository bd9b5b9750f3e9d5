// Copyright (c) 2025-2026 Verso Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs periodic maintenance jobs and one-shot
// deferred tasks that must not block the request path.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Task is a unit of deferred work. The context is cancelled when the
// scheduler stops.
type Task func(ctx context.Context) error

// Scheduler wraps a cron runner for recurring jobs and a goroutine pool
// for one-shot deferred tasks.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

// New creates a new scheduler instance.
func New(logger *slog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddJob registers a recurring job with a cron expression.
func (s *Scheduler) AddJob(spec, name string, task Task) error {
	_, err := s.cron.AddFunc(spec, func() {
		if err := task(s.ctx); err != nil {
			s.logger.Error("scheduled job failed", "job", name, "error", err)
		}
	})
	return err
}

// Start begins running recurring jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// RunAfter schedules a one-shot task to run after the given delay.
// The task is fire-and-forget: it cannot be cancelled by the caller and
// its failure never affects the mutation that scheduled it.
func (s *Scheduler) RunAfter(delay time.Duration, name string, task Task) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		s.logger.Warn("scheduler stopped, dropping task", "task", name)
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()

		if delay > 0 {
			timer := time.NewTimer(delay)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-s.ctx.Done():
				return
			}
		}

		if err := task(s.ctx); err != nil {
			s.logger.Error("deferred task failed", "task", name, "error", err)
		}
	}()
}

// Stop gracefully stops the scheduler and waits for in-flight deferred
// tasks, up to the given timeout.
func (s *Scheduler) Stop(timeout time.Duration) {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	cronCtx := s.cron.Stop()
	<-cronCtx.Done()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		s.logger.Warn("deferred tasks still running at shutdown", "timeout", timeout)
	}

	s.cancel()
	s.logger.Info("scheduler stopped")
}
