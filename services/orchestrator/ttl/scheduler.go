// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ttl runs the background purge of expired session checkpoints for
// stores that do not expire entries on their own.
package ttl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianCoach/services/interview/session"
)

// ErrAlreadyRunning is returned by Start on a running scheduler.
var ErrAlreadyRunning = errors.New("scheduler is already running")

// TTLScheduler periodically sweeps expired checkpoints.
type TTLScheduler interface {
	// Start launches the loop. The first sweep runs immediately.
	Start(ctx context.Context) error

	// Stop ends the loop and waits for an in-flight sweep. Safe to call more
	// than once.
	Stop()

	// RunNow performs one sweep synchronously.
	RunNow(ctx context.Context) CleanupResult
}

// SchedulerConfig configures the sweep loop.
type SchedulerConfig struct {
	// Interval between sweeps. Default: 10m
	Interval time.Duration

	// Timeout bounds a single sweep. Default: 1m
	Timeout time.Duration
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval: 10 * time.Minute,
		Timeout:  time.Minute,
	}
}

// CleanupResult describes one sweep.
type CleanupResult struct {
	StartTime time.Time
	EndTime   time.Time
	Removed   int
	Err       error
}

// Duration returns how long the sweep took.
func (r CleanupResult) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// ResultHook receives every sweep outcome, typically for metrics.
type ResultHook func(removed int, err error)

type ttlScheduler struct {
	sweeper session.Sweeper
	config  SchedulerConfig
	hook    ResultHook
	logger  *slog.Logger

	mu      sync.Mutex
	running bool
	done    chan struct{}
	stopped chan struct{}
}

// NewTTLScheduler creates a scheduler over sweeper. hook may be nil.
func NewTTLScheduler(sweeper session.Sweeper, config SchedulerConfig, hook ResultHook, logger *slog.Logger) TTLScheduler {
	d := DefaultSchedulerConfig()
	if config.Interval <= 0 {
		config.Interval = d.Interval
	}
	if config.Timeout <= 0 {
		config.Timeout = d.Timeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ttlScheduler{
		sweeper: sweeper,
		config:  config,
		hook:    hook,
		logger:  logger,
	}
}

func (s *ttlScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}
	s.running = true
	s.done = make(chan struct{})
	s.stopped = make(chan struct{})

	s.logger.Info("TTL sweeper starting", slog.Duration("interval", s.config.Interval))
	go s.runLoop(ctx, s.done, s.stopped)
	return nil
}

func (s *ttlScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.done)
	stopped := s.stopped
	s.mu.Unlock()

	<-stopped
	s.logger.Info("TTL sweeper stopped")
}

func (s *ttlScheduler) RunNow(ctx context.Context) CleanupResult {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	result := CleanupResult{StartTime: time.Now()}
	n, err := s.sweeper.Sweep(ctx)
	result.Removed = n
	if err != nil {
		result.Err = fmt.Errorf("sweep: %w", err)
	}
	result.EndTime = time.Now()

	if s.hook != nil {
		s.hook(result.Removed, result.Err)
	}
	switch {
	case result.Err != nil:
		s.logger.Error("TTL sweep failed", slog.String("error", result.Err.Error()))
	case result.Removed > 0:
		s.logger.Info("TTL sweep removed expired sessions",
			slog.Int("removed", result.Removed),
			slog.Duration("duration", result.Duration()))
	default:
		s.logger.Debug("TTL sweep found no expired sessions")
	}
	return result
}

func (s *ttlScheduler) runLoop(ctx context.Context, done <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.RunNow(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			s.RunNow(ctx)
		}
	}
}
