// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ttl

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianCoach/services/interview/datatypes"
	"github.com/AleutianAI/AleutianCoach/services/interview/session"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type countingSweeper struct {
	calls   atomic.Int64
	removed int
	err     error
}

func (c *countingSweeper) Sweep(ctx context.Context) (int, error) {
	c.calls.Add(1)
	return c.removed, c.err
}

func TestRunNow_ReportsToHook(t *testing.T) {
	sweeper := &countingSweeper{removed: 4}
	var mu sync.Mutex
	var got []int
	hook := func(n int, err error) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, n)
		assert.NoError(t, err)
	}

	s := NewTTLScheduler(sweeper, SchedulerConfig{}, hook, quiet)
	res := s.RunNow(context.Background())

	assert.Equal(t, 4, res.Removed)
	assert.NoError(t, res.Err)
	assert.False(t, res.EndTime.Before(res.StartTime))
	assert.Equal(t, []int{4}, got)
}

func TestRunNow_WrapsError(t *testing.T) {
	cause := errors.New("store closed")
	s := NewTTLScheduler(&countingSweeper{err: cause}, SchedulerConfig{}, nil, quiet)
	res := s.RunNow(context.Background())
	assert.ErrorIs(t, res.Err, cause)
}

func TestScheduler_StartStop(t *testing.T) {
	sweeper := &countingSweeper{}
	s := NewTTLScheduler(sweeper, SchedulerConfig{Interval: 5 * time.Millisecond}, nil, quiet)

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyRunning)

	require.Eventually(t, func() bool { return sweeper.calls.Load() >= 3 }, time.Second, time.Millisecond)
	s.Stop()
	s.Stop()

	after := sweeper.calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, sweeper.calls.Load())

	require.NoError(t, s.Start(context.Background()))
	s.Stop()
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	sweeper := &countingSweeper{}
	s := NewTTLScheduler(sweeper, SchedulerConfig{Interval: time.Hour}, nil, quiet)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, s.Start(ctx))
	require.Eventually(t, func() bool { return sweeper.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	s.Stop()
}

func TestScheduler_PurgesMemoryStore(t *testing.T) {
	store := session.NewMemoryStore(session.WithTTL(time.Millisecond))
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, &datatypes.InterviewSession{ID: "expired", Difficulty: datatypes.DifficultyMid}))
	time.Sleep(5 * time.Millisecond)

	var removed int
	s := NewTTLScheduler(store, SchedulerConfig{}, func(n int, err error) { removed += n }, quiet)
	res := s.RunNow(ctx)

	require.NoError(t, res.Err)
	assert.Equal(t, 1, res.Removed)
	assert.Equal(t, 1, removed)
	assert.Zero(t, store.Len())
}
