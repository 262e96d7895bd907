// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session persists interview sessions between turns.
//
// Sessions are stored as checksummed checkpoints so that a store never hands
// out a reference to shared state: every Get decodes a fresh copy. Writes for
// one session are serialised by the engine through Locks; the stores
// themselves make each Get, Put and Delete atomic.
package session

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/AleutianCoach/services/interview/datatypes"
)

var tracer = otel.Tracer("aleutian.interview.session")

// DefaultTTL is how long a checkpoint lives after its last write.
const DefaultTTL = 24 * time.Hour

// Store is the key-value checkpoint contract.
//
// Get returns an error wrapping datatypes.ErrSessionNotFound for unknown or
// expired ids.
type Store interface {
	Get(ctx context.Context, id string) (*datatypes.InterviewSession, error)
	Put(ctx context.Context, s *datatypes.InterviewSession) error
	Delete(ctx context.Context, id string) error
}

// Sweeper is implemented by stores that must purge expired entries
// themselves.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Observer receives the outcome of every store operation.
type Observer func(op string, d time.Duration, err error)

// Option configures a store.
type Option func(*options)

type options struct {
	ttl      time.Duration
	observer Observer
	now      func() time.Time
}

// WithTTL sets the checkpoint time-to-live.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithObserver reports operation outcomes, typically to metrics.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

func withClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func applyOptions(opts []Option) options {
	o := options{ttl: DefaultTTL, now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

func (o options) observe(op string, start time.Time, err error) {
	if o.observer != nil {
		o.observer(op, time.Since(start), err)
	}
}
