// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"context"
	"sync"
)

type lockEntry struct {
	ch   chan struct{}
	refs int
}

// Locks serializes work per session id. Turns on the same session run one at
// a time while turns on different sessions proceed independently.
//
// Thread Safety: Safe for concurrent use.
type Locks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

// NewLocks creates an empty lock table.
func NewLocks() *Locks {
	return &Locks{entries: make(map[string]*lockEntry)}
}

// Lock acquires the lock for id, waiting until it is free or ctx is done.
//
// Outputs:
//
//	func() - Releases the lock. Must be called exactly once.
//	error - ctx.Err() if the context ended before the lock was acquired.
func (l *Locks) Lock(ctx context.Context, id string) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[id]
	if !ok {
		e = &lockEntry{ch: make(chan struct{}, 1)}
		l.entries[id] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(id, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.release(id, e)
		})
	}, nil
}

func (l *Locks) release(id string, e *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, id)
	}
}

// Len returns the number of ids with a holder or waiter.
func (l *Locks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
