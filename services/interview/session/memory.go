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
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianCoach/services/interview/datatypes"
)

type memoryEntry struct {
	data      []byte
	version   int64
	expiresAt time.Time
}

// MemoryStore keeps checkpoints in process memory.
//
// Thread Safety: Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	opts    options
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), opts: applyOptions(opts)}
}

// Get returns a fresh copy of the session.
func (m *MemoryStore) Get(ctx context.Context, id string) (s *datatypes.InterviewSession, err error) {
	start := time.Now()
	defer func() { m.opts.observe("get", start, ignoreNotFound(err)) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	e, ok := m.entries[id]
	m.mu.RUnlock()
	if !ok || !m.opts.now().Before(e.expiresAt) {
		return nil, notFound(id)
	}
	_, s, err = DecodeCheckpoint(e.data)
	if err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return s, nil
}

// Put stores a checkpoint of the session and refreshes its TTL.
func (m *MemoryStore) Put(ctx context.Context, s *datatypes.InterviewSession) (err error) {
	start := time.Now()
	defer func() { m.opts.observe("put", start, err) }()

	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.ID == "" {
		return fmt.Errorf("%w: session id is required", datatypes.ErrInvalidInput)
	}

	now := m.opts.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	version := m.entries[s.ID].version + 1
	data, err := EncodeCheckpoint(s, version, now, m.opts.ttl)
	if err != nil {
		return err
	}
	m.entries[s.ID] = memoryEntry{data: data, version: version, expiresAt: now.Add(m.opts.ttl)}
	return nil
}

// Delete removes a session. Deleting an unknown id is not an error.
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
	m.opts.observe("delete", start, nil)
	return nil
}

// Sweep removes expired entries and returns how many were removed.
func (m *MemoryStore) Sweep(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	now := m.opts.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored entries, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func ignoreNotFound(err error) error {
	if errors.Is(err, datatypes.ErrSessionNotFound) {
		return nil
	}
	return err
}
