// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package collaborator

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/AleutianCoach/services/interview/datatypes"
)

const (
	// DefaultTemplateCacheSize is the default number of cached template answers.
	DefaultTemplateCacheSize = 128

	// DefaultTemplateLoadTimeout bounds a shared generation, which outlives
	// the caller that started it.
	DefaultTemplateLoadTimeout = 2 * time.Minute
)

// TemplateGenerateFunc produces a template answer on cache miss.
type TemplateGenerateFunc func(ctx context.Context) (string, error)

type templateEntry struct {
	key   string
	value string
	elem  *list.Element
}

// TemplateCache is a fixed-capacity least-recently-used cache of generated
// template answers, keyed by question id and difficulty. Concurrent misses for
// the same key share one generation.
type TemplateCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*templateEntry
	lru      *list.List
	flight   singleflight.Group

	loadTimeout time.Duration

	hits      int64
	misses    int64
	evictions int64
}

// TemplateCacheStats reports cache counters.
type TemplateCacheStats struct {
	Entries   int
	Capacity  int
	Hits      int64
	Misses    int64
	Evictions int64
}

// NewTemplateCache creates a cache holding at most capacity entries.
func NewTemplateCache(capacity int) *TemplateCache {
	if capacity <= 0 {
		capacity = DefaultTemplateCacheSize
	}
	return &TemplateCache{
		capacity:    capacity,
		entries:     make(map[string]*templateEntry),
		lru:         list.New(),
		loadTimeout: DefaultTemplateLoadTimeout,
	}
}

// Get returns the cached value for key and marks it most recently used.
func (c *TemplateCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return "", false
	}
	c.lru.MoveToFront(e.elem)
	atomic.AddInt64(&c.hits, 1)
	return e.value, true
}

// Put stores value under key, evicting the least recently used entry when full.
func (c *TemplateCache) Put(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.lru.MoveToFront(e.elem)
		return
	}
	for c.lru.Len() >= c.capacity {
		c.evictOldestLocked()
	}
	e := &templateEntry{key: key, value: value}
	e.elem = c.lru.PushFront(e)
	c.entries[key] = e
}

// GetOrGenerate returns the cached value or generates, caches and returns it.
// Generation errors are returned and not cached.
//
// Concurrent misses for a key share one generation. It runs detached from any
// single caller's cancellation, bounded by the load timeout, and each caller
// stops waiting when its own ctx is done.
func (c *TemplateCache) GetOrGenerate(ctx context.Context, key string, gen TemplateGenerateFunc) (string, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", datatypes.ErrUpstreamTimeout, err)
	}

	ch := c.flight.DoChan(key, func() (interface{}, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()
		out, err := gen(lctx)
		if err != nil {
			return "", err
		}
		c.Put(key, out)
		return out, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", datatypes.ErrUpstreamTimeout, ctx.Err())
	}
}

// Len returns the number of cached entries.
func (c *TemplateCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Stats returns the cache counters.
func (c *TemplateCache) Stats() TemplateCacheStats {
	c.mu.Lock()
	n := c.lru.Len()
	c.mu.Unlock()
	return TemplateCacheStats{
		Entries:   n,
		Capacity:  c.capacity,
		Hits:      atomic.LoadInt64(&c.hits),
		Misses:    atomic.LoadInt64(&c.misses),
		Evictions: atomic.LoadInt64(&c.evictions),
	}
}

func (c *TemplateCache) evictOldestLocked() {
	back := c.lru.Back()
	if back == nil {
		return
	}
	e := back.Value.(*templateEntry)
	c.lru.Remove(back)
	delete(c.entries, e.key)
	atomic.AddInt64(&c.evictions, 1)
}
