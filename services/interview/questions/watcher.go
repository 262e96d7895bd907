// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package questions

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reloads a Bank when its file changes.
//
// # Description
//
// The parent directory is watched rather than the file itself so that
// editors replacing the file by rename are still seen. Events for other
// files are ignored. Bursts of events are debounced into one reload. A reload
// that fails keeps the previous questions.
//
// # Thread Safety
//
// Safe for concurrent use. OnReload is called from the watcher goroutine.
type Watcher struct {
	bank     *Bank
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	// OnReload, when set, receives the result of every reload attempt.
	OnReload func(err error)

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWatcher creates a watcher for the bank file at path.
func NewWatcher(bank *Bank, path string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if bank == nil || path == "" {
		return nil, fmt.Errorf("questions watcher: bank and path are required")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve bank path: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &Watcher{
		bank:     bank,
		path:     abs,
		debounce: debounce,
		watcher:  fw,
		logger:   logger,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. It returns once the watch is registered.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

// Stop ends watching and waits for the watcher goroutine to exit.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
	w.wg.Wait()
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C
		case <-timerC:
			timer, timerC = nil, nil
			err := w.bank.Reload(ctx, w.path)
			if err != nil {
				w.logger.Warn("question bank reload failed, keeping previous questions",
					slog.String("path", w.path),
					slog.String("error", err.Error()),
				)
			}
			if w.OnReload != nil {
				w.OnReload(err)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("question bank watcher error", slog.String("error", err.Error()))
		}
	}
}
