// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badger opens and manages the embedded BadgerDB used for session
// checkpoints.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Config holds configuration for a BadgerDB instance.
type Config struct {
	// Path is the directory for database files. Ignored when InMemory is true.
	Path string `yaml:"path"`

	// InMemory keeps everything in RAM. Used by tests and the practice CLI.
	InMemory bool `yaml:"in_memory"`

	// SyncWrites fsyncs every commit. Default: true.
	SyncWrites bool `yaml:"sync_writes"`

	// GCInterval is how often value log GC runs. Zero disables it.
	// Default: 5 minutes.
	GCInterval time.Duration `yaml:"gc_interval"`

	// GCDiscardRatio is the garbage ratio that triggers a rewrite. Default: 0.5.
	GCDiscardRatio float64 `yaml:"gc_discard_ratio"`

	// Logger receives BadgerDB's internal logs. Nil silences them.
	Logger *slog.Logger `yaml:"-"`
}

// DefaultConfig returns production defaults for a database at path.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns a configuration for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// DB wraps a BadgerDB instance with its GC runner.
//
// Thread Safety: Safe for concurrent use.
type DB struct {
	*badger.DB
	gc        *gcRunner
	path      string
	inMemory  bool
	closeOnce sync.Once
	closeErr  error
}

// Open opens the database and starts value log GC when configured.
//
// Description:
//
//	Creates the directory for persistent databases. Only one key version is
//	kept since checkpoints overwrite in place.
//
// Outputs:
//
//	*DB - The opened database. Callers must Close it.
//	error - Non-nil if the path is missing or the database cannot open.
func Open(cfg Config) (*DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	out := &DB{DB: db, path: cfg.Path, inMemory: cfg.InMemory}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		ratio := cfg.GCDiscardRatio
		if ratio <= 0 || ratio >= 1 {
			ratio = 0.5
		}
		out.gc = startGC(db, cfg.GCInterval, ratio, cfg.Logger)
	}
	return out, nil
}

// Close stops GC and closes the database. Safe to call more than once.
func (d *DB) Close() error {
	d.closeOnce.Do(func() {
		if d.gc != nil {
			d.gc.stop()
		}
		d.closeErr = d.DB.Close()
	})
	return d.closeErr
}

// Path returns the database directory, empty for in-memory databases.
func (d *DB) Path() string {
	return d.path
}

// InMemory reports whether the database is RAM-only.
func (d *DB) InMemory() bool {
	return d.inMemory
}

// WithTxn runs fn in a read-write transaction and commits when it succeeds.
func (d *DB) WithTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	txn := d.DB.NewTransaction(true)
	defer txn.Discard()

	if err := fn(txn); err != nil {
		return err
	}
	return txn.Commit()
}

// WithReadTxn runs fn in a read-only transaction.
func (d *DB) WithReadTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	txn := d.DB.NewTransaction(false)
	defer txn.Discard()
	return fn(txn)
}

type gcRunner struct {
	db     *badger.DB
	ratio  float64
	logger *slog.Logger
	stopCh chan struct{}
	doneCh chan struct{}
}

func startGC(db *badger.DB, interval time.Duration, ratio float64, logger *slog.Logger) *gcRunner {
	r := &gcRunner{db: db, ratio: ratio, logger: logger, stopCh: make(chan struct{}), doneCh: make(chan struct{})}
	go func() {
		defer close(r.doneCh)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.stopCh:
				return
			case <-ticker.C:
				r.collect()
			}
		}
	}()
	return r
}

func (r *gcRunner) stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *gcRunner) collect() {
	// ErrNoRewrite means there was nothing worth collecting.
	err := r.db.RunValueLogGC(r.ratio)
	if err != nil && !errors.Is(err, badger.ErrNoRewrite) && r.logger != nil {
		r.logger.Warn("badger value log GC error", slog.String("error", err.Error()))
	}
}
