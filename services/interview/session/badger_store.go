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
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	badgerdb "github.com/AleutianAI/AleutianCoach/pkg/storage/badger"
	"github.com/AleutianAI/AleutianCoach/services/interview/datatypes"
)

// keyPrefix namespaces session checkpoints in the database.
const keyPrefix = "session/"

// BadgerStore keeps checkpoints in BadgerDB with a per-entry TTL, so expired
// sessions disappear without a sweep.
//
// Thread Safety: Safe for concurrent use. Each operation is one transaction.
type BadgerStore struct {
	db   *badgerdb.DB
	opts options
}

// NewBadgerStore creates a store over an open database. The caller keeps
// ownership of db.
func NewBadgerStore(db *badgerdb.DB, opts ...Option) (*BadgerStore, error) {
	if db == nil {
		return nil, errors.New("badger store: db must not be nil")
	}
	return &BadgerStore{db: db, opts: applyOptions(opts)}, nil
}

func sessionKey(id string) []byte {
	return []byte(keyPrefix + id)
}

// Get returns a fresh copy of the session.
func (b *BadgerStore) Get(ctx context.Context, id string) (s *datatypes.InterviewSession, err error) {
	ctx, span := tracer.Start(ctx, "session.BadgerStore.Get", trace.WithAttributes(attribute.String("session.id", id)))
	defer span.End()
	start := time.Now()
	defer func() {
		b.opts.observe("get", start, ignoreNotFound(err))
		if err != nil && !errors.Is(err, datatypes.ErrSessionNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	var data []byte
	err = b.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return notFound(id)
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	cp, s, err := DecodeCheckpoint(data)
	if err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	if cp.Expired(b.opts.now()) {
		return nil, notFound(id)
	}
	return s, nil
}

// Put writes a checkpoint with the store TTL.
func (b *BadgerStore) Put(ctx context.Context, s *datatypes.InterviewSession) (err error) {
	if s == nil || s.ID == "" {
		return fmt.Errorf("%w: session id is required", datatypes.ErrInvalidInput)
	}
	ctx, span := tracer.Start(ctx, "session.BadgerStore.Put", trace.WithAttributes(
		attribute.String("session.id", s.ID),
		attribute.Int("session.history", len(s.History)),
	))
	defer span.End()
	start := time.Now()
	defer func() {
		b.opts.observe("put", start, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	return b.db.WithTxn(ctx, func(txn *badger.Txn) error {
		var version int64 = 1
		if item, err := txn.Get(sessionKey(s.ID)); err == nil {
			if prev, err := item.ValueCopy(nil); err == nil {
				if cp, _, err := DecodeCheckpoint(prev); err == nil {
					version = cp.Version + 1
				}
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		data, err := EncodeCheckpoint(s, version, b.opts.now(), b.opts.ttl)
		if err != nil {
			return err
		}
		return txn.SetEntry(badger.NewEntry(sessionKey(s.ID), data).WithTTL(b.opts.ttl))
	})
}

// Delete removes a session. Deleting an unknown id is not an error.
func (b *BadgerStore) Delete(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { b.opts.observe("delete", start, err) }()
	return b.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Delete(sessionKey(id))
	})
}

// Version returns the checkpoint version of a stored session.
func (b *BadgerStore) Version(ctx context.Context, id string) (int64, error) {
	var version int64
	err := b.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return notFound(id)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			cp, _, err := DecodeCheckpoint(val)
			if err != nil {
				return err
			}
			version = cp.Version
			return nil
		})
	})
	return version, err
}
