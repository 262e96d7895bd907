// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_InMemory(t *testing.T) {
	db, err := Open(InMemoryConfig())
	require.NoError(t, err)
	defer db.Close()

	assert.True(t, db.InMemory())
	assert.Empty(t, db.Path())

	ctx := context.Background()
	require.NoError(t, db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set([]byte("k"), []byte("v"))
	}))
	require.NoError(t, db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("k"))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			assert.Equal(t, "v", string(val))
			return nil
		})
	}))
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.GCInterval = time.Hour

	db, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, db.WithTxn(context.Background(), func(txn *badger.Txn) error {
		return txn.Set([]byte("persist"), []byte("yes"))
	}))
	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	db2, err := Open(cfg)
	require.NoError(t, err)
	defer db2.Close()
	assert.Equal(t, dir, db2.Path())
	require.NoError(t, db2.WithReadTxn(context.Background(), func(txn *badger.Txn) error {
		_, err := txn.Get([]byte("persist"))
		return err
	}))
}

func TestWithTxn_RollsBackOnError(t *testing.T) {
	db, err := Open(InMemoryConfig())
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("boom")
	err = db.WithTxn(context.Background(), func(txn *badger.Txn) error {
		if err := txn.Set([]byte("k"), []byte("v")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = db.WithReadTxn(context.Background(), func(txn *badger.Txn) error {
		_, err := txn.Get([]byte("k"))
		return err
	})
	assert.ErrorIs(t, err, badger.ErrKeyNotFound)
}

func TestWithTxn_CancelledContext(t *testing.T) {
	db, err := Open(InMemoryConfig())
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, db.WithTxn(ctx, func(*badger.Txn) error { return nil }), context.Canceled)
	assert.ErrorIs(t, db.WithReadTxn(ctx, func(*badger.Txn) error { return nil }), context.Canceled)
}
