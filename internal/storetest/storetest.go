// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package storetest holds the behavior every backing store adapter must
// exhibit. Adapter packages run it from their own tests.
package storetest

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gerrors "github.com/tochemey/kvcoord/errors"
	"github.com/tochemey/kvcoord/store"
)

// Run exercises db against the transaction contract. Keys are drawn from a
// random prefix so that several runs can share a server.
func Run(t *testing.T, db store.Database) {
	t.Helper()
	prefix := []byte(uuid.NewString() + "/")
	key := func(name string) []byte {
		return append(bytes.Clone(prefix), name...)
	}

	t.Run("With absent key", func(t *testing.T) {
		ctx := context.Background()
		txn, err := db.Begin(ctx)
		require.NoError(t, err)
		defer txn.Cancel()

		value, err := txn.Get(ctx, key("absent"))
		require.NoError(t, err)
		assert.Nil(t, value)
	})
	t.Run("With committed write", func(t *testing.T) {
		write(t, db, key("committed"), []byte("value"))
		assert.Equal(t, []byte("value"), read(t, db, key("committed")))
	})
	t.Run("With read your writes", func(t *testing.T) {
		ctx := context.Background()
		txn, err := db.Begin(ctx)
		require.NoError(t, err)
		defer txn.Cancel()

		txn.Set(key("ryw"), []byte("pending"))
		value, err := txn.Get(ctx, key("ryw"))
		require.NoError(t, err)
		assert.Equal(t, []byte("pending"), value)

		txn.Clear(key("ryw"))
		value, err = txn.Get(ctx, key("ryw"))
		require.NoError(t, err)
		assert.Nil(t, value)
	})
	t.Run("With clear", func(t *testing.T) {
		ctx := context.Background()
		write(t, db, key("cleared"), []byte("value"))

		txn, err := db.Begin(ctx)
		require.NoError(t, err)
		txn.Clear(key("cleared"))
		require.NoError(t, txn.Commit(ctx))

		assert.Nil(t, read(t, db, key("cleared")))
	})
	t.Run("With conflicting writers", func(t *testing.T) {
		ctx := context.Background()
		write(t, db, key("contended"), []byte("0"))

		first, err := db.Begin(ctx)
		require.NoError(t, err)
		defer first.Cancel()
		_, err = first.Get(ctx, key("contended"))
		require.NoError(t, err)

		second, err := db.Begin(ctx)
		require.NoError(t, err)
		_, err = second.Get(ctx, key("contended"))
		require.NoError(t, err)
		second.Set(key("contended"), []byte("second"))
		require.NoError(t, second.Commit(ctx))

		first.Set(key("contended"), []byte("first"))
		err = first.Commit(ctx)
		require.Error(t, err)
		assert.True(t, gerrors.IsConflict(err))

		assert.Equal(t, []byte("second"), read(t, db, key("contended")))
	})
	t.Run("With conflict on absent key", func(t *testing.T) {
		ctx := context.Background()
		first, err := db.Begin(ctx)
		require.NoError(t, err)
		defer first.Cancel()
		value, err := first.Get(ctx, key("created"))
		require.NoError(t, err)
		require.Nil(t, value)

		write(t, db, key("created"), []byte("other"))

		first.Set(key("created"), []byte("mine"))
		err = first.Commit(ctx)
		assert.True(t, gerrors.IsConflict(err))
	})
	t.Run("With blind writes", func(t *testing.T) {
		ctx := context.Background()
		first, err := db.Begin(ctx)
		require.NoError(t, err)
		second, err := db.Begin(ctx)
		require.NoError(t, err)

		first.Set(key("blind"), []byte("first"))
		second.Set(key("blind"), []byte("second"))
		require.NoError(t, first.Commit(ctx))
		require.NoError(t, second.Commit(ctx))
		assert.Equal(t, []byte("second"), read(t, db, key("blind")))
	})
	t.Run("With versionstamped values", func(t *testing.T) {
		ctx := context.Background()
		txn, err := db.Begin(ctx)
		require.NoError(t, err)
		txn.SetVersionstampedValue(key("stamped"), []byte("-suffix"))
		_, err = txn.Get(ctx, key("stamped"))
		require.ErrorIs(t, err, gerrors.ErrVersionstampUnreadable)
		require.NoError(t, txn.Commit(ctx))
		first := read(t, db, key("stamped"))

		txn, err = db.Begin(ctx)
		require.NoError(t, err)
		txn.SetVersionstampedValue(key("stamped"), []byte("-suffix"))
		require.NoError(t, txn.Commit(ctx))
		second := read(t, db, key("stamped"))

		assert.True(t, bytes.HasSuffix(first, []byte("-suffix")))
		assert.True(t, bytes.HasSuffix(second, []byte("-suffix")))
		assert.Greater(t, len(first), len("-suffix"))
		assert.NotEqual(t, first, second)
	})
	t.Run("With cancel", func(t *testing.T) {
		ctx := context.Background()
		txn, err := db.Begin(ctx)
		require.NoError(t, err)
		txn.Set(key("canceled"), []byte("value"))
		txn.Cancel()
		txn.Cancel()

		require.ErrorIs(t, txn.Commit(ctx), gerrors.ErrTransactionDone)
		assert.Nil(t, read(t, db, key("canceled")))
	})
	t.Run("With double commit", func(t *testing.T) {
		ctx := context.Background()
		txn, err := db.Begin(ctx)
		require.NoError(t, err)
		txn.Set(key("double"), []byte("value"))
		require.NoError(t, txn.Commit(ctx))
		require.ErrorIs(t, txn.Commit(ctx), gerrors.ErrTransactionDone)
		txn.Cancel()
	})
	t.Run("With binary keys and values", func(t *testing.T) {
		binaryKey := append(key("bin"), 0x00, 0xff, 0xfe, 0x01)
		value := []byte{0x00, 0x00, 0xff}
		write(t, db, binaryKey, value)
		assert.Equal(t, value, read(t, db, binaryKey))
	})
	t.Run("With canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := db.Begin(ctx)
		require.ErrorIs(t, err, context.Canceled)
	})
}

// RunClosed checks that a closed database refuses new transactions.
func RunClosed(t *testing.T, db store.Database) {
	t.Helper()
	require.NoError(t, db.Close())
	_, err := db.Begin(context.Background())
	require.ErrorIs(t, err, gerrors.ErrStoreClosed)
}

func write(t *testing.T, db store.Database, key, value []byte) {
	t.Helper()
	ctx := context.Background()
	txn, err := db.Begin(ctx)
	require.NoError(t, err)
	txn.Set(key, value)
	require.NoError(t, txn.Commit(ctx))
}

func read(t *testing.T, db store.Database, key []byte) []byte {
	t.Helper()
	ctx := context.Background()
	txn, err := db.Begin(ctx)
	require.NoError(t, err)
	defer txn.Cancel()
	value, err := txn.Get(ctx, key)
	require.NoError(t, err)
	return value
}
