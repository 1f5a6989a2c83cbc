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

package bolt

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tochemey/kvcoord/internal/storetest"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(&Config{Path: filepath.Join(t.TempDir(), "kvcoord.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestStore(t *testing.T) {
	storetest.Run(t, openStore(t))
}

func TestClosedStore(t *testing.T) {
	storetest.RunClosed(t, openStore(t))
}

func TestOpen(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		db, err := Open(nil)
		require.Error(t, err)
		require.Nil(t, db)
	})
	t.Run("invalid config", func(t *testing.T) {
		db, err := Open(&Config{})
		require.Error(t, err)
		require.Nil(t, db)
	})
	t.Run("defaults", func(t *testing.T) {
		config := &Config{Path: filepath.Join(t.TempDir(), "defaults.db")}
		db, err := Open(config)
		require.NoError(t, err)
		assert.Equal(t, defaultTimeout, config.Timeout)
		assert.Equal(t, config.Path, db.Path())
		require.NoError(t, db.Close())
		require.NoError(t, db.Close())
	})
	t.Run("remove on close", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "removed.db")
		db, err := Open(&Config{Path: path, RemoveOnClose: true})
		require.NoError(t, err)
		require.NoError(t, db.Close())
		_, err = os.Stat(path)
		assert.True(t, os.IsNotExist(err))
	})
}

func TestDurability(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "durable.db")

	db, err := Open(&Config{Path: path})
	require.NoError(t, err)
	txn, err := db.Begin(ctx)
	require.NoError(t, err)
	txn.Set([]byte("k"), []byte("v"))
	txn.SetVersionstampedValue([]byte("stamp"), nil)
	require.NoError(t, txn.Commit(ctx))
	require.NoError(t, db.Close())

	db, err = Open(&Config{Path: path})
	require.NoError(t, err)
	defer db.Close()

	txn, err = db.Begin(ctx)
	require.NoError(t, err)
	defer txn.Cancel()
	value, err := txn.Get(ctx, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), value)

	stamp, err := txn.Get(ctx, []byte("stamp"))
	require.NoError(t, err)
	assert.Len(t, stamp, 8)

	// the commit counter survives a reopen so stamps keep growing
	next, err := db.Begin(ctx)
	require.NoError(t, err)
	next.SetVersionstampedValue([]byte("stamp"), nil)
	require.NoError(t, next.Commit(ctx))
	later, err := db.Begin(ctx)
	require.NoError(t, err)
	defer later.Cancel()
	newer, err := later.Get(ctx, []byte("stamp"))
	require.NoError(t, err)
	assert.Positive(t, bytes.Compare(newer, stamp))
}
