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

// Package bolt provides a durable, single-host backing store on top of bbolt.
//
// bbolt serializes write transactions, so optimistic commits are validated
// inside the write transaction that applies them: every key read by the
// client transaction must still carry the version observed when it was read.
package bolt

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync/atomic"

	bbolt "go.etcd.io/bbolt"

	gerrors "github.com/tochemey/kvcoord/errors"
	"github.com/tochemey/kvcoord/internal/kvtxn"
	"github.com/tochemey/kvcoord/store"
)

const fileMode os.FileMode = 0o600

var (
	dataBucket     = []byte("data")
	versionsBucket = []byte("versions")
	metaBucket     = []byte("meta")
	commitKey      = []byte("commit")
)

// Store is a bbolt-backed Database.
//
// Concurrency:
//   - bbolt provides single-writer/multi-reader semantics. Reads of client
//     transactions run in short read transactions; commits run in a write
//     transaction that validates the read set before applying writes.
//   - Cleared keys keep their version so a read of an absent key still
//     conflicts with a later create.
type Store struct {
	db       *bbolt.DB
	path     string
	removeOn bool
	closed   atomic.Bool
}

var _ store.Database = (*Store)(nil)

// Open opens (or creates) the bbolt database described by config.
func Open(config *Config) (*Store, error) {
	if config == nil {
		return nil, errors.New("store/bolt: config is nil")
	}

	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(config.Path, fileMode, &bbolt.Options{Timeout: config.Timeout, NoGrowSync: config.NoGrowSync})
	if err != nil {
		return nil, fmt.Errorf("store/bolt: opening database: %w", err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{dataBucket, versionsBucket, metaBucket} {
			if _, e := tx.CreateBucketIfNotExists(name); e != nil {
				return e
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store/bolt: initializing buckets: %w", err)
	}

	return &Store{db: db, path: config.Path, removeOn: config.RemoveOnClose}, nil
}

// Begin starts a new transaction.
func (s *Store) Begin(ctx context.Context) (store.Transaction, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &transaction{store: s, buffer: kvtxn.NewBuffer()}, nil
}

// Close releases the underlying bbolt handle. The database file is deleted
// when the store was opened with RemoveOnClose. Close is idempotent.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	closeErr := s.db.Close()
	if !s.removeOn {
		return closeErr
	}

	removeErr := os.Remove(s.path)
	if removeErr != nil && errors.Is(removeErr, fs.ErrNotExist) {
		removeErr = nil
	}
	return errors.Join(closeErr, removeErr)
}

// Path returns the location of the database file.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) ensureOpen() error {
	if s.closed.Load() {
		return gerrors.ErrStoreClosed
	}
	return nil
}

func (s *Store) read(key []byte) (value []byte, version uint64, err error) {
	err = s.db.View(func(tx *bbolt.Tx) error {
		version = decodeVersion(tx.Bucket(versionsBucket).Get(key))
		if raw := tx.Bucket(dataBucket).Get(key); raw != nil {
			value = bytes.Clone(raw)
		}
		return nil
	})
	return value, version, err
}

func (s *Store) commit(buffer *kvtxn.Buffer) error {
	if buffer.ReadOnly() {
		return nil
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		data := tx.Bucket(dataBucket)
		versions := tx.Bucket(versionsBucket)
		meta := tx.Bucket(metaBucket)

		for _, read := range buffer.Reads() {
			if current := decodeVersion(versions.Get(read.Key)); current != read.Version {
				return fmt.Errorf("store/bolt: key %q changed: %w", read.Key, gerrors.ErrConflict)
			}
		}

		commit := decodeVersion(meta.Get(commitKey)) + 1
		encoded := encodeVersion(commit)
		if err := meta.Put(commitKey, encoded); err != nil {
			return err
		}

		for _, op := range buffer.Writes(kvtxn.CommitStamp(commit)) {
			if err := versions.Put(op.Key, encoded); err != nil {
				return err
			}

			var err error
			if op.Kind == kvtxn.OpClear {
				err = data.Delete(op.Key)
			} else {
				err = data.Put(op.Key, op.Value)
			}

			if err != nil {
				return err
			}
		}
		return nil
	})
}

func encodeVersion(version uint64) []byte {
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, version)
	return raw
}

func decodeVersion(raw []byte) uint64 {
	if len(raw) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(raw)
}

type transaction struct {
	store  *Store
	buffer *kvtxn.Buffer
}

var _ store.Transaction = (*transaction)(nil)

func (t *transaction) Get(ctx context.Context, key []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	value, found, err := t.buffer.Pending(key)
	if err != nil || found {
		return value, err
	}

	if err := t.store.ensureOpen(); err != nil {
		return nil, err
	}

	value, version, err := t.store.read(key)
	if err != nil {
		return nil, fmt.Errorf("store/bolt: reading key: %w", err)
	}

	t.buffer.RecordRead(key, version)
	return value, nil
}

func (t *transaction) Set(key, value []byte) {
	t.buffer.Set(key, value)
}

func (t *transaction) Clear(key []byte) {
	t.buffer.Clear(key)
}

func (t *transaction) SetVersionstampedValue(key, suffix []byte) {
	t.buffer.SetVersionstampedValue(key, suffix)
}

func (t *transaction) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := t.buffer.Finish(); err != nil {
		return err
	}

	if err := t.store.ensureOpen(); err != nil {
		return err
	}
	return t.store.commit(t.buffer)
}

func (t *transaction) Cancel() {
	_ = t.buffer.Finish()
}
