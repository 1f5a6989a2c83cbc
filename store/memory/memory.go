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

// Package memory provides an in-process backing store. It offers the same
// optimistic transaction semantics as the distributed adapters and is meant for
// tests and single-process deployments.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/btree"

	gerrors "github.com/tochemey/kvcoord/errors"
	"github.com/tochemey/kvcoord/internal/kvtxn"
	"github.com/tochemey/kvcoord/store"
)

const btreeDegree = 32

// item is an entry of the key space. Cleared keys stay in the tree as
// tombstones so that a read of an absent key conflicts with a later create.
type item struct {
	key       string
	value     []byte
	version   uint64
	tombstone bool
}

func lessItem(a, b item) bool {
	return a.key < b.key
}

// Store is an in-memory Database.
type Store struct {
	mu      sync.RWMutex
	tree    *btree.BTreeG[item]
	version uint64
	closed  atomic.Bool
}

var _ store.Database = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{tree: btree.NewG(btreeDegree, lessItem)}
}

// Begin starts a new transaction.
func (s *Store) Begin(ctx context.Context) (store.Transaction, error) {
	if s.closed.Load() {
		return nil, gerrors.ErrStoreClosed
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &transaction{store: s, buffer: kvtxn.NewBuffer()}, nil
}

// Close marks the store as closed. Close is idempotent.
func (s *Store) Close() error {
	s.closed.Store(true)
	return nil
}

// Len returns the number of live keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	s.tree.Ascend(func(it item) bool {
		if !it.tombstone {
			count++
		}
		return true
	})
	return count
}

// Version returns the version of the last commit.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *Store) read(key []byte) ([]byte, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, ok := s.tree.Get(item{key: string(key)})
	if !ok {
		return nil, 0
	}

	if it.tombstone {
		return nil, it.version
	}
	return bytes.Clone(it.value), it.version
}

func (s *Store) commit(buffer *kvtxn.Buffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return gerrors.ErrStoreClosed
	}

	if buffer.ReadOnly() {
		return nil
	}

	for _, read := range buffer.Reads() {
		var current uint64
		if it, ok := s.tree.Get(item{key: string(read.Key)}); ok {
			current = it.version
		}

		if current != read.Version {
			return fmt.Errorf("memory: key %q changed: %w", read.Key, gerrors.ErrConflict)
		}
	}

	s.version++
	for _, op := range buffer.Writes(kvtxn.CommitStamp(s.version)) {
		it := item{key: string(op.Key), version: s.version}
		if op.Kind == kvtxn.OpClear {
			it.tombstone = true
		} else {
			it.value = op.Value
		}
		s.tree.ReplaceOrInsert(it)
	}
	return nil
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

	if t.store.closed.Load() {
		return nil, gerrors.ErrStoreClosed
	}

	value, version := t.store.read(key)
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
	return t.store.commit(t.buffer)
}

func (t *transaction) Cancel() {
	_ = t.buffer.Finish()
}
