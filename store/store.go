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

// Package store defines the contract of the ordered, transactional key-value
// store the coordination primitives are built on, together with the helpers
// shared by every backing store implementation.
//
// A backing store offers serializable optimistic transactions: reads are
// tracked, writes are buffered, and a commit fails with errors.ErrConflict
// when any key read by the transaction was modified by another transaction
// that committed first.
package store

import (
	"context"
)

// MetadataVersionKey holds the token rewritten, with a versionstamped value,
// by every commit that changes the directory layout.
var MetadataVersionKey = []byte("\xff/metadataVersion")

// Database opens transactions against a backing store.
type Database interface {
	// Begin starts a new transaction.
	Begin(ctx context.Context) (Transaction, error)
	// Close releases the resources held by the database handle.
	Close() error
}

// Transaction is a single optimistic transaction.
//
// Writes are buffered until Commit and are visible to later reads of the same
// transaction. A transaction must not be used after Commit or Cancel.
type Transaction interface {
	// Get returns the value stored at key, or nil with a nil error when the
	// key is absent. The read is added to the conflict set of the transaction.
	Get(ctx context.Context, key []byte) ([]byte, error)
	// Set writes value at key.
	Set(key, value []byte)
	// Clear removes key.
	Clear(key []byte)
	// SetVersionstampedValue writes, at key, a value made of a commit-unique
	// stamp followed by suffix. The stamp is assigned at commit time and is
	// unique across every commit of the backing store.
	SetVersionstampedValue(key, suffix []byte)
	// Commit applies the buffered writes atomically. It returns an error
	// wrapping errors.ErrConflict when a key read by the transaction changed
	// since it was read.
	Commit(ctx context.Context) error
	// Cancel discards the transaction. It is safe to call more than once and
	// after Commit.
	Cancel()
}

// Directory is an opaque handle on a resolved directory of the namespace.
type Directory interface {
	// RawPrefix returns the short byte prefix allocated to the directory.
	RawPrefix() []byte
	// Path returns the path the directory was resolved from.
	Path() []string
}

// DirectoryLayer maps hierarchical paths to short, unique key prefixes.
type DirectoryLayer interface {
	// CreateOrOpen returns the directory at path, allocating its prefix when
	// it does not exist yet. It runs and commits its own transaction.
	CreateOrOpen(ctx context.Context, path []string) (Directory, error)
	// Open returns the directory at path or errors.ErrDirectoryNotFound.
	Open(ctx context.Context, path []string) (Directory, error)
	// Remove deletes the directory node at path as part of txn and bumps the
	// metadata version in the same txn. Keys stored under the removed prefix
	// become unreachable.
	Remove(ctx context.Context, txn Transaction, path []string) error
}
