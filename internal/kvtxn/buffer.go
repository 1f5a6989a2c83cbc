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

// Package kvtxn holds the client-side state of an optimistic transaction:
// the versions observed by its reads and the writes buffered until commit.
// Backing store adapters embed a Buffer and only implement the round trips to
// their server.
package kvtxn

import (
	"bytes"
	"sort"
	"sync"

	gerrors "github.com/tochemey/kvcoord/errors"
)

// OpKind is the kind of a buffered write.
type OpKind int

const (
	// OpSet writes a value.
	OpSet OpKind = iota
	// OpClear removes a key.
	OpClear
	// OpSetVersionstamped writes a commit stamp followed by a suffix.
	OpSetVersionstamped
)

// Op is a buffered write.
type Op struct {
	Kind  OpKind
	Key   []byte
	Value []byte
}

// Read is a key read by the transaction together with the version observed.
// Version 0 means the key was absent.
type Read struct {
	Key     []byte
	Version uint64
}

// Buffer tracks the reads and writes of one transaction. It is safe for
// concurrent use.
type Buffer struct {
	mu     sync.Mutex
	done   bool
	reads  map[string]uint64
	writes map[string]Op
}

// NewBuffer creates an empty Buffer.
func NewBuffer() *Buffer {
	return &Buffer{
		reads:  make(map[string]uint64),
		writes: make(map[string]Op),
	}
}

// Pending returns the value buffered for key. found is false when the
// transaction has not written key; a cleared key is found with a nil value.
func (b *Buffer) Pending(key []byte) (value []byte, found bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done {
		return nil, false, gerrors.ErrTransactionDone
	}

	op, ok := b.writes[string(key)]
	if !ok {
		return nil, false, nil
	}

	switch op.Kind {
	case OpSetVersionstamped:
		return nil, true, gerrors.ErrVersionstampUnreadable
	case OpClear:
		return nil, true, nil
	default:
		return bytes.Clone(op.Value), true, nil
	}
}

// RecordRead adds key to the conflict set. Only the first observation of a
// key is kept.
func (b *Buffer) RecordRead(key []byte, version uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.reads[string(key)]; !ok {
		b.reads[string(key)] = version
	}
}

// Set buffers a write.
func (b *Buffer) Set(key, value []byte) {
	b.put(Op{Kind: OpSet, Key: bytes.Clone(key), Value: bytes.Clone(value)})
}

// Clear buffers a delete.
func (b *Buffer) Clear(key []byte) {
	b.put(Op{Kind: OpClear, Key: bytes.Clone(key)})
}

// SetVersionstampedValue buffers a versionstamped write.
func (b *Buffer) SetVersionstampedValue(key, suffix []byte) {
	b.put(Op{Kind: OpSetVersionstamped, Key: bytes.Clone(key), Value: bytes.Clone(suffix)})
}

// Reads returns the conflict set ordered by key.
func (b *Buffer) Reads() []Read {
	b.mu.Lock()
	defer b.mu.Unlock()

	reads := make([]Read, 0, len(b.reads))
	for key, version := range b.reads {
		reads = append(reads, Read{Key: []byte(key), Version: version})
	}

	sort.Slice(reads, func(i, j int) bool {
		return bytes.Compare(reads[i].Key, reads[j].Key) < 0
	})
	return reads
}

// Writes returns the buffered writes ordered by key. Versionstamped writes
// are resolved with stamp; their value becomes stamp followed by the suffix.
func (b *Buffer) Writes(stamp []byte) []Op {
	b.mu.Lock()
	defer b.mu.Unlock()

	ops := make([]Op, 0, len(b.writes))
	for _, op := range b.writes {
		if op.Kind == OpSetVersionstamped {
			value := make([]byte, 0, len(stamp)+len(op.Value))
			value = append(append(value, stamp...), op.Value...)
			op = Op{Kind: OpSet, Key: op.Key, Value: value}
		}
		ops = append(ops, op)
	}

	sort.Slice(ops, func(i, j int) bool {
		return bytes.Compare(ops[i].Key, ops[j].Key) < 0
	})
	return ops
}

// HasVersionstamp reports whether a versionstamped write is buffered.
func (b *Buffer) HasVersionstamp() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, op := range b.writes {
		if op.Kind == OpSetVersionstamped {
			return true
		}
	}
	return false
}

// ReadOnly reports whether the transaction buffered no write.
func (b *Buffer) ReadOnly() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.writes) == 0
}

// Finish marks the transaction as done. It returns ErrTransactionDone when
// the transaction was already finished.
func (b *Buffer) Finish() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return gerrors.ErrTransactionDone
	}
	b.done = true
	return nil
}

// Done reports whether the transaction was committed or canceled.
func (b *Buffer) Done() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done
}

func (b *Buffer) put(op Op) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return
	}
	b.writes[string(op.Key)] = op
}
