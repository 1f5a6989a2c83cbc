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

// Package sequence allocates sequential entity ids.
//
// The high-water mark of an entity group lives at one key below the
// "sequential-ids" directory of its project and namespace. A scatter byte
// derived from the path prefix precedes the encoded path so that allocation
// traffic of different entity groups spreads over the key space instead of
// hitting adjacent keys.
package sequence

import (
	"context"
	"fmt"

	gerrors "github.com/tochemey/kvcoord/errors"
	"github.com/tochemey/kvcoord/internal/codec"
	"github.com/tochemey/kvcoord/log"
	"github.com/tochemey/kvcoord/store"
)

const (
	// DirectoryName is the directory, below a project, holding the marks.
	DirectoryName = "sequential-ids"

	// MaxSequentialID is the largest id the allocator hands out.
	MaxSequentialID int64 = 1<<52 - 1

	allocationKeyOptions = codec.OmitTerminalID | codec.AllowPartial
)

// Resolver resolves directory paths within a transaction.
type Resolver interface {
	Get(ctx context.Context, txn store.Transaction, path ...string) (store.Directory, error)
}

// Allocator computes allocation keys and reads and advances high-water marks.
// The mark only moves inside the transaction that consumes the reserved range.
type Allocator struct {
	resolver Resolver
	logger   log.Logger
}

// NewAllocator creates an Allocator resolving directories with resolver.
func NewAllocator(resolver Resolver, logger log.Logger) *Allocator {
	if logger == nil {
		logger = log.DefaultLogger
	}
	return &Allocator{resolver: resolver, logger: logger}
}

// AllocationKey returns the key holding the high-water mark of pathPrefix in
// (project, namespace). The key is the directory prefix, followed by the
// scatter byte of pathPrefix, followed by the path encoded without its
// terminal id.
func (a *Allocator) AllocationKey(ctx context.Context, txn store.Transaction, project, namespace string, pathPrefix codec.Path) ([]byte, error) {
	encoded, err := codec.EncodePath(pathPrefix, allocationKeyOptions)
	if err != nil {
		return nil, err
	}

	dir, err := a.resolver.Get(ctx, txn, project, DirectoryName, namespace)
	if err != nil {
		return nil, err
	}

	prefix := dir.RawPrefix()
	key := make([]byte, 0, len(prefix)+1+len(encoded))
	key = append(key, prefix...)
	key = append(key, codec.ScatterByte(pathPrefix, allocationKeyOptions))
	return append(key, encoded...), nil
}

// CurrentMax returns the high-water mark stored at key, or 0 when no id was
// ever allocated.
func (a *Allocator) CurrentMax(ctx context.Context, txn store.Transaction, key []byte) (int64, error) {
	raw, err := txn.Get(ctx, key)
	if err != nil {
		return 0, err
	}

	if raw == nil {
		return 0, nil
	}

	mark, err := codec.DecodeInt64(raw)
	if err != nil {
		a.logger.Errorf("corrupted sequential id mark at %x: %v", key, err)
		return 0, gerrors.NewInternalError(fmt.Errorf("corrupted sequential id mark: %w", err))
	}
	return mark, nil
}

// Reserve advances the mark at key by size within txn and returns the
// reserved ids. The reservation takes effect when txn commits; concurrent
// reservations on the same key conflict.
func (a *Allocator) Reserve(ctx context.Context, txn store.Transaction, key []byte, size int64) (Range, error) {
	if size <= 0 {
		return Range{}, gerrors.ErrInvalidBlockSize
	}

	mark, err := a.CurrentMax(ctx, txn, key)
	if err != nil {
		return Range{}, err
	}

	if size > MaxSequentialID-mark {
		return Range{}, fmt.Errorf("%w: %d ids requested above %d", gerrors.ErrSequenceExhausted, size, mark)
	}

	next := mark + size
	txn.Set(key, codec.EncodeInt64(next))
	return Range{Start: mark + 1, End: next}, nil
}

// ReserveMax moves the mark at key up to maxID within txn and returns the ids
// reserved on the way. When the mark is already at or above maxID nothing is
// written and the returned range is empty.
func (a *Allocator) ReserveMax(ctx context.Context, txn store.Transaction, key []byte, maxID int64) (Range, error) {
	if maxID > MaxSequentialID {
		return Range{}, fmt.Errorf("%w: %d is above %d", gerrors.ErrSequenceExhausted, maxID, MaxSequentialID)
	}

	mark, err := a.CurrentMax(ctx, txn, key)
	if err != nil {
		return Range{}, err
	}

	if mark >= maxID {
		return Range{Start: mark + 1, End: mark}, nil
	}

	txn.Set(key, codec.EncodeInt64(maxID))
	return Range{Start: mark + 1, End: maxID}, nil
}

// Range is an inclusive block of reserved ids. A range whose End is below its
// Start is empty.
type Range struct {
	Start int64
	End   int64
}

// Size returns the number of ids in the range.
func (r Range) Size() int64 {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

// Empty reports whether the range holds no id.
func (r Range) Empty() bool {
	return r.Size() == 0
}

// Contains reports whether id belongs to the range.
func (r Range) Contains(id int64) bool {
	return id >= r.Start && id <= r.End
}
