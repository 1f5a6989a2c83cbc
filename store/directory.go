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

package store

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"

	gerrors "github.com/tochemey/kvcoord/errors"
	"github.com/tochemey/kvcoord/internal/codec"
)

// nodeSubspace prefixes every key owned by the directory layer itself.
const nodeSubspace byte = 0xfe

// the leading nil keeps the counter apart from node keys, which only hold strings
var prefixCounterKey = append([]byte{nodeSubspace}, codec.Tuple{nil, "prefix-counter"}.Pack()...)

type directory struct {
	path   []string
	prefix []byte
}

var _ Directory = (*directory)(nil)

// RawPrefix returns a copy of the prefix allocated to the directory.
func (d *directory) RawPrefix() []byte {
	return bytes.Clone(d.prefix)
}

// Path returns a copy of the directory path.
func (d *directory) Path() []string {
	return slices.Clone(d.path)
}

// String returns the directory path joined with slashes.
func (d *directory) String() string {
	return "/" + strings.Join(d.path, "/")
}

// NewDirectory returns a Directory handle for an already known prefix.
func NewDirectory(path []string, prefix []byte) Directory {
	return &directory{path: slices.Clone(path), prefix: bytes.Clone(prefix)}
}

type directoryLayer struct {
	db   Database
	opts []TransactOption
}

var _ DirectoryLayer = (*directoryLayer)(nil)

// NewDirectoryLayer returns a DirectoryLayer implemented on top of any
// Database. A node key, 0xfe followed by the packed path, maps every directory
// to a prefix drawn from a shared counter. Prefixes are packed integers and
// therefore never collide with the 0xfe and 0xff system subspaces.
func NewDirectoryLayer(db Database, opts ...TransactOption) DirectoryLayer {
	return &directoryLayer{db: db, opts: opts}
}

// CreateOrOpen returns the directory at path, allocating a prefix on first use.
func (l *directoryLayer) CreateOrOpen(ctx context.Context, path []string) (Directory, error) {
	if err := validateDirectoryPath(path); err != nil {
		return nil, err
	}

	var dir Directory
	err := Transact(ctx, l.db, func(txn Transaction) error {
		key := nodeKey(path)
		prefix, err := txn.Get(ctx, key)
		if err != nil {
			return err
		}

		if prefix != nil {
			dir = NewDirectory(path, prefix)
			return nil
		}

		prefix, err = allocatePrefix(ctx, txn)
		if err != nil {
			return err
		}

		txn.Set(key, prefix)
		dir = NewDirectory(path, prefix)
		return nil
	}, l.opts...)
	if err != nil {
		return nil, fmt.Errorf("store: create or open directory %v: %w", path, err)
	}
	return dir, nil
}

// Open returns the directory at path when it exists.
func (l *directoryLayer) Open(ctx context.Context, path []string) (Directory, error) {
	if err := validateDirectoryPath(path); err != nil {
		return nil, err
	}

	var dir Directory
	err := Transact(ctx, l.db, func(txn Transaction) error {
		prefix, err := txn.Get(ctx, nodeKey(path))
		if err != nil {
			return err
		}

		if prefix == nil {
			return gerrors.ErrDirectoryNotFound
		}

		dir = NewDirectory(path, prefix)
		return nil
	}, l.opts...)
	if err != nil {
		return nil, fmt.Errorf("store: open directory %v: %w", path, err)
	}
	return dir, nil
}

// Remove deletes the node of the directory at path as part of txn and bumps
// the metadata version, so that resolvers drop the removed prefix once txn
// commits.
func (l *directoryLayer) Remove(ctx context.Context, txn Transaction, path []string) error {
	if err := validateDirectoryPath(path); err != nil {
		return err
	}

	key := nodeKey(path)
	prefix, err := txn.Get(ctx, key)
	if err != nil {
		return err
	}

	if prefix == nil {
		return fmt.Errorf("store: remove directory %v: %w", path, gerrors.ErrDirectoryNotFound)
	}

	txn.Clear(key)
	BumpMetadataVersion(txn)
	return nil
}

func allocatePrefix(ctx context.Context, txn Transaction) ([]byte, error) {
	raw, err := txn.Get(ctx, prefixCounterKey)
	if err != nil {
		return nil, err
	}

	var next int64 = 1
	if raw != nil {
		current, err := codec.DecodeInt64(raw)
		if err != nil {
			return nil, gerrors.NewInternalError(fmt.Errorf("corrupted directory prefix counter: %w", err))
		}
		next = current + 1
	}

	txn.Set(prefixCounterKey, codec.EncodeInt64(next))
	return codec.Tuple{next}.Pack(), nil
}

func nodeKey(path []string) []byte {
	elements := make(codec.Tuple, 0, len(path))
	for _, element := range path {
		elements = append(elements, element)
	}
	return append([]byte{nodeSubspace}, elements.Pack()...)
}

// validateDirectoryPath accepts empty elements: the default namespace is the
// empty string.
func validateDirectoryPath(path []string) error {
	if len(path) == 0 {
		return fmt.Errorf("%w: directory path is empty", gerrors.ErrInvalidPath)
	}
	return nil
}
