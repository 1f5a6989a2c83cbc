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

// Package directory caches the resolution of namespace paths to directory
// handles.
//
// The cache has no per-entry invalidation. Every lookup reads the metadata
// version token inside the caller's transaction, and a token different from
// the last one observed clears the whole cache. Any commit that changes the
// directory layout must therefore bump the token, see Resolver.Invalidate.
package directory

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"sync"

	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"

	gerrors "github.com/tochemey/kvcoord/errors"
	"github.com/tochemey/kvcoord/internal/codec"
	imetric "github.com/tochemey/kvcoord/internal/metric"
	"github.com/tochemey/kvcoord/log"
	"github.com/tochemey/kvcoord/store"
)

// DefaultCapacity is the number of directories a Resolver caches by default.
const DefaultCapacity = 2048

// Resolver resolves directory paths with a FIFO cache invalidated by the
// metadata version token. Each Resolver owns its cache; create one per
// backing store handle.
type Resolver struct {
	db            store.Database
	layer         store.DirectoryLayer
	root          []string
	capacity      int
	logger        log.Logger
	meterProvider metric.MeterProvider
	metric        *imetric.CacheMetric

	mu      sync.Mutex
	version []byte
	entries map[string]store.Directory
	order   *insertionOrder
	closed  bool

	group singleflight.Group

	// scopes directory creations on misses, canceled by Close
	ctx    context.Context
	cancel context.CancelFunc
}

// NewResolver creates a Resolver on top of db.
func NewResolver(db store.Database, opts ...Option) (*Resolver, error) {
	resolver := &Resolver{
		db:       db,
		capacity: DefaultCapacity,
		logger:   log.DefaultLogger,
		entries:  make(map[string]store.Directory),
	}

	for _, opt := range opts {
		opt.Apply(resolver)
	}

	if resolver.layer == nil {
		resolver.layer = store.NewDirectoryLayer(db)
	}

	var providerOpts []imetric.Option
	if resolver.meterProvider != nil {
		providerOpts = append(providerOpts, imetric.WithMeterProvider(resolver.meterProvider))
	}

	cacheMetric, err := imetric.NewCacheMetric(imetric.New(providerOpts...).Meter())
	if err != nil {
		return nil, err
	}

	resolver.metric = cacheMetric
	resolver.order = newInsertionOrder(resolver.capacity)
	resolver.ctx, resolver.cancel = context.WithCancel(context.Background())
	return resolver, nil
}

// Get returns the directory at path, below the configured root.
//
// The metadata version token is read within txn. On a cache miss the directory
// is created or opened in a separate transaction that commits on its own, so
// that its failures do not abort txn; the handle is cached only when the
// token did not change in the meantime.
func (r *Resolver) Get(ctx context.Context, txn store.Transaction, path ...string) (store.Directory, error) {
	return r.resolve(ctx, txn, r.fullPath(path))
}

// Root returns the root directory itself.
func (r *Resolver) Root(ctx context.Context, txn store.Transaction) (store.Directory, error) {
	if len(r.root) == 0 {
		return nil, fmt.Errorf("%w: resolver has no root", gerrors.ErrInvalidPath)
	}
	return r.resolve(ctx, txn, slices.Clone(r.root))
}

// Invalidate bumps the metadata version within txn. Once txn commits, every
// resolver sharing the backing store drops its whole cache on its next lookup.
func (r *Resolver) Invalidate(txn store.Transaction) {
	store.BumpMetadataVersion(txn)
}

// Len returns the number of cached directories.
func (r *Resolver) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close drops the cache and cancels the directory creations in flight. Later
// lookups fail with errors.ErrResolverClosed.
func (r *Resolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	r.cancel()
	r.closed = true
	r.entries = make(map[string]store.Directory)
	r.order.Dispose()
	r.version = nil
	return nil
}

func (r *Resolver) resolve(ctx context.Context, txn store.Transaction, path []string) (store.Directory, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("%w: directory path is empty", gerrors.ErrInvalidPath)
	}

	token, err := store.MetadataVersion(ctx, txn)
	if err != nil {
		if gerrors.IsInternal(err) {
			r.logger.Error("metadata version key is missing, the store was not bootstrapped")
		}
		return nil, err
	}

	key := cacheKey(path)
	dir, ok, err := r.lookup(ctx, token, key)
	if err != nil || ok {
		return dir, err
	}

	r.metric.Misses().Add(ctx, 1)
	result := r.group.DoChan(key, func() (any, error) {
		return r.layer.CreateOrOpen(r.ctx, path)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-result:
		if res.Err != nil {
			return nil, res.Err
		}

		dir := res.Val.(store.Directory)
		r.insert(ctx, token, key, dir)
		return dir, nil
	}
}

// lookup records token and returns the cached handle of key, if any.
func (r *Resolver) lookup(ctx context.Context, token []byte, key string) (store.Directory, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, false, gerrors.ErrResolverClosed
	}

	if !bytes.Equal(r.version, token) {
		if r.version != nil {
			r.logger.Debugf("metadata version changed, dropping %d cached directories", len(r.entries))
			r.metric.Invalidations().Add(ctx, 1)
		}

		r.version = bytes.Clone(token)
		r.entries = make(map[string]store.Directory)
		r.order.Reset()
	}

	dir, ok := r.entries[key]
	if ok {
		r.metric.Hits().Add(ctx, 1)
	}
	return dir, ok, nil
}

// insert caches dir under key unless the cache moved to another token or was
// closed while the directory was being resolved.
func (r *Resolver) insert(ctx context.Context, token []byte, key string, dir store.Directory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || !bytes.Equal(r.version, token) {
		return
	}

	if _, ok := r.entries[key]; ok {
		return
	}

	if r.order.Full() {
		if oldest, ok := r.order.Pop(); ok {
			delete(r.entries, oldest)
			r.metric.Evictions().Add(ctx, 1)
		}
	}

	if err := r.order.Push(key); err != nil {
		r.logger.Warnf("failed to record directory insertion order: %v", err)
		return
	}
	r.entries[key] = dir
}

func (r *Resolver) fullPath(path []string) []string {
	full := make([]string, 0, len(r.root)+len(path))
	full = append(full, r.root...)
	return append(full, path...)
}

func cacheKey(path []string) string {
	elements := make(codec.Tuple, 0, len(path))
	for _, element := range path {
		elements = append(elements, element)
	}
	return string(elements.Pack())
}
