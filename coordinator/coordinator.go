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

// Package coordinator wires the directory resolver, the sequential id
// allocator and named leader leases on top of one backing store handle.
// A service creates one Coordinator at startup and stops it at shutdown.
package coordinator

import (
	"context"
	"fmt"
	"strings"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/tochemey/kvcoord/directory"
	gerrors "github.com/tochemey/kvcoord/errors"
	"github.com/tochemey/kvcoord/internal/codec"
	"github.com/tochemey/kvcoord/internal/errorschain"
	"github.com/tochemey/kvcoord/lease"
	"github.com/tochemey/kvcoord/log"
	"github.com/tochemey/kvcoord/sequence"
	"github.com/tochemey/kvcoord/store"
)

// Coordinator owns a backing store handle and the components built on it.
type Coordinator struct {
	db     store.Database
	config *Config
	logger log.Logger

	mu        sync.Mutex
	started   bool
	resolver  *directory.Resolver
	allocator *sequence.Allocator
	scattered *sequence.ScatteredAllocator
	leases    map[string]*lease.Lease
}

// New creates a Coordinator on top of db. A nil config takes every default.
func New(db store.Database, config *Config) (*Coordinator, error) {
	if db == nil {
		return nil, fmt.Errorf("coordinator: database is required")
	}

	if config == nil {
		config = new(Config)
	}

	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Coordinator{
		db:     db,
		config: config,
		logger: config.Logger,
		leases: make(map[string]*lease.Lease),
	}, nil
}

// Start bootstraps the metadata version key and builds the resolver and the
// allocators.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return nil
	}

	var resolver *directory.Resolver
	err := errorschain.New(ctx, errorschain.ReturnFirst()).
		Run("bootstrap metadata version", func(ctx context.Context) error {
			return store.EnsureMetadataVersion(ctx, c.db)
		}).
		Run("create directory resolver", func(context.Context) error {
			var err error
			resolver, err = directory.NewResolver(c.db,
				directory.WithRoot(c.config.Root...),
				directory.WithCapacity(c.config.CacheCapacity),
				directory.WithLogger(c.logger),
				directory.WithMeterProvider(c.config.MeterProvider))
			return err
		}).
		Run("open root directory", func(ctx context.Context) error {
			return store.Transact(ctx, c.db, func(txn store.Transaction) error {
				_, err := resolver.Root(ctx, txn)
				return err
			})
		}).
		Err()
	if err != nil {
		if resolver != nil {
			_ = resolver.Close()
		}
		c.logger.Errorf("failed to start coordinator: %v", err)
		return fmt.Errorf("coordinator: %w", err)
	}

	c.resolver = resolver
	c.allocator = sequence.NewAllocator(resolver, c.logger)
	c.scattered = sequence.NewScatteredAllocator()
	c.started = true
	c.logger.Infof("coordinator started under /%s", strings.Join(c.config.Root, "/"))
	return nil
}

// Resolver returns the directory resolver, or nil before Start.
func (c *Coordinator) Resolver() *directory.Resolver {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolver
}

// Allocator returns the sequential id allocator, or nil before Start.
func (c *Coordinator) Allocator() *sequence.Allocator {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.allocator
}

// ScatteredAllocator returns the scattered id generator, or nil before Start.
func (c *Coordinator) ScatteredAllocator() *sequence.ScatteredAllocator {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scattered
}

// Lease returns the started lease called name, creating it on first call.
// Its key lives under the root directory.
func (c *Coordinator) Lease(ctx context.Context, name string) (*lease.Lease, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("coordinator: lease name is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return nil, gerrors.ErrCoordinatorNotStarted
	}

	if existing, ok := c.leases[name]; ok {
		return existing, nil
	}

	var key []byte
	err := store.Transact(ctx, c.db, func(txn store.Transaction) error {
		root, err := c.resolver.Root(ctx, txn)
		if err != nil {
			return err
		}
		key = append(root.RawPrefix(), codec.Tuple{name}.Pack()...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("coordinator: resolve lease %q: %w", name, err)
	}

	opts := []lease.Option{
		lease.WithTimeout(c.config.LeaseTimeout),
		lease.WithHeartbeatInterval(c.config.HeartbeatInterval),
		lease.WithMaxBackoff(c.config.LeaseMaxBackoff),
		lease.WithLogger(c.logger.With("lease", name)),
		lease.WithMeterProvider(c.config.MeterProvider),
	}
	if c.config.CandidateID != "" {
		opts = append(opts, lease.WithID(c.config.CandidateID))
	}

	l, err := lease.New(c.db, key, opts...)
	if err != nil {
		return nil, err
	}

	if err := l.Start(ctx); err != nil {
		return nil, err
	}

	c.leases[name] = l
	return l, nil
}

// Leases returns the names of the leases created so far.
func (c *Coordinator) Leases() mapset.Set[string] {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := mapset.NewThreadUnsafeSet[string]()
	for name := range c.leases {
		names.Add(name)
	}
	return names
}

// Stop stops every lease, closes the resolver and closes the database. Every
// step runs even when a previous one failed; the failures are combined.
func (c *Coordinator) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	chain := errorschain.New(ctx, errorschain.ReturnAll())
	for name, l := range c.leases {
		chain.Run(fmt.Sprintf("stop lease %q", name), l.Stop)
	}

	chain.
		RunIf(c.resolver != nil, "close directory resolver", func(context.Context) error {
			return c.resolver.Close()
		}).
		Run("close database", func(context.Context) error {
			return c.db.Close()
		})

	c.leases = make(map[string]*lease.Lease)
	c.resolver = nil
	c.allocator = nil
	c.scattered = nil
	c.started = false

	if err := chain.Err(); err != nil {
		c.logger.Errorf("failed to stop coordinator cleanly: %v", err)
		return err
	}

	c.logger.Info("coordinator stopped")
	return nil
}
