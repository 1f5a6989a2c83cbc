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

// Package consul provides a distributed backing store on top of the Consul
// KV store.
//
// Consul keys must be printable paths, so every key is hex-encoded below the
// configured prefix; hex encoding keeps the byte ordering of the original
// keys. A commit is a single Consul transaction: the read set becomes
// check-index (or check-not-exists) operations followed by the writes, and
// Consul rolls the whole transaction back when any check fails.
package consul

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/hashicorp/consul/api"

	gerrors "github.com/tochemey/kvcoord/errors"
	"github.com/tochemey/kvcoord/internal/kvtxn"
	"github.com/tochemey/kvcoord/store"
)

// maxTxnOps is the Consul limit on the number of operations in a transaction.
const maxTxnOps = 128

// Store is a Consul-backed Database.
type Store struct {
	config *Config
	client *api.Client
	closed atomic.Bool
}

var _ store.Database = (*Store)(nil)

// NewStore creates a Store and checks the agent is reachable.
func NewStore(config *Config) (*Store, error) {
	if config == nil {
		return nil, errors.New("store/consul: config is nil")
	}

	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("consul store config is invalid: %w", err)
	}

	consulConfig := api.DefaultConfig()
	consulConfig.Address = config.Address
	consulConfig.Datacenter = config.Datacenter
	consulConfig.Token = config.Token

	client, err := api.NewClient(consulConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}

	if _, err := client.Status().Leader(); err != nil {
		return nil, fmt.Errorf("failed to connect to consul: %w", err)
	}

	return &Store{config: config, client: client}, nil
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

// Close marks the store as closed. The Consul client holds no connection
// that needs releasing. Close is idempotent.
func (s *Store) Close() error {
	s.closed.Store(true)
	return nil
}

func (s *Store) key(raw []byte) string {
	return s.config.Prefix + "/" + hex.EncodeToString(raw)
}

func (s *Store) queryOptions(ctx context.Context) *api.QueryOptions {
	options := &api.QueryOptions{Datacenter: s.config.Datacenter, RequireConsistent: true}
	return options.WithContext(ctx)
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

	opCtx, cancel := context.WithTimeout(ctx, t.store.config.Timeout)
	defer cancel()

	pair, _, err := t.store.client.KV().Get(t.store.key(key), t.store.queryOptions(opCtx))
	if err != nil {
		return nil, classify(ctx, "read", err)
	}

	if pair == nil {
		t.buffer.RecordRead(key, 0)
		return nil, nil
	}

	t.buffer.RecordRead(key, pair.ModifyIndex)
	if pair.Value == nil {
		return []byte{}, nil
	}
	return pair.Value, nil
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

// Commit sends the read checks and the writes in one Consul transaction.
func (t *transaction) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := t.buffer.Finish(); err != nil {
		return err
	}

	if t.store.closed.Load() {
		return gerrors.ErrStoreClosed
	}

	if t.buffer.ReadOnly() {
		return nil
	}

	var stamp []byte
	if t.buffer.HasVersionstamp() {
		var err error
		if stamp, err = kvtxn.UniqueStamp(); err != nil {
			return err
		}
	}

	ops := make(api.TxnOps, 0)
	for _, read := range t.buffer.Reads() {
		check := &api.KVTxnOp{Verb: api.KVCheckNotExists, Key: t.store.key(read.Key)}
		if read.Version != 0 {
			check = &api.KVTxnOp{Verb: api.KVCheckIndex, Key: t.store.key(read.Key), Index: read.Version}
		}
		ops = append(ops, &api.TxnOp{KV: check})
	}

	for _, op := range t.buffer.Writes(stamp) {
		write := &api.KVTxnOp{Verb: api.KVSet, Key: t.store.key(op.Key), Value: op.Value}
		if op.Kind == kvtxn.OpClear {
			write = &api.KVTxnOp{Verb: api.KVDelete, Key: t.store.key(op.Key)}
		}
		ops = append(ops, &api.TxnOp{KV: write})
	}

	if len(ops) > maxTxnOps {
		return fmt.Errorf("store/consul: transaction has %d operations, at most %d are allowed", len(ops), maxTxnOps)
	}

	opCtx, cancel := context.WithTimeout(ctx, t.store.config.Timeout)
	defer cancel()

	ok, resp, _, err := t.store.client.Txn().Txn(ops, t.store.queryOptions(opCtx))
	if err != nil {
		return classify(ctx, "commit", err)
	}

	if !ok {
		if resp != nil && len(resp.Errors) > 0 {
			return fmt.Errorf("store/consul: commit: %s: %w", resp.Errors[0].What, gerrors.ErrConflict)
		}
		return fmt.Errorf("store/consul: commit: %w", gerrors.ErrConflict)
	}
	return nil
}

func (t *transaction) Cancel() {
	_ = t.buffer.Finish()
}

// classify marks network failures as transient. Errors caused by the
// caller's own context are returned as is.
func classify(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return gerrors.NewTransientError(fmt.Errorf("store/consul: %s: %w", op, err))
	}
	return fmt.Errorf("store/consul: %s: %w", op, err)
}
