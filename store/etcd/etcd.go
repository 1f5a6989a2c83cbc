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

// Package etcd provides a distributed backing store on top of etcd.
//
// Every key carries its etcd ModRevision. A transaction records the revision
// of each key it reads and commits with a single etcd Txn guarded by
// ModRevision comparisons on the whole read set, so a commit succeeds only if
// none of those keys changed in between.
package etcd

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/namespace"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	gerrors "github.com/tochemey/kvcoord/errors"
	"github.com/tochemey/kvcoord/internal/kvtxn"
	"github.com/tochemey/kvcoord/store"
)

// Store is an etcd-backed Database.
//
// Unless otherwise stated by the called method, any provided context is
// wrapped with the configured per-operation timeout.
type Store struct {
	config    *Config
	client    *clientv3.Client
	kv        clientv3.KV
	closeFunc func(*clientv3.Client) error
	closed    atomic.Bool
}

var _ store.Database = (*Store)(nil)

// NewStore connects to etcd and returns a Store writing under the configured
// namespace.
func NewStore(config *Config) (*Store, error) {
	return newStore(config, clientv3.New, func(client *clientv3.Client) error { return client.Close() })
}

func newStore(config *Config, clientFunc func(clientv3.Config) (*clientv3.Client, error), closeFunc func(*clientv3.Client) error) (*Store, error) {
	if config == nil {
		return nil, errors.New("store/etcd: config is nil")
	}

	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if clientFunc == nil {
		clientFunc = clientv3.New
	}

	if closeFunc == nil {
		closeFunc = func(client *clientv3.Client) error { return client.Close() }
	}

	client, err := clientFunc(clientv3.Config{
		Endpoints:   config.Endpoints,
		DialTimeout: config.DialTimeout,
		TLS:         config.TLS,
		Username:    config.Username,
		Password:    config.Password,
		Context:     config.Context,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(config.Context, config.DialTimeout)
	defer cancel()

	if _, err = client.Status(ctx, config.Endpoints[0]); err != nil {
		if cerr := closeFunc(client); cerr != nil {
			return nil, errors.Join(err, fmt.Errorf("failed to close etcd client: %w", cerr))
		}
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	return &Store{
		config:    config,
		client:    client,
		kv:        namespace.NewKV(client.KV, normalizeNamespace(config.Namespace)),
		closeFunc: closeFunc,
	}, nil
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

// Close releases the etcd client. Close is idempotent.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.closeFunc(s.client)
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.config.Timeout)
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

	opCtx, cancel := t.store.withTimeout(ctx)
	defer cancel()

	resp, err := t.store.kv.Get(opCtx, string(key))
	if err != nil {
		return nil, classify(ctx, "read", err)
	}

	if len(resp.Kvs) == 0 {
		t.buffer.RecordRead(key, 0)
		return nil, nil
	}

	kv := resp.Kvs[0]
	t.buffer.RecordRead(key, uint64(kv.ModRevision))
	return kv.Value, nil
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

// Commit sends the buffered writes in one etcd Txn guarded by the read set.
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

	reads := t.buffer.Reads()
	cmps := make([]clientv3.Cmp, 0, len(reads))
	for _, read := range reads {
		cmps = append(cmps, clientv3.Compare(clientv3.ModRevision(string(read.Key)), "=", int64(read.Version)))
	}

	writes := t.buffer.Writes(stamp)
	ops := make([]clientv3.Op, 0, len(writes))
	for _, op := range writes {
		if op.Kind == kvtxn.OpClear {
			ops = append(ops, clientv3.OpDelete(string(op.Key)))
			continue
		}
		ops = append(ops, clientv3.OpPut(string(op.Key), string(op.Value)))
	}

	opCtx, cancel := t.store.withTimeout(ctx)
	defer cancel()

	resp, err := t.store.kv.Txn(opCtx).If(cmps...).Then(ops...).Commit()
	if err != nil {
		return classify(ctx, "commit", err)
	}

	if !resp.Succeeded {
		return fmt.Errorf("store/etcd: commit: %w", gerrors.ErrConflict)
	}
	return nil
}

func (t *transaction) Cancel() {
	_ = t.buffer.Finish()
}

// classify turns an etcd client error into a transient error when it is
// expected to clear on its own. Errors caused by the caller's own context are
// returned as is.
func classify(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return gerrors.NewTransientError(fmt.Errorf("store/etcd: %s: %w", op, err))
	}

	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return gerrors.NewTransientError(fmt.Errorf("store/etcd: %s: %w", op, err))
	default:
		return fmt.Errorf("store/etcd: %s: %w", op, err)
	}
}
