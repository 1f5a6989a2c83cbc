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

// Package redis provides a distributed backing store on top of Redis.
//
// Each key is a hash holding its value and the revision of the commit that
// last wrote it. Cleared keys keep their revision so a read of an absent key
// still conflicts with a later create. A commit runs a Lua script that checks
// the revisions of the read set and applies the writes atomically.
package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	gerrors "github.com/tochemey/kvcoord/errors"
	"github.com/tochemey/kvcoord/internal/kvtxn"
	"github.com/tochemey/kvcoord/store"
)

const (
	valueField    = "v"
	revisionField = "r"

	opSet   = "s"
	opClear = "d"
)

// KEYS[1] is the revision counter, KEYS[2..n+1] the read set and the rest the
// write set. ARGV[1] is n, ARGV[2..n+1] the expected revisions, followed by
// one (kind, value) pair per written key.
var commitScript = redis.NewScript(`
local nreads = tonumber(ARGV[1])
for i = 1, nreads do
  local current = redis.call('HGET', KEYS[1 + i], 'r')
  if not current then
    current = '0'
  end
  if current ~= ARGV[1 + i] then
    return 0
  end
end
local rev = redis.call('INCR', KEYS[1])
local argi = 2 + nreads
for i = 2 + nreads, #KEYS do
  if ARGV[argi] == 'd' then
    redis.call('HDEL', KEYS[i], 'v')
    redis.call('HSET', KEYS[i], 'r', rev)
  else
    redis.call('HSET', KEYS[i], 'v', ARGV[argi + 1], 'r', rev)
  end
  argi = argi + 2
end
return rev
`)

// Store is a Redis-backed Database.
type Store struct {
	config *Config
	client redis.UniversalClient
	closed atomic.Bool
}

var _ store.Database = (*Store)(nil)

// NewStore connects to Redis and returns a Store.
func NewStore(config *Config) (*Store, error) {
	if config == nil {
		return nil, errors.New("store/redis: config is nil")
	}

	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:     config.Addrs,
		Username:  config.Username,
		Password:  config.Password,
		DB:        config.DB,
		TLSConfig: config.TLS,
	})

	ctx, cancel := context.WithTimeout(config.Context, config.Timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		if cerr := client.Close(); cerr != nil {
			return nil, errors.Join(err, fmt.Errorf("failed to close redis client: %w", cerr))
		}
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
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

// Close releases the Redis client. Close is idempotent.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.client.Close()
}

func (s *Store) key(raw []byte) string {
	return s.config.Prefix + "k:" + string(raw)
}

func (s *Store) revisionKey() string {
	return s.config.Prefix + "rev"
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

	fields, err := t.store.client.HMGet(opCtx, t.store.key(key), valueField, revisionField).Result()
	if err != nil {
		return nil, classify(ctx, "read", err)
	}

	var version uint64
	if raw, ok := fields[1].(string); ok {
		if version, err = strconv.ParseUint(raw, 10, 64); err != nil {
			return nil, gerrors.NewInternalError(fmt.Errorf("store/redis: corrupted revision %q: %w", raw, err))
		}
	}
	t.buffer.RecordRead(key, version)

	if raw, ok := fields[0].(string); ok {
		return []byte(raw), nil
	}
	return nil, nil
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

// Commit runs the commit script with the read set and the buffered writes.
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
	writes := t.buffer.Writes(stamp)

	keys := make([]string, 0, 1+len(reads)+len(writes))
	args := make([]any, 0, 1+len(reads)+2*len(writes))
	keys = append(keys, t.store.revisionKey())
	args = append(args, len(reads))

	for _, read := range reads {
		keys = append(keys, t.store.key(read.Key))
		args = append(args, strconv.FormatUint(read.Version, 10))
	}

	for _, op := range writes {
		keys = append(keys, t.store.key(op.Key))
		if op.Kind == kvtxn.OpClear {
			args = append(args, opClear, "")
			continue
		}
		args = append(args, opSet, op.Value)
	}

	opCtx, cancel := context.WithTimeout(ctx, t.store.config.Timeout)
	defer cancel()

	revision, err := commitScript.Run(opCtx, t.store.client, keys, args...).Int64()
	if err != nil {
		return classify(ctx, "commit", err)
	}

	if revision == 0 {
		return fmt.Errorf("store/redis: commit: %w", gerrors.ErrConflict)
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
		return gerrors.NewTransientError(fmt.Errorf("store/redis: %s: %w", op, err))
	}
	return fmt.Errorf("store/redis: %s: %w", op, err)
}
