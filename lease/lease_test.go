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

package lease

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/atomic"
	"go.uber.org/goleak"

	gerrors "github.com/tochemey/kvcoord/errors"
	"github.com/tochemey/kvcoord/log"
	"github.com/tochemey/kvcoord/store"
	"github.com/tochemey/kvcoord/store/memory"
)

const (
	testTimeout    = 300 * time.Millisecond
	testHeartbeat  = 30 * time.Millisecond
	testMaxBackoff = 20 * time.Millisecond

	// timer and polling latency tolerated on top of the lease bounds
	schedulingSlack = 25 * time.Millisecond
)

var leaseKey = []byte("leader")

// flakyDB fails commits with err while failing is set.
type flakyDB struct {
	store.Database
	failing *atomic.Bool
	err     error
}

type flakyTxn struct {
	store.Transaction
	db *flakyDB
}

func (d *flakyDB) Begin(ctx context.Context) (store.Transaction, error) {
	txn, err := d.Database.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &flakyTxn{Transaction: txn, db: d}, nil
}

func (t *flakyTxn) Commit(ctx context.Context) error {
	if t.db.failing.Load() {
		t.Transaction.Cancel()
		return t.db.err
	}
	return t.Transaction.Commit(ctx)
}

func newLease(t *testing.T, db store.Database, opts ...Option) *Lease {
	t.Helper()
	opts = append([]Option{
		WithTimeout(testTimeout),
		WithHeartbeatInterval(testHeartbeat),
		WithMaxBackoff(testMaxBackoff),
		WithLogger(log.DiscardLogger),
		WithMeterProvider(noop.NewMeterProvider()),
	}, opts...)

	l, err := New(db, leaseKey, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Stop(context.Background()) })
	return l
}

func writeForeignOwner(t *testing.T, db store.Database, owner string) {
	t.Helper()
	ctx := context.Background()
	txn, err := db.Begin(ctx)
	require.NoError(t, err)
	txn.Set(leaseKey, encodeLease(owner, uuid.New()))
	require.NoError(t, txn.Commit(ctx))
}

func TestNew(t *testing.T) {
	t.Run("With defaults", func(t *testing.T) {
		l, err := New(memory.New(), leaseKey, WithLogger(log.DiscardLogger))
		require.NoError(t, err)
		assert.Equal(t, DefaultTimeout, l.timeout)
		assert.Equal(t, DefaultHeartbeatInterval, l.heartbeat)
		assert.Equal(t, DefaultMaxBackoff, l.maxBackoff)
		assert.NotEmpty(t, l.ID())
		assert.Empty(t, l.Owner())
		assert.False(t, l.Acquired())
	})
	t.Run("With heartbeat following the timeout", func(t *testing.T) {
		l, err := New(memory.New(), leaseKey, WithTimeout(time.Second), WithLogger(log.DiscardLogger))
		require.NoError(t, err)
		assert.Equal(t, 100*time.Millisecond, l.heartbeat)
	})
	t.Run("With explicit id", func(t *testing.T) {
		l, err := New(memory.New(), leaseKey, WithID("node-1"), WithLogger(log.DiscardLogger))
		require.NoError(t, err)
		assert.Equal(t, "node-1", l.ID())
	})
	t.Run("With invalid settings", func(t *testing.T) {
		_, err := New(memory.New(), nil)
		require.Error(t, err)
		_, err = New(memory.New(), leaseKey, WithID(""))
		require.Error(t, err)
		_, err = New(memory.New(), leaseKey, WithTimeout(time.Second), WithHeartbeatInterval(time.Second))
		require.Error(t, err)
		_, err = New(memory.New(), leaseKey, WithTimeout(-time.Second))
		require.Error(t, err)
		_, err = New(memory.New(), leaseKey, WithMaxBackoff(-time.Second))
		require.Error(t, err)
	})
}

func TestTick(t *testing.T) {
	t.Run("With absent key", func(t *testing.T) {
		db := memory.New()
		l := newLease(t, db)
		wait := l.tick(context.Background())
		assert.Equal(t, testHeartbeat, wait)
		assert.True(t, l.Acquired())
		assert.Equal(t, l.ID(), l.Owner())
	})
	t.Run("With self renewal", func(t *testing.T) {
		db := memory.New()
		l := newLease(t, db)
		ctx := context.Background()
		l.tick(ctx)
		first := l.observedOp

		wait := l.tick(ctx)
		assert.Equal(t, testHeartbeat, wait)
		assert.True(t, l.Acquired())
		assert.NotEqual(t, first, l.observedOp)
	})
	t.Run("With live foreign owner", func(t *testing.T) {
		db := memory.New()
		writeForeignOwner(t, db, "other")
		l := newLease(t, db)

		wait := l.tick(context.Background())
		assert.Greater(t, wait, testTimeout-50*time.Millisecond)
		assert.LessOrEqual(t, wait, testTimeout)
		assert.False(t, l.Acquired())
		assert.Equal(t, "other", l.Owner())
	})
	t.Run("With foreign owner taken over after a full timeout", func(t *testing.T) {
		db := memory.New()
		writeForeignOwner(t, db, "other")
		l := newLease(t, db)
		ctx := context.Background()

		observed := time.Now()
		l.tick(ctx)

		// the owner is not renewing but its window has not passed yet
		time.Sleep(testTimeout / 2)
		wait := l.tick(ctx)
		assert.Positive(t, wait)
		assert.False(t, l.Acquired())

		time.Sleep(wait)
		wait = l.tick(ctx)
		assert.GreaterOrEqual(t, time.Since(observed), testTimeout)
		assert.Equal(t, testHeartbeat, wait)
		assert.True(t, l.Acquired())
	})
	t.Run("With renewed foreign owner", func(t *testing.T) {
		db := memory.New()
		writeForeignOwner(t, db, "other")
		l := newLease(t, db)
		ctx := context.Background()
		l.tick(ctx)
		deadline := l.localDeadline

		time.Sleep(10 * time.Millisecond)
		writeForeignOwner(t, db, "other")
		l.tick(ctx)
		assert.True(t, l.localDeadline.After(deadline))
		assert.False(t, l.Acquired())
	})
	t.Run("With key removed", func(t *testing.T) {
		db := &flakyDB{Database: memory.New(), failing: atomic.NewBool(false), err: gerrors.ErrConflict}
		writeForeignOwner(t, db, "other")
		l := newLease(t, db)
		ctx := context.Background()
		l.tick(ctx)
		require.Equal(t, "other", l.Owner())

		txn, err := db.Database.Begin(ctx)
		require.NoError(t, err)
		txn.Clear(leaseKey)
		require.NoError(t, txn.Commit(ctx))

		// the claim fails, the owner observed meanwhile must not linger
		db.failing.Store(true)
		l.tick(ctx)
		assert.Empty(t, l.Owner())
		assert.False(t, l.Acquired())

		db.failing.Store(false)
		assert.Equal(t, testHeartbeat, l.tick(ctx))
		assert.Equal(t, l.ID(), l.Owner())
	})
	t.Run("With conflicts", func(t *testing.T) {
		db := &flakyDB{Database: memory.New(), failing: atomic.NewBool(true), err: gerrors.ErrConflict}
		l := newLease(t, db)
		ctx := context.Background()

		for i := 1; i <= RetryStreakThreshold; i++ {
			wait := l.tick(ctx)
			assert.Less(t, wait, testMaxBackoff)
			assert.Equal(t, i, l.streak)
		}
		assert.False(t, l.Acquired())

		db.failing.Store(false)
		assert.Equal(t, testHeartbeat, l.tick(ctx))
		assert.Zero(t, l.streak)
		assert.True(t, l.Acquired())
	})
	t.Run("With unexpected store error", func(t *testing.T) {
		db := &flakyDB{Database: memory.New(), failing: atomic.NewBool(true), err: errors.New("boom")}
		l := newLease(t, db)
		wait := l.tick(context.Background())
		assert.Less(t, wait, testMaxBackoff)
		assert.Equal(t, 1, l.streak)
		assert.False(t, l.Acquired())
	})
	t.Run("With undecodable value", func(t *testing.T) {
		db := memory.New()
		ctx := context.Background()
		txn, err := db.Begin(ctx)
		require.NoError(t, err)
		txn.Set(leaseKey, []byte("garbage"))
		require.NoError(t, txn.Commit(ctx))

		l := newLease(t, db)
		assert.Equal(t, testHeartbeat, l.tick(ctx))
		assert.True(t, l.Acquired())
	})
	t.Run("With canceled context", func(t *testing.T) {
		db := memory.New()
		l := newLease(t, db)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.Zero(t, l.tick(ctx))
		assert.Zero(t, l.streak)
		assert.False(t, l.Acquired())
	})
}

func TestLease(t *testing.T) {
	t.Run("With single candidate", func(t *testing.T) {
		l := newLease(t, memory.New())
		ctx := context.Background()
		require.NoError(t, l.Start(ctx))

		acquireCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		require.NoError(t, l.Acquire(acquireCtx))
		assert.True(t, l.Acquired())
		assert.Equal(t, l.ID(), l.Owner())

		// the heartbeat keeps the lease past its timeout
		time.Sleep(2 * testTimeout)
		assert.True(t, l.Acquired())

		require.NoError(t, l.Stop(ctx))
		assert.False(t, l.Acquired())
	})
	t.Run("With lifecycle errors", func(t *testing.T) {
		l := newLease(t, memory.New())
		ctx := context.Background()
		require.ErrorIs(t, l.Acquire(ctx), gerrors.ErrLeaseNotStarted)

		require.NoError(t, l.Start(ctx))
		require.ErrorIs(t, l.Start(ctx), gerrors.ErrLeaseAlreadyStarted)

		require.NoError(t, l.Stop(ctx))
		require.NoError(t, l.Stop(ctx))
		require.ErrorIs(t, l.Acquire(ctx), gerrors.ErrLeaseStopped)
	})
	t.Run("With stop before start", func(t *testing.T) {
		l := newLease(t, memory.New())
		ctx := context.Background()
		require.NoError(t, l.Stop(ctx))
		require.ErrorIs(t, l.Start(ctx), gerrors.ErrLeaseStopped)
	})
	t.Run("With blocked Acquire released by Stop", func(t *testing.T) {
		db := memory.New()
		writeForeignOwner(t, db, "other")
		l := newLease(t, db, WithTimeout(time.Minute), WithHeartbeatInterval(time.Second))
		ctx := context.Background()
		require.NoError(t, l.Start(ctx))

		errc := make(chan error, 1)
		go func() { errc <- l.Acquire(ctx) }()

		require.Eventually(t, func() bool { return l.Owner() == "other" }, time.Second, 5*time.Millisecond)
		require.NoError(t, l.Stop(ctx))

		select {
		case err := <-errc:
			require.ErrorIs(t, err, gerrors.ErrLeaseStopped)
		case <-time.After(time.Second):
			t.Fatal("Acquire was not released")
		}
	})
	t.Run("With Acquire deadline", func(t *testing.T) {
		db := memory.New()
		writeForeignOwner(t, db, "other")
		l := newLease(t, db, WithTimeout(time.Minute), WithHeartbeatInterval(time.Second))
		require.NoError(t, l.Start(context.Background()))

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		require.ErrorIs(t, l.Acquire(ctx), context.DeadlineExceeded)
	})
	t.Run("With at most one leader and eventually one", func(t *testing.T) {
		db := memory.New()
		ctx := context.Background()

		const candidates = 5
		leases := make([]*Lease, candidates)
		for i := range leases {
			leases[i] = newLease(t, db)
			require.NoError(t, leases[i].Start(ctx))
		}

		var (
			mu      sync.Mutex
			leaders = make(map[string]struct{})
		)
		deadline := time.Now().Add(3 * testTimeout)
		for time.Now().Before(deadline) {
			acquired := 0
			for _, l := range leases {
				if l.Acquired() {
					acquired++
					mu.Lock()
					leaders[l.ID()] = struct{}{}
					mu.Unlock()
				}
			}
			require.LessOrEqual(t, acquired, 1)
			time.Sleep(2 * time.Millisecond)
		}

		require.Eventually(t, func() bool {
			acquired := 0
			for _, l := range leases {
				if l.Acquired() {
					acquired++
				}
			}
			return acquired == 1
		}, time.Second, 5*time.Millisecond)
		assert.Len(t, leaders, 1)
	})
	t.Run("With exactly one follower taking over after the owner stops", func(t *testing.T) {
		db := memory.New()
		ctx := context.Background()

		owner := newLease(t, db)
		require.NoError(t, owner.Start(ctx))
		acquireCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		require.NoError(t, owner.Acquire(acquireCtx))

		const followers = 3
		candidates := make([]*Lease, followers)
		for i := range candidates {
			candidates[i] = newLease(t, db)
			require.NoError(t, candidates[i].Start(ctx))
		}
		require.Eventually(t, func() bool {
			for _, l := range candidates {
				if l.Owner() != owner.ID() {
					return false
				}
			}
			return true
		}, time.Second, 5*time.Millisecond)

		require.NoError(t, owner.Stop(ctx))

		// a follower wakes at most one timeout after the stop, sees the last
		// renewal and grants it another full timeout
		var (
			winner *Lease
			flipAt time.Time
		)
		deadline := time.Now().Add(2*testTimeout + testHeartbeat + testMaxBackoff + 200*time.Millisecond)
		for winner == nil && time.Now().Before(deadline) {
			now := time.Now()
			acquired := 0
			for _, l := range candidates {
				if l.Acquired() {
					acquired++
					winner, flipAt = l, now
				}
			}
			require.LessOrEqual(t, acquired, 1)
			time.Sleep(time.Millisecond)
		}
		require.NotNil(t, winner, "no follower took the lease over")

		sinceChange := flipAt.Sub(winner.changedAt.Load())
		assert.GreaterOrEqual(t, sinceChange, testTimeout)
		assert.LessOrEqual(t, sinceChange, testTimeout+testHeartbeat+testMaxBackoff+schedulingSlack)
		assert.Equal(t, winner.ID(), winner.Owner())

		// the other followers keep seeing the new owner renew and never flip
		watch := time.Now().Add(2 * testTimeout)
		for time.Now().Before(watch) {
			for _, l := range candidates {
				if l != winner {
					require.False(t, l.Acquired())
				}
			}
			require.True(t, winner.Acquired())
			time.Sleep(2 * time.Millisecond)
		}
		for _, l := range candidates {
			assert.Equal(t, winner.ID(), l.Owner())
		}
	})
}

func TestSignal(t *testing.T) {
	l := newLease(t, memory.New())
	first := l.clearSignal()

	l.setSignal()
	l.setSignal()
	select {
	case <-first:
	default:
		t.Fatal("signal was not set")
	}

	second := l.clearSignal()
	select {
	case <-second:
		t.Fatal("signal was not cleared")
	default:
	}
}

func TestLeaseCodec(t *testing.T) {
	op := uuid.New()
	owner, decoded, err := decodeLease(encodeLease("node-1", op))
	require.NoError(t, err)
	assert.Equal(t, "node-1", owner)
	assert.Equal(t, op, decoded)

	_, _, err = decodeLease([]byte("garbage"))
	require.Error(t, err)
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
