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

// Package lease elects a single leader among candidate processes sharing a
// transactional key-value store.
//
// The lease is one key holding (owner id, op id). The owner rewrites it with
// a fresh random op id on every heartbeat. The store grants no TTL: a
// candidate that sees the op id change grants the owner a full timeout
// measured on its own clock, and only claims the key once that timeout
// passed without a change. Clocks are therefore never compared across
// processes.
package lease

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/atomic"

	gerrors "github.com/tochemey/kvcoord/errors"
	"github.com/tochemey/kvcoord/internal/codec"
	imetric "github.com/tochemey/kvcoord/internal/metric"
	"github.com/tochemey/kvcoord/internal/validation"
	"github.com/tochemey/kvcoord/log"
	"github.com/tochemey/kvcoord/store"
)

const (
	// DefaultTimeout is how long a lease stays valid without a renewal.
	DefaultTimeout = 60 * time.Second
	// DefaultHeartbeatInterval is the wait between two renewals of a held lease.
	DefaultHeartbeatInterval = DefaultTimeout / 10
	// DefaultMaxBackoff bounds the random wait after a lost or failed attempt.
	DefaultMaxBackoff = 20 * time.Second
	// RetryStreakThreshold is the number of consecutive failed attempts after
	// which a warning is logged, and again at every multiple.
	RetryStreakThreshold = 10
)

// Lease is one candidate of a leader election.
type Lease struct {
	db            store.Database
	key           []byte
	id            string
	timeout       time.Duration
	heartbeat     time.Duration
	maxBackoff    time.Duration
	logger        log.Logger
	meterProvider metric.MeterProvider
	metric        *imetric.LeaseMetric

	// loop state, only touched by the loop goroutine
	observedOwner string
	observedOp    uuid.UUID
	localDeadline time.Time
	streak        int

	// snapshot readable from any goroutine
	owner     *atomic.String
	deadline  *atomic.Time
	changedAt *atomic.Time

	signalMu sync.Mutex
	signal   chan struct{}

	mu      sync.Mutex
	started *atomic.Bool
	stopped chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a candidate for the lease stored at key. Call Start to run it.
func New(db store.Database, key []byte, opts ...Option) (*Lease, error) {
	l := &Lease{
		db:         db,
		key:        append([]byte(nil), key...),
		id:         uuid.NewString(),
		timeout:    DefaultTimeout,
		maxBackoff: DefaultMaxBackoff,
		logger:     log.DefaultLogger,
		owner:      atomic.NewString(""),
		deadline:   atomic.NewTime(time.Time{}),
		changedAt:  atomic.NewTime(time.Time{}),
		signal:     make(chan struct{}),
		started:    atomic.NewBool(false),
		stopped:    make(chan struct{}),
		done:       make(chan struct{}),
	}

	for _, opt := range opts {
		opt.Apply(l)
	}

	if l.heartbeat == 0 {
		l.heartbeat = l.timeout / 10
	}

	if err := l.validate(); err != nil {
		return nil, err
	}

	var providerOpts []imetric.Option
	if l.meterProvider != nil {
		providerOpts = append(providerOpts, imetric.WithMeterProvider(l.meterProvider))
	}

	leaseMetric, err := imetric.NewLeaseMetric(imetric.New(providerOpts...).Meter())
	if err != nil {
		return nil, err
	}

	l.metric = leaseMetric
	l.logger = l.logger.With("lease", fmt.Sprintf("%x", l.key), "candidate", l.id)
	return l, nil
}

// ID returns the id this candidate writes to the lease key.
func (l *Lease) ID() string {
	return l.id
}

// Owner returns the owner recorded at the last observation of the lease key,
// or an empty string when none was observed.
func (l *Lease) Owner() string {
	return l.owner.Load()
}

// Acquired reports whether this candidate currently holds the lease: it was
// the recorded owner at its last write and its own deadline has not passed.
func (l *Lease) Acquired() bool {
	return l.owner.Load() == l.id && time.Now().Before(l.deadline.Load())
}

// Start runs the election loop in the background until Stop is called.
func (l *Lease) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started.Load() {
		return gerrors.ErrLeaseAlreadyStarted
	}

	if l.isStopped() {
		return gerrors.ErrLeaseStopped
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	l.cancel = cancel
	l.started.Store(true)
	go l.run(loopCtx)
	l.logger.Debug("lease loop started")
	return nil
}

// Acquire blocks until this candidate holds the lease. It returns
// errors.ErrLeaseStopped when the lease is stopped while waiting, and the
// context error when ctx is done first.
func (l *Lease) Acquire(ctx context.Context) error {
	if !l.started.Load() {
		return gerrors.ErrLeaseNotStarted
	}

	for {
		if l.isStopped() {
			return gerrors.ErrLeaseStopped
		}

		if l.Acquired() {
			return nil
		}

		signal := l.clearSignal()
		if l.Acquired() {
			return nil
		}

		select {
		case <-signal:
		case <-l.stopped:
			return gerrors.ErrLeaseStopped
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stop ends the election loop, aborting any in-flight attempt, and releases
// the callers blocked in Acquire. The lease key is left as is: other
// candidates take over once the timeout passes.
func (l *Lease) Stop(ctx context.Context) error {
	l.mu.Lock()
	if !l.isStopped() {
		close(l.stopped)
		if l.cancel != nil {
			l.cancel()
		} else {
			close(l.done)
		}
	}
	l.mu.Unlock()

	select {
	case <-l.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	l.owner.Store("")
	l.deadline.Store(time.Time{})
	l.logger.Debug("lease loop stopped")
	return nil
}

func (l *Lease) isStopped() bool {
	select {
	case <-l.stopped:
		return true
	default:
		return false
	}
}

func (l *Lease) run(ctx context.Context) {
	defer close(l.done)
	for {
		wait := l.tick(ctx)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// tick runs one attempt and returns how long to wait before the next one.
func (l *Lease) tick(ctx context.Context) time.Duration {
	wait, err := l.attempt(ctx)
	if err == nil {
		l.streak = 0
		return wait
	}

	if ctx.Err() != nil {
		return 0
	}

	l.streak++
	switch {
	case gerrors.IsConflict(err):
		l.metric.Conflicts().Add(ctx, 1)
		l.logger.Debugf("lease attempt lost to a concurrent candidate: %v", err)
	case gerrors.IsTransient(err):
		l.metric.Failures().Add(ctx, 1)
		l.logger.Warnf("lease attempt failed: %v", err)
	default:
		l.metric.Failures().Add(ctx, 1)
		l.logger.Errorf("lease attempt failed: %v", err)
	}

	if l.streak%RetryStreakThreshold == 0 {
		l.logger.Warnf("lease not written after %d consecutive attempts", l.streak)
	}
	return l.backoff()
}

// attempt reads the lease key and claims or renews it when allowed.
func (l *Lease) attempt(ctx context.Context) (time.Duration, error) {
	start := time.Now()

	txn, err := l.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer txn.Cancel()

	raw, err := txn.Get(ctx, l.key)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	owner, present := l.observe(raw, now)
	l.owner.Store(owner)

	canAcquire := !present || !now.Before(l.localDeadline)
	if !canAcquire && owner != l.id {
		return l.localDeadline.Sub(now), nil
	}

	op := uuid.New()
	txn.Set(l.key, encodeLease(l.id, op))
	if err := txn.Commit(ctx); err != nil {
		return 0, err
	}

	acquired := l.Acquired()
	if present && owner != l.id {
		l.logger.Infof("lease taken over from %s, unchanged since %s", owner, l.changedAt.Load().Format(time.RFC3339Nano))
	}

	l.observedOwner, l.observedOp = l.id, op
	l.localDeadline = start.Add(l.timeout)
	l.deadline.Store(l.localDeadline)
	l.owner.Store(l.id)

	l.metric.Heartbeats().Add(ctx, 1)
	if !acquired {
		l.metric.Acquisitions().Add(ctx, 1)
		l.logger.Infof("lease acquired by %s", l.id)
	}

	l.setSignal()
	return l.heartbeat, nil
}

// observe decodes the lease value and, when the op id changed since the last
// observation, grants the owner a full timeout from now. An absent or
// undecodable value clears the observed owner.
func (l *Lease) observe(raw []byte, now time.Time) (string, bool) {
	if raw == nil {
		l.observedOwner, l.observedOp = "", uuid.Nil
		return "", false
	}

	owner, op, err := decodeLease(raw)
	if err != nil {
		l.logger.Warnf("overwriting undecodable lease value: %v", err)
		l.observedOwner, l.observedOp = "", uuid.Nil
		return "", false
	}

	if owner != l.observedOwner || op != l.observedOp {
		l.observedOwner, l.observedOp = owner, op
		l.localDeadline = now.Add(l.timeout)
		l.changedAt.Store(now)
	}
	return owner, true
}

func (l *Lease) backoff() time.Duration {
	if l.maxBackoff <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(l.maxBackoff)))
}

func (l *Lease) setSignal() {
	l.signalMu.Lock()
	defer l.signalMu.Unlock()
	select {
	case <-l.signal:
	default:
		close(l.signal)
	}
}

// clearSignal returns an unset signal, replacing the current one if set.
func (l *Lease) clearSignal() <-chan struct{} {
	l.signalMu.Lock()
	defer l.signalMu.Unlock()
	select {
	case <-l.signal:
		l.signal = make(chan struct{})
	default:
	}
	return l.signal
}

func (l *Lease) validate() error {
	return validation.New(validation.FailFast()).
		AddValidator(validation.NewEmptyStringValidator("ID", l.id)).
		AddAssertion(len(l.key) > 0, "lease key is required").
		AddValidator(validation.NewPositiveDurationValidator("Timeout", l.timeout)).
		AddValidator(validation.NewPositiveDurationValidator("HeartbeatInterval", l.heartbeat)).
		AddAssertion(l.heartbeat < l.timeout, "heartbeat interval must be shorter than the timeout").
		AddAssertion(l.maxBackoff >= 0, "max backoff must not be negative").
		Validate()
}

func encodeLease(owner string, op uuid.UUID) []byte {
	return codec.Tuple{owner, op}.Pack()
}

func decodeLease(raw []byte) (string, uuid.UUID, error) {
	elements, err := codec.Unpack(raw)
	if err != nil {
		return "", uuid.Nil, err
	}

	if len(elements) != 2 {
		return "", uuid.Nil, fmt.Errorf("lease value has %d elements", len(elements))
	}

	owner, ok := elements[0].(string)
	if !ok {
		return "", uuid.Nil, errors.New("lease owner is not a string")
	}

	op, ok := elements[1].(uuid.UUID)
	if !ok {
		return "", uuid.Nil, errors.New("lease op id is not a uuid")
	}
	return owner, op, nil
}
