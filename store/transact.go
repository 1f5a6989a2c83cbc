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
	"context"
	"time"

	"github.com/flowchartsman/retry"

	gerrors "github.com/tochemey/kvcoord/errors"
)

const (
	// DefaultTransactAttempts is the number of times Transact runs a
	// transaction that keeps failing with a retryable error.
	DefaultTransactAttempts = 10

	defaultInitialBackoff = 10 * time.Millisecond
	defaultMaxBackoff     = time.Second
)

type transactConfig struct {
	attempts       int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// TransactOption tunes Transact.
type TransactOption func(*transactConfig)

// WithAttempts sets the maximum number of attempts.
func WithAttempts(attempts int) TransactOption {
	return func(c *transactConfig) {
		if attempts > 0 {
			c.attempts = attempts
		}
	}
}

// WithBackoff sets the initial and maximum delay between two attempts.
func WithBackoff(initial, maximum time.Duration) TransactOption {
	return func(c *transactConfig) {
		if initial > 0 {
			c.initialBackoff = initial
		}
		if maximum >= initial {
			c.maxBackoff = maximum
		}
	}
}

// Transact runs fn in a fresh transaction and commits it. Conflicts and
// transient failures are retried with a jittered exponential backoff up to a
// bounded number of attempts; any other error is returned immediately.
func Transact(ctx context.Context, db Database, fn func(txn Transaction) error, opts ...TransactOption) error {
	config := &transactConfig{
		attempts:       DefaultTransactAttempts,
		initialBackoff: defaultInitialBackoff,
		maxBackoff:     defaultMaxBackoff,
	}

	for _, opt := range opts {
		opt(config)
	}

	var lastErr error
	retrier := retry.NewRetrier(config.attempts, config.initialBackoff, config.maxBackoff)
	err := retrier.RunContext(ctx, func(ctx context.Context) error {
		lastErr = runOnce(ctx, db, fn)
		if lastErr == nil || gerrors.IsRetryable(lastErr) {
			return lastErr
		}
		return retry.Stop(lastErr)
	})

	if err == nil {
		return nil
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	if lastErr != nil {
		return lastErr
	}
	return err
}

func runOnce(ctx context.Context, db Database, fn func(txn Transaction) error) error {
	txn, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer txn.Cancel()

	if err := fn(txn); err != nil {
		return err
	}
	return txn.Commit(ctx)
}
