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

// Package errorschain runs a sequence of steps and gathers their errors.
package errorschain

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
)

// Chain runs steps in insertion order and records their errors.
type Chain struct {
	ctx         context.Context
	returnFirst bool
	errs        []error
}

// ChainOption configures a Chain at creation time.
type ChainOption func(*Chain)

// ReturnFirst stops running steps after the first failure.
func ReturnFirst() ChainOption {
	return func(c *Chain) { c.returnFirst = true }
}

// ReturnAll runs every step and combines all failures.
func ReturnAll() ChainOption {
	return func(c *Chain) { c.returnFirst = false }
}

// New creates a Chain whose steps receive ctx.
func New(ctx context.Context, opts ...ChainOption) *Chain {
	chain := &Chain{ctx: ctx}
	for _, opt := range opts {
		opt(chain)
	}
	return chain
}

// Add records err when it is not nil.
func (c *Chain) Add(err error) *Chain {
	if err != nil {
		c.errs = append(c.errs, err)
	}
	return c
}

// Run runs fn unless a previous step failed in ReturnFirst mode. A failure is
// recorded prefixed with the step name.
func (c *Chain) Run(step string, fn func(ctx context.Context) error) *Chain {
	if c.returnFirst && len(c.errs) > 0 {
		return c
	}

	if err := fn(c.ctx); err != nil {
		c.errs = append(c.errs, fmt.Errorf("%s: %w", step, err))
	}
	return c
}

// RunIf runs the step only when cond holds.
func (c *Chain) RunIf(cond bool, step string, fn func(ctx context.Context) error) *Chain {
	if !cond {
		return c
	}
	return c.Run(step, fn)
}

// Err returns the first recorded error in ReturnFirst mode, every recorded
// error combined otherwise, or nil.
func (c *Chain) Err() error {
	if len(c.errs) == 0 {
		return nil
	}

	if c.returnFirst {
		return c.errs[0]
	}
	return multierr.Combine(c.errs...)
}
