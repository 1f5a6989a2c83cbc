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

// Package validation checks configuration values before a component starts.
package validation

import (
	"errors"

	"go.uber.org/multierr"
)

// Validator is implemented by every value that can check itself.
type Validator interface {
	Validate() error
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func() error

var _ Validator = ValidatorFunc(nil)

// Validate calls f.
func (f ValidatorFunc) Validate() error {
	return f()
}

// Chain runs a list of validators in insertion order.
type Chain struct {
	stopOnFirst bool
	checks      []Validator
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// FailFast stops the chain at the first violation.
func FailFast() ChainOption {
	return func(c *Chain) { c.stopOnFirst = true }
}

// AllErrors runs every validator and combines the violations. This is the default.
func AllErrors() ChainOption {
	return func(c *Chain) { c.stopOnFirst = false }
}

// New creates an empty Chain.
func New(opts ...ChainOption) *Chain {
	chain := new(Chain)
	for _, opt := range opts {
		opt(chain)
	}
	return chain
}

// AddValidator appends v to the chain.
func (c *Chain) AddValidator(v Validator) *Chain {
	c.checks = append(c.checks, v)
	return c
}

// AddAssertion appends a check failing with message when condition is false.
func (c *Chain) AddAssertion(condition bool, message string) *Chain {
	return c.AddValidator(ValidatorFunc(func() error {
		if condition {
			return nil
		}
		return errors.New(message)
	}))
}

// Validate runs the chain. Running it twice yields the same result.
func (c *Chain) Validate() error {
	var violations error
	for _, check := range c.checks {
		err := check.Validate()
		if err == nil {
			continue
		}
		if c.stopOnFirst {
			return err
		}
		violations = multierr.Append(violations, err)
	}
	return violations
}
