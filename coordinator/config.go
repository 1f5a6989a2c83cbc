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

package coordinator

import (
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/tochemey/kvcoord/directory"
	"github.com/tochemey/kvcoord/internal/validation"
	"github.com/tochemey/kvcoord/lease"
	"github.com/tochemey/kvcoord/log"
)

// DefaultRoot is the directory below which every path is resolved.
var DefaultRoot = []string{"kvcoord"}

// Config holds the settings of a Coordinator.
type Config struct {
	// Root is the directory path every resolved path and lease key lives
	// under. Defaults to DefaultRoot.
	Root []string
	// CacheCapacity bounds the directory cache. Defaults to directory.DefaultCapacity.
	CacheCapacity int
	// CandidateID identifies this process in every lease. Defaults to a random id.
	CandidateID string
	// LeaseTimeout defaults to lease.DefaultTimeout.
	LeaseTimeout time.Duration
	// HeartbeatInterval defaults to a tenth of LeaseTimeout.
	HeartbeatInterval time.Duration
	// LeaseMaxBackoff defaults to lease.DefaultMaxBackoff.
	LeaseMaxBackoff time.Duration
	// Logger defaults to log.DefaultLogger.
	Logger log.Logger
	// MeterProvider defaults to the global meter provider.
	MeterProvider metric.MeterProvider
}

var _ validation.Validator = (*Config)(nil)

// Validate implements validation.Validator.
func (c *Config) Validate() error {
	chain := validation.New(validation.FailFast()).
		AddAssertion(len(c.Root) > 0, "Root must not be empty").
		AddAssertion(c.CacheCapacity > 0, "CacheCapacity must be greater than zero").
		AddValidator(validation.NewPositiveDurationValidator("LeaseTimeout", c.LeaseTimeout)).
		AddValidator(validation.NewPositiveDurationValidator("HeartbeatInterval", c.HeartbeatInterval)).
		AddAssertion(c.HeartbeatInterval < c.LeaseTimeout, "HeartbeatInterval must be shorter than LeaseTimeout").
		AddAssertion(c.LeaseMaxBackoff >= 0, "LeaseMaxBackoff must not be negative")

	for _, element := range c.Root {
		chain = chain.AddValidator(validation.NewEmptyStringValidator("Root element", element))
	}
	return chain.Validate()
}

// Sanitize sets defaults for empty fields.
func (c *Config) Sanitize() {
	if len(c.Root) == 0 {
		c.Root = append([]string(nil), DefaultRoot...)
	}
	if c.CacheCapacity == 0 {
		c.CacheCapacity = directory.DefaultCapacity
	}
	if c.LeaseTimeout == 0 {
		c.LeaseTimeout = lease.DefaultTimeout
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = c.LeaseTimeout / 10
	}
	if c.LeaseMaxBackoff == 0 {
		c.LeaseMaxBackoff = lease.DefaultMaxBackoff
	}
	if c.Logger == nil {
		c.Logger = log.DefaultLogger
	}
}
