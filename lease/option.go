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
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/tochemey/kvcoord/log"
)

// Option configures a Lease.
type Option interface {
	// Apply sets the Option value of a config.
	Apply(*Lease)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(*Lease)

// Apply applies the option to the lease.
func (f OptionFunc) Apply(l *Lease) {
	f(l)
}

// WithID sets the candidate id written to the lease key. It must be unique
// among the candidates of the lease.
func WithID(id string) Option {
	return OptionFunc(func(l *Lease) {
		l.id = id
	})
}

// WithTimeout sets how long a lease stays valid without a renewal. Unless
// set explicitly, the heartbeat interval follows at a tenth of the timeout.
func WithTimeout(timeout time.Duration) Option {
	return OptionFunc(func(l *Lease) {
		l.timeout = timeout
	})
}

// WithHeartbeatInterval sets the wait between two renewals of a held lease.
func WithHeartbeatInterval(interval time.Duration) Option {
	return OptionFunc(func(l *Lease) {
		l.heartbeat = interval
	})
}

// WithMaxBackoff sets the upper bound of the random wait after a failed attempt.
func WithMaxBackoff(backoff time.Duration) Option {
	return OptionFunc(func(l *Lease) {
		l.maxBackoff = backoff
	})
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(l *Lease) {
		if logger != nil {
			l.logger = logger
		}
	})
}

// WithMeterProvider sets the meter provider of the lease instruments.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return OptionFunc(func(l *Lease) {
		l.meterProvider = provider
	})
}
