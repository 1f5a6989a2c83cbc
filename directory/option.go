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

package directory

import (
	"slices"

	"go.opentelemetry.io/otel/metric"

	"github.com/tochemey/kvcoord/log"
	"github.com/tochemey/kvcoord/store"
)

// Option configures a Resolver.
type Option interface {
	// Apply sets the Option value of a config.
	Apply(*Resolver)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(*Resolver)

// Apply applies the option to the resolver.
func (f OptionFunc) Apply(r *Resolver) {
	f(r)
}

// WithCapacity sets the maximum number of cached directories.
// Non-positive values are ignored.
func WithCapacity(capacity int) Option {
	return OptionFunc(func(r *Resolver) {
		if capacity > 0 {
			r.capacity = capacity
		}
	})
}

// WithRoot resolves every path below root.
func WithRoot(root ...string) Option {
	return OptionFunc(func(r *Resolver) {
		r.root = slices.Clone(root)
	})
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	})
}

// WithDirectoryLayer replaces the directory layer used on cache misses.
func WithDirectoryLayer(layer store.DirectoryLayer) Option {
	return OptionFunc(func(r *Resolver) {
		if layer != nil {
			r.layer = layer
		}
	})
}

// WithMeterProvider sets the meter provider of the cache instruments.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return OptionFunc(func(r *Resolver) {
		r.meterProvider = provider
	})
}
