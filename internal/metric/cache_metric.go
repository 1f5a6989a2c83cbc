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

package metric

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// CacheMetric defines the directory cache instrumentation
type CacheMetric struct {
	// Specifies the total number of lookups served from the cache
	hits metric.Int64Counter
	// Specifies the total number of lookups that had to resolve the directory
	misses metric.Int64Counter
	// Specifies the total number of entries dropped to respect the capacity
	evictions metric.Int64Counter
	// Specifies the total number of times the whole cache was cleared
	invalidations metric.Int64Counter
}

// NewCacheMetric creates an instance of CacheMetric
func NewCacheMetric(meter metric.Meter) (*CacheMetric, error) {
	cacheMetric := new(CacheMetric)
	var err error
	if cacheMetric.hits, err = meter.Int64Counter(
		"directory_cache_hits",
		metric.WithDescription("Total number of directory lookups served from the cache"),
	); err != nil {
		return nil, fmt.Errorf("failed to create hits instrument, %w", err)
	}

	if cacheMetric.misses, err = meter.Int64Counter(
		"directory_cache_misses",
		metric.WithDescription("Total number of directory lookups that missed the cache"),
	); err != nil {
		return nil, fmt.Errorf("failed to create misses instrument, %w", err)
	}

	if cacheMetric.evictions, err = meter.Int64Counter(
		"directory_cache_evictions",
		metric.WithDescription("Total number of cache entries evicted"),
	); err != nil {
		return nil, fmt.Errorf("failed to create evictions instrument, %w", err)
	}

	if cacheMetric.invalidations, err = meter.Int64Counter(
		"directory_cache_invalidations",
		metric.WithDescription("Total number of cache clears caused by a metadata version change"),
	); err != nil {
		return nil, fmt.Errorf("failed to create invalidations instrument, %w", err)
	}
	return cacheMetric, nil
}

// Hits returns the hits counter
func (x *CacheMetric) Hits() metric.Int64Counter {
	return x.hits
}

// Misses returns the misses counter
func (x *CacheMetric) Misses() metric.Int64Counter {
	return x.misses
}

// Evictions returns the evictions counter
func (x *CacheMetric) Evictions() metric.Int64Counter {
	return x.evictions
}

// Invalidations returns the invalidations counter
func (x *CacheMetric) Invalidations() metric.Int64Counter {
	return x.invalidations
}
