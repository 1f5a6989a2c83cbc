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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestNewCacheMetric(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	cacheMetric, err := NewCacheMetric(meter)
	require.NoError(t, err)
	assert.NotNil(t, cacheMetric)
	assert.NotNil(t, cacheMetric.Hits())
	assert.NotNil(t, cacheMetric.Misses())
	assert.NotNil(t, cacheMetric.Evictions())
	assert.NotNil(t, cacheMetric.Invalidations())
}

func TestNewLeaseMetric(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	leaseMetric, err := NewLeaseMetric(meter)
	require.NoError(t, err)
	assert.NotNil(t, leaseMetric)
	assert.NotNil(t, leaseMetric.Acquisitions())
	assert.NotNil(t, leaseMetric.Conflicts())
	assert.NotNil(t, leaseMetric.Failures())
	assert.NotNil(t, leaseMetric.Heartbeats())
}
