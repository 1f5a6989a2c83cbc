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
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// namingProvider records the instrumentation names meters are requested for.
type namingProvider struct {
	metric.MeterProvider
	names []string
}

func (p *namingProvider) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	p.names = append(p.names, name)
	return p.MeterProvider.Meter(name, opts...)
}

func useGlobal(t *testing.T, provider metric.MeterProvider) {
	t.Helper()
	previous := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() { otel.SetMeterProvider(previous) })
}

func TestProvider(t *testing.T) {
	t.Run("With global meter provider", func(t *testing.T) {
		global := &namingProvider{MeterProvider: noop.NewMeterProvider()}
		useGlobal(t, global)

		provider := New()
		require.NotNil(t, provider.Meter())
		assert.Equal(t, global, provider.meterProvider)
		assert.Equal(t, []string{instrumentationName}, global.names)
	})
	t.Run("With explicit meter provider", func(t *testing.T) {
		global := &namingProvider{MeterProvider: noop.NewMeterProvider()}
		useGlobal(t, global)
		custom := &namingProvider{MeterProvider: noop.NewMeterProvider()}

		provider := New(WithMeterProvider(custom))
		require.NotNil(t, provider.Meter())
		assert.Equal(t, custom, provider.meterProvider)
		assert.Equal(t, []string{instrumentationName}, custom.names)
		assert.Empty(t, global.names)
	})
	t.Run("With nil meter provider", func(t *testing.T) {
		global := &namingProvider{MeterProvider: noop.NewMeterProvider()}
		useGlobal(t, global)

		provider := New(WithMeterProvider(nil))
		assert.Equal(t, global, provider.meterProvider)
		assert.Equal(t, []string{instrumentationName}, global.names)
	})
	t.Run("With instruments created from the meter", func(t *testing.T) {
		provider := New(WithMeterProvider(noop.NewMeterProvider()))
		_, err := NewCacheMetric(provider.Meter())
		require.NoError(t, err)
		_, err = NewLeaseMetric(provider.Meter())
		require.NoError(t, err)
	})
}
