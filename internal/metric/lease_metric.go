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

// LeaseMetric defines the leader lease instrumentation
type LeaseMetric struct {
	// Specifies the total number of transitions to leader
	acquisitions metric.Int64Counter
	// Specifies the total number of lease attempts lost to a concurrent writer
	conflicts metric.Int64Counter
	// Specifies the total number of lease attempts that failed for any other reason
	failures metric.Int64Counter
	// Specifies the total number of successful lease writes
	heartbeats metric.Int64Counter
}

// NewLeaseMetric creates an instance of LeaseMetric
func NewLeaseMetric(meter metric.Meter) (*LeaseMetric, error) {
	leaseMetric := new(LeaseMetric)
	var err error
	if leaseMetric.acquisitions, err = meter.Int64Counter(
		"lease_acquisitions",
		metric.WithDescription("Total number of times the lease was acquired"),
	); err != nil {
		return nil, fmt.Errorf("failed to create acquisitions instrument, %w", err)
	}

	if leaseMetric.conflicts, err = meter.Int64Counter(
		"lease_conflicts",
		metric.WithDescription("Total number of lease attempts that conflicted"),
	); err != nil {
		return nil, fmt.Errorf("failed to create conflicts instrument, %w", err)
	}

	if leaseMetric.failures, err = meter.Int64Counter(
		"lease_failures",
		metric.WithDescription("Total number of lease attempts that failed"),
	); err != nil {
		return nil, fmt.Errorf("failed to create failures instrument, %w", err)
	}

	if leaseMetric.heartbeats, err = meter.Int64Counter(
		"lease_heartbeats",
		metric.WithDescription("Total number of lease writes committed"),
	); err != nil {
		return nil, fmt.Errorf("failed to create heartbeats instrument, %w", err)
	}
	return leaseMetric, nil
}

// Acquisitions returns the acquisitions counter
func (x *LeaseMetric) Acquisitions() metric.Int64Counter {
	return x.acquisitions
}

// Conflicts returns the conflicts counter
func (x *LeaseMetric) Conflicts() metric.Int64Counter {
	return x.conflicts
}

// Failures returns the failures counter
func (x *LeaseMetric) Failures() metric.Int64Counter {
	return x.failures
}

// Heartbeats returns the heartbeats counter
func (x *LeaseMetric) Heartbeats() metric.Int64Counter {
	return x.heartbeats
}
