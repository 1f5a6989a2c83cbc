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
	gods "github.com/Workiva/go-datastructures/queue"
)

// insertionOrder remembers the order in which cache keys were inserted.
//
// It is backed by a ring buffer sized to the cache capacity. The resolver
// evicts before inserting, so Put never finds the buffer full and never
// blocks, and Pop is only called on a non-empty buffer. Callers serialize
// access with the resolver mutex.
type insertionOrder struct {
	capacity   int
	underlying *gods.RingBuffer
}

func newInsertionOrder(capacity int) *insertionOrder {
	return &insertionOrder{
		capacity:   capacity,
		underlying: gods.NewRingBuffer(uint64(capacity)),
	}
}

// Push appends key as the newest entry.
func (o *insertionOrder) Push(key string) error {
	return o.underlying.Put(key)
}

// Pop removes and returns the oldest key. ok is false when the queue is empty.
func (o *insertionOrder) Pop() (key string, ok bool) {
	if o.underlying.Len() == 0 {
		return "", false
	}

	item, err := o.underlying.Get()
	if err != nil {
		return "", false
	}

	key, ok = item.(string)
	return key, ok
}

// Full reports whether the queue holds capacity keys.
func (o *insertionOrder) Full() bool {
	return o.underlying.Len() >= uint64(o.capacity)
}

// Len returns the number of keys.
func (o *insertionOrder) Len() int {
	return int(o.underlying.Len())
}

// Reset drops every key.
func (o *insertionOrder) Reset() {
	o.underlying.Dispose()
	o.underlying = gods.NewRingBuffer(uint64(o.capacity))
}

// Dispose releases the ring buffer.
func (o *insertionOrder) Dispose() {
	o.underlying.Dispose()
}
