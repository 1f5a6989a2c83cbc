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

package sequence

import (
	"math/bits"
	"math/rand/v2"
	"sync"
)

const (
	sequentialBits = 52

	// MaxScatteredCounter bounds the counter of a ScatteredAllocator.
	MaxScatteredCounter int64 = 1<<(sequentialBits-1) - 1
	// MaxScatteredID is the largest id a ScatteredAllocator hands out.
	MaxScatteredID = MaxSequentialID + 1 + MaxScatteredCounter

	scatterShift = 64 - sequentialBits + 1
)

// ScatteredAllocator generates large ids spread evenly above MaxSequentialID
// without touching the backing store. Consecutive ids come from a counter
// whose bits are reversed, so they land far apart.
//
// Ids are not reserved: a caller that finds an id already in use should
// call Invalidate and try again.
type ScatteredAllocator struct {
	mu      sync.Mutex
	counter int64
	rand    func() int64
}

// NewScatteredAllocator creates a ScatteredAllocator seeded at random.
func NewScatteredAllocator() *ScatteredAllocator {
	allocator := &ScatteredAllocator{
		rand: func() int64 { return rand.Int64N(MaxScatteredCounter) + 1 },
	}
	allocator.counter = allocator.rand()
	return allocator
}

// Next returns the next id, in [MaxSequentialID+1, MaxScatteredID].
func (s *ScatteredAllocator) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := MaxSequentialID + 1 + int64(bits.Reverse64(uint64(s.counter)<<scatterShift))

	s.counter++
	if s.counter > MaxScatteredCounter {
		s.counter = 1
	}
	return id
}

// Invalidate reseeds the counter at random.
func (s *ScatteredAllocator) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counter = s.rand()
}
