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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScatteredAllocator(t *testing.T) {
	t.Run("With ids above the sequential range", func(t *testing.T) {
		allocator := NewScatteredAllocator()
		for range 1000 {
			id := allocator.Next()
			require.Greater(t, id, MaxSequentialID)
			require.LessOrEqual(t, id, MaxScatteredID)
		}
	})
	t.Run("With bit reversed counter", func(t *testing.T) {
		allocator := &ScatteredAllocator{counter: 1, rand: func() int64 { return 1 }}
		assert.Equal(t, MaxSequentialID+1+(int64(1)<<(sequentialBits-2)), allocator.Next())
		assert.Equal(t, MaxSequentialID+1+(int64(1)<<(sequentialBits-3)), allocator.Next())
		assert.Equal(t, MaxSequentialID+1+(int64(3)<<(sequentialBits-3)), allocator.Next())
	})
	t.Run("With counter wrapping", func(t *testing.T) {
		allocator := &ScatteredAllocator{counter: MaxScatteredCounter, rand: func() int64 { return 1 }}
		last := allocator.Next()
		assert.Equal(t, MaxScatteredID, last)
		assert.EqualValues(t, 1, allocator.counter)
	})
	t.Run("With invalidate", func(t *testing.T) {
		allocator := &ScatteredAllocator{counter: 1, rand: func() int64 { return 42 }}
		allocator.Invalidate()
		id := allocator.Next()
		assert.Equal(t, MaxSequentialID+1+int64(bits.Reverse64(uint64(42)<<scatterShift)), id)
	})
	t.Run("With concurrent callers", func(t *testing.T) {
		allocator := NewScatteredAllocator()
		var (
			mu   sync.Mutex
			seen = make(map[int64]struct{})
			wg   sync.WaitGroup
		)
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 100 {
					id := allocator.Next()
					mu.Lock()
					seen[id] = struct{}{}
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Len(t, seen, 800)
	})
}
