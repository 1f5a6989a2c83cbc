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

package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrors(t *testing.T) {
	err := errors.New("something went wrong")
	internalErr := NewInternalError(err)
	require.Error(t, internalErr)
	require.EqualError(t, internalErr, "internal error: something went wrong")
	assert.ErrorIs(t, internalErr.Unwrap(), err)

	err = context.DeadlineExceeded
	transientErr := NewTransientError(err)
	require.Error(t, transientErr)
	require.EqualError(t, transientErr, "transient store error: context deadline exceeded")
	assert.ErrorIs(t, transientErr, context.DeadlineExceeded)
}

func TestClassification(t *testing.T) {
	testCases := []struct {
		name      string
		err       error
		conflict  bool
		transient bool
		internal  bool
	}{
		{name: "conflict", err: ErrConflict, conflict: true},
		{name: "wrapped conflict", err: fmt.Errorf("etcd: commit: %w", ErrConflict), conflict: true},
		{name: "transient", err: NewTransientError(errors.New("connection reset")), transient: true},
		{name: "wrapped transient", err: fmt.Errorf("resolve: %w", NewTransientError(errors.New("timeout"))), transient: true},
		{name: "internal", err: NewInternalError(ErrMetadataVersionMissing), internal: true},
		{name: "plain", err: errors.New("boom")},
		{name: "nil", err: nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.conflict, IsConflict(tc.err))
			assert.Equal(t, tc.transient, IsTransient(tc.err))
			assert.Equal(t, tc.internal, IsInternal(tc.err))
			assert.Equal(t, tc.conflict || tc.transient, IsRetryable(tc.err))
		})
	}
}

func TestInternalWrapsSentinel(t *testing.T) {
	err := NewInternalError(ErrMetadataVersionMissing)
	assert.ErrorIs(t, err, ErrMetadataVersionMissing)
	assert.False(t, IsRetryable(err))
}
