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
	"errors"
	"fmt"
)

var (
	// ErrConflict is returned by a commit when a concurrent transaction touched
	// a key this transaction read. It is the normal signature of racing writers
	// and callers are expected to retry.
	ErrConflict = errors.New("transaction conflict")

	// ErrStoreClosed is returned when an operation is attempted on a closed backing store.
	ErrStoreClosed = errors.New("store is closed")

	// ErrTransactionDone is returned when a transaction is used after it has been committed or canceled.
	ErrTransactionDone = errors.New("transaction is already committed or canceled")

	// ErrVersionstampUnreadable is returned when a transaction reads a key it
	// wrote with a versionstamped value before committing.
	ErrVersionstampUnreadable = errors.New("versionstamped value cannot be read before commit")

	// ErrMetadataVersionMissing indicates the metadata version key is absent after bootstrap.
	ErrMetadataVersionMissing = errors.New("metadata version key is missing")

	// ErrDirectoryNotFound is returned when opening a directory that has not been created.
	ErrDirectoryNotFound = errors.New("directory not found")

	// ErrInvalidPath is returned when a directory or entity path is malformed.
	ErrInvalidPath = errors.New("invalid path")

	// ErrResolverClosed is returned when the directory resolver has been closed.
	ErrResolverClosed = errors.New("directory resolver is closed")

	// ErrLeaseStopped is returned to Acquire callers when the lease loop is shut down.
	ErrLeaseStopped = errors.New("lease is stopped")

	// ErrLeaseNotStarted is returned when waiting on a lease whose loop has not been started.
	ErrLeaseNotStarted = errors.New("lease is not started")

	// ErrLeaseAlreadyStarted is returned when Start is called twice on the same lease.
	ErrLeaseAlreadyStarted = errors.New("lease is already started")

	// ErrInvalidBlockSize is returned when reserving a non-positive number of ids.
	ErrInvalidBlockSize = errors.New("block size must be greater than zero")

	// ErrSequenceExhausted is returned when a reservation would exceed the largest sequential id.
	ErrSequenceExhausted = errors.New("sequential ids exhausted")

	// ErrCoordinatorNotStarted is returned when the coordinator is used before Start.
	ErrCoordinatorNotStarted = errors.New("coordinator is not started")
)

// InternalError signals an invariant violation such as a missing bootstrap key.
// It denotes a deployment problem rather than contention and is never retried.
type InternalError struct {
	err error
}

// enforce compilation error
var _ error = (*InternalError)(nil)

// NewInternalError returns an instance of InternalError
func NewInternalError(err error) *InternalError {
	return &InternalError{
		err: fmt.Errorf("internal error: %w", err),
	}
}

// Error implements the standard error interface
func (i *InternalError) Error() string {
	return i.err.Error()
}

func (i *InternalError) Unwrap() error {
	return i.err
}

// TransientError wraps a backing store failure that is expected to clear on
// its own: timeouts, unavailable endpoints, dropped connections.
type TransientError struct {
	err error
}

var _ error = (*TransientError)(nil)

// NewTransientError returns an instance of TransientError
func NewTransientError(err error) *TransientError {
	return &TransientError{
		err: fmt.Errorf("transient store error: %w", err),
	}
}

// Error implements the standard error interface
func (e *TransientError) Error() string {
	return e.err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.err
}

// IsConflict reports whether err carries ErrConflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsTransient reports whether err is, or wraps, a TransientError.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// IsInternal reports whether err is, or wraps, an InternalError.
func IsInternal(err error) bool {
	var internal *InternalError
	return errors.As(err, &internal)
}

// IsRetryable reports whether err is a Conflict or a TransientError.
// Every other error propagates to the embedding service.
func IsRetryable(err error) bool {
	return IsConflict(err) || IsTransient(err)
}
