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

package store

import (
	"context"

	gerrors "github.com/tochemey/kvcoord/errors"
)

// EnsureMetadataVersion writes an initial metadata version token when the
// backing store has none. It is safe to call concurrently from several
// processes: a racing bootstrapper makes the commit conflict, and the retried
// transaction then finds the key in place.
func EnsureMetadataVersion(ctx context.Context, db Database) error {
	return Transact(ctx, db, func(txn Transaction) error {
		current, err := txn.Get(ctx, MetadataVersionKey)
		if err != nil {
			return err
		}

		if current == nil {
			txn.SetVersionstampedValue(MetadataVersionKey, nil)
		}
		return nil
	})
}

// MetadataVersion reads the metadata version token within txn. A missing token
// means the store was never bootstrapped and is reported as an internal error.
func MetadataVersion(ctx context.Context, txn Transaction) ([]byte, error) {
	token, err := txn.Get(ctx, MetadataVersionKey)
	if err != nil {
		return nil, err
	}

	if token == nil {
		return nil, gerrors.NewInternalError(gerrors.ErrMetadataVersionMissing)
	}
	return token, nil
}

// BumpMetadataVersion rewrites the metadata version token within txn. Once txn
// commits, every process observing the new token drops its directory cache.
func BumpMetadataVersion(txn Transaction) {
	txn.SetVersionstampedValue(MetadataVersionKey, nil)
}
