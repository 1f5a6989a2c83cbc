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

package codec

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// EncodeInt64 encodes v as a protobuf varint. Non-negative values take one
// to nine bytes.
func EncodeInt64(v int64) []byte {
	return protowire.AppendVarint(nil, uint64(v))
}

// DecodeInt64 decodes a value written by EncodeInt64. Trailing bytes are
// rejected since a value holds exactly one integer.
func DecodeInt64(b []byte) (int64, error) {
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, fmt.Errorf("codec: invalid varint: %w", protowire.ParseError(n))
	}

	if n != len(b) {
		return 0, fmt.Errorf("codec: %d trailing bytes after varint", len(b)-n)
	}
	return int64(v), nil
}
