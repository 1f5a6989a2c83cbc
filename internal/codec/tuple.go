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
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// type codes of the ordered tuple encoding. The layout follows the
// FoundationDB tuple layer so keys sort the same way on every backing store.
const (
	nilCode     byte = 0x00
	bytesCode   byte = 0x01
	stringCode  byte = 0x02
	intZeroCode byte = 0x14
	uuidCode    byte = 0x30

	escapeByte byte = 0xff
)

// sizeLimits[n] is the largest magnitude that fits in n bytes
var sizeLimits = [...]uint64{
	0,
	1<<8 - 1,
	1<<16 - 1,
	1<<24 - 1,
	1<<32 - 1,
	1<<40 - 1,
	1<<48 - 1,
	1<<56 - 1,
	1<<64 - 1,
}

// Tuple is an ordered list of elements packed into an order-preserving byte
// string. Supported element types are nil, []byte, string, int, int64,
// uint64 and uuid.UUID.
type Tuple []any

// Pack encodes the tuple. It panics when an element has an unsupported type,
// which is a programming error rather than a runtime condition.
func (t Tuple) Pack() []byte {
	buf := make([]byte, 0, 32)
	for i, element := range t {
		switch v := element.(type) {
		case nil:
			buf = append(buf, nilCode)
		case []byte:
			buf = appendEscaped(append(buf, bytesCode), v)
		case string:
			buf = appendEscaped(append(buf, stringCode), []byte(v))
		case int:
			buf = appendInt(buf, int64(v))
		case int64:
			buf = appendInt(buf, v)
		case uint64:
			buf = appendUint(buf, v)
		case uuid.UUID:
			buf = append(append(buf, uuidCode), v[:]...)
		default:
			panic(fmt.Sprintf("codec: unsupported tuple element %d of type %T", i, element))
		}
	}
	return buf
}

// Unpack decodes a byte string produced by Tuple.Pack. Integers that fit in an
// int64 are returned as int64, larger positive ones as uint64.
func Unpack(b []byte) (Tuple, error) {
	var t Tuple
	for pos := 0; pos < len(b); {
		code := b[pos]
		pos++
		switch {
		case code == nilCode:
			t = append(t, nil)
		case code == bytesCode:
			raw, next, err := readEscaped(b, pos)
			if err != nil {
				return nil, err
			}
			t = append(t, raw)
			pos = next
		case code == stringCode:
			raw, next, err := readEscaped(b, pos)
			if err != nil {
				return nil, err
			}
			t = append(t, string(raw))
			pos = next
		case code >= intZeroCode-8 && code <= intZeroCode+8:
			v, next, err := readInt(b, pos, code)
			if err != nil {
				return nil, err
			}
			t = append(t, v)
			pos = next
		case code == uuidCode:
			if pos+16 > len(b) {
				return nil, fmt.Errorf("codec: truncated uuid at offset %d", pos)
			}
			var id uuid.UUID
			copy(id[:], b[pos:pos+16])
			t = append(t, id)
			pos += 16
		default:
			return nil, fmt.Errorf("codec: unknown tuple type code 0x%02x at offset %d", code, pos-1)
		}
	}
	return t, nil
}

// Append returns a new tuple made of t followed by elements.
func (t Tuple) Append(elements ...any) Tuple {
	out := make(Tuple, 0, len(t)+len(elements))
	out = append(out, t...)
	return append(out, elements...)
}

func appendEscaped(buf, raw []byte) []byte {
	for _, c := range raw {
		buf = append(buf, c)
		if c == 0x00 {
			buf = append(buf, escapeByte)
		}
	}
	return append(buf, 0x00)
}

func readEscaped(b []byte, pos int) ([]byte, int, error) {
	out := make([]byte, 0, 16)
	for pos < len(b) {
		c := b[pos]
		if c != 0x00 {
			out = append(out, c)
			pos++
			continue
		}
		if pos+1 < len(b) && b[pos+1] == escapeByte {
			out = append(out, 0x00)
			pos += 2
			continue
		}
		return out, pos + 1, nil
	}
	return nil, pos, fmt.Errorf("codec: unterminated byte string")
}

func byteLen(v uint64) int {
	n := 0
	for v > sizeLimits[n] {
		n++
	}
	return n
}

func appendInt(buf []byte, v int64) []byte {
	if v >= 0 {
		return appendUint(buf, uint64(v))
	}

	magnitude := uint64(-v)
	n := byteLen(magnitude)
	var scratch [8]byte
	binary.BigEndian.PutUint64(scratch[:], sizeLimits[n]-magnitude)
	buf = append(buf, intZeroCode-byte(n))
	return append(buf, scratch[8-n:]...)
}

func appendUint(buf []byte, v uint64) []byte {
	if v == 0 {
		return append(buf, intZeroCode)
	}

	n := byteLen(v)
	var scratch [8]byte
	binary.BigEndian.PutUint64(scratch[:], v)
	buf = append(buf, intZeroCode+byte(n))
	return append(buf, scratch[8-n:]...)
}

func readInt(b []byte, pos int, code byte) (any, int, error) {
	if code == intZeroCode {
		return int64(0), pos, nil
	}

	negative := code < intZeroCode
	n := int(code) - int(intZeroCode)
	if negative {
		n = -n
	}

	if pos+n > len(b) {
		return nil, pos, fmt.Errorf("codec: truncated integer at offset %d", pos)
	}

	var scratch [8]byte
	copy(scratch[8-n:], b[pos:pos+n])
	raw := binary.BigEndian.Uint64(scratch[:])
	pos += n

	if !negative {
		if raw > 1<<63-1 {
			return raw, pos, nil
		}
		return int64(raw), pos, nil
	}

	magnitude := sizeLimits[n] - raw
	if magnitude > 1<<63 {
		return nil, pos, fmt.Errorf("codec: negative integer overflows int64")
	}
	return -int64(magnitude), pos, nil
}
