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
	"strconv"
	"strings"
	"unicode/utf8"

	gerrors "github.com/tochemey/kvcoord/errors"
	"github.com/tochemey/kvcoord/internal/hash"
)

// markers of the entity path encoding
const (
	pathTerminator byte = 0x00
	int64ZeroCode  byte = 0x0c
	kindMarker     byte = 0x1c
	nameMarker     byte = 0x1d
)

// Element is a single (kind, id-or-name) pair of an entity path. An element
// with neither an ID nor a Name is incomplete: its identifier has not been
// allocated yet.
type Element struct {
	Kind string
	ID   int64
	Name string
}

// Complete reports whether the element carries an identifier.
func (e Element) Complete() bool {
	return e.ID != 0 || e.Name != ""
}

// Path is an entity path from the root ancestor to the entity itself.
type Path []Element

// PathOption tunes EncodePath.
type PathOption uint8

const (
	// OmitTerminalID leaves the identifier of the last element out of the
	// encoding so that the result addresses every sibling of that kind.
	OmitTerminalID PathOption = 1 << iota
	// AllowPartial accepts a last element that has no identifier yet.
	AllowPartial
)

// EncodePath packs the path into an order-preserving byte string:
// kind marker + kind text, then either an Int64 id or name marker + name
// text, for every element, followed by a terminator.
func EncodePath(path Path, opts PathOption) ([]byte, error) {
	if err := validatePath(path, opts); err != nil {
		return nil, err
	}

	buf := make([]byte, 0, 16*len(path))
	for i, element := range path {
		buf = appendText(append(buf, kindMarker), element.Kind)
		if i == len(path)-1 && (opts&OmitTerminalID != 0 || !element.Complete()) {
			continue
		}
		buf = appendIDOrName(buf, element)
	}
	return append(buf, pathTerminator), nil
}

// DecodePath reverses EncodePath. The returned offset points right after the
// terminator so callers can keep parsing a longer key.
func DecodePath(b []byte) (Path, int, error) {
	var path Path
	pos := 0
	for pos < len(b) {
		marker := b[pos]
		pos++
		if marker == pathTerminator {
			return path, pos, nil
		}

		if marker != kindMarker {
			return nil, pos, fmt.Errorf("codec: encoded path is missing kind at offset %d", pos-1)
		}

		kind, next, err := readText(b, pos)
		if err != nil {
			return nil, pos, err
		}
		pos = next
		element := Element{Kind: kind}

		if pos >= len(b) {
			return nil, pos, fmt.Errorf("codec: truncated path")
		}

		switch marker = b[pos]; {
		case marker == pathTerminator, marker == kindMarker:
			// incomplete element, identifier omitted
		case marker == nameMarker:
			name, next, err := readText(b, pos+1)
			if err != nil {
				return nil, pos, err
			}
			element.Name = name
			pos = next
		default:
			id, next, err := readInt64(b, pos+1, marker)
			if err != nil {
				return nil, pos, err
			}
			element.ID = id
			pos = next
		}

		path = append(path, element)
	}
	return nil, pos, fmt.Errorf("codec: encoded path is missing terminator")
}

// ScatterByte derives one byte from the path content so that keys of
// otherwise adjacent entity groups spread across the key space. It is
// deterministic but not unique.
func ScatterByte(path Path, opts PathOption) byte {
	var sb strings.Builder
	for i, element := range path {
		sb.WriteString(element.Kind)
		if i == len(path)-1 && opts&OmitTerminalID != 0 {
			continue
		}
		switch {
		case element.Name != "":
			sb.WriteString(element.Name)
		case element.ID != 0:
			sb.WriteString(strconv.FormatInt(element.ID, 10))
		}
	}
	return byte(hash.DefaultHasher().HashCode([]byte(sb.String())) % 256)
}

func validatePath(path Path, opts PathOption) error {
	if len(path) == 0 {
		return fmt.Errorf("%w: path is empty", gerrors.ErrInvalidPath)
	}

	for i, element := range path {
		if element.Kind == "" {
			return fmt.Errorf("%w: element %d has no kind", gerrors.ErrInvalidPath, i)
		}

		if !utf8.ValidString(element.Kind) || !utf8.ValidString(element.Name) {
			return fmt.Errorf("%w: element %d is not valid UTF-8", gerrors.ErrInvalidPath, i)
		}

		if element.ID != 0 && element.Name != "" {
			return fmt.Errorf("%w: element %d has both an id and a name", gerrors.ErrInvalidPath, i)
		}

		last := i == len(path)-1
		if !element.Complete() && (!last || opts&AllowPartial == 0) {
			return fmt.Errorf("%w: element %d (%s) is incomplete", gerrors.ErrInvalidPath, i, element.Kind)
		}
	}
	return nil
}

func appendIDOrName(buf []byte, element Element) []byte {
	if element.Name != "" {
		return appendText(append(buf, nameMarker), element.Name)
	}
	return appendInt64(buf, element.ID)
}

// appendText shifts every byte up by one so that 0x00 only ever appears as
// the terminator. validatePath only lets valid UTF-8 through, which never
// holds 0xff, so the shift cannot overflow.
func appendText(buf []byte, text string) []byte {
	for i := 0; i < len(text); i++ {
		buf = append(buf, text[i]+1)
	}
	return append(buf, pathTerminator)
}

func readText(b []byte, pos int) (string, int, error) {
	var sb strings.Builder
	for pos < len(b) {
		c := b[pos]
		pos++
		if c == pathTerminator {
			return sb.String(), pos, nil
		}
		sb.WriteByte(c - 1)
	}
	return "", pos, fmt.Errorf("codec: unterminated text")
}

// appendInt64 writes a marker telling how many bytes follow. Negative values
// are shifted into unsigned space so they sort before positive ones.
func appendInt64(buf []byte, v int64) []byte {
	if v == 0 {
		return append(buf, int64ZeroCode)
	}

	var (
		n     int
		value uint64
		code  byte
	)

	if v > 0 {
		n = byteLen(uint64(v))
		value = uint64(v)
		code = int64ZeroCode + byte(n)
	} else {
		magnitude := uint64(-v)
		n = byteLen(magnitude)
		value = sizeLimits[n] - magnitude
		code = int64ZeroCode - byte(n)
	}

	var scratch [8]byte
	binary.BigEndian.PutUint64(scratch[:], value)
	buf = append(buf, code)
	return append(buf, scratch[8-n:]...)
}

func readInt64(b []byte, pos int, code byte) (int64, int, error) {
	if code < int64ZeroCode-8 || code > int64ZeroCode+8 {
		return 0, pos, fmt.Errorf("codec: invalid id marker 0x%02x", code)
	}

	if code == int64ZeroCode {
		return 0, pos, nil
	}

	n := int(code) - int(int64ZeroCode)
	negative := n < 0
	if negative {
		n = -n
	}

	if pos+n > len(b) {
		return 0, pos, fmt.Errorf("codec: truncated id at offset %d", pos)
	}

	var scratch [8]byte
	copy(scratch[8-n:], b[pos:pos+n])
	raw := binary.BigEndian.Uint64(scratch[:])
	pos += n

	if negative {
		return -int64(sizeLimits[n] - raw), pos, nil
	}
	return int64(raw), pos, nil
}
