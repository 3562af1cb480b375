/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package varint implements the unsigned, base-128, continuation-bit-on-MSB
// integer encoding used by the handshake's version manifest list.
package varint

import (
	"fmt"
	"io"

	liberr "github/sabouaram/boltdriver/errors"
)

// maxBytes is the number of 7-bit groups needed to hold a uint64: ceil(64/7).
const maxBytes = 10

// Write encodes val as a varint and writes it to w.
func Write(w io.Writer, val uint64) error {
	var buf [maxBytes]byte
	n := 0
	for {
		b := byte(val & 0x7F)
		val >>= 7
		if val != 0 {
			b |= 0x80
		}
		buf[n] = b
		n++
		if val == 0 {
			break
		}
	}
	_, err := w.Write(buf[:n])
	return err
}

// Read decodes a varint from r. Trailing zero-padding bytes beyond the
// 10-byte buffer needed for a uint64 are tolerated (and counted as read,
// but contribute no value); a non-zero padding byte is rejected as overflow.
func Read(r io.Reader) (uint64, error) {
	var (
		one      [1]byte
		buf      [maxBytes]byte
		n        int
		overflow bool
	)

	for {
		if _, err := io.ReadFull(r, one[:]); err != nil {
			return 0, err
		}

		if n >= maxBytes {
			if one[0]&0x7F != 0 {
				return 0, liberr.PackstreamVarintOverflow.Error()
			}
			overflow = true
		} else {
			buf[n] = one[0]
			n++
		}

		if one[0]&0x80 == 0 {
			break
		}
	}

	if overflow && n > 0 {
		buf[n-1] &= 0x7F
	}

	return Decode(buf[:n])
}

// Decode parses a complete varint byte sequence (no trailing bytes allowed).
func Decode(b []byte) (uint64, error) {
	if len(b) == 0 {
		return 0, liberr.PackstreamVarintIncomplete.Error()
	}

	var res uint64
	const maxBits = 64

	for i, by := range b {
		part := uint64(by & 0x7F)
		cont := by & 0x80

		shift := i * 7
		if shift+7 > maxBits {
			allowed := maxBits - shift
			if allowed < 0 {
				allowed = 0
			}
			var mask byte
			if allowed < 8 {
				mask = byte(0xFF << uint(allowed))
			}
			if by&0x7F&mask != 0 {
				return 0, liberr.PackstreamVarintOverflow.Error()
			}
			if shift < maxBits {
				res |= part << uint(shift)
			}
		} else {
			res |= part << uint(shift)
		}

		if cont == 0 {
			if i == len(b)-1 {
				return res, nil
			}
			return res, liberr.PackstreamVarintOverflow.Error(fmt.Errorf("trailing bytes after terminated varint"))
		}
	}

	return 0, liberr.PackstreamVarintIncomplete.Error()
}
