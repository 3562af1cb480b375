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

package packstream

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	liberr "github/sabouaram/boltdriver/errors"
)

// Reader decodes packstream primitives from an underlying byte stream,
// typically a chunk.Dechunker scoped to one message.
type Reader struct {
	r io.Reader
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader { return &Reader{r: r} }

func (r *Reader) readByte() (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r.r, b[:]); err != nil {
		return 0, liberr.BoltDisconnect.Error(err)
	}
	return b[0], nil
}

func (r *Reader) readN(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(r.r, b); err != nil {
		return nil, liberr.BoltDisconnect.Error(err)
	}
	return b, nil
}

func (r *Reader) readUint16() (uint16, error) {
	b, err := r.readN(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *Reader) readUint32() (uint32, error) {
	b, err := r.readN(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// PeekMarker reads and returns the next marker byte without further
// interpreting it, letting the caller dispatch to the right decode method.
func (r *Reader) PeekMarker() (byte, error) {
	return r.readByte()
}

// Bool decodes a boolean given its already-read marker.
func (r *Reader) Bool(marker byte) (bool, error) {
	switch marker {
	case MarkerTrue:
		return true, nil
	case MarkerFalse:
		return false, nil
	default:
		return false, liberr.PackstreamMalformedMarker.Error(fmt.Errorf("not a bool marker: 0x%02X", marker))
	}
}

// Int decodes a signed integer given its already-read marker.
func (r *Reader) Int(marker byte) (int64, error) {
	switch {
	case marker <= TinyIntPositiveMax:
		return int64(marker), nil
	case int8(marker) >= TinyIntNegativeMin:
		return int64(int8(marker)), nil
	case marker == MarkerInt8:
		b, err := r.readByte()
		if err != nil {
			return 0, err
		}
		return int64(int8(b)), nil
	case marker == MarkerInt16:
		v, err := r.readUint16()
		if err != nil {
			return 0, err
		}
		return int64(int16(v)), nil
	case marker == MarkerInt32:
		v, err := r.readUint32()
		if err != nil {
			return 0, err
		}
		return int64(int32(v)), nil
	case marker == MarkerInt64:
		b, err := r.readN(8)
		if err != nil {
			return 0, err
		}
		return int64(binary.BigEndian.Uint64(b)), nil
	default:
		return 0, liberr.PackstreamMalformedMarker.Error(fmt.Errorf("not an int marker: 0x%02X", marker))
	}
}

// Float decodes a double given its already-read marker.
func (r *Reader) Float(marker byte) (float64, error) {
	if marker != MarkerFloat64 {
		return 0, liberr.PackstreamMalformedMarker.Error(fmt.Errorf("not a float marker: 0x%02X", marker))
	}
	b, err := r.readN(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
}

// Bytes decodes a byte array given its already-read marker.
func (r *Reader) Bytes(marker byte) ([]byte, error) {
	var n int
	switch marker {
	case MarkerBytes8:
		b, err := r.readByte()
		if err != nil {
			return nil, err
		}
		n = int(b)
	case MarkerBytes16:
		v, err := r.readUint16()
		if err != nil {
			return nil, err
		}
		n = int(v)
	case MarkerBytes32:
		v, err := r.readUint32()
		if err != nil {
			return nil, err
		}
		n = int(v)
	default:
		return nil, liberr.PackstreamMalformedMarker.Error(fmt.Errorf("not a bytes marker: 0x%02X", marker))
	}
	return r.readN(n)
}

// String decodes a UTF-8 string given its already-read marker.
func (r *Reader) String(marker byte) (string, error) {
	var n int
	switch {
	case IsTinyString(marker):
		n = int(marker - TinyStringMin)
	case marker == MarkerString8:
		b, err := r.readByte()
		if err != nil {
			return "", err
		}
		n = int(b)
	case marker == MarkerString16:
		v, err := r.readUint16()
		if err != nil {
			return "", err
		}
		n = int(v)
	case marker == MarkerString32:
		v, err := r.readUint32()
		if err != nil {
			return "", err
		}
		n = int(v)
	default:
		return "", liberr.PackstreamMalformedMarker.Error(fmt.Errorf("not a string marker: 0x%02X", marker))
	}
	b, err := r.readN(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ListHeader decodes a list size given its already-read marker.
func (r *Reader) ListHeader(marker byte) (int, error) {
	switch {
	case IsTinyList(marker):
		return int(marker - TinyListMin), nil
	case marker == MarkerList8:
		b, err := r.readByte()
		return int(b), err
	case marker == MarkerList16:
		v, err := r.readUint16()
		return int(v), err
	case marker == MarkerList32:
		v, err := r.readUint32()
		return int(v), err
	default:
		return 0, liberr.PackstreamMalformedMarker.Error(fmt.Errorf("not a list marker: 0x%02X", marker))
	}
}

// DictHeader decodes a dictionary's pair count given its already-read marker.
func (r *Reader) DictHeader(marker byte) (int, error) {
	switch {
	case IsTinyDict(marker):
		return int(marker - TinyDictMin), nil
	case marker == MarkerDict8:
		b, err := r.readByte()
		return int(b), err
	case marker == MarkerDict16:
		v, err := r.readUint16()
		return int(v), err
	case marker == MarkerDict32:
		v, err := r.readUint32()
		return int(v), err
	default:
		return 0, liberr.PackstreamMalformedMarker.Error(fmt.Errorf("not a dict marker: 0x%02X", marker))
	}
}

// StructHeader decodes a structure's arity and tag given its already-read
// marker; the marker's low nibble is the field count.
func (r *Reader) StructHeader(marker byte) (arity int, tag byte, err error) {
	if !IsTinyStruct(marker) {
		return 0, 0, liberr.PackstreamMalformedMarker.Error(fmt.Errorf("not a struct marker: 0x%02X", marker))
	}
	arity = int(marker - TinyStructMin)
	tag, err = r.readByte()
	return arity, tag, err
}
