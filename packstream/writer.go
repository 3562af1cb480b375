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
	"bytes"
	"encoding/binary"
	"math"
)

// Writer accumulates a packstream-encoded byte buffer. It never touches the
// network directly; the caller hands the finished buffer to chunk.Write.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the accumulated buffer.
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

// Reset clears the buffer for reuse.
func (w *Writer) Reset() { w.buf.Reset() }

func (w *Writer) putByte(b byte) { w.buf.WriteByte(b) }

func (w *Writer) putBytes(b []byte) { w.buf.Write(b) }

func (w *Writer) putUint16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.putBytes(b[:])
}

func (w *Writer) putUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.putBytes(b[:])
}

// Null writes the null marker.
func (w *Writer) Null() { w.putByte(MarkerNull) }

// Bool writes a boolean.
func (w *Writer) Bool(v bool) {
	if v {
		w.putByte(MarkerTrue)
	} else {
		w.putByte(MarkerFalse)
	}
}

// Int writes a signed integer using the smallest applicable marker.
func (w *Writer) Int(v int64) {
	switch {
	case v >= TinyIntNegativeMin && v <= TinyIntPositiveMax:
		w.putByte(byte(v))
	case v >= math.MinInt8 && v <= math.MaxInt8:
		w.putByte(MarkerInt8)
		w.putByte(byte(v))
	case v >= math.MinInt16 && v <= math.MaxInt16:
		w.putByte(MarkerInt16)
		w.putUint16(uint16(v))
	case v >= math.MinInt32 && v <= math.MaxInt32:
		w.putByte(MarkerInt32)
		w.putUint32(uint32(v))
	default:
		w.putByte(MarkerInt64)
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(v))
		w.putBytes(b[:])
	}
}

// Float writes a IEEE-754 double.
func (w *Writer) Float(v float64) {
	w.putByte(MarkerFloat64)
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(v))
	w.putBytes(b[:])
}

// Bytes writes a byte array with the smallest applicable length marker.
func (w *Writer) Bytes(v []byte) {
	n := len(v)
	switch {
	case n <= math.MaxUint8:
		w.putByte(MarkerBytes8)
		w.putByte(byte(n))
	case n <= math.MaxUint16:
		w.putByte(MarkerBytes16)
		w.putUint16(uint16(n))
	default:
		w.putByte(MarkerBytes32)
		w.putUint32(uint32(n))
	}
	w.putBytes(v)
}

// String writes a UTF-8 string with the smallest applicable marker.
func (w *Writer) String(v string) {
	n := len(v)
	switch {
	case n <= 15:
		w.putByte(byte(TinyStringMin + n))
	case n <= math.MaxUint8:
		w.putByte(MarkerString8)
		w.putByte(byte(n))
	case n <= math.MaxUint16:
		w.putByte(MarkerString16)
		w.putUint16(uint16(n))
	default:
		w.putByte(MarkerString32)
		w.putUint32(uint32(n))
	}
	w.buf.WriteString(v)
}

// ListHeader writes a list marker for n upcoming elements; the caller then
// writes each element in turn.
func (w *Writer) ListHeader(n int) {
	switch {
	case n <= 15:
		w.putByte(byte(TinyListMin + n))
	case n <= math.MaxUint8:
		w.putByte(MarkerList8)
		w.putByte(byte(n))
	case n <= math.MaxUint16:
		w.putByte(MarkerList16)
		w.putUint16(uint16(n))
	default:
		w.putByte(MarkerList32)
		w.putUint32(uint32(n))
	}
}

// DictHeader writes a dictionary marker for n upcoming key/value pairs; the
// caller then writes n (String, Value) pairs.
func (w *Writer) DictHeader(n int) {
	switch {
	case n <= 15:
		w.putByte(byte(TinyDictMin + n))
	case n <= math.MaxUint8:
		w.putByte(MarkerDict8)
		w.putByte(byte(n))
	case n <= math.MaxUint16:
		w.putByte(MarkerDict16)
		w.putUint16(uint16(n))
	default:
		w.putByte(MarkerDict32)
		w.putUint32(uint32(n))
	}
}

// StructHeader writes a structure marker for the given tag and field count;
// arity is fixed per tag and always fits the tiny-struct range (0-15).
func (w *Writer) StructHeader(tag byte, arity int) {
	w.putByte(byte(TinyStructMin + arity))
	w.putByte(tag)
}

// Dict writes an ordered string-keyed dictionary. Order is preserved on the
// wire, matching an AuthToken's or RUN extra's field ordering requirements.
func (w *Writer) Dict(pairs []KV) {
	w.DictHeader(len(pairs))
	for _, p := range pairs {
		w.String(p.Key)
		p.Encode(w)
	}
}

// KV is one key/value pair of an ordered dictionary; Encode writes the
// value half using the Writer passed to Dict.
type KV struct {
	Key    string
	Encode func(w *Writer)
}
