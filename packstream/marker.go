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

// Package packstream implements the binary type system carried by every
// bolt message: nulls, booleans, integers, floats, byte arrays, strings,
// lists, dictionaries, and tagged structures.
package packstream

// Marker bytes, as fixed by the wire format.
const (
	MarkerNull = 0xC0

	MarkerFalse = 0xC2
	MarkerTrue  = 0xC3

	MarkerFloat64 = 0xC1

	MarkerInt8  = 0xC8
	MarkerInt16 = 0xC9
	MarkerInt32 = 0xCA
	MarkerInt64 = 0xCB

	MarkerBytes8  = 0xCC
	MarkerBytes16 = 0xCD
	MarkerBytes32 = 0xCE

	TinyStringMin = 0x80
	TinyStringMax = 0x8F
	MarkerString8 = 0xD0
	MarkerString16 = 0xD1
	MarkerString32 = 0xD2

	TinyListMin = 0x90
	TinyListMax = 0x9F
	MarkerList8  = 0xD4
	MarkerList16 = 0xD5
	MarkerList32 = 0xD6

	TinyDictMin = 0xA0
	TinyDictMax = 0xAF
	MarkerDict8  = 0xD8
	MarkerDict16 = 0xD9
	MarkerDict32 = 0xDA

	TinyStructMin = 0xB0
	TinyStructMax = 0xBF

	// TinyIntPositiveMax is the largest value that fits the single-byte
	// positive tiny-int encoding (0x00..0x7F).
	TinyIntPositiveMax = 0x7F
	// TinyIntNegativeMin is the smallest value that fits the single-byte
	// negative tiny-int encoding (0xF0..0xFF, i.e. -16..-1).
	TinyIntNegativeMin = -16
)

// IsTinyString reports whether m is a tiny-string marker.
func IsTinyString(m byte) bool { return m >= TinyStringMin && m <= TinyStringMax }

// IsTinyList reports whether m is a tiny-list marker.
func IsTinyList(m byte) bool { return m >= TinyListMin && m <= TinyListMax }

// IsTinyDict reports whether m is a tiny-dict marker.
func IsTinyDict(m byte) bool { return m >= TinyDictMin && m <= TinyDictMax }

// IsTinyStruct reports whether m is a tiny-struct marker.
func IsTinyStruct(m byte) bool { return m >= TinyStructMin && m <= TinyStructMax }

// IsTinyInt reports whether m, read as a signed byte, is a single-byte
// tiny-int marker (the positive range overlaps TINY_STRING's encoding
// space only in appearance; tiny-int uses the full byte range outside
// every other marker's reserved block).
func IsTinyInt(m byte) bool {
	return m <= TinyIntPositiveMax || int8(m) >= TinyIntNegativeMin
}
