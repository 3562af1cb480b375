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

// Package handshake negotiates the bolt protocol version spoken on a fresh
// TCP connection: the four-byte magic preamble, up to four version
// proposals, and (when the server supports it) the version-negotiation-v2
// manifest exchange.
package handshake

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/bits-and-blooms/bitset"
	hcversion "github.com/hashicorp/go-version"

	liberr "github/sabouaram/boltdriver/errors"
	"github/sabouaram/boltdriver/packstream/varint"
)

// Magic is bolt's four-byte preamble.
var Magic = [4]byte{0x60, 0x60, 0xB0, 0x17}

// Version is a negotiated (major, minor) pair.
type Version struct {
	Major byte
	Minor byte
}

// semantic renders v as a go-version-comparable "major.minor.0" string, since
// hashicorp/go-version expects a dotted semantic form rather than a bare pair.
func (v Version) semantic() *hcversion.Version {
	ver, _ := hcversion.NewVersion(itoa(int(v.Major)) + "." + itoa(int(v.Minor)) + ".0")
	return ver
}

// String renders "major.minor".
func (v Version) String() string {
	return itoa(int(v.Major)) + "." + itoa(int(v.Minor))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Less orders versions by (major, minor), ascending, using go-version's
// semantic comparison so the ordering stays correct if a pre-release or
// metadata suffix convention is ever layered on top.
func (v Version) Less(o Version) bool {
	return v.semantic().LessThan(o.semantic())
}

// offer is one 4-byte version-range proposal: [major, minor_range, minor, 0].
type offer struct {
	major      byte
	minorRange byte
	minor      byte
}

func (o offer) bytes() [4]byte {
	return [4]byte{o.major, o.minorRange, o.minor, 0}
}

// Capability bits for the version-negotiation-v2 manifest, carried in a
// bitset so the handshake can grow new flags without changing the wire
// layout of already-negotiated bits.
const (
	CapNone = iota
)

// ManifestEntry is one candidate version offered by a v2-capable server,
// alongside its capability bitmask.
type ManifestEntry struct {
	Version      Version
	Capabilities *bitset.BitSet
}

// Result is the outcome of a successful handshake.
type Result struct {
	Negotiated   Version
	Capabilities *bitset.BitSet // nil unless the v2 manifest exchange ran
}

// Negotiate runs the handshake over rw: the magic preamble, up to four
// version proposals (newest first), and the v2 manifest exchange if the
// server requests it via the distinguished offer in slot zero.
func Negotiate(rw io.ReadWriter, proposals []Version, v2Capable bool) (Result, error) {
	if len(proposals) == 0 || len(proposals) > 4 {
		return Result{}, liberr.HandshakeNoMatch.Error(fmt.Errorf("must offer between 1 and 4 versions"))
	}

	if _, err := rw.Write(Magic[:]); err != nil {
		return Result{}, liberr.BoltDisconnect.Error(err)
	}

	var wire [16]byte
	for i := 0; i < 4; i++ {
		var o offer
		if i < len(proposals) {
			o = offer{major: proposals[i].Major, minor: proposals[i].Minor}
		}
		b := o.bytes()
		copy(wire[i*4:i*4+4], b[:])
	}
	if _, err := rw.Write(wire[:]); err != nil {
		return Result{}, liberr.BoltDisconnect.Error(err)
	}

	var resp [4]byte
	if _, err := io.ReadFull(rw, resp[:]); err != nil {
		return Result{}, liberr.BoltDisconnect.Error(err)
	}

	if string(resp[:]) == "HTTP" {
		return Result{}, liberr.HandshakeLooksLikeHTTP.Error()
	}

	chosen := binary.BigEndian.Uint32(resp[:])
	if chosen == 0 {
		return Result{}, liberr.HandshakeNoMatch.Error()
	}

	v := Version{Major: resp[3], Minor: resp[2]}

	// A distinguished response of major=0xFF signals the v2 manifest path;
	// the client must already have offered it via the v2Capable flag.
	if resp[3] == 0xFF && v2Capable {
		return negotiateManifest(rw)
	}

	return Result{Negotiated: v}, nil
}

func negotiateManifest(rw io.ReadWriter) (Result, error) {
	count, err := varint.Read(rw)
	if err != nil {
		return Result{}, liberr.BoltDisconnect.Error(err)
	}

	entries := make([]ManifestEntry, 0, count)
	for i := uint64(0); i < count; i++ {
		var buf [4]byte
		if _, err := io.ReadFull(rw, buf[:]); err != nil {
			return Result{}, liberr.BoltDisconnect.Error(err)
		}
		maskLen, err := varint.Read(rw)
		if err != nil {
			return Result{}, liberr.BoltDisconnect.Error(err)
		}
		mask := bitset.New(uint(maskLen) * 8)
		if maskLen > 0 {
			maskBytes := make([]byte, maskLen)
			if _, err := io.ReadFull(rw, maskBytes); err != nil {
				return Result{}, liberr.BoltDisconnect.Error(err)
			}
			for bi, b := range maskBytes {
				for bit := 0; bit < 8; bit++ {
					if b&(1<<uint(bit)) != 0 {
						mask.Set(uint(bi*8 + bit))
					}
				}
			}
		}
		entries = append(entries, ManifestEntry{
			Version:      Version{Major: buf[0], Minor: buf[1]},
			Capabilities: mask,
		})
	}

	if len(entries) == 0 {
		return Result{}, liberr.HandshakeManifestRejected.Error()
	}

	best := entries[0]
	for _, e := range entries[1:] {
		if best.Version.Less(e.Version) {
			best = e
		}
	}

	var chosen [4]byte
	chosen[0] = best.Version.Major
	chosen[1] = best.Version.Minor
	if _, err := rw.Write(chosen[:]); err != nil {
		return Result{}, liberr.BoltDisconnect.Error(err)
	}

	return Result{Negotiated: best.Version, Capabilities: best.Capabilities}, nil
}
