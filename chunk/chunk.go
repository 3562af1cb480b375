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

// Package chunk implements bolt's wire framing: every message is split into
// one or more u16-length-prefixed chunks and terminated by an empty chunk.
package chunk

import (
	"encoding/binary"
	"io"

	liberr "github/sabouaram/boltdriver/errors"
)

// MaxChunkSize is the largest payload a single chunk frame can carry.
const MaxChunkSize = 0xFFFF

// Write splits msg into MaxChunkSize-sized chunks, writes each with its
// big-endian u16 length prefix, and terminates with a zero chunk. Exactly
// one underlying Write per chunk header/body pair; callers wanting a single
// flush should wrap w in a buffered writer and flush after Write returns.
func Write(w io.Writer, msg []byte) error {
	var hdr [2]byte

	for len(msg) > 0 {
		n := len(msg)
		if n > MaxChunkSize {
			n = MaxChunkSize
		}

		binary.BigEndian.PutUint16(hdr[:], uint16(n))
		if _, err := w.Write(hdr[:]); err != nil {
			return err
		}
		if _, err := w.Write(msg[:n]); err != nil {
			return err
		}
		msg = msg[n:]
	}

	binary.BigEndian.PutUint16(hdr[:], 0)
	_, err := w.Write(hdr[:])
	return err
}

// Read reads one full message's worth of chunks from r and returns the
// concatenated payload. An EOF observed mid-chunk is reported as a protocol
// disconnect, since the peer closed the stream inside a framed message.
func Read(r io.Reader) ([]byte, error) {
	var (
		hdr [2]byte
		out []byte
	)

	for {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if out != nil && (err == io.ErrUnexpectedEOF || err == io.EOF) {
				return nil, liberr.BoltDisconnect.Error(err)
			}
			return nil, err
		}

		size := binary.BigEndian.Uint16(hdr[:])
		if size == 0 {
			return out, nil
		}

		buf := make([]byte, size)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, liberr.BoltDisconnect.Error(err)
		}

		out = append(out, buf...)
	}
}

// Dechunker exposes the reassembled payload of a single message as an
// io.Reader, returning io.EOF once the terminating zero chunk is observed.
// A second call to Read after EOF starts reassembling the next message.
type Dechunker struct {
	r         io.Reader
	remaining uint16
	ended     bool
	onError   func(error)
}

// NewDechunker wraps r. onError, if non-nil, is invoked once when framing
// fails, mirroring the connection's "mark broken on first IO error" rule.
func NewDechunker(r io.Reader, onError func(error)) *Dechunker {
	return &Dechunker{r: r, onError: onError}
}

func (d *Dechunker) fail(err error) error {
	if d.onError != nil {
		d.onError(err)
	}
	return err
}

// Read implements io.Reader over the chunk boundaries of one message.
func (d *Dechunker) Read(p []byte) (int, error) {
	if d.ended {
		d.ended = false
		d.remaining = 0
	}

	var hdr [2]byte
	for d.remaining == 0 {
		if _, err := io.ReadFull(d.r, hdr[:]); err != nil {
			return 0, d.fail(liberr.BoltDisconnect.Error(err))
		}
		d.remaining = binary.BigEndian.Uint16(hdr[:])
		if d.remaining == 0 {
			d.ended = true
			return 0, io.EOF
		}
	}

	n := len(p)
	if uint16(n) > d.remaining {
		n = int(d.remaining)
	}

	read, err := io.ReadFull(d.r, p[:n])
	d.remaining -= uint16(read)
	if err != nil {
		return read, d.fail(liberr.BoltDisconnect.Error(err))
	}

	return read, nil
}
