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

// Package boltconn drives a single TCP connection's bolt state machine:
// message framing, response correlation, and the state transitions implied
// by each response.
package boltconn

// State is one node of the per-connection bolt state machine.
type State uint8

const (
	Connected State = iota
	Ready
	Streaming
	TxReady
	TxStreaming
	Failed
	Closed
)

func (s State) String() string {
	switch s {
	case Connected:
		return "connected"
	case Ready:
		return "ready"
	case Streaming:
		return "streaming"
	case TxReady:
		return "tx_ready"
	case TxStreaming:
		return "tx_streaming"
	case Failed:
		return "failed"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// NeedsReset reports whether a connection in this state must round-trip a
// RESET before it can be reused from the pool.
func (s State) NeedsReset() bool {
	switch s {
	case Failed, Streaming, TxStreaming:
		return true
	default:
		return false
	}
}
