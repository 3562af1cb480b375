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

package boltconn

import (
	"github/sabouaram/boltdriver/value"
)

// Callbacks is the set of hooks a response expectation dispatches to as the
// server replies arrive. Any hook left nil is simply skipped.
type Callbacks struct {
	OnSuccess func(meta map[string]value.Value)
	OnFailure func(meta map[string]value.Value)
	OnRecord  func(fields []value.Value)
	OnIgnored func()
}

// expectation is one pending "what is the next server message about" slot.
type expectation struct {
	kind string // a short label for diagnostics ("HELLO", "RUN", "PULL", ...)
	cb   Callbacks
}

// responseQueue is the FIFO of pending expectations; it is the single
// source of truth correlating inbound SUCCESS/RECORD/IGNORED/FAILURE
// messages to the request that caused them.
type responseQueue struct {
	q []expectation
}

func (r *responseQueue) push(kind string, cb Callbacks) {
	r.q = append(r.q, expectation{kind: kind, cb: cb})
}

func (r *responseQueue) empty() bool { return len(r.q) == 0 }

// head panics if the queue is empty: popping with nothing pending is an
// invariant violation in the caller, not a recoverable error.
func (r *responseQueue) head() expectation {
	if len(r.q) == 0 {
		panic("boltconn: response expectation queue is empty")
	}
	return r.q[0]
}

func (r *responseQueue) pop() {
	if len(r.q) == 0 {
		panic("boltconn: pop on empty response expectation queue")
	}
	r.q = r.q[1:]
}
