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

// Package result is the lazy, pull-based cursor over a RUN's output: records
// are fetched from the server in fetch-size batches as the caller advances,
// never all at once.
package result

import (
	"context"

	"github/sabouaram/boltdriver/boltconn"
	"github/sabouaram/boltdriver/boltconn/handler"
	liberr "github/sabouaram/boltdriver/errors"
	"github/sabouaram/boltdriver/message"
	"github/sabouaram/boltdriver/value"
)

// Summary is the run's closing metadata, populated once the stream has been
// fully consumed or discarded.
type Summary struct {
	Database            string
	QueryType            string
	Counters             map[string]value.Value
	ResultAvailableAfter int64
	ResultConsumedAfter  int64
	Bookmark             string
	Notifications        []value.Value
	Plan                  value.Value
	Profile               value.Value
}

// Stream is one RUN's lazily-fetched result.
type Stream struct {
	conn    *boltconn.Connection
	handler handler.Set

	qid       int64
	fetchSize int64
	keys      []string

	pending []value.Value
	buf     [][]value.Value

	exhausted bool
	consumed  bool
	discarded bool
	err       error

	summary Summary
}

// New issues RUN and reads its SUCCESS (field keys), returning a Stream
// positioned before the first record.
func New(ctx context.Context, conn *boltconn.Connection, h handler.Set, query string, params map[string]value.Value, extra message.RunExtra, fetchSize int64) (*Stream, error) {
	s := &Stream{conn: conn, handler: h, fetchSize: fetchSize}

	var runErr error
	err := h.Run(conn, message.RunParameters{Query: query, Parameters: params, Extra: extra}, boltconn.Callbacks{
		OnSuccess: func(meta map[string]value.Value) {
			s.keys = stringList(meta["fields"])
			if q, ok := meta["qid"]; ok {
				if n, e := q.AsInt(); e == nil {
					s.qid = n
				}
			}
		},
		OnFailure: func(meta map[string]value.Value) {
			runErr = liberr.BoltUserCallback.Error(message.ParseFailure(meta))
		},
	})
	if err != nil {
		return nil, err
	}
	if err := conn.ReceiveOne(); err != nil {
		return nil, err
	}
	if runErr != nil {
		return nil, runErr
	}
	return s, nil
}

// Keys returns the field names for every record in this result.
func (s *Stream) Keys() []string { return s.keys }

// Next advances the cursor, fetching another batch from the server if the
// current one is exhausted. It returns false once the stream has no more
// records or has failed; callers must check Err afterward.
func (s *Stream) Next(ctx context.Context) bool {
	if s.err != nil || s.consumed || s.discarded {
		return false
	}
	for len(s.buf) == 0 {
		if s.exhausted {
			s.consumed = true
			return false
		}
		if err := s.pull(); err != nil {
			s.err = err
			return false
		}
	}
	s.pending = s.buf[0]
	s.buf = s.buf[1:]
	return true
}

// Record returns the fields fetched by the most recent successful Next.
func (s *Stream) Record() []value.Value { return s.pending }

// Err returns the error, if any, that stopped iteration.
func (s *Stream) Err() error { return s.err }

// pull issues one PULL for fetchSize records and drains responses until the
// PULL's own terminal SUCCESS (has_more true or false).
func (s *Stream) pull() error {
	done := false
	err := s.handler.Pull(s.conn, message.PullOrDiscardParameters{N: s.fetchSize, QID: s.qid}, boltconn.Callbacks{
		OnRecord: func(fields []value.Value) {
			s.buf = append(s.buf, fields)
		},
		OnSuccess: func(meta map[string]value.Value) {
			hasMore := metaBool(meta, "has_more")
			if !hasMore {
				s.exhausted = true
				s.applySummary(meta)
			}
			done = true
		},
		OnFailure: func(meta map[string]value.Value) {
			s.exhausted = true
			done = true
			s.err = liberr.BoltUserCallback.Error(message.ParseFailure(meta))
		},
	})
	if err != nil {
		return err
	}
	for !done {
		if err := s.conn.ReceiveOne(); err != nil {
			return err
		}
	}
	return s.err
}

// Consume drains every remaining record, discarding them, and returns the
// final Summary.
func (s *Stream) Consume(ctx context.Context) (Summary, error) {
	for s.Next(ctx) {
	}
	if s.err != nil {
		return Summary{}, s.err
	}
	return s.summary, nil
}

// Discard tells the server to stop streaming this result without sending
// the remaining records over the wire.
func (s *Stream) Discard(ctx context.Context) error {
	if s.exhausted || s.discarded {
		s.discarded = true
		return nil
	}
	done := false
	err := s.handler.Discard(s.conn, message.PullOrDiscardParameters{N: -1, QID: s.qid}, boltconn.Callbacks{
		OnSuccess: func(meta map[string]value.Value) {
			s.applySummary(meta)
			done = true
		},
		OnFailure: func(map[string]value.Value) { done = true },
	})
	if err != nil {
		return err
	}
	for !done {
		if err := s.conn.ReceiveOne(); err != nil {
			return err
		}
	}
	s.discarded = true
	return nil
}

func (s *Stream) applySummary(meta map[string]value.Value) {
	s.summary.Database = stringOf(meta["db"])
	s.summary.QueryType = stringOf(meta["type"])
	s.summary.Bookmark = stringOf(meta["bookmark"])
	if t, ok := meta["t_first"]; ok {
		if n, err := t.AsInt(); err == nil {
			s.summary.ResultAvailableAfter = n
		}
	}
	if t, ok := meta["t_last"]; ok {
		if n, err := t.AsInt(); err == nil {
			s.summary.ResultConsumedAfter = n
		}
	}
	if c, ok := meta["stats"]; ok {
		if d, err := c.AsDict(); err == nil {
			s.summary.Counters = d
		}
	}
	if n, ok := meta["notifications"]; ok {
		if l, err := n.AsList(); err == nil {
			s.summary.Notifications = l
		}
	}
	if p, ok := meta["plan"]; ok {
		s.summary.Plan = p
	}
	if p, ok := meta["profile"]; ok {
		s.summary.Profile = p
	}
}

func metaBool(meta map[string]value.Value, key string) bool {
	v, ok := meta[key]
	if !ok {
		return false
	}
	b, err := v.AsBool()
	if err != nil {
		return false
	}
	return b
}

func stringOf(v value.Value) string {
	s, err := v.AsString()
	if err != nil {
		return ""
	}
	return s
}

func stringList(v value.Value) []string {
	l, err := v.AsList()
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(l))
	for _, e := range l {
		if s, err := e.AsString(); err == nil {
			out = append(out, s)
		}
	}
	return out
}
