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

package driver

import (
	"context"

	"github/sabouaram/boltdriver/address"
	"github/sabouaram/boltdriver/boltconn"
	"github/sabouaram/boltdriver/boltconn/handler"
	"github/sabouaram/boltdriver/bookmarks"
	liberr "github/sabouaram/boltdriver/errors"
	"github/sabouaram/boltdriver/message"
	"github/sabouaram/boltdriver/result"
	"github/sabouaram/boltdriver/retry"
	"github/sabouaram/boltdriver/value"
)

// SessionConfig scopes one logical session: the database it targets, the
// user it impersonates, the bookmarks it must be causally consistent with,
// and its fetch size. The access mode is not part of it: it comes from
// ExecuteRead or ExecuteWrite.
type SessionConfig struct {
	Database         string
	ImpersonatedUser string
	Bookmarks        bookmarks.Set
	FetchSize        int64
}

// Session is a short-lived handle a caller uses to run one or more
// transactions against a consistent view of the bookmarks it accumulates.
type Session struct {
	d    *Driver
	cfg  SessionConfig
	last bookmarks.Set
}

// NewSession opens a Session. Sessions are cheap: they hold no connection
// until a transaction actually runs.
func (d *Driver) NewSession(cfg SessionConfig) *Session {
	if cfg.FetchSize <= 0 {
		cfg.FetchSize = d.cfg.FetchSize
	}
	return &Session{d: d, cfg: cfg, last: cfg.Bookmarks}
}

// LastBookmarks returns the bookmarks accumulated by every transaction this
// session has committed so far, for handing to the next session that must
// causally chain after it.
func (s *Session) LastBookmarks() bookmarks.Set { return s.last }

// Transaction is the per-transaction handle passed to TransactionWork.
type Transaction struct {
	conn *boltconn.Connection
	h    handler.Set
}

// Run issues one query inside the transaction and returns its lazily
// streamed result.
func (t *Transaction) Run(ctx context.Context, query string, params map[string]value.Value, fetchSize int64) (*result.Stream, error) {
	return result.New(ctx, t.conn, t.h, query, params, message.RunExtra{}, fetchSize)
}

// TransactionWork is the unit of work retried by ExecuteRead/ExecuteWrite;
// it must be idempotent, since the driver may invoke it more than once.
type TransactionWork func(tx *Transaction) (any, error)

// ExecuteRead runs work inside an auto-committed read transaction, retried
// per the driver's retry policy, on a server selected from the reader side
// of the routing table (or the single configured address when unrouted).
func (s *Session) ExecuteRead(ctx context.Context, work TransactionWork) (any, error) {
	return s.execute(ctx, message.ModeRead, work)
}

// ExecuteWrite runs work inside an auto-committed write transaction on a
// writer-side server, retried per the driver's retry policy.
func (s *Session) ExecuteWrite(ctx context.Context, work TransactionWork) (any, error) {
	return s.execute(ctx, message.ModeWrite, work)
}

func (s *Session) execute(ctx context.Context, mode message.AccessMode, work TransactionWork) (any, error) {
	var out any
	err := retry.Run(ctx, s.d.retryP, func(ctx context.Context) error {
		addr, err := s.d.targetAddress(ctx, mode, s.cfg.Database, s.cfg.ImpersonatedUser, s.last.Slice())
		if err != nil {
			return err
		}

		p := s.d.poolFor(addr)
		acquireCtx, cancel := context.WithTimeout(ctx, s.d.cfg.ConnectionAcquisition.Time())
		conn, h, err := p.Acquire(acquireCtx)
		cancel()
		if err != nil {
			return err
		}
		committed := false
		defer func() {
			if !committed {
				p.Release(conn, h)
			}
		}()

		extra := message.RunExtra{
			Bookmarks:        s.last.Slice(),
			Mode:             mode,
			Database:         s.cfg.Database,
			ImpersonatedUser: s.cfg.ImpersonatedUser,
		}
		if err := h.Begin(conn, message.BeginParameters{Extra: extra}); err != nil {
			return err
		}
		if err := conn.ReceiveOne(); err != nil {
			return err
		}

		tx := &Transaction{conn: conn, h: h}
		workResult, workErr := work(tx)
		if workErr != nil {
			s.rollback(conn, h)
			p.Release(conn, h)
			committed = true
			return workErr
		}

		bm, err := s.commit(conn, h)
		p.Release(conn, h)
		committed = true
		if err != nil {
			return err
		}
		if bm != "" {
			s.last = s.last.Add(bm)
		}
		out = workResult
		return nil
	})
	return out, err
}

func (s *Session) commit(conn *boltconn.Connection, h handler.Set) (string, error) {
	var bm string
	done := false
	var cbErr error
	err := h.Commit(conn, boltconn.Callbacks{
		OnSuccess: func(meta map[string]value.Value) {
			if b, ok := meta["bookmark"]; ok {
				bm, _ = b.AsString()
			}
			done = true
		},
		OnFailure: func(meta map[string]value.Value) {
			cbErr = liberr.BoltUserCallback.Error(message.ParseFailure(meta))
			done = true
		},
	})
	if err != nil {
		return "", err
	}
	for !done {
		if err := conn.ReceiveOne(); err != nil {
			return "", err
		}
	}
	return bm, cbErr
}

func (s *Session) rollback(conn *boltconn.Connection, h handler.Set) {
	done := false
	_ = h.Rollback(conn, boltconn.Callbacks{
		OnSuccess: func(map[string]value.Value) { done = true },
		OnFailure: func(map[string]value.Value) { done = true },
	})
	for !done {
		if conn.ReceiveOne() != nil {
			return
		}
	}
}

// targetAddress resolves the server a transaction of the given access mode
// should run against: the routing table's writer or reader list when the
// driver is routed, otherwise the single configured address.
func (d *Driver) targetAddress(ctx context.Context, mode message.AccessMode, db, impersonatedUser string, bms []string) (address.Address, error) {
	if d.routing == nil {
		return d.uri.Address, nil
	}

	table, ok := d.routing.Get(db)
	if !ok {
		var err error
		table, err = d.routing.Refresh(ctx, db, impersonatedUser, bms)
		if err != nil {
			return address.Address{}, err
		}
	}

	candidates := table.Readers
	if mode == message.ModeWrite {
		candidates = table.Writers
	}
	if len(candidates) == 0 {
		return address.Address{}, liberr.RoutingNoWriters.Error()
	}
	return candidates[0], nil
}
