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

// Package pool is the per-address bounded connection pool: it borrows,
// validates, reauthenticates, and retires connections while keeping
// pooled + reserved + borrowed within one configured capacity.
package pool

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github/sabouaram/boltdriver/address"
	"github/sabouaram/boltdriver/atomic"
	"github/sabouaram/boltdriver/auth"
	"github/sabouaram/boltdriver/boltconn"
	"github/sabouaram/boltdriver/boltconn/handler"
	liberr "github/sabouaram/boltdriver/errors"
	"github/sabouaram/boltdriver/metrics"
)

// Dialer opens a new, handshaken (but not yet authenticated) connection to
// addr; the pool calls HELLO/LOGON itself once dialing succeeds.
type Dialer func(ctx context.Context, addr address.Address) (*boltconn.Connection, error)

// Options configures a Pool.
type Options struct {
	MaxSize        int
	MaxLifetime    time.Duration // 0 disables the lifetime check
	MaxIdleTime    time.Duration // 0 disables the idle/liveness check
	// LivenessCheckTimeout gates a RESET round-trip on acquire for a
	// connection idle past this threshold but not yet past MaxIdleTime,
	// catching a peer that dropped the socket without the client noticing.
	// 0 disables the check.
	LivenessCheckTimeout time.Duration
	Dial           Dialer
	UserAgent      string
	Auth           *auth.Token
	RoutingContext map[string]string

	// Metrics, if non-nil, receives pool gauge/counter updates labeled with
	// this pool's server address. Nil is a valid "don't collect" choice.
	Metrics *metrics.Collectors
}

// entry is one pooled connection plus the handler set it was HELLO'd with.
type entry struct {
	conn *boltconn.Connection
	h    handler.Set
}

// Pool is a bounded set of connections to a single server address.
type Pool struct {
	addr address.Address
	opt  Options

	mu        sync.Mutex
	idle      []entry
	reserved  int // acquire() calls in flight that haven't dialed/returned yet
	borrowed  int
	closed    bool
	lastSSR   atomic.Value[bool]
}

// New builds a Pool bound to one server address. No connections are dialed
// until the first Acquire.
func New(addr address.Address, opt Options) *Pool {
	return &Pool{addr: addr, opt: opt}
}

// reportInUse publishes the current borrowed count to Options.Metrics, if
// any was configured.
func (p *Pool) reportInUse() {
	if p.opt.Metrics == nil {
		return
	}
	p.mu.Lock()
	n := p.borrowed
	p.mu.Unlock()
	p.opt.Metrics.PoolConnectionsInUse.WithLabelValues(p.addr.String()).Set(float64(n))
}

// reportClosed increments the closed-connections counter with a reason
// label ("stale", "reset_failed", "pool_closed", ...).
func (p *Pool) reportClosed(reason string) {
	if p.opt.Metrics == nil {
		return
	}
	p.opt.Metrics.ConnectionsClosedTotal.WithLabelValues(p.addr.String(), reason).Inc()
}

// reserve accounts for one in-flight acquisition against capacity before
// the pool does any blocking work, so concurrent acquirers cannot all
// observe capacity as available and collectively overshoot it.
func (p *Pool) reserve() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	if len(p.idle)+p.reserved+p.borrowed >= p.opt.MaxSize {
		return false
	}
	p.reserved++
	return true
}

func (p *Pool) unreserve() {
	p.mu.Lock()
	p.reserved--
	p.mu.Unlock()
}

// Acquire returns a usable connection: an idle one that passes liveness and
// lifetime checks, or a freshly dialed and authenticated one. It blocks
// until ctx is done if the pool is at capacity and nothing idle qualifies.
func (p *Pool) Acquire(ctx context.Context) (*boltconn.Connection, handler.Set, error) {
	for {
		if c, h, ok := p.takeIdle(); ok {
			p.reportInUse()
			return c, h, nil
		}

		if p.reserve() {
			c, h, err := p.dialAndAuth(ctx)
			if err != nil {
				p.unreserve()
				return nil, nil, err
			}
			p.mu.Lock()
			p.reserved--
			p.borrowed++
			p.mu.Unlock()
			p.reportInUse()
			return c, h, nil
		}

		select {
		case <-ctx.Done():
			return nil, nil, liberr.PoolAcquireTimeout.Error(ctx.Err())
		case <-time.After(5 * time.Millisecond):
			// capacity may have freed up; loop and re-check.
		}
	}
}

// takeIdle pops one idle entry that still passes its lifetime/liveness
// checks, discarding (and closing) any that don't until it finds one or
// the idle list is empty.
func (p *Pool) takeIdle() (*boltconn.Connection, handler.Set, bool) {
	for {
		p.mu.Lock()
		if len(p.idle) == 0 {
			p.mu.Unlock()
			return nil, nil, false
		}
		e := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		wantAuth := p.opt.Auth
		liveness := p.opt.LivenessCheckTimeout
		p.mu.Unlock()

		if !p.stillGood(e.conn) {
			_ = e.conn.Close()
			p.reportClosed("stale")
			continue
		}

		if !wantAuth.Equal(e.conn.Data().Auth) {
			if err := e.h.Reauth(e.conn, wantAuth); err != nil {
				// protocol doesn't support reauth in place (pre-5.1) or the
				// round trip itself failed; either way the connection can't
				// be trusted to carry the right identity.
				_ = e.conn.Close()
				p.reportClosed("reauth_failed")
				continue
			}
		}

		if e.conn.State().NeedsReset() {
			if err := p.reset(e.conn, e.h); err != nil {
				_ = e.conn.Close()
				p.reportClosed("reset_failed")
				continue
			}
		} else if liveness > 0 && time.Since(e.conn.LastUsed()) > liveness {
			if err := p.reset(e.conn, e.h); err != nil {
				_ = e.conn.Close()
				p.reportClosed("liveness_failed")
				continue
			}
		}

		p.mu.Lock()
		p.borrowed++
		p.mu.Unlock()
		return e.conn, e.h, true
	}
}

func (p *Pool) stillGood(c *boltconn.Connection) bool {
	if c.State() == boltconn.Closed || c.State() == boltconn.Failed {
		return false
	}
	if p.opt.MaxLifetime > 0 && time.Since(c.CreatedAt()) > p.opt.MaxLifetime {
		return false
	}
	if p.opt.MaxIdleTime > 0 && time.Since(c.LastUsed()) > p.opt.MaxIdleTime {
		return false
	}
	return true
}

func (p *Pool) reset(c *boltconn.Connection, h handler.Set) error {
	done := false
	var failed error
	err := h.Reset(c)
	if err != nil {
		return err
	}
	for !done {
		if err := c.ReceiveOne(); err != nil {
			return err
		}
		if c.State() == boltconn.Ready {
			done = true
		}
	}
	return failed
}

func (p *Pool) dialAndAuth(ctx context.Context) (*boltconn.Connection, handler.Set, error) {
	c, err := p.opt.Dial(ctx, p.addr)
	if err != nil {
		return nil, nil, err
	}

	h := handler.ForVersion(c.Version())
	if err := h.Hello(c, p.opt.UserAgent, p.opt.RoutingContext, p.opt.Auth); err != nil {
		_ = c.Close()
		return nil, nil, err
	}
	if err := c.ReceiveOne(); err != nil {
		_ = c.Close()
		return nil, nil, err
	}
	if c.State() == boltconn.Failed {
		_ = c.Close()
		return nil, nil, liberr.BoltInvalidState.Error()
	}

	if err := h.Logon(c, p.opt.Auth); err != nil {
		_ = c.Close()
		return nil, nil, err
	}

	if ssr, ok := c.Data().Features.SSR, true; ok {
		p.lastSSR.Store(ssr)
	}

	if p.opt.Metrics != nil {
		p.opt.Metrics.ConnectionsOpenedTotal.WithLabelValues(p.addr.String()).Inc()
		p.opt.Metrics.PoolConnectionsOpen.WithLabelValues(p.addr.String()).Inc()
	}

	return c, h, nil
}

// Release returns a connection to the idle list, or closes it outright if
// the pool has been closed or the connection is no longer usable.
func (p *Pool) Release(c *boltconn.Connection, h handler.Set) {
	p.mu.Lock()
	p.borrowed--
	if p.closed || c.State() == boltconn.Closed || c.State() == boltconn.Failed {
		p.mu.Unlock()
		_ = c.Close()
		p.reportClosed("dirty")
		p.reportInUse()
		return
	}
	p.idle = append(p.idle, entry{conn: c, h: h})
	p.mu.Unlock()
	p.reportInUse()
}

// Reauth logs every idle connection off and back on with a new token, and
// marks borrowed connections to be reauthenticated on their next Release;
// used when the application rotates credentials without restarting.
func (p *Pool) Reauth(newToken *auth.Token) error {
	p.mu.Lock()
	p.opt.Auth = newToken
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	var errs *multierror.Error
	for _, e := range idle {
		if err := e.h.Reauth(e.conn, newToken); err != nil {
			errs = multierror.Append(errs, err)
			_ = e.conn.Close()
			continue
		}
		p.mu.Lock()
		p.idle = append(p.idle, e)
		p.mu.Unlock()
	}
	if errs != nil {
		return errs.ErrorOrNil()
	}
	return nil
}

// InUse reports the number of connections currently borrowed.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.borrowed
}

// Close closes every idle connection and marks the pool closed so further
// Acquire/Release calls fail or discard outright.
func (p *Pool) Close() error {
	p.mu.Lock()
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	var errs *multierror.Error
	for _, e := range idle {
		if err := e.conn.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
		p.reportClosed("pool_closed")
		if p.opt.Metrics != nil {
			p.opt.Metrics.PoolConnectionsOpen.WithLabelValues(p.addr.String()).Dec()
		}
	}
	if errs != nil {
		return errs.ErrorOrNil()
	}
	return nil
}
