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

// Package handler implements the per-operation message handler set for
// each bolt minor version. Newer versions are built by embedding an older
// version's handler struct and overriding only the operations whose
// semantics changed, rather than by deep inheritance.
package handler

import (
	"github/sabouaram/boltdriver/auth"
	"github/sabouaram/boltdriver/boltconn"
	liberr "github/sabouaram/boltdriver/errors"
	"github/sabouaram/boltdriver/handshake"
	"github/sabouaram/boltdriver/message"
	"github/sabouaram/boltdriver/packstream"
	"github/sabouaram/boltdriver/value"
)

// Set implements the bolt operations for one protocol minor version.
type Set interface {
	Hello(c *boltconn.Connection, userAgent string, routingCtx map[string]string, tok *auth.Token) error
	// Logon performs the connection's first authentication and, unlike the
	// other operations, drives its own response round trip so callers don't
	// need to know whether this version sends a LOGON message at all. Base's
	// Hello already merges auth into the HELLO dictionary, so Base.Logon is
	// a no-op; Bolt5x1 and later send a real LOGON.
	Logon(c *boltconn.Connection, tok *auth.Token) error
	Reauth(c *boltconn.Connection, tok *auth.Token) error
	Goodbye(c *boltconn.Connection) error
	Reset(c *boltconn.Connection) error
	Run(c *boltconn.Connection, p message.RunParameters, cb boltconn.Callbacks) error
	Pull(c *boltconn.Connection, p message.PullOrDiscardParameters, cb boltconn.Callbacks) error
	Discard(c *boltconn.Connection, p message.PullOrDiscardParameters, cb boltconn.Callbacks) error
	Begin(c *boltconn.Connection, p message.BeginParameters) error
	Commit(c *boltconn.Connection, cb boltconn.Callbacks) error
	Rollback(c *boltconn.Connection, cb boltconn.Callbacks) error
	Route(c *boltconn.Connection, p message.RouteParameters, cb boltconn.Callbacks) error
	Telemetry(c *boltconn.Connection, api message.TelemetryAPI) error
}

func send(c *boltconn.Connection, kind string, w *packstream.Writer, cb boltconn.Callbacks) error {
	return c.Send(kind, w.Bytes(), cb)
}

// metaString reads an optional string field out of a SUCCESS/FAILURE meta
// dictionary, returning "" for anything missing or of the wrong kind.
func metaString(meta map[string]value.Value, key string) string {
	v, ok := meta[key]
	if !ok {
		return ""
	}
	s, err := v.AsString()
	if err != nil {
		return ""
	}
	return s
}

// applyHelloMeta records the server's self-identification and feature
// negotiation into the connection's BoltData once HELLO succeeds.
func applyHelloMeta(c *boltconn.Connection) func(meta map[string]value.Value) {
	return func(meta map[string]value.Value) {
		d := c.Data()
		d.ServerAgent = metaString(meta, "server")
		if bm := metaString(meta, "connection_id"); bm != "" {
			// some servers echo a connection id here; kept for diagnostics
			// via the server agent string rather than a dedicated field.
			_ = bm
		}
	}
}

// onAuthAccepted records the token a HELLO/LOGON exchange authenticated
// with, so later reauth calls know the connection's current identity.
func onAuthAccepted(c *boltconn.Connection, tok *auth.Token) func(map[string]value.Value) {
	return func(map[string]value.Value) {
		c.Data().Auth = tok
	}
}

func chain(fns ...func(map[string]value.Value)) func(map[string]value.Value) {
	return func(meta map[string]value.Value) {
		for _, fn := range fns {
			if fn != nil {
				fn(meta)
			}
		}
	}
}

// Base implements the operation set as it behaves from protocol 5.0: auth
// travels inside HELLO, no bolt_agent dictionary, no SSR, telemetry is a
// no-op, reauth is unsupported.
type Base struct{}

func (Base) Hello(c *boltconn.Connection, userAgent string, routingCtx map[string]string, tok *auth.Token) error {
	w := packstream.NewWriter()
	message.HelloParameters{UserAgent: userAgent, RoutingContext: routingCtx, Auth: tok}.Encode(w)

	return send(c, "HELLO", w, boltconn.Callbacks{
		OnSuccess: chain(applyHelloMeta(c), onAuthAccepted(c, tok)),
	})
}

// Logon is a no-op below 5.1: Hello already merged auth into the HELLO
// dictionary, so there is no separate authentication step to perform.
func (Base) Logon(c *boltconn.Connection, tok *auth.Token) error {
	return nil
}

func (Base) Reauth(c *boltconn.Connection, tok *auth.Token) error {
	return liberr.BoltInvalidState.Error()
}

func (Base) Goodbye(c *boltconn.Connection) error {
	return c.Close()
}

func (Base) Reset(c *boltconn.Connection) error {
	w := packstream.NewWriter()
	w.StructHeader(message.TagReset, 0)
	return send(c, "RESET", w, boltconn.Callbacks{
		OnSuccess: func(map[string]value.Value) { c.ForceState(boltconn.Ready) },
	})
}

func (Base) Run(c *boltconn.Connection, p message.RunParameters, cb boltconn.Callbacks) error {
	w := packstream.NewWriter()
	p.Encode(w)
	c.ForceState(nextRunState(c.State()))
	return send(c, "RUN", w, cb)
}

func (Base) Pull(c *boltconn.Connection, p message.PullOrDiscardParameters, cb boltconn.Callbacks) error {
	w := packstream.NewWriter()
	p.EncodePull(w)
	return send(c, "PULL", w, cb)
}

func (Base) Discard(c *boltconn.Connection, p message.PullOrDiscardParameters, cb boltconn.Callbacks) error {
	w := packstream.NewWriter()
	p.EncodeDiscard(w)
	return send(c, "DISCARD", w, cb)
}

func (Base) Begin(c *boltconn.Connection, p message.BeginParameters) error {
	w := packstream.NewWriter()
	p.Encode(w)
	return send(c, "BEGIN", w, boltconn.Callbacks{
		OnSuccess: func(map[string]value.Value) { c.ForceState(boltconn.TxReady) },
	})
}

func (Base) Commit(c *boltconn.Connection, cb boltconn.Callbacks) error {
	w := packstream.NewWriter()
	w.StructHeader(message.TagCommit, 0)
	return send(c, "COMMIT", w, wrapTxEnd(c, cb))
}

func (Base) Rollback(c *boltconn.Connection, cb boltconn.Callbacks) error {
	w := packstream.NewWriter()
	w.StructHeader(message.TagRollback, 0)
	return send(c, "ROLLBACK", w, wrapTxEnd(c, cb))
}

func (Base) Route(c *boltconn.Connection, p message.RouteParameters, cb boltconn.Callbacks) error {
	w := packstream.NewWriter()
	p.Encode(w)
	return send(c, "ROUTE", w, cb)
}

func (Base) Telemetry(c *boltconn.Connection, api message.TelemetryAPI) error {
	// below 5.4 the server never advertised this message; silently skipping
	// keeps call sites free of per-version checks.
	return nil
}

// wrapTxEnd records the closing bookmark and returns the connection to
// Ready on a successful COMMIT/ROLLBACK, then forwards to the caller's cb.
func wrapTxEnd(c *boltconn.Connection, cb boltconn.Callbacks) boltconn.Callbacks {
	onSuccess := func(meta map[string]value.Value) {
		if bm := metaString(meta, "bookmark"); bm != "" {
			c.Data().LastBookmark = bm
		}
		c.ForceState(boltconn.Ready)
		if cb.OnSuccess != nil {
			cb.OnSuccess(meta)
		}
	}
	out := cb
	out.OnSuccess = onSuccess
	return out
}

// nextRunState implements the RUN transition: ready->streaming,
// tx_ready/tx_streaming -> tx_streaming.
func nextRunState(cur boltconn.State) boltconn.State {
	switch cur {
	case boltconn.Ready:
		return boltconn.Streaming
	case boltconn.TxReady, boltconn.TxStreaming:
		return boltconn.TxStreaming
	default:
		return cur
	}
}

// ForVersion resolves the handler Set for a negotiated version by picking
// the newest family whose minimum minor is <= v.Minor.
func ForVersion(v handshake.Version) Set {
	switch {
	case v.Major > 5 || (v.Major == 5 && v.Minor >= 8):
		return Bolt5x8{Bolt5x4{Bolt5x3{Bolt5x1{}}}}
	case v.Major == 5 && v.Minor >= 4:
		return Bolt5x4{Bolt5x3{Bolt5x1{}}}
	case v.Major == 5 && v.Minor >= 3:
		return Bolt5x3{Bolt5x1{}}
	case v.Major == 5 && v.Minor >= 1:
		return Bolt5x1{}
	default:
		return Base{}
	}
}
