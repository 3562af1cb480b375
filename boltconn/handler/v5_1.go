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

package handler

import (
	"github/sabouaram/boltdriver/auth"
	"github/sabouaram/boltdriver/boltconn"
	liberr "github/sabouaram/boltdriver/errors"
	"github/sabouaram/boltdriver/message"
	"github/sabouaram/boltdriver/packstream"
)

// Bolt5x1 moves auth out of HELLO and into LOGON, and adds LOGOFF so a
// connection can be reauthenticated without being discarded.
type Bolt5x1 struct{ Base }

func (Bolt5x1) Hello(c *boltconn.Connection, userAgent string, routingCtx map[string]string, tok *auth.Token) error {
	w := packstream.NewWriter()
	message.HelloParameters{UserAgent: userAgent, RoutingContext: routingCtx}.Encode(w)
	return send(c, "HELLO", w, boltconn.Callbacks{OnSuccess: applyHelloMeta(c)})
}

func (h Bolt5x1) logon(c *boltconn.Connection, tok *auth.Token) error {
	w := packstream.NewWriter()
	w.StructHeader(message.TagLogon, 1)
	tok.Encode(w)
	return send(c, "LOGON", w, boltconn.Callbacks{OnSuccess: onAuthAccepted(c, tok)})
}

func (h Bolt5x1) logoff(c *boltconn.Connection) error {
	w := packstream.NewWriter()
	w.StructHeader(message.TagLogoff, 0)
	return send(c, "LOGOFF", w, boltconn.Callbacks{})
}

// Reauth logs the current identity off and the new one on, in place, without
// tearing down the socket. Like Logon, it drives both response round trips
// itself.
func (h Bolt5x1) Reauth(c *boltconn.Connection, tok *auth.Token) error {
	if err := h.logoff(c); err != nil {
		return err
	}
	if err := c.ReceiveOne(); err != nil {
		return err
	}
	if c.State() == boltconn.Failed {
		return liberr.BoltInvalidState.Error()
	}
	return h.Logon(c, tok)
}

// Logon is exposed directly so a freshly dialed connection's first
// authentication (as opposed to a later reauth) can reuse the same wire
// encoding without going through Hello+merged-auth. Unlike the other
// operations, it drives its own response round trip so callers don't need
// to know whether a given version sends a LOGON message at all.
func (h Bolt5x1) Logon(c *boltconn.Connection, tok *auth.Token) error {
	if err := h.logon(c, tok); err != nil {
		return err
	}
	if err := c.ReceiveOne(); err != nil {
		return err
	}
	if c.State() == boltconn.Failed {
		return liberr.BoltInvalidState.Error()
	}
	return nil
}
