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
	"github/sabouaram/boltdriver/message"
	"github/sabouaram/boltdriver/packstream"
	"github/sabouaram/boltdriver/value"
)

// Bolt5x8 requests server-side routing (SSR) at HELLO time and records
// whether the server accepted it.
type Bolt5x8 struct{ Bolt5x4 }

func (h Bolt5x8) Hello(c *boltconn.Connection, userAgent string, routingCtx map[string]string, tok *auth.Token) error {
	w := packstream.NewWriter()
	agent := BoltAgent
	message.HelloParameters{
		UserAgent:      userAgent,
		RoutingContext: routingCtx,
		BoltAgent:      &agent,
		RequestSSR:     true,
	}.Encode(w)

	return send(c, "HELLO", w, boltconn.Callbacks{
		OnSuccess: chain(applyHelloMeta(c), func(meta map[string]value.Value) {
			if v, ok := meta["ssr_enabled"]; ok {
				if b, err := v.AsBool(); err == nil {
					c.Data().Features.SSR = b
				}
			}
		}),
	})
}
