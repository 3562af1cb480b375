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
)

// BoltAgent identifies this driver to the server; filled in once at process
// start, it is the same value for every 5.3+ HELLO this process sends.
var BoltAgent = message.BoltAgent{
	Product:  "boltdriver/1.0",
	Language: "Go",
}

// Bolt5x3 adds the bolt_agent identification dictionary to HELLO.
type Bolt5x3 struct{ Bolt5x1 }

func (h Bolt5x3) Hello(c *boltconn.Connection, userAgent string, routingCtx map[string]string, tok *auth.Token) error {
	w := packstream.NewWriter()
	agent := BoltAgent
	message.HelloParameters{
		UserAgent:      userAgent,
		RoutingContext: routingCtx,
		BoltAgent:      &agent,
	}.Encode(w)
	return send(c, "HELLO", w, boltconn.Callbacks{OnSuccess: applyHelloMeta(c)})
}
