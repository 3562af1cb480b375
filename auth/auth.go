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

// Package auth models the ordered authentication dictionary forwarded to
// the server unchanged by HELLO/LOGON, redacting credential fields only
// when a token is rendered for logging.
package auth

import (
	"github/sabouaram/boltdriver/packstream"
	"github/sabouaram/boltdriver/value"
)

// redactedKeys are never shown verbatim in log output.
var redactedKeys = map[string]struct{}{
	"credentials": {},
}

// Token is an ordered string-keyed dictionary forwarded to the server.
type Token struct {
	order  []string
	values map[string]value.Value
}

// New builds an empty Token.
func New() *Token {
	return &Token{values: make(map[string]value.Value)}
}

// Basic builds the common username/password/realm token.
func Basic(username, password, realm string) *Token {
	t := New()
	t.Set("scheme", value.String("basic"))
	t.Set("principal", value.String(username))
	t.Set("credentials", value.String(password))
	if realm != "" {
		t.Set("realm", value.String(realm))
	}
	return t
}

// Bearer builds a bearer-token auth dictionary (e.g. SSO/OIDC).
func Bearer(token string) *Token {
	t := New()
	t.Set("scheme", value.String("bearer"))
	t.Set("credentials", value.String(token))
	return t
}

// Set adds or overwrites a field, preserving first-insertion order.
func (t *Token) Set(key string, v value.Value) {
	if _, exists := t.values[key]; !exists {
		t.order = append(t.order, key)
	}
	t.values[key] = v
}

// Equal reports whether two tokens carry the same keys and values, used by
// the pool to decide whether a reauth is required on acquire.
func (t *Token) Equal(o *Token) bool {
	if t == nil || o == nil {
		return t == o
	}
	if len(t.order) != len(o.order) {
		return false
	}
	for k, v := range t.values {
		ov, ok := o.values[k]
		if !ok || v.String() != ov.String() {
			return false
		}
	}
	return true
}

// FieldCount returns the number of key/value pairs the token carries, used
// by HELLO's pre-5.1 merge of auth fields directly into the HELLO dictionary.
func (t *Token) FieldCount() int {
	return len(t.order)
}

// Encode writes the token as a RUN/HELLO-shaped dictionary.
func (t *Token) Encode(w *packstream.Writer) {
	w.DictHeader(len(t.order))
	for _, k := range t.order {
		w.String(k)
		_ = t.values[k].Encode(w)
	}
}

// Redacted returns a copy of the token's fields safe to log: every key in
// redactedKeys is replaced with a fixed placeholder.
func (t *Token) Redacted() map[string]string {
	out := make(map[string]string, len(t.order))
	for _, k := range t.order {
		if _, hidden := redactedKeys[k]; hidden {
			out[k] = "***"
			continue
		}
		out[k] = t.values[k].String()
	}
	return out
}
