/*
MIT License

Copyright (c) 2019 Nicolas JUHEL

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

// Package context carries a driver's root context plus a small key/value
// map of request-scoped values, the same "context with a side map" idiom
// the teacher uses to thread cancellation and ad-hoc values through a
// helper without adding a parameter to every method.
package context

import "context"

// New builds a Config rooted at ctx (context.Background if nil), with an
// empty value map.
func New[T comparable](ctx context.Context) Config[T] {
	if ctx == nil {
		ctx = context.Background()
	}
	return NewConfig[T](func() context.Context { return ctx })
}

// IsolateParent derives a context that carries parent's values but has no
// deadline and is not canceled when parent is canceled or times out: a
// driver uses this to root its internal operations so that canceling the
// caller's context does not tear down the driver.
func IsolateParent(parent context.Context) context.Context {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithoutCancel(parent)
}
