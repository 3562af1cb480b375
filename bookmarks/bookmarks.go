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

// Package bookmarks is an opaque causal-consistency token set: the driver
// never interprets a bookmark's contents, only unions and forwards them.
package bookmarks

// Set is an unordered collection of opaque bookmark strings, deduplicated.
type Set struct {
	m map[string]struct{}
}

// New builds a Set from zero or more bookmark strings.
func New(values ...string) Set {
	s := Set{m: make(map[string]struct{}, len(values))}
	for _, v := range values {
		if v != "" {
			s.m[v] = struct{}{}
		}
	}
	return s
}

// Union returns a new Set containing every bookmark from s and other.
func (s Set) Union(other Set) Set {
	out := Set{m: make(map[string]struct{}, len(s.m)+len(other.m))}
	for v := range s.m {
		out.m[v] = struct{}{}
	}
	for v := range other.m {
		out.m[v] = struct{}{}
	}
	return out
}

// Add returns a new Set with value included.
func (s Set) Add(value string) Set {
	if value == "" {
		return s
	}
	return s.Union(New(value))
}

// Empty reports whether the set carries no bookmarks.
func (s Set) Empty() bool { return len(s.m) == 0 }

// Slice renders the set as a slice, in no particular order, for encoding
// into a RUN/BEGIN/ROUTE "bookmarks" field.
func (s Set) Slice() []string {
	out := make([]string, 0, len(s.m))
	for v := range s.m {
		out = append(out, v)
	}
	return out
}
