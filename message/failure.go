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

package message

import (
	liberr "github/sabouaram/boltdriver/errors"
	"github/sabouaram/boltdriver/value"
)

// ParseFailure extracts the code/message/diagnostic_record fields of a
// FAILURE response's meta dictionary into a *liberr.ServerError, leaving
// whatever the server omitted as zero values rather than failing.
func ParseFailure(meta map[string]value.Value) *liberr.ServerError {
	se := &liberr.ServerError{}
	if v, ok := meta["code"]; ok {
		se.Code, _ = v.AsString()
	}
	if v, ok := meta["message"]; ok {
		se.Message, _ = v.AsString()
	}
	if v, ok := meta["diagnostic_record"]; ok {
		if d, err := v.AsDict(); err == nil {
			se.DiagnosticRecord = make(map[string]string, len(d))
			for k, dv := range d {
				se.DiagnosticRecord[k] = dv.String()
			}
		}
	}
	return se
}
