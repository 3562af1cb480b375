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

package errors

import (
	"fmt"
	"strings"
)

// ServerError is the code/message (and, from 5.7, diagnostic_record) carried
// by a FAILURE response. Preserving it instead of collapsing every FAILURE
// into a generic callback error lets callers branch on the code's
// error-class prefix, e.g. to decide whether a retry can help.
type ServerError struct {
	Code             string
	Message          string
	DiagnosticRecord map[string]string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Retryable reports whether this code's class is one the client should
// retry on its own: transient server-side conditions, a follower rejecting
// a write because it isn't the leader, and authorization that expired
// mid-session (a fresh LOGON recovers it without user input).
func (e *ServerError) Retryable() bool {
	switch {
	case strings.HasPrefix(e.Code, "Neo.TransientError."):
		return true
	case e.Code == "Neo.ClientError.Cluster.NotALeader",
		e.Code == "Neo.ClientError.Cluster.NoLeader",
		e.Code == "Neo.ClientError.Transaction.Terminated",
		e.Code == "Neo.ClientError.Transaction.LockClientStopped",
		e.Code == "Neo.ClientError.Security.AuthorizationExpired":
		return true
	default:
		return false
	}
}
