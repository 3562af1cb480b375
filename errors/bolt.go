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

// Bolt protocol engine error codes. One registered message function per
// package range, following the same iota-from-MinPkgXxx idiom as the rest
// of this package.
const (
	BoltDisconnect CodeError = MinPkgBolt + iota
	BoltDisconnectDuringCommit
	BoltProtocolViolation
	BoltInvalidState
	BoltTimeout
	BoltUserCallback
)

const (
	PackstreamMalformedMarker CodeError = MinPkgPackstream + iota
	PackstreamTruncated
	PackstreamUnknownStructTag
	PackstreamBrokenValue
	PackstreamVarintOverflow
	PackstreamVarintIncomplete
)

const (
	HandshakeNoMatch CodeError = MinPkgHandshake + iota
	HandshakeLooksLikeHTTP
	HandshakeManifestRejected
)

const (
	PoolAcquireTimeout CodeError = MinPkgPool + iota
	PoolCapacityExceeded
	PoolClosed
)

const (
	RoutingNoRouters CodeError = MinPkgRouting + iota
	RoutingNoWriters
	RoutingRefreshFailed
)

const (
	RetryIncompleteCommit CodeError = MinPkgRetry + iota
	RetryExhausted
	RetryNonRetryable
)

const (
	ResultAlreadyConsumed CodeError = MinPkgResult + iota
	ResultDiscarded
)

const (
	DriverConfigInvalid CodeError = MinPkgDriverConfig + iota
)

const (
	AuthInvalidToken CodeError = MinPkgAuth + iota
)

const (
	ValueUnrepresentable CodeError = MinPkgValue + iota
)

func init() {
	RegisterIdFctMessage(MinPkgBolt, boltMessage)
	RegisterIdFctMessage(MinPkgPackstream, packstreamMessage)
	RegisterIdFctMessage(MinPkgHandshake, handshakeMessage)
	RegisterIdFctMessage(MinPkgPool, poolMessage)
	RegisterIdFctMessage(MinPkgRouting, routingMessage)
	RegisterIdFctMessage(MinPkgRetry, retryMessage)
	RegisterIdFctMessage(MinPkgResult, resultMessage)
	RegisterIdFctMessage(MinPkgDriverConfig, driverConfigMessage)
	RegisterIdFctMessage(MinPkgAuth, authMessage)
	RegisterIdFctMessage(MinPkgValue, valueMessage)
}

func boltMessage(code CodeError) string {
	switch code {
	case BoltDisconnect:
		return "connection to server lost"
	case BoltDisconnectDuringCommit:
		return "connection to server lost while a commit was in flight; outcome is unknown"
	case BoltProtocolViolation:
		return "server violated the bolt protocol"
	case BoltInvalidState:
		return "operation not valid in the connection's current state"
	case BoltTimeout:
		return "operation exceeded its deadline"
	case BoltUserCallback:
		return "a user-supplied callback returned an error"
	default:
		return UnknownMessage
	}
}

func packstreamMessage(code CodeError) string {
	switch code {
	case PackstreamMalformedMarker:
		return "malformed packstream marker"
	case PackstreamTruncated:
		return "truncated packstream input"
	case PackstreamUnknownStructTag:
		return "unknown packstream structure tag"
	case PackstreamBrokenValue:
		return "value decoded structurally but failed semantic validation"
	case PackstreamVarintOverflow:
		return "varint overflow"
	case PackstreamVarintIncomplete:
		return "truncated varint sequence"
	default:
		return UnknownMessage
	}
}

func handshakeMessage(code CodeError) string {
	switch code {
	case HandshakeNoMatch:
		return "server rejected every proposed protocol version"
	case HandshakeLooksLikeHTTP:
		return "server appears to speak HTTP, not bolt"
	case HandshakeManifestRejected:
		return "server version manifest contained no supported version"
	default:
		return UnknownMessage
	}
}

func poolMessage(code CodeError) string {
	switch code {
	case PoolAcquireTimeout:
		return "timed out waiting for a pooled connection"
	case PoolCapacityExceeded:
		return "connection pool is at capacity"
	case PoolClosed:
		return "connection pool is closed"
	default:
		return UnknownMessage
	}
}

func routingMessage(code CodeError) string {
	switch code {
	case RoutingNoRouters:
		return "routing table refresh returned no routers"
	case RoutingNoWriters:
		return "routing table has no writers available"
	case RoutingRefreshFailed:
		return "failed to refresh routing table from any candidate router"
	default:
		return UnknownMessage
	}
}

func retryMessage(code CodeError) string {
	switch code {
	case RetryIncompleteCommit:
		return "commit outcome is unknown; not retried"
	case RetryExhausted:
		return "retry budget exhausted"
	case RetryNonRetryable:
		return "error classified as non-retryable"
	default:
		return UnknownMessage
	}
}

func resultMessage(code CodeError) string {
	switch code {
	case ResultAlreadyConsumed:
		return "result stream already fully consumed"
	case ResultDiscarded:
		return "result stream was discarded before being consumed"
	default:
		return UnknownMessage
	}
}

func driverConfigMessage(code CodeError) string {
	switch code {
	case DriverConfigInvalid:
		return "invalid driver configuration"
	default:
		return UnknownMessage
	}
}

func authMessage(code CodeError) string {
	switch code {
	case AuthInvalidToken:
		return "invalid authentication token"
	default:
		return UnknownMessage
	}
}

func valueMessage(code CodeError) string {
	switch code {
	case ValueUnrepresentable:
		return "value has no packstream representation"
	default:
		return UnknownMessage
	}
}
