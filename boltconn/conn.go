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

package boltconn

import (
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/hashicorp/go-uuid"

	"github/sabouaram/boltdriver/address"
	"github/sabouaram/boltdriver/auth"
	"github/sabouaram/boltdriver/chunk"
	liberr "github/sabouaram/boltdriver/errors"
	"github/sabouaram/boltdriver/handshake"
	loglvl "github/sabouaram/boltdriver/logger/level"
	"github/sabouaram/boltdriver/message"
	"github/sabouaram/boltdriver/packstream"
	"github/sabouaram/boltdriver/value"

	liblog "github/sabouaram/boltdriver/logger"
)

// Features records the per-connection capability flags negotiated at HELLO
// time, mirroring the teacher's "feature bag resolved once at connect" idiom.
type Features struct {
	UTCPatch bool // dateTime structs use the UTC tag rather than the legacy one
	SSR      bool // server accepted server-side routing
	Telemetry bool // protocol >= 5.4
}

// BoltData is the mutable state owned by one connection: negotiated
// version, bolt state, feature flags, current auth, server-declared
// identity, and bookmark/database bookkeeping. The response queue is held
// on the Connection itself.
type BoltData struct {
	Version      handshake.Version
	State        State
	Features     Features
	ServerAgent  string
	Auth         *auth.Token
	LastBookmark string
	HomeDatabase string
	nextQID      int64
}

// Connection is one authenticated bolt session over one TCP socket.
type Connection struct {
	mu sync.Mutex

	id      string
	address address.Address
	sock    net.Conn
	log     liblog.FuncLog

	data  BoltData
	queue responseQueue

	createdAt time.Time
	lastUsed  time.Time
}

// DialOptions configures Dial.
type DialOptions struct {
	TLS                *tls.Config // nil disables TLS
	ConnectTimeout     time.Duration
	Proposals          []handshake.Version
	V2ManifestCapable  bool
	Logger             liblog.FuncLog
}

// Dial opens a TCP (optionally TLS) socket to addr, performs the bolt
// handshake, and returns a Connection in the Connected state. HELLO/LOGON
// are the caller's responsibility (they belong to a version handler set),
// matching the spec's layering of handshake below message dispatch.
func Dial(addr address.Address, opt DialOptions) (*Connection, error) {
	dialer := net.Dialer{Timeout: opt.ConnectTimeout}

	raw, err := dialer.Dial("tcp", addr.String())
	if err != nil {
		return nil, liberr.BoltDisconnect.Error(err)
	}

	var sock net.Conn = raw
	if opt.TLS != nil {
		tlsConn := tls.Client(raw, opt.TLS)
		if opt.ConnectTimeout > 0 {
			_ = tlsConn.SetDeadline(time.Now().Add(opt.ConnectTimeout))
		}
		if err := tlsConn.Handshake(); err != nil {
			_ = raw.Close()
			return nil, liberr.BoltDisconnect.Error(err)
		}
		_ = tlsConn.SetDeadline(time.Time{})
		sock = tlsConn
	}

	res, err := handshake.Negotiate(sock, opt.Proposals, opt.V2ManifestCapable)
	if err != nil {
		_ = sock.Close()
		return nil, err
	}

	connID, _ := uuid.GenerateUUID()

	c := &Connection{
		id:        connID,
		address:   addr,
		sock:      sock,
		log:       opt.Logger,
		createdAt: time.Now(),
		lastUsed:  time.Now(),
	}
	c.data.Version = res.Negotiated
	c.data.State = Connected

	return c, nil
}

func (c *Connection) onIOError(err error) {
	c.mu.Lock()
	c.data.State = Failed
	c.mu.Unlock()
	c.logger().Entry(loglvl.WarnLevel, "connection marked failed after IO error").
		FieldAdd("conn_id", c.id).ErrorAdd(true, err).Log()
}

func (c *Connection) logger() liblog.Logger {
	if c.log == nil {
		return liblog.Discard()
	}
	return c.log()
}

// ID returns the connection's correlation id, used in logs and diagnostics.
func (c *Connection) ID() string { return c.id }

// Address returns the remote endpoint this connection is dialed to.
func (c *Connection) Address() address.Address { return c.address }

// Version returns the negotiated protocol version.
func (c *Connection) Version() handshake.Version { return c.data.Version }

// State returns the connection's current bolt state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data.State
}

// CreatedAt and LastUsed back the pool's lifetime/idle discipline.
func (c *Connection) CreatedAt() time.Time { return c.createdAt }
func (c *Connection) LastUsed() time.Time  { c.mu.Lock(); defer c.mu.Unlock(); return c.lastUsed }

// SetDeadline applies a blocking-call deadline to the underlying socket,
// restoring the zero value (no deadline) when d is zero.
func (c *Connection) SetDeadline(d time.Duration) error {
	if d <= 0 {
		return c.sock.SetDeadline(time.Time{})
	}
	return c.sock.SetDeadline(time.Now().Add(d))
}

// Close sends GOODBYE best-effort and closes the socket.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.data.State == Closed {
		c.mu.Unlock()
		return nil
	}
	c.data.State = Closed
	c.mu.Unlock()

	w := packstream.NewWriter()
	w.StructHeader(message.TagGoodbye, 0)
	_ = chunk.Write(c.sock, w.Bytes())

	return c.sock.Close()
}

// nextQueryID allocates a connection-local QID for a new result stream.
func (c *Connection) nextQueryID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.data.nextQID
	c.data.nextQID++
	return id
}

// Send writes one already-encoded message and records its response
// expectation at the tail of the FIFO, preserving write/enqueue order.
func (c *Connection) Send(kind string, payload []byte, cb Callbacks) error {
	c.mu.Lock()
	c.queue.push(kind, cb)
	c.lastUsed = time.Now()
	c.mu.Unlock()

	if err := chunk.Write(c.sock, payload); err != nil {
		c.onIOError(err)
		return err
	}
	return nil
}

// ReceiveOne reads and dispatches exactly one server message to the head
// expectation, advancing the bolt state machine and popping the queue when
// the response is terminal. Callers loop this until the response they are
// waiting for has arrived or their own "I have enough records" threshold.
func (c *Connection) ReceiveOne() error {
	payload, err := chunk.Read(c.sock)
	if err != nil {
		c.onIOError(err)
		return err
	}
	return c.dispatch(payload)
}

func (c *Connection) dispatch(payload []byte) error {
	r := packstream.NewReader(&sliceReader{b: payload})
	m, err := r.PeekMarker()
	if err != nil {
		return err
	}
	arity, tag, err := r.StructHeader(m)
	if err != nil {
		return liberr.BoltProtocolViolation.Error(err)
	}

	switch tag {
	case message.TagRecord:
		return c.handleRecord(r, arity)
	case message.TagSuccess:
		return c.handleSuccess(r)
	case message.TagIgnored:
		return c.handleIgnored()
	case message.TagFailure:
		return c.handleFailure(r)
	default:
		return liberr.BoltProtocolViolation.Error(fmt.Errorf("unexpected response tag 0x%02X", tag))
	}
}

func (c *Connection) handleRecord(r *packstream.Reader, arity int) error {
	if arity != 1 {
		return liberr.BoltProtocolViolation.Error(fmt.Errorf("RECORD must carry exactly one list field"))
	}
	m, err := r.PeekMarker()
	if err != nil {
		return err
	}
	n, err := r.ListHeader(m)
	if err != nil {
		return err
	}
	fields := make([]value.Value, n)
	for i := 0; i < n; i++ {
		fm, err := r.PeekMarker()
		if err != nil {
			return err
		}
		fields[i], err = value.Decode(r, fm)
		if err != nil {
			return err
		}
	}

	c.mu.Lock()
	exp := c.queue.head()
	c.mu.Unlock()

	if exp.cb.OnRecord != nil {
		exp.cb.OnRecord(fields)
	}
	// RECORD never pops the expectation: a SUCCESS with has_more=false or
	// true eventually terminates or continues the same stream.
	return nil
}

func (c *Connection) handleSuccess(r *packstream.Reader) error {
	meta, err := decodeMeta(r)
	if err != nil {
		return err
	}

	c.mu.Lock()
	exp := c.queue.head()
	hasMore := metaBool(meta, "has_more")
	if !hasMore {
		c.queue.pop()
	}
	c.advanceOnSuccess(hasMore)
	c.mu.Unlock()

	if exp.cb.OnSuccess != nil {
		exp.cb.OnSuccess(meta)
	}
	return nil
}

func (c *Connection) handleIgnored() error {
	c.mu.Lock()
	exp := c.queue.head()
	c.queue.pop()
	c.mu.Unlock()

	if exp.cb.OnIgnored != nil {
		exp.cb.OnIgnored()
	}
	return nil
}

func (c *Connection) handleFailure(r *packstream.Reader) error {
	meta, err := decodeMeta(r)
	if err != nil {
		return err
	}

	c.mu.Lock()
	exp := c.queue.head()
	c.queue.pop()
	c.data.State = Failed
	c.mu.Unlock()

	if exp.cb.OnFailure != nil {
		exp.cb.OnFailure(meta)
	}
	return nil
}

// advanceOnSuccess applies the state transition implied by a terminal
// SUCCESS; callers hold c.mu. hasMore keeps a streaming state as-is since
// the stream is not finished.
func (c *Connection) advanceOnSuccess(hasMore bool) {
	if hasMore {
		return
	}
	switch c.data.State {
	case Connected:
		c.data.State = Ready
	case Streaming:
		c.data.State = Ready
	case TxStreaming:
		// a PULL/DISCARD that exhausts the stream returns to tx_ready; only
		// COMMIT/ROLLBACK leaves the transaction itself.
		c.data.State = TxReady
	}
}

// ForceState lets a handler apply a transition not implied purely by the
// has_more flag (BEGIN -> TxReady, COMMIT/ROLLBACK -> Ready, RESET -> Ready,
// RUN Ready -> Streaming / TxReady -> TxStreaming).
func (c *Connection) ForceState(s State) {
	c.mu.Lock()
	c.data.State = s
	c.mu.Unlock()
}

// Data exposes a pointer to the connection's live BoltData (not a copy) for
// handler logic that needs to read feature flags or set the auth token.
func (c *Connection) Data() *BoltData {
	return &c.data
}

func decodeMeta(r *packstream.Reader) (map[string]value.Value, error) {
	m, err := r.PeekMarker()
	if err != nil {
		return nil, err
	}
	n, err := r.DictHeader(m)
	if err != nil {
		return nil, err
	}
	out := make(map[string]value.Value, n)
	for i := 0; i < n; i++ {
		km, err := r.PeekMarker()
		if err != nil {
			return nil, err
		}
		k, err := r.String(km)
		if err != nil {
			return nil, err
		}
		vm, err := r.PeekMarker()
		if err != nil {
			return nil, err
		}
		v, err := value.Decode(r, vm)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func metaBool(meta map[string]value.Value, key string) bool {
	v, ok := meta[key]
	if !ok {
		return false
	}
	b, err := v.AsBool()
	if err != nil {
		return false
	}
	return b
}

type sliceReader struct {
	b []byte
	i int
}

func (s *sliceReader) Read(p []byte) (int, error) {
	if s.i >= len(s.b) {
		return 0, io.EOF
	}
	n := copy(p, s.b[s.i:])
	s.i += n
	return n, nil
}
