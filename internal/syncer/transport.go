// Package syncer owns the single persistent connection to the sync server:
// a line-delimited JSON transport and the channel state machine that keeps
// local state eventually consistent with server-broadcast events.
package syncer

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// ErrNotConnected is returned when an emit is attempted without a live
// connection. Outbound mutations are refused locally, never queued.
var ErrNotConnected = errors.New("transport not connected")

const dialTimeout = 5 * time.Second

// Handler consumes the raw payload of a named inbound event.
type Handler func(payload json.RawMessage)

// Transport is the wire connection the synchronization channel runs over.
// Events are named; payloads are opaque JSON.
type Transport interface {
	Connect(ctx context.Context) error
	Emit(event string, payload any) error
	On(event string, h Handler)
	OnConnect(fn func())
	OnDisconnect(fn func(err error))
	Connected() bool
	Close() error
}

// envelope is the frame exchanged on the wire: one JSON object per line.
type envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// tcpTransport implements Transport over a TCP connection with
// newline-delimited JSON envelopes.
type tcpTransport struct {
	addr string

	mu            sync.Mutex
	conn          net.Conn
	dialing       bool
	handlers      map[string][]Handler
	connectFns    []func()
	disconnectFns []func(err error)

	writeMu sync.Mutex
}

// NewTCPTransport creates a Transport that dials the given host:port address.
func NewTCPTransport(addr string) Transport {
	return &tcpTransport{
		addr:     addr,
		handlers: make(map[string][]Handler),
	}
}

// On registers a handler for a named inbound event.
func (t *tcpTransport) On(event string, h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[event] = append(t.handlers[event], h)
}

// OnConnect registers a callback fired after the connection is established.
func (t *tcpTransport) OnConnect(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connectFns = append(t.connectFns, fn)
}

// OnDisconnect registers a callback fired when the connection drops for any
// reason, including an explicit Close.
func (t *tcpTransport) OnDisconnect(fn func(err error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disconnectFns = append(t.disconnectFns, fn)
}

// Connect dials the server and starts the read loop. Calling Connect while
// already connected or while another dial is in flight is an error.
func (t *tcpTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.conn != nil || t.dialing {
		t.mu.Unlock()
		return fmt.Errorf("connecting transport: already connected")
	}
	t.dialing = true
	t.mu.Unlock()

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		t.mu.Lock()
		t.dialing = false
		t.mu.Unlock()
		return fmt.Errorf("dialing sync server %s: %w", t.addr, err)
	}

	t.mu.Lock()
	t.dialing = false
	t.conn = conn
	connectFns := append(make([]func(), 0, len(t.connectFns)), t.connectFns...)
	t.mu.Unlock()

	go t.readLoop(conn)

	for _, fn := range connectFns {
		fn()
	}
	return nil
}

func (t *tcpTransport) readLoop(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var env envelope
		if err := json.Unmarshal(line, &env); err != nil {
			continue // skip malformed frames
		}

		t.mu.Lock()
		handlers := append([]Handler(nil), t.handlers[env.Event]...)
		t.mu.Unlock()

		for _, h := range handlers {
			h(env.Payload)
		}
	}

	t.handleDisconnect(conn, scanner.Err())
}

// handleDisconnect clears the connection and fires disconnect callbacks
// exactly once per connection, keyed by connection identity.
func (t *tcpTransport) handleDisconnect(conn net.Conn, err error) {
	t.mu.Lock()
	if t.conn != conn {
		t.mu.Unlock()
		return
	}
	t.conn = nil
	disconnectFns := append(make([]func(err error), 0, len(t.disconnectFns)), t.disconnectFns...)
	t.mu.Unlock()

	_ = conn.Close()
	for _, fn := range disconnectFns {
		fn(err)
	}
}

// Emit writes a single envelope frame. Fire-and-forget: there is no
// acknowledgment and no retry.
func (t *tcpTransport) Emit(event string, payload any) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshaling %s payload: %w", event, err)
		}
		raw = data
	}

	frame, err := json.Marshal(envelope{Event: event, Payload: raw})
	if err != nil {
		return fmt.Errorf("marshaling %s envelope: %w", event, err)
	}
	frame = append(frame, '\n')

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("writing %s frame: %w", event, err)
	}
	return nil
}

// Connected reports whether a live connection exists.
func (t *tcpTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

// Close tears down the connection. The read loop observes the closed
// connection and fires the disconnect callbacks.
func (t *tcpTransport) Close() error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}
