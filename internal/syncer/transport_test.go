package syncer

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"
)

// startServer runs a single-connection loopback server and hands the
// accepted connection to the test.
func startServer(t *testing.T) (addr string, conns <-chan net.Conn) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listening: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	ch := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		ch <- conn
	}()
	return ln.Addr().String(), ch
}

func acceptConn(t *testing.T, conns <-chan net.Conn) net.Conn {
	t.Helper()
	select {
	case conn := <-conns:
		t.Cleanup(func() { _ = conn.Close() })
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("server accept timed out")
		return nil
	}
}

func TestTCPTransport_ConnectAndCallbacks(t *testing.T) {
	addr, conns := startServer(t)
	tr := NewTCPTransport(addr)

	var connected sync.WaitGroup
	connected.Add(1)
	tr.OnConnect(func() { connected.Done() })

	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("connecting: %v", err)
	}
	defer tr.Close()
	acceptConn(t, conns)

	connected.Wait()
	if !tr.Connected() {
		t.Error("expected Connected after dial")
	}

	if err := tr.Connect(context.Background()); err == nil {
		t.Error("expected second Connect to fail while live")
	}
}

func TestTCPTransport_EmitWritesEnvelope(t *testing.T) {
	addr, conns := startServer(t)
	tr := NewTCPTransport(addr)

	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("connecting: %v", err)
	}
	defer tr.Close()
	conn := acceptConn(t, conns)

	if err := tr.Emit("add-task", map[string]string{"title": "x"}); err != nil {
		t.Fatalf("emitting: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		t.Fatalf("reading frame: %v", err)
	}

	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		t.Fatalf("unmarshaling frame: %v", err)
	}
	if env.Event != "add-task" {
		t.Errorf("expected add-task event, got %s", env.Event)
	}
	var payload map[string]string
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		t.Fatalf("unmarshaling payload: %v", err)
	}
	if payload["title"] != "x" {
		t.Errorf("unexpected payload: %v", payload)
	}
}

func TestTCPTransport_InboundEventDispatched(t *testing.T) {
	addr, conns := startServer(t)
	tr := NewTCPTransport(addr)

	received := make(chan json.RawMessage, 1)
	tr.On("full-sync", func(payload json.RawMessage) {
		received <- payload
	})

	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("connecting: %v", err)
	}
	defer tr.Close()
	conn := acceptConn(t, conns)

	if _, err := conn.Write([]byte(`{"event":"full-sync","payload":[{"id":"a"}]}` + "\n")); err != nil {
		t.Fatalf("writing frame: %v", err)
	}

	select {
	case payload := <-received:
		var tasks []map[string]any
		if err := json.Unmarshal(payload, &tasks); err != nil {
			t.Fatalf("unmarshaling payload: %v", err)
		}
		if len(tasks) != 1 || tasks[0]["id"] != "a" {
			t.Errorf("unexpected payload: %v", tasks)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler never invoked")
	}
}

func TestTCPTransport_MalformedFramesSkipped(t *testing.T) {
	addr, conns := startServer(t)
	tr := NewTCPTransport(addr)

	received := make(chan struct{}, 1)
	tr.On("ping", func(json.RawMessage) { received <- struct{}{} })

	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("connecting: %v", err)
	}
	defer tr.Close()
	conn := acceptConn(t, conns)

	// Garbage first, then a valid frame: the loop must survive the garbage.
	if _, err := conn.Write([]byte("not json at all\n{\"event\":\"ping\"}\n")); err != nil {
		t.Fatalf("writing frames: %v", err)
	}

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("valid frame after garbage never dispatched")
	}
}

func TestTCPTransport_ServerCloseFiresDisconnect(t *testing.T) {
	addr, conns := startServer(t)
	tr := NewTCPTransport(addr)

	disconnected := make(chan error, 1)
	tr.OnDisconnect(func(err error) { disconnected <- err })

	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("connecting: %v", err)
	}
	conn := acceptConn(t, conns)

	_ = conn.Close()

	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect callback never fired")
	}
	if tr.Connected() {
		t.Error("expected Connected false after server close")
	}
	if err := tr.Emit("x", nil); err == nil {
		t.Error("expected emit after disconnect to fail")
	}
}

func TestTCPTransport_EmitWithoutConnection(t *testing.T) {
	tr := NewTCPTransport("127.0.0.1:1")
	if err := tr.Emit("x", nil); err != ErrNotConnected {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestTCPTransport_DialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listening: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close() // nothing listens here anymore

	tr := NewTCPTransport(addr)
	if err := tr.Connect(context.Background()); err == nil {
		t.Error("expected dial failure")
	}
	if tr.Connected() {
		t.Error("expected Connected false after failed dial")
	}
}
