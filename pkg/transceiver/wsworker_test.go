package transceiver

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func reconnectTestConfig(uri string) Config {
	cfg := DefaultConfig()
	cfg.URI = uri
	cfg.ReconnectEnabled = true
	cfg.InitialReconnectDelayMs = 100
	cfg.MaxBackoffMs = 1000
	cfg.MaxReconnects = 0
	return cfg
}

func TestWSWorkerEnqueuesInboundBinaryFrames(t *testing.T) {
	uri, conns, closeServer := newEchoServer(t)
	defer closeServer()

	element := New(testConfig(uri), NewSystemClock(), &fakeSource{}, nil, zerolog.Nop())
	if err := element.SetState(StatePrepared); err != nil {
		t.Fatalf("SetState(Prepared) error = %v", err)
	}
	defer element.SetState(StateInactive)

	var conn *websocket.Conn
	select {
	case conn = <-conns:
	case <-time.After(2 * time.Second):
		t.Fatal("server never observed an inbound connection")
	}

	if err := conn.WriteMessage(websocket.BinaryMessage, []byte("hello")); err != nil {
		t.Fatalf("server WriteMessage() error = %v", err)
	}

	if !pollUntil(t, 2*time.Second, func() bool { return element.queue.len() == 1 }) {
		t.Fatal("queue never received the inbound binary frame")
	}
	frame, _ := element.queue.pop()
	if string(frame.Data) != "hello" {
		t.Fatalf("frame.Data = %q, want %q", frame.Data, "hello")
	}
}

func TestWSWorkerClearControlMessageFlushesQueue(t *testing.T) {
	uri, conns, closeServer := newEchoServer(t)
	defer closeServer()

	element := New(testConfig(uri), NewSystemClock(), &fakeSource{}, nil, zerolog.Nop())
	if err := element.SetState(StatePrepared); err != nil {
		t.Fatalf("SetState(Prepared) error = %v", err)
	}
	defer element.SetState(StateInactive)

	var conn *websocket.Conn
	select {
	case conn = <-conns:
	case <-time.After(2 * time.Second):
		t.Fatal("server never observed an inbound connection")
	}

	element.queue.push(newAudioFrame([]byte("stale-1")))
	element.queue.push(newAudioFrame([]byte("stale-2")))

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"clear"}`)); err != nil {
		t.Fatalf("server WriteMessage() error = %v", err)
	}

	if !pollUntil(t, 2*time.Second, func() bool { return element.queue.len() == 0 }) {
		t.Fatal("queue was not flushed after a clear control message")
	}
}

func TestWSWorkerIgnoresMalformedAndUnknownControlMessages(t *testing.T) {
	uri, conns, closeServer := newEchoServer(t)
	defer closeServer()

	element := New(testConfig(uri), NewSystemClock(), &fakeSource{}, nil, zerolog.Nop())
	if err := element.SetState(StatePrepared); err != nil {
		t.Fatalf("SetState(Prepared) error = %v", err)
	}
	defer element.SetState(StateInactive)

	var conn *websocket.Conn
	select {
	case conn = <-conns:
	case <-time.After(2 * time.Second):
		t.Fatal("server never observed an inbound connection")
	}

	element.queue.push(newAudioFrame([]byte("kept")))

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`not json`)); err != nil {
		t.Fatalf("server WriteMessage() error = %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatalf("server WriteMessage() error = %v", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, []byte("sentinel")); err != nil {
		t.Fatalf("server WriteMessage() error = %v", err)
	}

	if !pollUntil(t, 2*time.Second, func() bool { return element.queue.len() == 2 }) {
		t.Fatal("malformed/unknown control messages should be discarded without touching the queue")
	}
}

func TestWSWorkerReconnectsAfterDisconnect(t *testing.T) {
	uri, conns, closeServer := newEchoServer(t)
	defer closeServer()

	element := New(reconnectTestConfig(uri), NewSystemClock(), &fakeSource{}, nil, zerolog.Nop())
	if err := element.SetState(StatePrepared); err != nil {
		t.Fatalf("SetState(Prepared) error = %v", err)
	}
	defer element.SetState(StateInactive)

	select {
	case first := <-conns:
		_ = first.Close()
	case <-time.After(2 * time.Second):
		t.Fatal("server never observed the first connection")
	}

	select {
	case <-conns:
	case <-time.After(2 * time.Second):
		t.Fatal("element never reconnected after the first connection closed")
	}
}

func pollUntil(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}
