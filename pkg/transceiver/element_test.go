package transceiver

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// fakeSource is a SourcePort test double that records everything pushed to
// it so tests can assert on the pacer/element's downstream behavior.
type fakeSource struct {
	mu      sync.Mutex
	events  []Event
	buffers []AudioFrame
}

func (f *fakeSource) PushEvent(e Event) PushResult {
	f.mu.Lock()
	f.events = append(f.events, e)
	f.mu.Unlock()
	return PushOK
}

func (f *fakeSource) PushBuffer(b AudioFrame) PushResult {
	f.mu.Lock()
	f.buffers = append(f.buffers, b)
	f.mu.Unlock()
	return PushOK
}

func (f *fakeSource) bufferCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.buffers)
}

// newEchoServer starts a loopback WebSocket server that upgrades the
// connection and then just blocks, letting the test drive both sides
// explicitly via the returned upgraded connection channel.
func newEchoServer(t *testing.T) (wsURI string, conns chan *websocket.Conn, closeServer func()) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	conns = make(chan *websocket.Conn, 4)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- conn
		// Keep the handler alive until the test closes the connection,
		// otherwise the deferred httptest cleanup races the read loop.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))

	wsURI = "ws" + server.URL[len("http"):] + "/ws"
	return wsURI, conns, server.Close
}

func testConfig(uri string) Config {
	cfg := DefaultConfig()
	cfg.URI = uri
	cfg.ReconnectEnabled = false
	return cfg
}

func TestElementLifecycleInactiveToPausedToInactive(t *testing.T) {
	uri, conns, closeServer := newEchoServer(t)
	defer closeServer()

	source := &fakeSource{}
	element := New(testConfig(uri), NewSystemClock(), source, nil, zerolog.Nop())

	if err := element.SetState(StatePaused); err != nil {
		t.Fatalf("SetState(Paused) error = %v", err)
	}
	if got := element.State(); got != StatePaused {
		t.Fatalf("State() = %v, want Paused", got)
	}

	select {
	case <-conns:
	case <-time.After(2 * time.Second):
		t.Fatal("server never observed an inbound connection")
	}

	if _, err := element.HandleCaps(FormatPCMS16LE, 16000, 1); err != nil {
		t.Fatalf("HandleCaps() error = %v", err)
	}

	if err := element.SetState(StateInactive); err != nil {
		t.Fatalf("SetState(Inactive) error = %v", err)
	}
	if got := element.State(); got != StateInactive {
		t.Fatalf("State() = %v, want Inactive", got)
	}
}

func TestElementSetStateIsIdempotent(t *testing.T) {
	uri, _, closeServer := newEchoServer(t)
	defer closeServer()

	element := New(testConfig(uri), NewSystemClock(), &fakeSource{}, nil, zerolog.Nop())

	if err := element.SetState(StateInactive); err != nil {
		t.Fatalf("SetState(Inactive) from Inactive error = %v", err)
	}
	if got := element.State(); got != StateInactive {
		t.Fatalf("State() = %v, want Inactive", got)
	}
}

func TestElementChainDropsWhenDisconnected(t *testing.T) {
	element := New(testConfig("ws://127.0.0.1:1/unused"), NewSystemClock(), &fakeSource{}, nil, zerolog.Nop())
	if err := element.Chain([]byte("hello")); err != nil {
		t.Fatalf("Chain() on a disconnected element error = %v, want nil (non-fatal drop)", err)
	}
}

// TestElementChainSendsOrderedBinaryFramesWhenConnected covers R1: an
// N-byte payload crosses the wire as one N-byte binary frame, and frames
// arrive in the order Chain was called, once the element is actually
// connected.
func TestElementChainSendsOrderedBinaryFramesWhenConnected(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan []byte, 8)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		for {
			messageType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if messageType == websocket.BinaryMessage {
				received <- append([]byte(nil), data...)
			}
		}
	}))
	defer server.Close()

	uri := "ws" + server.URL[len("http"):] + "/ws"
	element := New(testConfig(uri), NewSystemClock(), &fakeSource{}, nil, zerolog.Nop())
	if err := element.SetState(StatePrepared); err != nil {
		t.Fatalf("SetState(Prepared) error = %v", err)
	}
	defer element.SetState(StateInactive)

	payloads := [][]byte{
		[]byte("first-frame"),
		[]byte("second-frame-longer"),
		[]byte("third"),
	}
	for _, payload := range payloads {
		if err := element.Chain(payload); err != nil {
			t.Fatalf("Chain(%q) error = %v", payload, err)
		}
	}

	for i, want := range payloads {
		select {
		case got := <-received:
			if string(got) != string(want) {
				t.Fatalf("frame %d = %q, want %q", i, got, want)
			}
			if len(got) != len(want) {
				t.Fatalf("frame %d length = %d, want %d (one frame per Chain call, no coalescing/splitting)", i, len(got), len(want))
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("server never received frame %d", i)
		}
	}
}

func TestElementLatencyBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URI = "ws://example.invalid/ws"
	cfg.FrameDurationMs = 250
	cfg.MaxQueueSize = 40
	element := New(cfg, NewSystemClock(), &fakeSource{}, nil, zerolog.Nop())

	if got, want := element.LatencyMin(), 250*time.Millisecond; got != want {
		t.Fatalf("LatencyMin() = %v, want %v", got, want)
	}
	if got, want := element.LatencyMax(), 250*time.Millisecond*40; got != want {
		t.Fatalf("LatencyMax() = %v, want %v", got, want)
	}
	if !element.IsLive() {
		t.Fatal("IsLive() = false, want true")
	}
}

func TestValidateConfigRejectsBadURI(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URI = "http://example.invalid"
	if err := ValidateConfig(cfg); err == nil {
		t.Fatal("ValidateConfig() error = nil, want ConfigError for non-ws scheme")
	}
}

func TestValidateConfigAcceptsDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URI = "wss://example.invalid/ws"
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("ValidateConfig() error = %v, want nil", err)
	}
}
