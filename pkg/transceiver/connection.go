package transceiver

import (
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// connPhase is the tagged ConnectionState from spec §3: Disconnected,
// Connecting(attempt_n), Connected(handle), Closing, Closed.
type connPhase int

const (
	phaseDisconnected connPhase = iota
	phaseConnecting
	phaseConnected
	phaseClosing
	phaseClosed
)

func (p connPhase) String() string {
	switch p {
	case phaseDisconnected:
		return "disconnected"
	case phaseConnecting:
		return "connecting"
	case phaseConnected:
		return "connected"
	case phaseClosing:
		return "closing"
	case phaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// connHandle is a reference-counted handle to the live *websocket.Conn
// (spec §5: "ws_conn handle is acquired under state_lock and ref-counted
// before release; callers hold their own reference for the duration of
// the I/O call so teardown cannot free it underneath them"). Chain
// acquires and releases it around each send, but nothing reads the
// count: the WebSocket worker and toInactive close the connection
// without checking for an in-flight send, and a send that races the
// close fails and is dropped by Chain.
type connHandle struct {
	conn     *websocket.Conn
	refCount int32
}

func newConnHandle(conn *websocket.Conn) *connHandle {
	return &connHandle{conn: conn}
}

// acquire increments the refcount; callers must release when the I/O
// call referencing conn returns.
func (h *connHandle) acquire() {
	atomic.AddInt32(&h.refCount, 1)
}

func (h *connHandle) release() {
	atomic.AddInt32(&h.refCount, -1)
}
