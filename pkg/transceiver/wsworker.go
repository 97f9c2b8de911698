package transceiver

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

const (
	binaryMessageType = websocket.BinaryMessage
	textMessageType   = websocket.TextMessage
)

// dialTimeout bounds a single handshake attempt.
const dialTimeout = 10 * time.Second

// controlMessage is the wire shape of an inbound text control frame
// (spec §6): {"type": "clear"} is the only defined variant.
type controlMessage struct {
	Type string `json:"type"`
}

// runWSWorker is the WebSocket worker's connect loop (spec §4.3.1):
// while ws_thread_running and reconnect policy permits, dial a fresh
// connection and run it until it exits, applying backoff between
// attempts.
func (e *Element) runWSWorker() {
	defer close(e.wsDoneCh)

	for e.wsShouldKeepRunning() {
		conn, err := e.dial()
		if err != nil {
			e.log.Warn().Err(err).Str("uri", e.cfg.URI).Msg("ws: handshake failed")
			if !e.wsShouldKeepRunning() {
				return
			}
			if !e.backoffOrStop() {
				return
			}
			continue
		}

		e.onHandshakeSuccess(conn)
		e.runConnectionLoop(conn)
		e.onConnectionClosed(conn)

		if !e.wsShouldKeepRunning() {
			return
		}
		if !e.backoffOrStop() {
			return
		}
	}
}

func (e *Element) wsShouldKeepRunning() bool {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.wsRunning
}

func (e *Element) dial() (*websocket.Conn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.DialContext(ctx, e.cfg.URI, nil)
	if err != nil {
		return nil, wrapTransportError(err, "dial "+e.cfg.URI)
	}
	return conn, nil
}

// onHandshakeSuccess implements spec §4.3 point 2: register the handle,
// set connected, signal waiters, and flush the receive queue (barge-in
// semantics on reconnect: previously queued audio is stale).
func (e *Element) onHandshakeSuccess(conn *websocket.Conn) {
	handle := newConnHandle(conn)

	e.stateMu.Lock()
	e.phase = phaseConnected
	e.handle = handle
	e.connected = true
	e.stateMu.Unlock()
	e.stateCond.Broadcast()

	e.metrics.setConnected(true)
	e.log.Info().Str("uri", e.cfg.URI).Msg("ws: connected")

	e.triggerFlush()
}

// triggerFlush drains the receive queue and, if the pacer is running,
// asks it to carry out the full barge-in protocol from spec §4.5.1 on
// its own goroutine.
func (e *Element) triggerFlush() {
	if e.queue != nil {
		e.queue.flush()
	}
	if e.pacer != nil {
		e.pacer.requestFlush()
	}
}

// runConnectionLoop reads inbound messages until the connection closes
// or errors, or the worker is told to stop.
func (e *Element) runConnectionLoop(conn *websocket.Conn) {
	for {
		if !e.wsShouldKeepRunning() {
			return
		}
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			e.log.Debug().Err(err).Msg("ws: read loop ended")
			return
		}
		switch messageType {
		case binaryMessageType:
			e.handleInboundBinary(data)
		case textMessageType:
			e.handleInboundText(data)
		default:
			e.log.Warn().Int("message_type", messageType).Msg("ws: unsupported frame type, ignoring")
		}
	}
}

// handleInboundBinary implements spec §4.3 point 3 (binary branch):
// wrap the bytes into an AudioFrame and enqueue it.
func (e *Element) handleInboundBinary(data []byte) {
	e.queue.push(newAudioFrame(data))
	e.metrics.incFramesReceived()
}

// handleInboundText implements spec §4.3 point 3 (text branch): parse as
// JSON with a "type" field; {"type":"clear"} triggers the flush
// protocol, anything else (or malformed JSON) is a ProtocolError: warned
// and discarded, never fatal.
func (e *Element) handleInboundText(data []byte) {
	var msg controlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		e.log.Warn().Err(newProtocolError("malformed control JSON")).Str("raw", string(data)).Msg("ws: discarding malformed text frame")
		return
	}
	if msg.Type == "clear" {
		e.log.Info().Msg("ws: received clear control message, triggering barge-in flush")
		e.triggerFlush()
		return
	}
	e.log.Warn().Err(newProtocolError("unknown control type: " + msg.Type)).Msg("ws: discarding unknown control message")
}

// onConnectionClosed implements spec §4.3 point 5: mark disconnected and
// release the connection.
func (e *Element) onConnectionClosed(conn *websocket.Conn) {
	e.stateMu.Lock()
	e.connected = false
	e.phase = phaseClosing
	e.handle = nil
	e.stateMu.Unlock()
	e.stateCond.Broadcast()

	e.metrics.setConnected(false)
	_ = conn.Close()

	e.stateMu.Lock()
	e.phase = phaseClosed
	e.stateMu.Unlock()
	e.log.Info().Msg("ws: connection closed")
}

// backoffOrStop asks the reconnect controller for a decision (spec
// §4.6), sleeps the backoff interruptibly, and reports whether the
// worker should keep running afterward.
func (e *Element) backoffOrStop() bool {
	d := e.reconnect.next(e.cfg)
	if !d.retry {
		e.log.Warn().Msg("ws: reconnect policy exhausted, stopping permanently")
		return false
	}

	e.metrics.incReconnectAttempts()
	e.log.Info().Dur("backoff", d.backoff).Msg("ws: waiting before reconnect attempt")

	e.stateMu.Lock()
	stopCh := e.wsStopCh
	e.stateMu.Unlock()

	select {
	case <-time.After(d.backoff):
	case <-stopCh:
	}
	return e.wsShouldKeepRunning()
}
