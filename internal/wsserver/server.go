// Package wsserver is the demo's stand-in for a real-time AI voice
// provider: it accepts the one WebSocket connection pkg/transceiver dials
// out to, and bridges inbound binary audio frames / outbound binary audio
// and {"type":"clear"} control frames to an internal/remoteai.Session.
//
// Grounded on the teacher's internal/networking/websockets.go
// NewWebsocketHandlerFunc, generalized from text-only to the
// binary-audio-plus-text-control shape this protocol needs (spec §6),
// and on original_source/test_e2e/websocket_server.py's own accept loop.
package wsserver

import (
	"net/http"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/wsvoicebridge/voxstream/internal/remoteai"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// SessionFactory builds a fresh remoteai.Session per accepted connection.
// streamID is a per-connection id generated the same way pkg/transceiver
// mints its own per-activation stream id (uuid.NewString), so a session's
// traces can be correlated with the element driving the other end of the
// socket.
type SessionFactory func(streamID string) *remoteai.Session

// Handler upgrades HTTP connections to WebSocket and bridges each one to a
// freshly created remoteai.Session for its lifetime.
type Handler struct {
	newSession SessionFactory
}

func NewHandler(newSession SessionFactory) *Handler {
	return &Handler{newSession: newSession}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	streamID := uuid.NewString()
	clientIP := clientIPOf(r)
	log.Info().Str("client_ip", clientIP).Str("stream_id", streamID).Msg("wsserver: accepting connection")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logErr(err, "wsserver: upgrade failed")
		return
	}
	defer func() { logErr(conn.Close(), "wsserver: close") }()

	var writeMu sync.Mutex
	session := h.newSession(streamID)
	session.Attach(remoteai.Sink{
		SendBinary: func(data []byte) error {
			writeMu.Lock()
			defer writeMu.Unlock()
			return conn.WriteMessage(websocket.BinaryMessage, data)
		},
		SendControl: func(data []byte) error {
			writeMu.Lock()
			defer writeMu.Unlock()
			return conn.WriteMessage(websocket.TextMessage, data)
		},
	})
	defer session.Close()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Info().Str("client_ip", clientIP).Msg("wsserver: connection closed normally")
			} else {
				logErr(err, "wsserver: read failed")
			}
			return
		}
		switch messageType {
		case websocket.BinaryMessage:
			session.PushAudio(data)
		default:
			log.Debug().Int("message_type", messageType).Msg("wsserver: ignoring non-binary inbound frame")
		}
	}
}

func clientIPOf(r *http.Request) string {
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if forwardedFor := r.Header.Get("X-Forwarded-For"); forwardedFor != "" {
		return forwardedFor
	}
	return r.RemoteAddr
}

func logErr(err error, what string) {
	if err != nil {
		log.Error().Err(err).Msg(what)
		debug.PrintStack()
	}
}
