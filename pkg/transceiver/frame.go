package transceiver

import "time"

// AudioFrame is an opaque byte payload plus a presentation timestamp and
// duration assigned by the pacer at dequeue time (spec §3). It is never
// mutated after creation except for that timestamp assignment.
type AudioFrame struct {
	Data []byte
	PTS  time.Duration
	Dur  time.Duration
}

func newAudioFrame(data []byte) AudioFrame {
	// Copy so the caller's buffer (which may be reused by a websocket
	// read loop) can never alias a frame still sitting in the queue.
	buf := make([]byte, len(data))
	copy(buf, data)
	return AudioFrame{Data: buf}
}
