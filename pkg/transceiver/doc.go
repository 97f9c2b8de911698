// Package transceiver implements a bidirectional audio transceiver element
// that bridges a local push-style media pipeline with a remote WebSocket
// peer.
//
// Audio flows in two directions at once: upstream buffers presented to
// Chain are forwarded outbound over the WebSocket as they arrive; audio
// received from the WebSocket is queued, paced to a monotonic cadence, and
// pushed downstream through the SourcePort the host supplies. A text
// control message of the shape {"type":"clear"} triggers a flush of
// in-flight playback so a new response can begin immediately (barge-in).
//
// The host media framework's own buffer, event, caps-negotiation, and
// clock machinery are out of scope here and are reached only through the
// small Clock and SourcePort interfaces a caller implements.
package transceiver
