package transceiver

import "time"

// Config holds the element's configuration options (spec §6). Values are
// validated once, on Prepare.
type Config struct {
	// URI is the WebSocket endpoint to dial, "ws://" or "wss://". Required.
	URI string

	// SampleRate is the negotiated sample rate in Hz; it must be positive.
	SampleRate uint
	// Channels is the negotiated channel count, 1 or 2.
	Channels uint
	// FrameDurationMs is the duration each AudioFrame represents, [10, 1000].
	FrameDurationMs uint
	// MaxQueueSize bounds the receive queue, [1, 1000].
	MaxQueueSize uint
	// InitialBufferCount is the jitter reserve frame count, [0, 100]. 0 disables it.
	InitialBufferCount uint

	// ReconnectEnabled toggles the reconnect policy entirely.
	ReconnectEnabled bool
	// InitialReconnectDelayMs is the first backoff delay, [100, 5000].
	InitialReconnectDelayMs uint
	// MaxBackoffMs clamps the exponential backoff, [1000, 60000].
	MaxBackoffMs uint
	// MaxReconnects bounds retry attempts, [0, 100]. 0 means unlimited
	// when ReconnectEnabled is true.
	MaxReconnects uint
}

// DefaultConfig returns the documented defaults from spec §6.
func DefaultConfig() Config {
	return Config{
		SampleRate:              16000,
		Channels:                1,
		FrameDurationMs:         250,
		MaxQueueSize:            100,
		InitialBufferCount:      3,
		ReconnectEnabled:        true,
		InitialReconnectDelayMs: 1000,
		MaxBackoffMs:            30000,
		MaxReconnects:           10,
	}
}

// ValidateConfig checks the invariants from spec §6 and returns a
// *ConfigError naming the first offending field, if any.
func ValidateConfig(c Config) error {
	if c.URI == "" {
		return newConfigError("uri", "must be set")
	}
	if !hasWebsocketScheme(c.URI) {
		return newConfigError("uri", `must start with "ws://" or "wss://"`)
	}
	if c.SampleRate == 0 {
		return newConfigError("sample-rate", "must be positive")
	}
	if c.Channels < 1 || c.Channels > 2 {
		return newConfigError("channels", "must be 1 or 2")
	}
	if c.FrameDurationMs < 10 || c.FrameDurationMs > 1000 {
		return newConfigError("frame-duration-ms", "must be in [10, 1000]")
	}
	if c.MaxQueueSize < 1 || c.MaxQueueSize > 1000 {
		return newConfigError("max-queue-size", "must be in [1, 1000]")
	}
	if c.InitialBufferCount > 100 {
		return newConfigError("initial-buffer-count", "must be in [0, 100]")
	}
	if c.ReconnectEnabled {
		if c.InitialReconnectDelayMs < 100 || c.InitialReconnectDelayMs > 5000 {
			return newConfigError("initial-reconnect-delay-ms", "must be in [100, 5000]")
		}
		if c.MaxBackoffMs < 1000 || c.MaxBackoffMs > 60000 {
			return newConfigError("max-backoff-ms", "must be in [1000, 60000]")
		}
		if c.MaxReconnects > 100 {
			return newConfigError("max-reconnects", "must be in [0, 100]")
		}
	}
	return nil
}

func hasWebsocketScheme(uri string) bool {
	return len(uri) >= 5 && uri[:5] == "ws://" ||
		len(uri) >= 6 && uri[:6] == "wss://"
}

// Clock is the host pipeline's monotonic clock, polled by the output
// pacer to compute pacing deadlines (spec §4.5 Phase B). Now returns a
// monotonic offset since some fixed, clock-specific epoch; only
// differences between two calls are meaningful.
type Clock interface {
	Now() time.Duration
}

// SystemClock is a Clock backed by the Go runtime's monotonic clock,
// suitable for standalone and demo use when no host pipeline clock is
// supplied.
type SystemClock struct {
	start time.Time
}

// NewSystemClock returns a Clock anchored at the moment of construction.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

func (c *SystemClock) Now() time.Duration {
	return time.Since(c.start)
}

// EventKind enumerates the events the pacer emits on the source port,
// standing in for the host framework's native pipeline events (spec §1,
// §6).
type EventKind int

const (
	EventStreamStart EventKind = iota
	EventCaps
	EventSegment
	EventFlushStart
	EventFlushStop
	EventEOS
)

func (k EventKind) String() string {
	switch k {
	case EventStreamStart:
		return "stream-start"
	case EventCaps:
		return "caps"
	case EventSegment:
		return "segment"
	case EventFlushStart:
		return "flush-start"
	case EventFlushStop:
		return "flush-stop"
	case EventEOS:
		return "eos"
	default:
		return "unknown"
	}
}

// Event is a pipeline event pushed on the source port. StreamID is set
// only on EventStreamStart; Caps is set only on EventCaps.
type Event struct {
	Kind     EventKind
	StreamID string
	Caps     AudioParameters
}

// PushResult is the outcome of pushing an AudioFrame or Event downstream,
// standing in for the host framework's native flow-return type (spec §7).
type PushResult int

const (
	PushOK PushResult = iota
	PushFlushing
	PushEOS
	PushError
)

func (r PushResult) String() string {
	switch r {
	case PushOK:
		return "ok"
	case PushFlushing:
		return "flushing"
	case PushEOS:
		return "eos"
	case PushError:
		return "error"
	default:
		return "unknown"
	}
}

// SourcePort is the downstream consumer the output pacer drives. A host
// pipeline implements this over its own buffer/event/pad machinery.
type SourcePort interface {
	// PushEvent delivers a pipeline event (stream-start, caps, segment,
	// flush-start/stop, eos) downstream.
	PushEvent(Event) PushResult
	// PushBuffer delivers a pts/duration-stamped AudioFrame downstream.
	PushBuffer(AudioFrame) PushResult
}
