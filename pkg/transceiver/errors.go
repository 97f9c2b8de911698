package transceiver

import "github.com/pkg/errors"

// ConfigError reports a missing or invalid configuration value. It is
// fatal at startup and is surfaced as a state-change failure from
// Prepare.
type ConfigError struct {
	Field string
	cause error
}

func newConfigError(field, msg string) *ConfigError {
	return &ConfigError{Field: field, cause: errors.New(msg)}
}

func (e *ConfigError) Error() string {
	return "config: " + e.Field + ": " + e.cause.Error()
}

func (e *ConfigError) Unwrap() error { return e.cause }

// CapsError reports that a required caps field (rate, channels) was
// absent from a negotiated caps event. It is fatal for the current
// stream and is reported upstream.
type CapsError struct {
	cause error
}

func newCapsError(msg string) *CapsError {
	return &CapsError{cause: errors.New(msg)}
}

func (e *CapsError) Error() string {
	return "caps: " + e.cause.Error()
}

func (e *CapsError) Unwrap() error { return e.cause }

// TransportError reports a handshake failure, I/O error, or unexpected
// close on the WebSocket connection. It is non-fatal: it triggers the
// reconnect policy rather than tearing the element down.
type TransportError struct {
	cause error
}

func wrapTransportError(cause error, msg string) *TransportError {
	return &TransportError{cause: errors.Wrap(cause, msg)}
}

func (e *TransportError) Error() string {
	return "transport: " + e.cause.Error()
}

func (e *TransportError) Unwrap() error { return e.cause }

// ProtocolError reports malformed JSON control payloads, an unknown
// control type, or a non-binary-non-text frame. It is logged and
// ignored; it never tears anything down.
type ProtocolError struct {
	cause error
}

func newProtocolError(msg string) *ProtocolError {
	return &ProtocolError{cause: errors.New(msg)}
}

func (e *ProtocolError) Error() string {
	return "protocol: " + e.cause.Error()
}

func (e *ProtocolError) Unwrap() error { return e.cause }

// FlowError is the downstream push outcome the pacer must react to: a
// flushing result is tolerated, an EOS result ends the pacer, anything
// else is warned about and the loop continues.
type FlowError struct {
	Result PushResult
}

func (e *FlowError) Error() string {
	return "flow: unexpected push result " + e.Result.String()
}
