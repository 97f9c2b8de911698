package transcriber

import "github.com/pkg/errors"

// TranscribeError reports a failed speech-to-text request. It folds this
// package into the wrap-don't-reformat error convention pkg/transceiver
// uses for its own taxonomy (pkg/transceiver/errors.go): callers can
// errors.As/Unwrap through it to the underlying client error.
type TranscribeError struct {
	cause error
}

func wrapTranscribeError(cause error, msg string) *TranscribeError {
	return &TranscribeError{cause: errors.Wrap(cause, msg)}
}

func (e *TranscribeError) Error() string {
	return "transcribe: " + e.cause.Error()
}

func (e *TranscribeError) Unwrap() error { return e.cause }
