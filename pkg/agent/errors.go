package agent

import "github.com/pkg/errors"

// AgentError reports a failed chat completion request or stream read. It
// mirrors pkg/transceiver's wrap-don't-reformat error taxonomy
// (pkg/transceiver/errors.go) so callers across the module can
// errors.As/Unwrap the same way regardless of which package raised it.
type AgentError struct {
	cause error
}

func wrapAgentError(cause error, msg string) *AgentError {
	return &AgentError{cause: errors.Wrap(cause, msg)}
}

func (e *AgentError) Error() string {
	return "agent: " + e.cause.Error()
}

func (e *AgentError) Unwrap() error { return e.cause }
