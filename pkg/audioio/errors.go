package audioio

import "github.com/pkg/errors"

// DeviceError reports a failure opening, starting, or stopping a host
// audio device (microphone or speakers). It wraps the underlying
// malgo/oto error with the device name, folding this package into
// pkg/transceiver's own wrap-don't-reformat error taxonomy
// (pkg/transceiver/errors.go).
type DeviceError struct {
	Device string
	cause  error
}

func wrapDeviceError(device string, cause error, msg string) *DeviceError {
	return &DeviceError{Device: device, cause: errors.Wrap(cause, msg)}
}

func (e *DeviceError) Error() string {
	return "device: " + e.Device + ": " + e.cause.Error()
}

func (e *DeviceError) Unwrap() error { return e.cause }
