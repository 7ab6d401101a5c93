package audioio

import (
	"errors"
	"fmt"
)

// Sentinel errors for the audioio package.
var (
	// ErrMalformedBlock indicates a sample block contained NaN or infinite values.
	ErrMalformedBlock = errors.New("audioio: malformed sample block")

	// ErrClosed indicates the processor or device has been closed.
	ErrClosed = errors.New("audioio: closed")

	// ErrDeviceUnavailable indicates the device could not be acquired
	// (permission denied, busy, or missing).
	ErrDeviceUnavailable = errors.New("audioio: device unavailable")

	// ErrUnknownBackend indicates no backend is registered under the requested name.
	ErrUnknownBackend = errors.New("audioio: unknown backend")
)

// DeviceError describes a failure to open or start an audio device.
type DeviceError struct {
	// Backend is the backend that failed.
	Backend Backend

	// Op is the failed operation ("open", "start").
	Op string

	// Device is the requested device name, empty for the default.
	Device string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *DeviceError) Error() string {
	dev := e.Device
	if dev == "" {
		dev = "default"
	}
	return fmt.Sprintf("audioio: %s %s device %q: %v", e.Backend, e.Op, dev, e.Cause)
}

// Unwrap returns ErrDeviceUnavailable and the underlying cause.
func (e *DeviceError) Unwrap() []error {
	return []error{ErrDeviceUnavailable, e.Cause}
}

// IsDeviceUnavailable returns true if the error means the device could not be acquired.
func IsDeviceUnavailable(err error) bool {
	return errors.Is(err, ErrDeviceUnavailable)
}
