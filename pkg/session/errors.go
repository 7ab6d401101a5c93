package session

import (
	"errors"
	"fmt"
)

// Sentinel errors for the session package.
var (
	// ErrNotConnected indicates the channel is not open.
	ErrNotConnected = errors.New("session: not connected")

	// ErrAlreadyConnected indicates Connect was called while connecting or connected.
	ErrAlreadyConnected = errors.New("session: already connected")

	// ErrClosed indicates the session was closed.
	ErrClosed = errors.New("session: closed")

	// ErrConnectionClosed indicates the channel closed while an operation was in flight.
	ErrConnectionClosed = errors.New("session: connection closed")

	// ErrCaptureActive indicates StartCapture was called twice.
	ErrCaptureActive = errors.New("session: capture already active")

	// ErrReconnectExhausted indicates every reconnection attempt failed.
	ErrReconnectExhausted = errors.New("session: reconnection attempts exhausted")

	// ErrInvalidTransition indicates an illegal state change was requested.
	ErrInvalidTransition = errors.New("session: invalid state transition")

	// ErrMissingEndpoint indicates no endpoint URL was configured.
	ErrMissingEndpoint = errors.New("session: endpoint is required")
)

// ConnectionError represents a WebSocket connection error.
type ConnectionError struct {
	// Reason describes why the connection failed.
	Reason string

	// StatusCode is the HTTP status of a failed handshake, if any.
	StatusCode int

	// Cause is the underlying error.
	Cause error

	// Retryable indicates if reconnection could succeed.
	Retryable bool
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("session: connection error: %s (HTTP %d): %v", e.Reason, e.StatusCode, e.Cause)
	}
	if e.Cause != nil {
		return fmt.Sprintf("session: connection error: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("session: connection error: %s", e.Reason)
}

// Unwrap returns the underlying cause.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// IsRetryable returns true if reconnection could succeed.
func (e *ConnectionError) IsRetryable() bool {
	return e.Retryable
}

// NewConnectionError creates a new ConnectionError.
func NewConnectionError(reason string, cause error, retryable bool) *ConnectionError {
	return &ConnectionError{
		Reason:    reason,
		Cause:     cause,
		Retryable: retryable,
	}
}

// IsNotConnected returns true if the error indicates no open channel.
func IsNotConnected(err error) bool {
	return errors.Is(err, ErrNotConnected) || errors.Is(err, ErrConnectionClosed)
}

// IsRetryable returns true if the error can be retried.
func IsRetryable(err error) bool {
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return connErr.IsRetryable()
	}
	return false
}
