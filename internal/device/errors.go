package device

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when an operation is not valid in the
	// session's current state.
	ErrInvalidTransition = errors.New("device: invalid state transition")

	// ErrSessionClosed is returned by operations on a session whose device
	// has been removed from the registry.
	ErrSessionClosed = errors.New("device: session closed")

	// ErrDuplicateDevice is returned when a device ID is already registered.
	ErrDuplicateDevice = errors.New("device: already registered")

	// ErrUnknownDevice is returned when a device ID is not registered.
	ErrUnknownDevice = errors.New("device: not registered")
)

// TransitionError describes a rejected operation.
type TransitionError struct {
	Op    string
	State State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("device: cannot %s while %s", e.Op, e.State)
}

// Unwrap lets errors.Is match ErrInvalidTransition.
func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// ConnectionError is a transport-level connect failure. It is reported
// through the session listener, never returned from Connect, and never
// retried automatically.
type ConnectionError struct {
	Device  *Device
	Message string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s failed: %s", e.Device.Name, e.Message)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
