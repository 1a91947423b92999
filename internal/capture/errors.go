package capture

import (
	"errors"
	"fmt"
)

// ErrInvalidState is matched by errors.Is for every *InvalidStateError.
var ErrInvalidState = errors.New("invalid capture state")

// InvalidStateError rejects an operation the current state does not allow.
type InvalidStateError struct {
	Op    string
	State State
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Op, e.State)
}

func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}

// DeviceOpenError reports that a device could not be opened for capture.
type DeviceOpenError struct {
	Device Device
	Err    error
}

func (e *DeviceOpenError) Error() string {
	return fmt.Sprintf("failed to open device %s: %v", e.Device.Name, e.Err)
}

func (e *DeviceOpenError) Unwrap() error { return e.Err }

// TerminalCaptureError reports a read failure that ended a running capture.
type TerminalCaptureError struct {
	Device Device
	Err    error
}

func (e *TerminalCaptureError) Error() string {
	return fmt.Sprintf("capture on %s failed: %v", e.Device.Name, e.Err)
}

func (e *TerminalCaptureError) Unwrap() error { return e.Err }

// StopError reports that Stop gave up waiting for the capture goroutine.
type StopError struct {
	Err error
}

func (e *StopError) Error() string {
	return fmt.Sprintf("capture still stopping: %v", e.Err)
}

func (e *StopError) Unwrap() error { return e.Err }
