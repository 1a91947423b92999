package capture

import "fmt"

// State is the lifecycle state of a Session.
type State int

const (
	StateIdle State = iota
	StateCapturing
	StateStopping
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateStopping:
		return "stopping"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Status is a snapshot of a Session. Device and RunID are set while capturing,
// stopping or failed; Err only when failed.
type Status struct {
	State  State
	Device Device
	RunID  string
	Err    error
}

func (s Status) String() string {
	switch s.State {
	case StateCapturing, StateStopping:
		return fmt.Sprintf("%s(%s)", s.State, s.Device)
	case StateFailed:
		return fmt.Sprintf("%s(%v)", s.State, s.Err)
	default:
		return s.State.String()
	}
}
