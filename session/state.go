package session

import "fmt"

// State is the lifecycle state of a Session.
//
//	INIT -> STREAMING -> {DRAINING, ERRORED} -> CLOSED
//
// A failure to open the backend stream goes from INIT straight to ERRORED.
type State int32

const (
	StateInit State = iota
	StateStreaming
	StateDraining
	StateErrored
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateStreaming:
		return "STREAMING"
	case StateDraining:
		return "DRAINING"
	case StateErrored:
		return "ERRORED"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}
