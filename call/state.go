package call

import "fmt"

// State is the lifecycle state of a one-to-one call.
type State int

const (
	// StateIdle is the state of a session before it is started.
	StateIdle State = iota
	// StateProceeding waits for the application to proceed and for the
	// connection to come up.
	StateProceeding
	// StateLocalRinging is an incoming call ready to be accepted.
	StateLocalRinging
	// StateRemoteRinging is an outgoing call ringing at the remote.
	StateRemoteRinging
	// StateConnected is an accepted call with media flowing.
	StateConnected
	// StateReconnecting is a connected call whose transport dropped.
	StateReconnecting
	// StateEnded is terminal.
	StateEnded
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateProceeding:
		return "Proceeding"
	case StateLocalRinging:
		return "LocalRinging"
	case StateRemoteRinging:
		return "RemoteRinging"
	case StateConnected:
		return "Connected"
	case StateReconnecting:
		return "Reconnecting"
	case StateEnded:
		return "Ended"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

var validTransitions = map[State][]State{
	StateIdle:          {StateProceeding, StateEnded},
	StateProceeding:    {StateLocalRinging, StateRemoteRinging, StateEnded},
	StateLocalRinging:  {StateConnected, StateEnded},
	StateRemoteRinging: {StateConnected, StateEnded},
	StateConnected:     {StateReconnecting, StateEnded},
	StateReconnecting:  {StateConnected, StateEnded},
	StateEnded:         {},
}

// CanTransitionTo checks if a transition from s to next is valid.
func (s State) CanTransitionTo(next State) bool {
	for _, state := range validTransitions[s] {
		if state == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s is the terminal state.
func (s State) IsTerminal() bool {
	return s == StateEnded
}

// IsConnected reports whether the call was accepted and not yet ended.
func (s State) IsConnected() bool {
	return s == StateConnected || s == StateReconnecting
}

// Direction tells who originated a call.
type Direction int

const (
	Outgoing Direction = iota
	Incoming
)

// String returns the string representation of the direction.
func (d Direction) String() string {
	if d == Incoming {
		return "Incoming"
	}
	return "Outgoing"
}
