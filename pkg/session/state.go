package session

import "fmt"

// State is the connection state of a session.
type State int

const (
	// StateDisconnected indicates no open channel.
	StateDisconnected State = iota
	// StateConnecting indicates a channel is being opened.
	StateConnecting
	// StateConnected indicates the channel is open and setup was sent.
	StateConnected
	// StateError indicates a channel failure. It is terminal once
	// reconnection attempts are exhausted.
	StateError
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// transitions lists every legal state change.
var transitions = map[State][]State{
	StateDisconnected: {StateConnecting},
	StateConnecting:   {StateConnected, StateError, StateDisconnected},
	StateConnected:    {StateError, StateDisconnected},
	StateError:        {StateDisconnected, StateConnecting},
}

// CanTransition reports whether from -> to is a legal state change.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
