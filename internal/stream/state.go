package stream

// State is the streaming lifecycle of an entertainment group.
//
//	Disabled --Enable--> Enabling --ack+handshake--> Active --Disable--> Disabling --> Disabled
//	Enabling --failure--> Disabled
type State int

const (
	StateDisabled State = iota
	StateEnabling
	StateActive
	StateDisabling
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateEnabling:
		return "enabling"
	case StateActive:
		return "active"
	case StateDisabling:
		return "disabling"
	default:
		return "unknown"
	}
}

// StateChange describes one transition, handed to observers.
type StateChange struct {
	From      State
	To        State
	GroupID   string
	SessionID string
	Frames    uint64 // frames sent during the session so far
	Err       error  // failure that caused the transition, if any
}
