package domain

// ConnectionState is the lifecycle state of the transport session.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateDisconnecting
)

// String returns the lowercase name of the state.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so states serialize by name.
func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Transition records a single state change together with its status text.
type Transition struct {
	From    ConnectionState `json:"from"`
	To      ConnectionState `json:"to"`
	Message string          `json:"message"`
}
