package client

// State is the connection state of the client
type State uint64

const (
	Disconnected State = iota + 1
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	default:
		return "Unknown"
	}
}

func (s State) IsConnected() bool {
	return s == Connected
}

func (s State) IsDisconnected() bool {
	return s == Disconnected
}
