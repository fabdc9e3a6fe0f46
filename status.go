package wsclient

// ConnectionStatus is the only lifecycle signal a Client exposes besides delivered messages.
type ConnectionStatus uint8

const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnected
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

func (s ConnectionStatus) IsConnected() bool {
	return s == StatusConnected
}
