package session

import "lockstep/internal/transport"

// Status is the connection status of a session.
type Status int

const (
	StatusNone Status = iota
	// StatusResolving is reserved for lookups made before Begin, such as
	// a server list query.
	StatusResolving
	StatusConnecting
	StatusConnected
	// StatusOK means a snapshot is loaded and gameplay is active.
	StatusOK
	StatusConnectionFailure
	StatusDisconnected
)

func (s Status) String() string {
	switch s {
	case StatusNone:
		return "NONE"
	case StatusResolving:
		return "RESOLVING"
	case StatusConnecting:
		return "CONNECTING"
	case StatusConnected:
		return "CONNECTED"
	case StatusOK:
		return "OK"
	case StatusConnectionFailure:
		return "CONNECTION_FAILURE"
	case StatusDisconnected:
		return "DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}

// Ended reports whether the connection is over.
func (s Status) Ended() bool {
	return s == StatusConnectionFailure || s == StatusDisconnected
}

// NoPlayer is the player id before the server has assigned one.
const NoPlayer uint8 = 255

// fromSocket maps the socket statuses the session reports.  Begin
// already reports CONNECTING, so only the connected edge is taken from
// the socket; its failure edges are handled by Update.
func fromSocket(st transport.SocketStatus) (Status, bool) {
	if st == transport.SocketConnected {
		return StatusConnected, true
	}
	return StatusNone, false
}
