package auth

// Status is the authentication state of a session.  It moves from
// StatusNone to StatusRequested when an AUTH message is queued and then
// to one of the outcomes reported by the server.
type Status int

const (
	StatusNone Status = iota
	StatusRequested
	StatusOK
	StatusBadVersion
	StatusBadName
	StatusBadPassword
	StatusVerificationFailure
	StatusFull
	StatusRequirePassword
	StatusUnknownKeyHash
	StatusUnknownPlayer
	StatusFailure
)

var statusNames = [...]string{
	StatusNone:                "NONE",
	StatusRequested:           "REQUESTED",
	StatusOK:                  "OK",
	StatusBadVersion:          "BAD_VERSION",
	StatusBadName:             "BAD_NAME",
	StatusBadPassword:         "BAD_PASSWORD",
	StatusVerificationFailure: "VERIFICATION_FAILURE",
	StatusFull:                "FULL",
	StatusRequirePassword:     "REQUIRE_PASSWORD",
	StatusUnknownKeyHash:      "UNKNOWN_KEY_HASH",
	StatusUnknownPlayer:       "UNKNOWN_PLAYER",
	StatusFailure:             "FAILURE",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "UNKNOWN"
	}
	return statusNames[s]
}

// FromWire maps the status word of a server AUTH message.  Values the
// client does not know, and the client-only NONE and REQUESTED states,
// map to StatusFailure.
func FromWire(v uint32) Status {
	s := Status(v)
	if v >= uint32(len(statusNames)) || s == StatusNone || s == StatusRequested {
		return StatusFailure
	}
	return s
}

// Wire returns the status word sent by a server for s.
func (s Status) Wire() uint32 { return uint32(s) }

// Terminal reports whether s ends the handshake.  REQUIRE_PASSWORD is
// not terminal: the client answers it with SendPassword.
func (s Status) Terminal() bool {
	switch s {
	case StatusNone, StatusRequested, StatusRequirePassword:
		return false
	}
	return true
}

// Failed reports whether s is a terminal failure.
func (s Status) Failed() bool {
	return s.Terminal() && s != StatusOK
}

// Reason returns the disconnect reason shown for a failed status.
func (s Status) Reason() string {
	switch s {
	case StatusBadVersion:
		return "authentication failed (BAD_VERSION): the server runs a different protocol version"
	case StatusBadName:
		return "authentication failed (BAD_NAME): the server rejected the player name"
	case StatusBadPassword:
		return "authentication failed (BAD_PASSWORD): wrong password"
	case StatusVerificationFailure:
		return "authentication failed (VERIFICATION_FAILURE): could not prove key ownership"
	case StatusFull:
		return "authentication failed (FULL): the server is full"
	case StatusUnknownKeyHash:
		return "authentication failed (UNKNOWN_KEY_HASH): the server does not know this key"
	case StatusUnknownPlayer:
		return "authentication failed (UNKNOWN_PLAYER): the server does not know this player"
	case StatusOK, StatusNone, StatusRequested, StatusRequirePassword:
		return ""
	}
	return "authentication failed (" + s.String() + ")"
}
