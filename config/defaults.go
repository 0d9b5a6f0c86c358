package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags and environment variable loading.

const (
	// DefaultPort is the game server port.
	DefaultPort = 11753

	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// TransportTCP selects length-prefixed framing over TCP.
	TransportTCP = "tcp"

	// TransportWS selects one binary WebSocket message per packet.
	TransportWS = "ws"

	// DefaultWSPath is the request path used by the WebSocket dialer.
	DefaultWSPath = "/lockstep"

	// DefaultConnTimeout bounds resolving plus connecting.
	DefaultConnTimeout = 30 * time.Second

	// DefaultTickRate is the simulation frame rate the driver runs at.
	DefaultTickRate = 40

	// MaxTickRate caps --tick-rate.
	MaxTickRate = 1000

	// DefaultPingInterval is how often the connect mode pings the server.
	DefaultPingInterval = 5 * time.Second

	// DefaultChatRate is the outbound chat allowance in messages per second.
	DefaultChatRate = 2.0

	// DefaultChatBurst is how many chat messages may be sent back to back.
	DefaultChatBurst = 5

	// MaxPlayerNameLen is the longest accepted player name.
	MaxPlayerNameLen = 32

	// DefaultKeepAliveInterval is the SSH keepalive interval in seconds.
	DefaultKeepAliveInterval = 30
)
