// Package transport moves whole packets between the client and a game
// server.  Dialers handle the "how" of reaching the server (plain TCP,
// WebSocket, or TCP through an SSH gateway); Connection wraps a dialer
// with an asynchronous connect, a send queue and a polled inbox so the
// single-threaded session never blocks on the network.
package transport

import (
	"context"
)

// PacketConn is an ordered, reliable stream of discrete packets.
type PacketConn interface {
	// ReadPacket blocks until a whole packet has arrived.
	ReadPacket() ([]byte, error)

	// WritePacket sends one packet.
	WritePacket(p []byte) error

	// Close tears the connection down and unblocks pending calls.
	Close() error
}

// Dialer opens packet connections to a game server.
type Dialer interface {
	// Dial connects to address ("host:port").
	Dial(ctx context.Context, address string) (PacketConn, error)

	// Close releases any long-lived resources held by the dialer
	// (e.g. an SSH session).  Stateless dialers return nil.
	Close() error
}

// NameDialer is implemented by dialers that want the server's host
// name rather than a locally resolved address, e.g. because the name
// is resolved on the far side of a tunnel.
type NameDialer interface {
	DialsByName() bool
}
