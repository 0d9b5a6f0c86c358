package transport

import (
	"context"
	"net"
	"time"
)

// TCPDialer establishes plain TCP connections with length-prefixed
// framing.
type TCPDialer struct {
	Timeout time.Duration
}

// Dial connects to address over TCP.
func (d *TCPDialer) Dial(ctx context.Context, address string) (PacketConn, error) {
	dialer := net.Dialer{Timeout: d.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		// Commands are small and latency sensitive.
		_ = tc.SetNoDelay(true)
	}
	return NewFramedConn(conn), nil
}

// Close is a no-op for stateless TCP dialers.
func (d *TCPDialer) Close() error { return nil }
