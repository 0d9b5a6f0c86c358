package transport

import (
	"context"
	"net"
	"sync"

	lserrors "lockstep/internal/errors"
)

// MemDialer connects clients to an in-process server over net.Pipe.
// Each Dial hands the server end of the pipe to Accept.
type MemDialer struct {
	conns  chan *FramedConn
	once   sync.Once
	closed chan struct{}
}

// NewMemDialer returns a ready MemDialer.
func NewMemDialer() *MemDialer {
	return &MemDialer{
		conns:  make(chan *FramedConn, 1),
		closed: make(chan struct{}),
	}
}

// Dial creates a pipe and queues its server end for Accept.
func (d *MemDialer) Dial(ctx context.Context, address string) (PacketConn, error) {
	client, server := net.Pipe()
	select {
	case d.conns <- NewFramedConn(server):
		return NewFramedConn(client), nil
	case <-ctx.Done():
	case <-d.closed:
	}
	client.Close()
	server.Close()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, lserrors.ErrNotConnected
}

// Accept returns the server end of the next dialled connection.
func (d *MemDialer) Accept(ctx context.Context) (*FramedConn, error) {
	select {
	case c := <-d.conns:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-d.closed:
		return nil, lserrors.ErrNotConnected
	}
}

// DialsByName skips DNS; the address is only a label.
func (d *MemDialer) DialsByName() bool { return true }

// Close makes pending and future Dial and Accept calls fail.
func (d *MemDialer) Close() error {
	d.once.Do(func() { close(d.closed) })
	return nil
}
