package transport

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"

	"lockstep/internal/protocol"
)

// FramedConn carries packets over a byte stream, each prefixed with its
// length as a big-endian uint16.
type FramedConn struct {
	conn net.Conn
	r    *bufio.Reader
	wmu  sync.Mutex
}

// NewFramedConn wraps conn.
func NewFramedConn(conn net.Conn) *FramedConn {
	return &FramedConn{conn: conn, r: bufio.NewReader(conn)}
}

// ReadPacket reads one length-prefixed packet.
func (f *FramedConn) ReadPacket() ([]byte, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(f.r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint16(hdr[:])
	p := make([]byte, n)
	if _, err := io.ReadFull(f.r, p); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return p, nil
}

// WritePacket writes p with its length prefix in a single write.
func (f *FramedConn) WritePacket(p []byte) error {
	if len(p) > protocol.MaxPayload {
		return fmt.Errorf("packet of %d bytes exceeds frame limit %d", len(p), protocol.MaxPayload)
	}
	buf := make([]byte, 2+len(p))
	binary.BigEndian.PutUint16(buf, uint16(len(p)))
	copy(buf[2:], p)

	f.wmu.Lock()
	defer f.wmu.Unlock()
	_, err := f.conn.Write(buf)
	return err
}

// Close closes the underlying stream.
func (f *FramedConn) Close() error { return f.conn.Close() }

// RemoteAddr returns the peer address.
func (f *FramedConn) RemoteAddr() net.Addr { return f.conn.RemoteAddr() }
