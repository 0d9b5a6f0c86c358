package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"lockstep/internal/protocol"
)

// WSDialer reaches servers that speak the protocol over WebSocket, one
// binary message per packet.
type WSDialer struct {
	Path    string
	Timeout time.Duration
	Header  http.Header
}

// Dial performs the WebSocket handshake with ws://address/Path.
func (d *WSDialer) Dial(ctx context.Context, address string) (PacketConn, error) {
	u := url.URL{Scheme: "ws", Host: address, Path: d.Path}
	dialer := websocket.Dialer{
		HandshakeTimeout: d.Timeout,
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
	}
	conn, resp, err := dialer.DialContext(ctx, u.String(), d.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake with %s: %s: %w", u.String(), resp.Status, err)
		}
		return nil, err
	}
	conn.SetReadLimit(protocol.MaxPayload)
	return &wsConn{conn: conn}, nil
}

// DialsByName keeps the host name in the URL so virtual hosting works.
func (d *WSDialer) DialsByName() bool { return true }

// Close is a no-op; each connection owns its socket.
func (d *WSDialer) Close() error { return nil }

type wsConn struct {
	conn *websocket.Conn
	wmu  sync.Mutex
}

func (c *wsConn) ReadPacket() ([]byte, error) {
	for {
		mt, p, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if mt == websocket.BinaryMessage {
			return p, nil
		}
		// Text frames carry nothing for us.
	}
}

func (c *wsConn) WritePacket(p []byte) error {
	if len(p) > protocol.MaxPayload {
		return fmt.Errorf("packet of %d bytes exceeds limit %d", len(p), protocol.MaxPayload)
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.conn.WriteMessage(websocket.BinaryMessage, p)
}

// Close sends a close frame and drops the socket.  WriteControl may run
// alongside WritePacket, so a writer stuck on a peer that stopped
// reading does not hold Close up past the frame's deadline.
func (c *wsConn) Close() error {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}
