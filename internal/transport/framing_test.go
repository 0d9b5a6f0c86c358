package transport

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"lockstep/internal/protocol"
)

// TestTCPDialer_Framing sends packets both ways over a real loopback
// socket.
func TestTCPDialer_Framing(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	// Server: echo every packet back.
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		fc := NewFramedConn(conn)
		defer fc.Close()
		for {
			p, err := fc.ReadPacket()
			if err != nil {
				return
			}
			if err := fc.WritePacket(p); err != nil {
				return
			}
		}
	}()

	d := &TCPDialer{Timeout: 2 * time.Second}
	pc, err := d.Dial(context.Background(), ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer pc.Close()

	packets := [][]byte{
		{0, 0, 0, 6},
		{},
		bytes.Repeat([]byte{0xAB}, 4000),
		bytes.Repeat([]byte{0xCD}, protocol.MaxPayload),
	}
	for _, p := range packets {
		if err := pc.WritePacket(p); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	for i, want := range packets {
		got, err := pc.ReadPacket()
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("packet %d: got %d bytes, want %d", i, len(got), len(want))
		}
	}
}

func TestFramedConn_WireLayout(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go NewFramedConn(client).WritePacket([]byte{1, 2, 3}) //nolint:errcheck

	buf := make([]byte, 5)
	if _, err := io.ReadFull(server, buf); err != nil {
		t.Fatal(err)
	}
	if want := []byte{0, 3, 1, 2, 3}; !bytes.Equal(buf, want) {
		t.Errorf("wire = % x, want % x", buf, want)
	}
}

func TestFramedConn_TooLarge(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	if err := NewFramedConn(client).WritePacket(make([]byte, protocol.MaxPayload+1)); err == nil {
		t.Fatal("oversized packet should be refused")
	}
}

func TestFramedConn_TruncatedBody(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	go func() {
		server.Write([]byte{0, 10, 1, 2}) //nolint:errcheck
		server.Close()
	}()

	if _, err := NewFramedConn(client).ReadPacket(); err != io.ErrUnexpectedEOF {
		t.Errorf("err = %v, want io.ErrUnexpectedEOF", err)
	}
}

// TestTCPDialer_ContextCancel verifies that a cancelled context stops the dial.
func TestTCPDialer_ContextCancel(t *testing.T) {
	d := &TCPDialer{Timeout: 5 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	if _, err := d.Dial(ctx, "127.0.0.1:1"); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

// TestTCPDialer_Close verifies Close is a no-op and returns nil.
func TestTCPDialer_Close(t *testing.T) {
	d := &TCPDialer{}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
