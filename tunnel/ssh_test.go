package tunnel

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"io"
	"net"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"

	"lockstep/util"
)

// startSSHServer runs a minimal SSH gateway on loopback that accepts any
// public key and serves direct-tcpip channels.
func startSSHServer(t *testing.T) (host string, port int) {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatal(err)
	}
	cfg := &ssh.ServerConfig{
		PublicKeyCallback: func(ssh.ConnMetadata, ssh.PublicKey) (*ssh.Permissions, error) {
			return &ssh.Permissions{}, nil
		},
	}
	cfg.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			nc, err := ln.Accept()
			if err != nil {
				return
			}
			go serveSSH(nc, cfg)
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

func serveSSH(nc net.Conn, cfg *ssh.ServerConfig) {
	_, chans, reqs, err := ssh.NewServerConn(nc, cfg)
	if err != nil {
		nc.Close()
		return
	}
	go ssh.DiscardRequests(reqs)

	for nch := range chans {
		if nch.ChannelType() != "direct-tcpip" {
			nch.Reject(ssh.UnknownChannelType, "unsupported") //nolint:errcheck
			continue
		}
		var target struct {
			Host     string
			Port     uint32
			OrigHost string
			OrigPort uint32
		}
		if err := ssh.Unmarshal(nch.ExtraData(), &target); err != nil {
			nch.Reject(ssh.ConnectionFailed, "bad payload") //nolint:errcheck
			continue
		}
		upstream, err := net.Dial("tcp", net.JoinHostPort(target.Host, strconv.Itoa(int(target.Port))))
		if err != nil {
			nch.Reject(ssh.ConnectionFailed, err.Error()) //nolint:errcheck
			continue
		}
		ch, creqs, err := nch.Accept()
		if err != nil {
			upstream.Close()
			continue
		}
		go ssh.DiscardRequests(creqs)
		go func() {
			io.Copy(ch, upstream) //nolint:errcheck
			ch.Close()
		}()
		go func() {
			io.Copy(upstream, ch) //nolint:errcheck
			upstream.Close()
		}()
	}
}

func startEcho(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				io.Copy(c, c) //nolint:errcheck
				c.Close()
			}()
		}
	}()
	return ln.Addr().String()
}

func TestSSHTunnel_ConnectAndDial(t *testing.T) {
	host, port := startSSHServer(t)
	echo := startEcho(t)

	keyPath := filepath.Join(t.TempDir(), "id_test")
	writeTestKey(t, keyPath)

	tun := NewSSHTunnel(&SSHConfig{
		User:        "player",
		Host:        host,
		Port:        port,
		KeyPath:     keyPath,
		ConnTimeout: 5 * time.Second,
		KeepAlive:   50 * time.Millisecond,
	}, util.NewLogger(0))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := tun.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !tun.IsAlive() {
		t.Fatal("tunnel should be alive after Connect")
	}

	conn, err := tun.Dial(ctx, "tcp", echo)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if _, err := conn.Write([]byte("ping")); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 4)
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "ping" {
		t.Errorf("echo = %q", buf)
	}
	conn.Close()

	// Let at least one keepalive go out.
	time.Sleep(120 * time.Millisecond)
	if !tun.IsAlive() {
		t.Error("keepalives should not kill the tunnel")
	}

	if err := tun.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if tun.IsAlive() {
		t.Error("tunnel should not be alive after Close")
	}
	if _, err := tun.Dial(ctx, "tcp", echo); err == nil {
		t.Error("Dial after Close should fail")
	}
}

func TestSSHTunnel_DialBeforeConnect(t *testing.T) {
	tun := NewSSHTunnel(&SSHConfig{Host: "127.0.0.1"}, util.NewLogger(0))
	if _, err := tun.Dial(context.Background(), "tcp", "127.0.0.1:1"); err == nil {
		t.Fatal("Dial before Connect should fail")
	}
}

func TestSSHTunnel_ConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	keyPath := filepath.Join(t.TempDir(), "id_test")
	writeTestKey(t, keyPath)

	tun := NewSSHTunnel(&SSHConfig{
		Host: "127.0.0.1", Port: port, KeyPath: keyPath, ConnTimeout: time.Second,
	}, util.NewLogger(0))
	if err := tun.Connect(context.Background()); err == nil {
		t.Fatal("expected connection refused")
	}
}

func TestNewSSHTunnel_Defaults(t *testing.T) {
	cfg := &SSHConfig{Host: "gw"}
	NewSSHTunnel(cfg, util.NewLogger(0))
	if cfg.Port != 22 {
		t.Errorf("Port = %d, want 22", cfg.Port)
	}
	if cfg.ConnTimeout != 30*time.Second {
		t.Errorf("ConnTimeout = %v", cfg.ConnTimeout)
	}
	if cfg.Prompt == nil {
		t.Error("Prompt should default to the terminal prompter")
	}
}
