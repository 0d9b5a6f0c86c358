package tunnel

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	lserrors "lockstep/internal/errors"
)

// TestBuildAuthMethods_ExplicitKey verifies that a key file is loaded.
func TestBuildAuthMethods_ExplicitKey(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "id_test")
	writeTestKey(t, keyPath)

	cfg := &SSHConfig{KeyPath: keyPath}
	methods, err := BuildAuthMethods(cfg)
	if err != nil {
		t.Fatalf("BuildAuthMethods: %v", err)
	}
	if len(methods) == 0 {
		t.Fatal("expected at least one auth method")
	}
}

// TestBuildAuthMethods_NoMethods verifies a clear error message.
func TestBuildAuthMethods_NoMethods(t *testing.T) {
	// Remove SSH_AUTH_SOCK so agent fails, and supply no key.
	t.Setenv("SSH_AUTH_SOCK", "")

	cfg := &SSHConfig{KeyPath: "/nonexistent/key"}
	_, err := BuildAuthMethods(cfg)
	if err == nil {
		t.Fatal("expected error for missing key")
	}
}

// TestBuildAuthMethods_PasswordUsesPrompter verifies that password auth
// reads through the configured prompter instead of the terminal.
func TestBuildAuthMethods_PasswordUsesPrompter(t *testing.T) {
	var asked string
	cfg := &SSHConfig{
		PromptPass: true,
		Prompt: func(prompt string) ([]byte, error) {
			asked = prompt
			return []byte("pw"), nil
		},
	}
	methods, err := BuildAuthMethods(cfg)
	if err != nil {
		t.Fatalf("BuildAuthMethods: %v", err)
	}
	if len(methods) != 1 {
		t.Fatalf("methods = %d, want 1", len(methods))
	}
	if asked != "SSH password: " {
		t.Errorf("prompt = %q", asked)
	}
}

// TestBuildAuthMethods_PromptError verifies prompter failures surface.
func TestBuildAuthMethods_PromptError(t *testing.T) {
	cfg := &SSHConfig{
		PromptPass: true,
		Prompt:     func(string) ([]byte, error) { return nil, errors.New("no tty") },
	}
	if _, err := BuildAuthMethods(cfg); err == nil {
		t.Fatal("expected prompter error")
	}
}

// TestHostKeyCallback_Strict verifies that a missing known_hosts file
// is reported when strict checking is on.
func TestHostKeyCallback_Strict(t *testing.T) {
	cfg := &SSHConfig{StrictHostKey: true, KnownHosts: filepath.Join(t.TempDir(), "missing")}
	if _, err := hostKeyCallback(cfg); err == nil {
		t.Fatal("expected error for missing known_hosts")
	}
}

// TestHostKeyCallback_Insecure verifies that InsecureIgnoreHostKey is used
// when StrictHostKey is false.
func TestHostKeyCallback_Insecure(t *testing.T) {
	cfg := &SSHConfig{StrictHostKey: false}
	cb, err := hostKeyCallback(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if cb == nil {
		t.Fatal("callback should not be nil")
	}
}

func TestBuildAuthMethods_NothingSelectedNoAgent(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	if _, err := BuildAuthMethods(&SSHConfig{}); err == nil {
		t.Fatal("expected an error with no method and no agent")
	}
}

func TestHostKeyCallback_KnownHosts(t *testing.T) {
	known := testPublicKey(t)
	other := testPublicKey(t)

	path := filepath.Join(t.TempDir(), "known_hosts")
	line := knownhosts.Line([]string{"gw.test:22"}, known) + "\n"
	if err := os.WriteFile(path, []byte(line), 0o600); err != nil {
		t.Fatal(err)
	}
	cb, err := hostKeyCallback(&SSHConfig{StrictHostKey: true, KnownHosts: path})
	if err != nil {
		t.Fatal(err)
	}
	remote := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 22}

	tests := []struct {
		name         string
		host         string
		key          ssh.PublicKey
		wantErr      bool
		wantMismatch bool
	}{
		{"recorded key", "gw.test:22", known, false, false},
		{"changed key", "gw.test:22", other, true, true},
		{"unknown host", "elsewhere.test:22", known, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := cb(tt.host, remote, tt.key)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got := errors.Is(err, lserrors.ErrHostKeyMismatch); got != tt.wantMismatch {
				t.Errorf("mismatch = %v, want %v (err %v)", got, tt.wantMismatch, err)
			}
		})
	}
}

// ── helpers ──────────────────────────────────────────────────────────

// writeTestKey writes a fresh, unencrypted ed25519 private key in
// OpenSSH format.
func writeTestKey(t *testing.T, path string) {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	block, err := ssh.MarshalPrivateKey(priv, "lockstep-test")
	if err != nil {
		t.Fatalf("marshal test key: %v", err)
	}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0600); err != nil {
		t.Fatal(err)
	}
}

func testPublicKey(t *testing.T) ssh.PublicKey {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	k, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatal(err)
	}
	return k
}
