package core

import (
	"context"
	"fmt"
	"io"
	"os"

	"lockstep/internal/identity"
	"lockstep/util"
)

// KeygenMode makes sure the player has a key pair and prints where it
// lives.  An existing key is never replaced.
type KeygenMode struct {
	Store  *identity.Store
	Player string
	Logger *util.Logger
	Stdout io.Writer
}

// Run generates the key pair if needed and prints its identity.
func (m *KeygenMode) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.Logger.Verbose("ensuring a key pair for %q in %s", m.Player, m.Store.Dir())

	key, generated, err := m.Store.EnsureKey(m.Player)
	if err != nil {
		return fmt.Errorf("key for %q: %w", m.Player, err)
	}
	if generated {
		m.Logger.Info("generated a new key pair for %q", m.Player)
	} else {
		m.Logger.Info("%q already has a key pair", m.Player)
	}
	return printIdentity(stdoutOr(m.Stdout), m.Store, m.Player, key)
}

// FingerprintMode prints the identity of an existing key pair.
type FingerprintMode struct {
	Store  *identity.Store
	Player string
	Logger *util.Logger
	Stdout io.Writer
}

// Run loads the player's key and prints its hash and fingerprint.
func (m *FingerprintMode) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := identity.NewKey()
	err := m.Store.LoadPrivate(key, m.Player)
	key.Unload()
	if err != nil {
		return fmt.Errorf("key for %q: %w", m.Player, err)
	}
	return printIdentity(stdoutOr(m.Stdout), m.Store, m.Player, key)
}

func printIdentity(w io.Writer, store *identity.Store, player string, key *identity.Key) error {
	hash, err := key.PublicKeyHash()
	if err != nil {
		return err
	}
	fp, err := key.SSHFingerprint()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "player:      %s\n", player)
	fmt.Fprintf(w, "key hash:    %s\n", hash)
	fmt.Fprintf(w, "fingerprint: %s\n", fp)
	fmt.Fprintf(w, "private key: %s\n", store.PrivateKeyPath(player))
	fmt.Fprintf(w, "public key:  %s\n", store.PublicKeyPath(player, hash))
	return nil
}

func stdoutOr(w io.Writer) io.Writer {
	if w != nil {
		return w
	}
	return os.Stdout
}
