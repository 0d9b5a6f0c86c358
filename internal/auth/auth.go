// Package auth implements the client side of the challenge-response
// handshake.  The server sends a challenge; the client signs it with the
// player's private key and answers with an AUTH message.  The private
// key is resident only while a signature is being made.
package auth

import (
	"fmt"

	lserrors "lockstep/internal/errors"
	"lockstep/internal/identity"
	"lockstep/internal/metrics"
	"lockstep/internal/protocol"
)

// Sender queues an outbound message on the session's connection.
type Sender interface {
	Send(m protocol.Message) error
}

// Authenticator tracks one session's handshake.
type Authenticator struct {
	store    *identity.Store
	key      *identity.Key
	player   string
	sender   Sender
	metrics  *metrics.Collector
	status   Status
	playerID uint8

	// The challenge outlives a single attempt: a REQUIRE_PASSWORD answer
	// is followed by a second AUTH over the same bytes.
	challenge []byte
}

// New returns an authenticator signing as player with the key pair held
// in store.  key must carry the public half.
func New(store *identity.Store, key *identity.Key, player string, sender Sender, m *metrics.Collector) *Authenticator {
	return &Authenticator{
		store:   store,
		key:     key,
		player:  player,
		sender:  sender,
		metrics: m,
	}
}

// Status returns the current authentication status.
func (a *Authenticator) Status() Status { return a.status }

// PlayerID returns the id assigned by the server on success.
func (a *Authenticator) PlayerID() (uint8, bool) {
	return a.playerID, a.status == StatusOK
}

// HasChallenge reports whether a challenge is retained.
func (a *Authenticator) HasChallenge() bool { return a.challenge != nil }

// HandleChallenge retains challenge and answers it with an AUTH message
// carrying an empty password.  On error the status is
// VERIFICATION_FAILURE and nothing was sent.
func (a *Authenticator) HandleChallenge(challenge []byte) error {
	a.wipeChallenge()
	a.challenge = append(make([]byte, 0, len(challenge)), challenge...)
	return a.respond("")
}

// SendPassword re-signs the retained challenge and resends AUTH with
// password.
func (a *Authenticator) SendPassword(password string) error {
	if a.challenge == nil {
		return fmt.Errorf("auth: no challenge to answer")
	}
	return a.respond(password)
}

func (a *Authenticator) respond(password string) error {
	pub, err := a.key.PublicKeyString()
	if err != nil {
		a.status = StatusVerificationFailure
		return lserrors.WrapCrypto("load", err)
	}
	sig, err := a.sign()
	if err != nil {
		a.status = StatusVerificationFailure
		return err
	}

	a.metrics.AuthAttempt()
	err = a.sender.Send(protocol.AuthRequest{
		StreamID:  protocol.StreamID,
		Name:      a.player,
		Password:  password,
		PublicKey: pub,
		Signature: sig,
	})
	if err != nil {
		return err
	}
	a.status = StatusRequested
	return nil
}

// sign loads the private key, signs the retained challenge and unloads
// the key again on every path.
func (a *Authenticator) sign() ([]byte, error) {
	defer a.key.Unload()
	if err := a.store.LoadPrivate(a.key, a.player); err != nil {
		return nil, err
	}
	return a.key.Sign(a.challenge)
}

// HandleResult applies the server's AUTH answer and returns the new
// status.
func (a *Authenticator) HandleResult(res protocol.AuthResult) Status {
	a.status = FromWire(res.Status)
	switch {
	case a.status == StatusOK:
		a.playerID = res.PlayerID
		a.wipeChallenge()
	case a.status.Failed():
		a.wipeChallenge()
	}
	return a.status
}

// Fail forces a terminal VERIFICATION_FAILURE.  The session uses it when
// the player's key could not be generated or loaded before the handshake.
func (a *Authenticator) Fail() {
	a.status = StatusVerificationFailure
	a.wipeChallenge()
}

// DropChallenge wipes the retained challenge and keeps the status, so a
// failed handshake can still be reported after the connection ends.
func (a *Authenticator) DropChallenge() {
	a.wipeChallenge()
}

// Reset returns the authenticator to NONE, wiping the challenge and any
// private material.
func (a *Authenticator) Reset() {
	a.key.Unload()
	a.wipeChallenge()
	a.status = StatusNone
	a.playerID = 0
}

func (a *Authenticator) wipeChallenge() {
	for i := range a.challenge {
		a.challenge[i] = 0
	}
	a.challenge = nil
}
