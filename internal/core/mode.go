// Package core is the orchestration layer.  It composes the session,
// transports and key store into complete operational modes and provides
// a builder that selects the right mode from a Config.
//
// Architecture layers (bottom → top):
//
//	identity, protocol, transport  →  auth, snapshot, tick, command  →  session  →  core  →  cmd (CLI)
package core

import "context"

// Mode is one complete run of the client: joining a game, generating a
// key or printing a fingerprint.  Each mode owns its full lifecycle.
type Mode interface {
	Run(ctx context.Context) error
}
