// Package tick tracks the server's authoritative tick and detects when
// the local simulation diverges from it.
package tick

// Anchor is the (tick, seed) pair the local simulation is compared
// against.
type Anchor struct {
	Tick uint32
	Seed uint32
}

// Tracker holds the latest server tick and the first seed anchor seen
// since the last snapshot load.
type Tracker struct {
	serverTick     uint32
	anchor         Anchor
	anchorSet      bool
	desynchronized bool
}

// Receive records a TICK message.  The server tick always advances; the
// anchor is only fixed while unset.
func (t *Tracker) Receive(tick, seed uint32) {
	t.serverTick = tick
	if !t.anchorSet {
		t.anchor = Anchor{Tick: tick, Seed: seed}
		t.anchorSet = true
	}
}

// Reset clears the anchor after a snapshot load and aligns the server
// tick with the simulation's current tick.
func (t *Tracker) Reset(currentTick uint32) {
	t.serverTick = currentTick
	t.anchor = Anchor{}
	t.anchorSet = false
	t.desynchronized = false
}

// Check compares the local seed at the anchor tick.  A mismatch latches
// the desynchronized flag until the next Reset.  It returns true when
// the flag is set.
func (t *Tracker) Check(localTick, localSeed uint32) bool {
	if t.anchorSet && localTick == t.anchor.Tick && localSeed != t.anchor.Seed {
		t.desynchronized = true
	}
	return t.desynchronized
}

// ServerTick returns the latest authoritative tick.
func (t *Tracker) ServerTick() uint32 { return t.serverTick }

// Anchor returns the current anchor and whether one is set.
func (t *Tracker) Anchor() (Anchor, bool) { return t.anchor, t.anchorSet }

// Desynchronized reports whether a divergence has been detected.
func (t *Tracker) Desynchronized() bool { return t.desynchronized }
