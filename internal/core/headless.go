package core

import (
	"os"

	"lockstep/internal/command"
	"lockstep/internal/session"
	"lockstep/util"
)

// Simulation is what the driver loop advances.  It extends the
// session's view with stepping and command application.
type Simulation interface {
	session.Simulation

	// Apply executes a command at the current tick.
	Apply(c command.Command)

	// Step advances the simulation by one tick.
	Step()

	// Seed returns the random seed at the current tick.  ok is false
	// when the simulation cannot vouch for it, which disables desync
	// checks.
	Seed() (seed uint32, ok bool)
}

// HeadlessSim stands in for a real simulation.  It keeps the snapshot
// bytes, counts ticks and commands, and can save each snapshot it
// receives to a file.
type HeadlessSim struct {
	SnapshotOut string
	Logger      *util.Logger

	world   []byte
	tick    uint32
	applied int
	loads   int
}

// LoadSnapshot accepts any non-empty snapshot.
func (h *HeadlessSim) LoadSnapshot(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	if h.SnapshotOut != "" {
		if err := os.WriteFile(h.SnapshotOut, data, 0o644); err != nil {
			h.Logger.Error("saving snapshot: %v", err)
			return false
		}
		h.Logger.Info("saved %d byte snapshot to %s", len(data), h.SnapshotOut)
	}
	h.world = data
	h.loads++
	return true
}

func (h *HeadlessSim) InitAfterLoad() { h.tick = 0 }

func (h *HeadlessSim) CurrentTick() uint32 { return h.tick }

func (h *HeadlessSim) ReturnToTitle() {
	h.world = nil
	h.tick = 0
}

func (h *HeadlessSim) Apply(c command.Command) {
	h.applied++
	h.Logger.Debug("apply %s", c)
}

func (h *HeadlessSim) Step() { h.tick++ }

func (h *HeadlessSim) Seed() (uint32, bool) { return 0, false }

// Loaded reports whether a world is loaded.
func (h *HeadlessSim) Loaded() bool { return h.world != nil }

// Applied returns the number of commands applied.
func (h *HeadlessSim) Applied() int { return h.applied }
