package session

import (
	"lockstep/internal/auth"
	"lockstep/internal/tick"
)

// Simulation is the deterministic game the session feeds.
type Simulation interface {
	// LoadSnapshot replaces the world with data.  It reports false when
	// the snapshot could not be loaded.
	LoadSnapshot(data []byte) bool
	InitAfterLoad()
	CurrentTick() uint32
	// ReturnToTitle drops back to an empty state after a failed load.
	ReturnToTitle()
}

// ChatSink displays chat.
type ChatSink interface {
	ShowMessage(text string)
	ShowChatHelp()
}

// Events receives session notifications.  Every method is called from
// Update or from the outbound call that caused the change.
type Events interface {
	ConnectionStatusChanged(s Status)
	AuthStatusChanged(s auth.Status)
	MapProgress(received, total uint32)
	MapLoaded(ok bool)
	ServerInfoChanged(info ServerInfo)
	PasswordRequired()
	Disconnected(reason string)
	Desynchronized(anchor tick.Anchor)
}

// NopEvents ignores every notification.  Embed it to implement only
// some of Events.
type NopEvents struct{}

func (NopEvents) ConnectionStatusChanged(Status) {}
func (NopEvents) AuthStatusChanged(auth.Status)  {}
func (NopEvents) MapProgress(uint32, uint32)     {}
func (NopEvents) MapLoaded(bool)                 {}
func (NopEvents) ServerInfoChanged(ServerInfo)   {}
func (NopEvents) PasswordRequired()              {}
func (NopEvents) Disconnected(string)            {}
func (NopEvents) Desynchronized(tick.Anchor)     {}

type nopChat struct{}

func (nopChat) ShowMessage(string) {}
func (nopChat) ShowChatHelp()      {}
