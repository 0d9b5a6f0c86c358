package core

import (
	"fmt"
	"io"

	"lockstep/internal/auth"
	"lockstep/internal/session"
	"lockstep/internal/tick"
	"lockstep/util"
)

// driverEvents logs session notifications and records what the driver
// loop must act on.
type driverEvents struct {
	session.NopEvents
	log *util.Logger

	passwordRequired bool
	lastPercent      int
}

func (e *driverEvents) ConnectionStatusChanged(s session.Status) {
	e.log.Verbose("connection status: %s", s)
}

func (e *driverEvents) AuthStatusChanged(s auth.Status) {
	e.log.Verbose("authentication status: %s", s)
}

func (e *driverEvents) MapProgress(received, total uint32) {
	if total == 0 {
		return
	}
	pct := int(uint64(received) * 100 / uint64(total))
	if pct/10 != e.lastPercent/10 || pct == 100 {
		e.log.Info("downloading map: %d / %d KiB", received/1024, total/1024)
	}
	e.lastPercent = pct
}

func (e *driverEvents) MapLoaded(ok bool) {
	e.lastPercent = 0
	if ok {
		e.log.Info("map loaded")
	} else {
		e.log.Warn("map could not be loaded")
	}
}

func (e *driverEvents) ServerInfoChanged(info session.ServerInfo) {
	e.log.Info("server: %s", info.Name)
	if info.Description != "" {
		e.log.Verbose("  %s", info.Description)
	}
	if info.Provider.Name != "" {
		e.log.Verbose("  run by %s <%s> %s", info.Provider.Name, info.Provider.Email, info.Provider.Website)
	}
}

func (e *driverEvents) PasswordRequired() { e.passwordRequired = true }

func (e *driverEvents) Desynchronized(a tick.Anchor) {
	e.log.Warn("desynchronized from server at tick %d", a.Tick)
}

// writerChat prints chat lines to w.
type writerChat struct{ w io.Writer }

func (c writerChat) ShowMessage(text string) { fmt.Fprintln(c.w, text) }

func (c writerChat) ShowChatHelp() {
	fmt.Fprintln(c.w, "chat: type a message to send it to every player; /help shows this text")
}
