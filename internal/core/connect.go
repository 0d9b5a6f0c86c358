package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"lockstep/config"
	lserrors "lockstep/internal/errors"
	"lockstep/internal/metrics"
	"lockstep/internal/session"
	"lockstep/tunnel"
	"lockstep/util"
)

// maxCatchUp bounds the ticks simulated in one frame so a client far
// behind the server still polls the network regularly.
const maxCatchUp = 64

// ConnectMode joins a game server and drives the session and simulation
// at a fixed frame rate until the connection ends or ctx is cancelled.
type ConnectMode struct {
	Manager *session.Manager
	Session session.Options
	Sim     Simulation

	TickRate     int
	PingInterval time.Duration

	// Password answers a REQUIRE_PASSWORD.  When empty and AskPassword
	// is set, Prompt asks the user instead.
	Password    string
	AskPassword bool
	Prompt      tunnel.Prompter

	Logger  *util.Logger
	Metrics *metrics.Collector

	// Stdout receives chat.  Defaults to os.Stdout.
	Stdout io.Writer
}

func (m *ConnectMode) stdout() io.Writer {
	if m.Stdout != nil {
		return m.Stdout
	}
	return os.Stdout
}

// Run begins a session and pumps it once per frame.  It returns nil when
// ctx is cancelled and an error describing the disconnect otherwise.
func (m *ConnectMode) Run(ctx context.Context) error {
	if m.Session.Dialer != nil {
		defer m.Session.Dialer.Close()
	}
	defer func() {
		if m.Logger.Level() >= util.LogVerbose {
			m.Logger.Verbose("metrics:\n%s", m.Metrics.JSON())
		}
	}()

	events := &driverEvents{log: m.Logger}
	opts := m.Session
	opts.Simulation = m.Sim
	opts.Events = events
	opts.Chat = writerChat{w: m.stdout()}
	opts.Logger = m.Logger
	opts.Metrics = m.Metrics

	mgr := m.Manager
	if mgr == nil {
		mgr = session.NewManager()
	}
	sess, err := mgr.Begin(ctx, opts)
	if err != nil {
		return err
	}
	defer sess.Close()

	rate := m.TickRate
	if rate <= 0 {
		rate = config.DefaultTickRate
	}
	frame := time.NewTicker(time.Second / time.Duration(rate))
	defer frame.Stop()

	var ping <-chan time.Time
	if m.PingInterval > 0 {
		t := time.NewTicker(m.PingInterval)
		defer t.Stop()
		ping = t.C
	}

	for {
		select {
		case <-ctx.Done():
			m.Logger.Verbose("interrupted, leaving the game")
			return nil
		case <-ping:
			if sess.Status() == session.StatusOK {
				if err := sess.SendPing(); err != nil {
					m.Logger.Debug("ping: %v", err)
				}
			}
			continue
		case <-frame.C:
		}

		sess.Update()

		if events.passwordRequired {
			events.passwordRequired = false
			if err := m.answerPassword(sess); err != nil {
				return err
			}
		}

		if st := sess.Status(); st.Ended() {
			return disconnectError(sess)
		}
		if sess.Status() == session.StatusOK {
			m.advance(sess)
		}
	}
}

// advance simulates up to the server's tick, applying each command at
// its tick, and checks for divergence.
func (m *ConnectMode) advance(sess *session.Session) {
	queue := sess.Commands()
	for steps := 0; m.Sim.CurrentTick() < sess.ServerTick() && steps < maxCatchUp; steps++ {
		for _, c := range queue.PopReady(m.Sim.CurrentTick()) {
			m.Sim.Apply(c)
		}
		m.Sim.Step()
		if seed, ok := m.Sim.Seed(); ok {
			sess.CheckDesync(m.Sim.CurrentTick(), seed)
		}
	}
}

func (m *ConnectMode) answerPassword(sess *session.Session) error {
	pw := m.Password
	if pw == "" {
		if !m.AskPassword {
			return fmt.Errorf("%w: the server requires a password (use --password or --ask-password)", lserrors.ErrAuthFailed)
		}
		prompt := m.Prompt
		if prompt == nil {
			prompt = tunnel.TerminalPrompt
		}
		b, err := prompt("Server password: ")
		if err != nil {
			return fmt.Errorf("reading password: %w", err)
		}
		pw = string(b)
	}
	if err := sess.SendPassword(pw); err != nil {
		return fmt.Errorf("sending password: %w", err)
	}
	return nil
}

func disconnectError(sess *session.Session) error {
	reason := sess.DisconnectReason()
	if sess.AuthStatus().Failed() {
		return fmt.Errorf("%w: %s", lserrors.ErrAuthFailed, reason)
	}
	if lserrors.IsTemporary(sess.Err()) {
		return fmt.Errorf("disconnected: %s (the server may be temporarily unreachable, try again later)", reason)
	}
	return fmt.Errorf("disconnected: %s", reason)
}
