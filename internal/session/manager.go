// Package session drives one client connection to a game server: it
// runs the handshake, reassembles the world snapshot and feeds ticks and
// commands to the simulation.
//
// A Manager hands out at most one Session at a time.  The owner calls
// Session.Update once per frame; nothing in the package blocks on the
// network.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"lockstep/config"
	"lockstep/internal/auth"
	"lockstep/internal/command"
	lserrors "lockstep/internal/errors"
	"lockstep/internal/identity"
	"lockstep/internal/metrics"
	"lockstep/internal/snapshot"
	"lockstep/internal/tick"
	"lockstep/internal/transport"
	"lockstep/util"
)

// Options configure a session.
type Options struct {
	Host string
	Port int

	Dialer  transport.Dialer
	Timeout time.Duration
	NoDNS   bool

	PlayerName string
	Store      *identity.Store

	// NoGameInfo skips the GAMEINFO request sent on connect.
	NoGameInfo bool

	// ChatRate is the sustained chat messages per second; zero means
	// unlimited.
	ChatRate  float64
	ChatBurst int

	Simulation Simulation
	Chat       ChatSink
	Events     Events
	Logger     *util.Logger
	Metrics    *metrics.Collector
}

// Manager owns the single session slot.
type Manager struct {
	mu     sync.Mutex
	active *Session
}

// NewManager returns a manager with the slot free.
func NewManager() *Manager { return &Manager{} }

// Active returns the outstanding session, or nil.
func (m *Manager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Begin claims the slot, starts connecting and makes sure the player has
// a key pair on disk.  Generating a first key is slow.  On error the
// slot is free again.
func (m *Manager) Begin(ctx context.Context, opts Options) (*Session, error) {
	if err := checkOptions(&opts); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.active != nil {
		m.mu.Unlock()
		return nil, lserrors.ErrSessionActive
	}
	s := newSession(m, opts)
	m.active = s
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		s.Close()
		return nil, err
	}

	s.conn = transport.NewConnection(opts.Dialer, transport.Options{
		Timeout: opts.Timeout,
		NoDNS:   opts.NoDNS,
		Logger:  s.log,
		Metrics: s.metrics,
	})
	if err := s.conn.Connect(opts.Host, opts.Port); err != nil {
		s.Close()
		return nil, err
	}
	s.setStatus(StatusConnecting)
	s.log.Info("connecting to %s as %q", util.FormatAddr(opts.Host, opts.Port), opts.PlayerName)

	key, generated, err := opts.Store.EnsureKey(opts.PlayerName)
	if err != nil {
		s.failKey(err)
		s.Close()
		return nil, fmt.Errorf("%w: preparing key for %q: %w", lserrors.ErrAuthFailed, opts.PlayerName, err)
	}
	if generated {
		s.log.Info("generated a new key pair in %s", opts.Store.Dir())
	}
	if hash, err := key.PublicKeyHash(); err == nil {
		s.log.Verbose("using key %s", hash)
	}
	s.key = key
	s.auth = auth.New(opts.Store, key, opts.PlayerName, s, s.metrics)

	if err := ctx.Err(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// failKey reports a key that could not be prepared as a verification
// failure, the same outcome as a challenge that could not be signed.
func (s *Session) failKey(err error) {
	s.log.Error("preparing key for %q: %v", s.opts.PlayerName, err)
	s.key = identity.NewKey()
	s.auth = auth.New(s.opts.Store, s.key, s.opts.PlayerName, s, s.metrics)
	s.auth.Fail()
	s.events.AuthStatusChanged(s.auth.Status())
	s.end(StatusDisconnected, s.auth.Status().Reason())
}

func (m *Manager) release(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == s {
		m.active = nil
	}
}

func checkOptions(opts *Options) error {
	switch {
	case opts.Dialer == nil:
		return fmt.Errorf("session: no dialer")
	case opts.Store == nil:
		return fmt.Errorf("session: no key store")
	case opts.Simulation == nil:
		return fmt.Errorf("session: no simulation")
	case !config.ValidPlayerName(opts.PlayerName):
		return fmt.Errorf("session: invalid player name %q", opts.PlayerName)
	}
	if opts.Chat == nil {
		opts.Chat = nopChat{}
	}
	if opts.Events == nil {
		opts.Events = NopEvents{}
	}
	if opts.Logger == nil {
		opts.Logger = util.NewLogger(0)
	}
	return nil
}

func newSession(m *Manager, opts Options) *Session {
	id := uuid.NewString()

	limit := rate.Inf
	if opts.ChatRate > 0 {
		limit = rate.Limit(opts.ChatRate)
	}
	burst := opts.ChatBurst
	if burst < 1 {
		burst = 1
	}

	return &Session{
		id:       id,
		manager:  m,
		opts:     opts,
		log:      opts.Logger.With("session", id[:8]),
		metrics:  opts.Metrics,
		sim:      opts.Simulation,
		chat:     opts.Chat,
		events:   opts.Events,
		playerID: NoPlayer,
		lastSock: transport.SocketClosed,
		snap:     &snapshot.Buffer{},
		tracker:  &tick.Tracker{},
		queue:    &command.Queue{},
		limiter:  rate.NewLimiter(limit, burst),
	}
}
