package session

import (
	"errors"
	"fmt"

	"golang.org/x/time/rate"

	"lockstep/internal/auth"
	"lockstep/internal/command"
	lserrors "lockstep/internal/errors"
	"lockstep/internal/identity"
	"lockstep/internal/metrics"
	"lockstep/internal/protocol"
	"lockstep/internal/snapshot"
	"lockstep/internal/tick"
	"lockstep/internal/transport"
	"lockstep/util"
)

// ErrChatRateLimited is returned by SendChat when messages are sent
// faster than the configured rate.
var ErrChatRateLimited = errors.New("chat rate limit exceeded")

// Disconnect reasons set by the session itself.
const (
	ReasonDecompress     = "failed to decompress snapshot"
	ReasonBadTransfer    = "invalid snapshot transfer"
	ReasonClosedByServer = "connection closed by server"
)

// Session is one connection to a game server.  It is not safe for
// concurrent use: every method, Close included, belongs to the goroutine
// that calls Update.
type Session struct {
	id      string
	manager *Manager
	opts    Options
	log     *util.Logger
	metrics *metrics.Collector

	sim    Simulation
	chat   ChatSink
	events Events

	conn    *transport.Connection
	key     *identity.Key
	auth    *auth.Authenticator
	snap    *snapshot.Buffer
	tracker *tick.Tracker
	queue   *command.Queue
	limiter *rate.Limiter

	status   Status
	lastSock transport.SocketStatus
	playerID uint8
	info     ServerInfo
	reason   string
	err      error

	closed bool
}

// ID returns the session's unique id.
func (s *Session) ID() string { return s.id }

// Status returns the connection status.
func (s *Session) Status() Status { return s.status }

// AuthStatus returns the authentication status.
func (s *Session) AuthStatus() auth.Status {
	if s.auth == nil {
		return auth.StatusNone
	}
	return s.auth.Status()
}

// PlayerID returns the id assigned by the server, or NoPlayer.
func (s *Session) PlayerID() uint8 { return s.playerID }

// ServerTick returns the latest authoritative tick.
func (s *Session) ServerTick() uint32 { return s.tracker.ServerTick() }

// ServerInfo returns the last server description received.
func (s *Session) ServerInfo() ServerInfo { return s.info }

// Desynchronized reports whether the local simulation diverged.
func (s *Session) Desynchronized() bool { return s.tracker.Desynchronized() }

// Commands returns the queue of pending game commands.
func (s *Session) Commands() *command.Queue { return s.queue }

// DisconnectReason returns why the connection ended, if it has.
func (s *Session) DisconnectReason() string { return s.reason }

// Err returns the transport error that ended the connection, if any.
func (s *Session) Err() error { return s.err }

// Metrics returns a snapshot of the session's counters.
func (s *Session) Metrics() metrics.Snapshot { return s.metrics.Snapshot() }

// Update polls the connection and handles everything that arrived since
// the last call.  It never blocks.
func (s *Session) Update() {
	if s.done() {
		return
	}

	sock := s.conn.Status()
	if sock != s.lastSock {
		s.lastSock = sock
		if st, ok := fromSocket(sock); ok && st != s.status {
			s.setStatus(st)
			if st == StatusConnected {
				s.onConnected()
			}
		}
	}

	for _, p := range s.conn.Receive() {
		s.dispatch(p)
		if s.done() {
			return
		}
	}

	switch sock {
	case transport.SocketFailed:
		s.err = s.conn.Err()
		s.end(StatusConnectionFailure, errReason(s.err, "connection failed"))
	case transport.SocketClosed:
		s.err = s.conn.Err()
		s.end(StatusDisconnected, errReason(s.err, ReasonClosedByServer))
	}
}

func (s *Session) onConnected() {
	s.log.Verbose("connected, requesting challenge")
	if err := s.Send(protocol.TokenRequest{}); err != nil {
		s.log.Warn("requesting challenge: %v", err)
	}
	if !s.opts.NoGameInfo {
		if err := s.RequestGameInfo(); err != nil {
			s.log.Warn("requesting game info: %v", err)
		}
	}
}

func (s *Session) dispatch(p []byte) {
	msg, err := protocol.Decode(p)
	if err != nil {
		s.log.Warn("dropping malformed packet: %v", err)
		s.metrics.RecordError(err.Error())
		return
	}
	s.log.Debug("received %s (%d bytes)", msg.Kind(), len(p))

	switch m := msg.(type) {
	case protocol.Token:
		s.HandleChallenge(m.Challenge)
	case protocol.AuthResult:
		s.handleAuthResult(m)
	case protocol.MapChunk:
		s.ReceiveMap(m.Total, m.Offset, m.Data)
	case protocol.Tick:
		s.ReceiveTick(m.Tick, m.Seed)
	case protocol.GameCommand:
		s.ReceiveGameCommand(m.Command)
	case protocol.Chat:
		s.chat.ShowMessage(m.Text)
	case protocol.GameInfo:
		s.ReceiveServerInfo(m.JSON)
	case protocol.Ping:
		if err := s.SendPing(); err != nil {
			s.log.Debug("answering ping: %v", err)
		}
	case protocol.DisconnectMessage:
		s.log.Info("server disconnect: %s", m.Reason)
		s.reason = m.Reason
	default:
		s.log.Verbose("ignoring %s", msg.Kind())
	}
}

// ── Inbound ──────────────────────────────────────────────────────────

// HandleChallenge signs the server's challenge and queues AUTH.  A key
// that cannot be loaded or used ends the connection with a verification
// failure.
func (s *Session) HandleChallenge(challenge []byte) {
	if s.done() {
		return
	}
	s.log.Verbose("received %d byte challenge", len(challenge))
	err := s.auth.HandleChallenge(challenge)
	s.afterAuthAttempt(err)
}

func (s *Session) afterAuthAttempt(err error) {
	st := s.auth.Status()
	s.events.AuthStatusChanged(st)
	if err == nil {
		return
	}
	if st == auth.StatusVerificationFailure {
		s.log.Error("failed to sign the server's challenge: %v", err)
		s.end(StatusDisconnected, st.Reason())
		return
	}
	s.log.Warn("sending authentication: %v", err)
}

func (s *Session) handleAuthResult(res protocol.AuthResult) {
	st := s.auth.HandleResult(res)
	s.events.AuthStatusChanged(st)

	switch {
	case st == auth.StatusOK:
		s.playerID = res.PlayerID
		s.log.Info("authenticated as player %d", s.playerID)
	case st == auth.StatusRequirePassword:
		s.log.Info("server requires a password")
		s.events.PasswordRequired()
	case st.Failed():
		s.log.Error("%s", st.Reason())
		s.end(StatusDisconnected, st.Reason())
	}
}

// ReceiveMap stores one snapshot chunk and, once the snapshot is
// complete, unpacks it and hands it to the simulation.
func (s *Session) ReceiveMap(total, offset uint32, chunk []byte) {
	if s.done() {
		return
	}
	done, err := s.snap.Receive(total, offset, chunk)
	if err != nil {
		s.snap.Release()
		s.log.Error("%v", err)
		s.metrics.RecordError(err.Error())
		s.end(StatusDisconnected, ReasonBadTransfer)
		return
	}
	s.metrics.SnapshotChunk(len(chunk))
	s.events.MapProgress(offset+uint32(len(chunk)), total)
	s.log.Debug("snapshot %d/%d KiB", (offset+uint32(len(chunk)))/1024, total/1024)

	if done {
		s.processMap()
	}
}

func (s *Session) processMap() {
	data, format, err := snapshot.Unpack(s.snap.Bytes())
	s.snap.Release()
	if err != nil {
		s.log.Error("%v", err)
		s.metrics.RecordError(err.Error())
		s.end(StatusDisconnected, ReasonDecompress)
		return
	}
	s.metrics.SnapshotCompleted()
	s.log.Verbose("snapshot complete: %d bytes (%s)", len(data), format)

	if !s.sim.LoadSnapshot(data) {
		s.log.Error("could not load the server's snapshot")
		s.events.MapLoaded(false)
		s.sim.ReturnToTitle()
		return
	}
	s.sim.InitAfterLoad()
	s.queue.Clear()
	s.tracker.Reset(s.sim.CurrentTick())
	s.events.MapLoaded(true)
	s.setStatus(StatusOK)
}

// ReceiveTick records the server's tick and seed.
func (s *Session) ReceiveTick(t, seed uint32) {
	if s.done() {
		return
	}
	s.tracker.Receive(t, seed)
}

// ReceiveGameCommand queues a command for its tick.
func (s *Session) ReceiveGameCommand(c command.Command) {
	if s.done() {
		return
	}
	s.queue.Enqueue(c)
	s.metrics.CommandQueued()
}

// ReceiveServerInfo replaces the server description.  Malformed JSON is
// logged and the previous description kept.
func (s *Session) ReceiveServerInfo(text string) {
	if s.done() {
		return
	}
	info, err := ParseServerInfo(text)
	if err != nil {
		s.log.Warn("received invalid server info: %v", err)
		return
	}
	s.info = info
	s.log.Verbose("server: %q", info.Name)
	s.events.ServerInfoChanged(info)
}

// CheckDesync compares the local seed at localTick with the server's
// anchor and reports whether the simulation has diverged.
func (s *Session) CheckDesync(localTick, localSeed uint32) bool {
	was := s.tracker.Desynchronized()
	now := s.tracker.Check(localTick, localSeed)
	if now && !was {
		anchor, _ := s.tracker.Anchor()
		s.log.Warn("desynchronized at tick %d: server seed %#x, local %#x", anchor.Tick, anchor.Seed, localSeed)
		s.metrics.Desync()
		s.events.Desynchronized(anchor)
	}
	return now
}

// ── Outbound ─────────────────────────────────────────────────────────

// Send encodes m and queues it on the connection.
func (s *Session) Send(m protocol.Message) error {
	if s.closed || s.conn == nil {
		return lserrors.ErrNotConnected
	}
	p, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	return s.conn.QueuePacket(p)
}

// RequestGameInfo asks the server for its description.
func (s *Session) RequestGameInfo() error {
	s.log.Verbose("requesting game info")
	return s.Send(protocol.GameInfoRequest{})
}

// SendPing sends a liveness probe.
func (s *Session) SendPing() error {
	return s.Send(protocol.Ping{})
}

// SendPassword answers REQUIRE_PASSWORD by re-signing the retained
// challenge.
func (s *Session) SendPassword(password string) error {
	if s.auth == nil {
		return lserrors.ErrNotConnected
	}
	err := s.auth.SendPassword(password)
	s.afterAuthAttempt(err)
	return err
}

// SendChat sends a chat line.  "/help" is answered locally.
func (s *Session) SendChat(text string) error {
	if text == "/help" {
		s.chat.ShowChatHelp()
		return nil
	}
	if !s.limiter.Allow() {
		return ErrChatRateLimited
	}
	return s.Send(protocol.Chat{Text: text})
}

// SendGameCommand sends a command for the server to schedule.
func (s *Session) SendGameCommand(c command.Command) error {
	return s.Send(protocol.GameCommand{Command: c})
}

// ── Teardown ─────────────────────────────────────────────────────────

// end closes the transport and records why.  A reason already set by
// the server takes precedence.
func (s *Session) end(st Status, reason string) {
	if s.status.Ended() {
		return
	}
	if s.reason == "" {
		s.reason = reason
	}
	if s.conn != nil {
		s.conn.Close()
	}
	s.snap.Release()
	if s.auth != nil {
		s.auth.DropChallenge()
	}
	if s.key != nil {
		s.key.Unload()
	}
	s.setStatus(st)
	s.log.Info("disconnected: %s", s.reason)
	s.events.Disconnected(s.reason)
}

// Close tears the session down and frees the manager's slot.  It is
// safe to call more than once and in any state.  Once closed, inbound
// handlers are no-ops.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	if s.auth != nil {
		s.auth.Reset()
	}
	if s.key != nil {
		s.key.Unload()
	}
	s.snap.Release()
	s.queue.Clear()
	var err error
	if s.conn != nil {
		err = s.conn.Close()
	}
	if s.status != StatusNone && !s.status.Ended() {
		s.status = StatusDisconnected
	}
	s.log.Verbose("session closed")
	s.manager.release(s)
	return err
}

// done reports whether the session stopped handling traffic.
func (s *Session) done() bool {
	return s.closed || s.status.Ended()
}

func (s *Session) setStatus(st Status) {
	if s.status == st {
		return
	}
	s.log.Debug("status %s -> %s", s.status, st)
	s.status = st
	s.events.ConnectionStatusChanged(st)
}

func errReason(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	return fmt.Sprintf("%s: %v", fallback, err)
}
