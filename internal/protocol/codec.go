package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"lockstep/internal/command"
)

var (
	// ErrShortPayload means a payload ended before a field did.
	ErrShortPayload = errors.New("protocol: payload truncated")
	// ErrUnknownKind means the payload's kind has no decoder.
	ErrUnknownKind = errors.New("protocol: unknown message kind")
)

// Encode serialises m into a payload.
func Encode(m Message) ([]byte, error) {
	w := &writer{}
	w.u32(uint32(m.Kind()))

	switch m := m.(type) {
	case AuthRequest:
		w.str(m.StreamID)
		w.str(m.Name)
		w.str(m.Password)
		w.str(m.PublicKey)
		w.u32(uint32(len(m.Signature)))
		w.raw(m.Signature)
	case AuthResult:
		w.u32(m.Status)
		w.u8(m.PlayerID)
	case MapChunk:
		w.u32(m.Total)
		w.u32(m.Offset)
		w.raw(m.Data)
	case Chat:
		w.str(m.Text)
	case GameCommand:
		w.u32(m.Tick)
		for _, a := range m.Args {
			w.u32(a)
		}
		w.u8(m.PlayerID)
		w.u8(m.Callback)
		w.u32(m.Seq)
	case Tick:
		w.u32(m.Tick)
		w.u32(m.Seed)
	case Ping, TokenRequest, GameInfoRequest:
	case GameInfo:
		w.str(m.JSON)
	case Token:
		w.u32(uint32(len(m.Challenge)))
		w.raw(m.Challenge)
	case DisconnectMessage:
		w.str(m.Reason)
	default:
		return nil, fmt.Errorf("protocol: cannot encode %T", m)
	}

	if w.err != nil {
		return nil, w.err
	}
	if len(w.buf) > MaxPayload {
		return nil, fmt.Errorf("protocol: %s payload of %d bytes exceeds %d", m.Kind(), len(w.buf), MaxPayload)
	}
	return w.buf, nil
}

// Decode parses a payload sent by the server.
func Decode(p []byte) (Message, error) {
	r := &reader{buf: p}
	kind := Kind(r.u32())
	if r.err != nil {
		return nil, r.err
	}

	var m Message
	switch kind {
	case KindAuth:
		m = AuthResult{Status: r.u32(), PlayerID: r.u8()}
	case KindMap:
		mc := MapChunk{Total: r.u32(), Offset: r.u32()}
		mc.Data = r.rest()
		m = mc
	case KindChat:
		m = Chat{Text: r.str()}
	case KindGameCmd:
		m = GameCommand{Command: r.command()}
	case KindTick:
		m = Tick{Tick: r.u32(), Seed: r.u32()}
	case KindPing:
		m = Ping{}
	case KindGameInfo:
		m = GameInfo{JSON: r.str()}
	case KindToken:
		n := r.u32()
		m = Token{Challenge: r.bytes(n)}
	case KindDisconnectMsg:
		m = DisconnectMessage{Reason: r.str()}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint32(kind))
	}
	if r.err != nil {
		return nil, fmt.Errorf("decoding %s: %w", kind, r.err)
	}
	return m, nil
}

// DecodeClient parses a payload sent by a client.  Servers and test
// doubles use it.
func DecodeClient(p []byte) (Message, error) {
	r := &reader{buf: p}
	kind := Kind(r.u32())
	if r.err != nil {
		return nil, r.err
	}

	var m Message
	switch kind {
	case KindAuth:
		a := AuthRequest{
			StreamID:  r.str(),
			Name:      r.str(),
			Password:  r.str(),
			PublicKey: r.str(),
		}
		n := r.u32()
		a.Signature = r.bytes(n)
		m = a
	case KindChat:
		m = Chat{Text: r.str()}
	case KindGameCmd:
		m = GameCommand{Command: r.command()}
	case KindPing:
		m = Ping{}
	case KindGameInfo:
		m = GameInfoRequest{}
	case KindToken:
		m = TokenRequest{}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint32(kind))
	}
	if r.err != nil {
		return nil, fmt.Errorf("decoding %s: %w", kind, r.err)
	}
	return m, nil
}

// ── writer ───────────────────────────────────────────────────────────

type writer struct {
	buf []byte
	err error
}

func (w *writer) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *writer) u32(v uint32) { w.buf = binary.BigEndian.AppendUint32(w.buf, v) }
func (w *writer) raw(b []byte) { w.buf = append(w.buf, b...) }

func (w *writer) str(s string) {
	if w.err == nil && bytes.IndexByte([]byte(s), 0) >= 0 {
		w.err = errors.New("protocol: string contains NUL")
		return
	}
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
}

// ── reader ───────────────────────────────────────────────────────────

type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || len(r.buf)-r.off < n {
		r.err = ErrShortPayload
		return false
	}
	return true
}

func (r *reader) u8() uint8 {
	if !r.need(1) {
		return 0
	}
	v := r.buf[r.off]
	r.off++
	return v
}

func (r *reader) u32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.BigEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v
}

func (r *reader) bytes(n uint32) []byte {
	if uint64(n) > uint64(len(r.buf)-r.off) {
		if r.err == nil {
			r.err = ErrShortPayload
		}
		return nil
	}
	if !r.need(int(n)) {
		return nil
	}
	out := make([]byte, n)
	copy(out, r.buf[r.off:])
	r.off += int(n)
	return out
}

func (r *reader) rest() []byte {
	if r.err != nil {
		return nil
	}
	out := make([]byte, len(r.buf)-r.off)
	copy(out, r.buf[r.off:])
	r.off = len(r.buf)
	return out
}

func (r *reader) str() string {
	if r.err != nil {
		return ""
	}
	i := bytes.IndexByte(r.buf[r.off:], 0)
	if i < 0 {
		r.err = ErrShortPayload
		return ""
	}
	s := string(r.buf[r.off : r.off+i])
	r.off += i + 1
	return s
}

func (r *reader) command() command.Command {
	var c command.Command
	c.Tick = r.u32()
	for i := range c.Args {
		c.Args[i] = r.u32()
	}
	c.PlayerID = r.u8()
	c.Callback = r.u8()
	c.Seq = r.u32()
	return c
}
