package protocol

import "lockstep/internal/command"

// Message is implemented only by the types in this package.
type Message interface {
	Kind() Kind
	isMessage()
}

// ── Client → server ──────────────────────────────────────────────────

// AuthRequest carries the signed challenge.
type AuthRequest struct {
	StreamID  string
	Name      string
	Password  string
	PublicKey string // PEM
	Signature []byte
}

// TokenRequest asks the server for an authentication challenge.
type TokenRequest struct{}

// GameInfoRequest asks the server to describe itself.
type GameInfoRequest struct{}

// ── Server → client ──────────────────────────────────────────────────

// AuthResult is the server's verdict on an AuthRequest.
type AuthResult struct {
	Status   uint32
	PlayerID uint8
}

// MapChunk is one piece of the snapshot transfer.
type MapChunk struct {
	Total  uint32
	Offset uint32
	Data   []byte
}

// Tick announces the authoritative tick and its random seed.
type Tick struct {
	Tick uint32
	Seed uint32
}

// GameInfo carries the server description as JSON.
type GameInfo struct {
	JSON string
}

// Token carries the authentication challenge.
type Token struct {
	Challenge []byte
}

// DisconnectMessage tells the client why it is being dropped.
type DisconnectMessage struct {
	Reason string
}

// ── Both directions ──────────────────────────────────────────────────

// Chat is a line of chat text.
type Chat struct {
	Text string
}

// GameCommand carries one command with its ordering key.
type GameCommand struct {
	command.Command
}

// Ping is a keepalive.
type Ping struct{}

func (AuthRequest) Kind() Kind       { return KindAuth }
func (TokenRequest) Kind() Kind      { return KindToken }
func (GameInfoRequest) Kind() Kind   { return KindGameInfo }
func (AuthResult) Kind() Kind        { return KindAuth }
func (MapChunk) Kind() Kind          { return KindMap }
func (Tick) Kind() Kind              { return KindTick }
func (GameInfo) Kind() Kind          { return KindGameInfo }
func (Token) Kind() Kind             { return KindToken }
func (DisconnectMessage) Kind() Kind { return KindDisconnectMsg }
func (Chat) Kind() Kind              { return KindChat }
func (GameCommand) Kind() Kind       { return KindGameCmd }
func (Ping) Kind() Kind              { return KindPing }

func (AuthRequest) isMessage()       {}
func (TokenRequest) isMessage()      {}
func (GameInfoRequest) isMessage()   {}
func (AuthResult) isMessage()        {}
func (MapChunk) isMessage()          {}
func (Tick) isMessage()              {}
func (GameInfo) isMessage()          {}
func (Token) isMessage()             {}
func (DisconnectMessage) isMessage() {}
func (Chat) isMessage()              {}
func (GameCommand) isMessage()       {}
func (Ping) isMessage()              {}
