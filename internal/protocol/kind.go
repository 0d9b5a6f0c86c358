// Package protocol defines the messages exchanged between a lockstep
// client and server and their binary encoding.
//
// Every payload starts with a big-endian uint32 kind.  Integers are big
// endian and strings are NUL-terminated UTF-8.
package protocol

import "fmt"

// Kind identifies a message on the wire.
type Kind uint32

const (
	KindAuth          Kind = 0
	KindMap           Kind = 1
	KindChat          Kind = 2
	KindGameCmd       Kind = 3
	KindTick          Kind = 4
	KindPing          Kind = 6
	KindGameInfo      Kind = 9
	KindToken         Kind = 10
	KindDisconnectMsg Kind = 12
)

var kindNames = map[Kind]string{
	KindAuth:          "AUTH",
	KindMap:           "MAP",
	KindChat:          "CHAT",
	KindGameCmd:       "GAME_CMD",
	KindTick:          "TICK",
	KindPing:          "PING",
	KindGameInfo:      "GAMEINFO",
	KindToken:         "TOKEN",
	KindDisconnectMsg: "DISCONNECT_MSG",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("KIND(%d)", uint32(k))
}

// StreamID identifies the protocol revision in AUTH requests.
const StreamID = "lockstep-1"

// MaxPayload is the largest payload a length-prefixed frame can carry.
const MaxPayload = 0xFFFF
