package protocol

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"lockstep/internal/command"
)

func sampleCommand() GameCommand {
	return GameCommand{Command: command.Command{
		Tick:     1000,
		Args:     [command.NumArgs]uint32{1, 2, 3, 4, 5, 6, 0xFFFFFFFF},
		PlayerID: 3,
		Callback: 9,
		Seq:      42,
	}}
}

func TestCodec_ServerMessages(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{"auth result", AuthResult{Status: 2, PlayerID: 7}},
		{"map chunk", MapChunk{Total: 10, Offset: 4, Data: []byte{1, 2, 3}}},
		{"empty map chunk", MapChunk{Total: 10, Offset: 10, Data: []byte{}}},
		{"chat", Chat{Text: "hello, park"}},
		{"game command", sampleCommand()},
		{"tick", Tick{Tick: 77, Seed: 0xDEADBEEF}},
		{"ping", Ping{}},
		{"game info", GameInfo{JSON: `{"name":"x"}`}},
		{"token", Token{Challenge: []byte{0, 1, 2, 0xFF}}},
		{"disconnect", DisconnectMessage{Reason: "kicked"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Encode(tt.msg)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			got, err := Decode(p)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if !reflect.DeepEqual(got, tt.msg) {
				t.Errorf("got %#v, want %#v", got, tt.msg)
			}
		})
	}
}

func TestCodec_ClientMessages(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{"auth request", AuthRequest{
			StreamID:  StreamID,
			Name:      "alice",
			Password:  "",
			PublicKey: "-----BEGIN RSA PUBLIC KEY-----\n...\n",
			Signature: bytes.Repeat([]byte{0xAB}, 256),
		}},
		{"token request", TokenRequest{}},
		{"game info request", GameInfoRequest{}},
		{"chat", Chat{Text: "gg"}},
		{"game command", sampleCommand()},
		{"ping", Ping{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Encode(tt.msg)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			got, err := DecodeClient(p)
			if err != nil {
				t.Fatalf("DecodeClient: %v", err)
			}
			if !reflect.DeepEqual(got, tt.msg) {
				t.Errorf("got %#v, want %#v", got, tt.msg)
			}
		})
	}
}

func TestEncode_Layout(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want []byte
	}{
		{"ping", Ping{}, []byte{0, 0, 0, 6}},
		{"token request", TokenRequest{}, []byte{0, 0, 0, 10}},
		{"game info request", GameInfoRequest{}, []byte{0, 0, 0, 9}},
		{"chat", Chat{Text: "hi"}, []byte{0, 0, 0, 2, 'h', 'i', 0}},
		{"tick", Tick{Tick: 1, Seed: 2}, []byte{0, 0, 0, 4, 0, 0, 0, 1, 0, 0, 0, 2}},
		{
			"auth request",
			AuthRequest{StreamID: "s", Name: "n", Password: "", PublicKey: "k", Signature: []byte{0xEE}},
			[]byte{0, 0, 0, 0, 's', 0, 'n', 0, 0, 'k', 0, 0, 0, 0, 1, 0xEE},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.msg)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("got % x, want % x", got, tt.want)
			}
		})
	}
}

func TestEncode_GameCommandSize(t *testing.T) {
	p, err := Encode(sampleCommand())
	if err != nil {
		t.Fatal(err)
	}
	// kind + tick + 7 args + player + callback + seq
	if want := 4 + 4 + 7*4 + 1 + 1 + 4; len(p) != want {
		t.Errorf("len = %d, want %d", len(p), want)
	}
}

func TestEncode_Rejects(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{"NUL in chat", Chat{Text: "a\x00b"}},
		{"NUL in name", AuthRequest{Name: "x\x00"}},
		{"oversized", Chat{Text: strings.Repeat("x", MaxPayload)}},
		{"pointer", &Chat{Text: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Encode(tt.msg); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		wantErr error
	}{
		{"empty", nil, ErrShortPayload},
		{"short kind", []byte{0, 0}, ErrShortPayload},
		{"unknown kind", []byte{0, 0, 0, 99}, ErrUnknownKind},
		{"kind 5 unused", []byte{0, 0, 0, 5}, ErrUnknownKind},
		{"short tick", []byte{0, 0, 0, 4, 0, 0, 0, 1}, ErrShortPayload},
		{"unterminated chat", []byte{0, 0, 0, 2, 'h', 'i'}, ErrShortPayload},
		{"token length overrun", []byte{0, 0, 0, 10, 0, 0, 0, 9, 1, 2}, ErrShortPayload},
		{"token huge length", []byte{0, 0, 0, 10, 0xFF, 0xFF, 0xFF, 0xFF}, ErrShortPayload},
		{"short auth result", []byte{0, 0, 0, 0, 0, 0, 0, 1}, ErrShortPayload},
		{"short map header", []byte{0, 0, 0, 1, 0, 0, 0, 1}, ErrShortPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.payload)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecodeClient_Malformed(t *testing.T) {
	// AUTH claiming a 300-byte signature with only two bytes present.
	p := []byte{0, 0, 0, 0, 's', 0, 'n', 0, 0, 'k', 0, 0, 0, 1, 0x2C, 1, 2}
	if _, err := DecodeClient(p); !errors.Is(err, ErrShortPayload) {
		t.Errorf("err = %v, want ErrShortPayload", err)
	}
	if _, err := DecodeClient([]byte{0, 0, 0, 12}); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("DISCONNECT_MSG is server-only: err = %v", err)
	}
}

func TestDecode_CopiesData(t *testing.T) {
	p, _ := Encode(MapChunk{Total: 3, Offset: 0, Data: []byte{1, 2, 3}})
	m, err := Decode(p)
	if err != nil {
		t.Fatal(err)
	}
	p[len(p)-1] = 0xFF
	if m.(MapChunk).Data[2] != 3 {
		t.Error("decoded chunk aliases the input payload")
	}
}

func TestKind_String(t *testing.T) {
	if KindGameCmd.String() != "GAME_CMD" {
		t.Errorf("got %q", KindGameCmd.String())
	}
	if Kind(99).String() != "KIND(99)" {
		t.Errorf("got %q", Kind(99).String())
	}
}
