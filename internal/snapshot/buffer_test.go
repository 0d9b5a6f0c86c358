package snapshot

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"

	lserrors "lockstep/internal/errors"
)

func pattern(n int) []byte {
	b := make([]byte, n)
	r := rand.New(rand.NewSource(int64(n)))
	r.Read(b)
	return b
}

func TestBuffer_InOrder(t *testing.T) {
	data := pattern(2048)
	var b Buffer

	done, err := b.Receive(2048, 0, data[:1024])
	if err != nil || done {
		t.Fatalf("first chunk: done=%v err=%v", done, err)
	}
	if b.Len() != 2048 {
		t.Errorf("buffer should be sized to the total on the first chunk, len=%d", b.Len())
	}
	if b.Received() != 1024 {
		t.Errorf("Received = %d, want 1024", b.Received())
	}

	done, err = b.Receive(2048, 1024, data[1024:])
	if err != nil || !done {
		t.Fatalf("last chunk: done=%v err=%v", done, err)
	}
	if !bytes.Equal(b.Bytes(), data) {
		t.Error("reassembled buffer differs from A‖B")
	}

	b.Release()
	if b.Len() != 0 || b.Active() || b.Total() != 0 {
		t.Errorf("after Release: len=%d active=%v total=%d", b.Len(), b.Active(), b.Total())
	}
}

func TestBuffer_ReverseOrder(t *testing.T) {
	data := pattern(2048)
	var b Buffer

	done, err := b.Receive(2048, 1024, data[1024:])
	if err != nil || done {
		t.Fatalf("tail chunk: done=%v err=%v", done, err)
	}
	done, err = b.Receive(2048, 0, data[:1024])
	if err != nil || !done {
		t.Fatalf("head chunk: done=%v err=%v", done, err)
	}
	if !bytes.Equal(b.Bytes(), data) {
		t.Error("reverse delivery should yield the same buffer")
	}
}

func TestBuffer_ShuffledOverlapping(t *testing.T) {
	const total = 10400
	data := pattern(total)
	type chunk struct{ off, end int }
	var chunks []chunk
	for off := 0; off < total; off += 700 {
		end := off + 1000 // overlaps the next chunk
		if end > total {
			end = total
		}
		chunks = append(chunks, chunk{off, end})
	}
	rand.New(rand.NewSource(7)).Shuffle(len(chunks), func(i, j int) { chunks[i], chunks[j] = chunks[j], chunks[i] })

	var b Buffer
	for i, c := range chunks {
		done, err := b.Receive(total, uint32(c.off), data[c.off:c.end])
		if err != nil {
			t.Fatal(err)
		}
		if done != (i == len(chunks)-1) {
			t.Fatalf("chunk %d: done=%v", i, done)
		}
	}
	if !bytes.Equal(b.Bytes(), data) {
		t.Error("reassembled buffer mismatch")
	}
}

func TestBuffer_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		prime  bool // deliver a first chunk of a 100-byte transfer
		total  uint32
		offset uint32
		chunk  []byte
	}{
		{"zero total", false, 0, 0, nil},
		{"over cap", false, MaxSize + 1, 0, []byte{1}},
		{"past end", false, 10, 8, []byte{1, 2, 3}},
		{"offset overflow", false, 10, 0xFFFFFFFF, []byte{1}},
		{"total changed", true, 200, 50, []byte{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b Buffer
			if tt.prime {
				if _, err := b.Receive(100, 0, make([]byte, 10)); err != nil {
					t.Fatal(err)
				}
			}
			_, err := b.Receive(tt.total, tt.offset, tt.chunk)
			var te *lserrors.TransferError
			if !errors.As(err, &te) {
				t.Fatalf("err = %v, want TransferError", err)
			}
			if tt.prime && (b.Total() != 100 || b.Received() != 10) {
				t.Error("rejected chunk must not disturb the transfer")
			}
		})
	}
}

func TestBuffer_EmptyChunkDoesNotComplete(t *testing.T) {
	var b Buffer
	done, err := b.Receive(4, 4, nil)
	if err != nil {
		t.Fatal(err)
	}
	if done {
		t.Error("an empty chunk at the end must not complete an empty buffer")
	}
	if !b.Active() {
		t.Error("first chunk should start the transfer")
	}
}

func TestBuffer_ReuseAfterRelease(t *testing.T) {
	var b Buffer
	if _, err := b.Receive(4, 0, []byte{1, 2, 3, 4}); err != nil {
		t.Fatal(err)
	}
	b.Release()
	done, err := b.Receive(2, 0, []byte{9, 9})
	if err != nil || !done {
		t.Fatalf("second transfer: done=%v err=%v", done, err)
	}
	if !bytes.Equal(b.Bytes(), []byte{9, 9}) {
		t.Errorf("got %v", b.Bytes())
	}
}
