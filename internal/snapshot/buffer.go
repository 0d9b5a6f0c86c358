// Package snapshot reassembles the chunked simulation snapshot sent by
// the server and unpacks it.
package snapshot

import (
	"fmt"
	"sort"

	lserrors "lockstep/internal/errors"
)

// MaxSize caps both the transferred and the inflated snapshot.
const MaxSize = 256 << 20

type span struct{ start, end uint64 }

// Buffer collects snapshot chunks.  It is sized by the first chunk and
// tracks which byte ranges have arrived, so chunks may come in any
// order.
//
// Buffer is not safe for concurrent use.
type Buffer struct {
	data   []byte
	total  uint32
	spans  []span // sorted, non-overlapping, non-adjacent
	active bool
}

// Receive copies chunk into the buffer at offset.  It reports done once
// every byte of the snapshot has arrived.  A chunk that does not fit
// the announced total, or a total that changes mid-transfer, is an
// error and leaves the buffer unchanged.
func (b *Buffer) Receive(total, offset uint32, chunk []byte) (done bool, err error) {
	if total == 0 {
		return false, lserrors.WrapTransfer("chunk", fmt.Errorf("empty snapshot announced"))
	}
	if total > MaxSize {
		return false, lserrors.WrapTransfer("chunk", fmt.Errorf("snapshot of %d bytes exceeds %d", total, MaxSize))
	}
	if b.active && total != b.total {
		return false, lserrors.WrapTransfer("chunk", fmt.Errorf("total changed from %d to %d", b.total, total))
	}
	end := uint64(offset) + uint64(len(chunk))
	if end > uint64(total) {
		return false, lserrors.WrapTransfer("chunk", fmt.Errorf("chunk [%d,%d) past end %d", offset, end, total))
	}

	if !b.active {
		b.data = make([]byte, total)
		b.total = total
		b.active = true
	}
	copy(b.data[offset:], chunk)
	if len(chunk) > 0 {
		b.cover(uint64(offset), end)
	}
	return b.complete(), nil
}

// cover merges [start,end) into the span list.
func (b *Buffer) cover(start, end uint64) {
	i := sort.Search(len(b.spans), func(i int) bool { return b.spans[i].end >= start })
	j := i
	for j < len(b.spans) && b.spans[j].start <= end {
		if b.spans[j].start < start {
			start = b.spans[j].start
		}
		if b.spans[j].end > end {
			end = b.spans[j].end
		}
		j++
	}
	merged := span{start, end}
	b.spans = append(b.spans[:i], append([]span{merged}, b.spans[j:]...)...)
}

func (b *Buffer) complete() bool {
	return b.active && len(b.spans) == 1 && b.spans[0].start == 0 && b.spans[0].end == uint64(b.total)
}

// Active reports whether a transfer is in progress.
func (b *Buffer) Active() bool { return b.active }

// Total returns the announced size, or 0 when idle.
func (b *Buffer) Total() int { return int(b.total) }

// Received returns the number of distinct bytes received so far.
func (b *Buffer) Received() int {
	var n uint64
	for _, s := range b.spans {
		n += s.end - s.start
	}
	return int(n)
}

// Len returns the length of the backing buffer.
func (b *Buffer) Len() int { return len(b.data) }

// Bytes returns the reassembled data.  It is only meaningful once
// Receive has reported done, and is invalid after Release.
func (b *Buffer) Bytes() []byte { return b.data }

// Release drops the data and resets the buffer for the next transfer.
func (b *Buffer) Release() {
	b.data = nil
	b.total = 0
	b.spans = nil
	b.active = false
}
