// Package command holds the pending game commands received from the
// server, ordered deterministically so every client applies them in the
// same sequence.
package command

import (
	"fmt"
	"sort"
)

// NumArgs is the number of argument words a command carries.
const NumArgs = 7

// Command is one simulation command scheduled for a tick.
type Command struct {
	Tick     uint32
	Args     [NumArgs]uint32
	PlayerID uint8
	Callback uint8
	Seq      uint32 // server-assigned, unique per tick and player
}

// Less orders commands by (Tick, PlayerID, Seq).
func (c Command) Less(o Command) bool {
	if c.Tick != o.Tick {
		return c.Tick < o.Tick
	}
	if c.PlayerID != o.PlayerID {
		return c.PlayerID < o.PlayerID
	}
	return c.Seq < o.Seq
}

func (c Command) String() string {
	return fmt.Sprintf("cmd{tick=%d player=%d seq=%d cb=%d}", c.Tick, c.PlayerID, c.Seq, c.Callback)
}

// Queue is an ordered multiset of commands.  Commands with equal keys
// keep their arrival order.  Nothing is ever dropped or deduplicated.
//
// Queue is not safe for concurrent use.
type Queue struct {
	items []Command
}

// Enqueue inserts c after every queued command that does not sort
// after it.
func (q *Queue) Enqueue(c Command) {
	i := sort.Search(len(q.items), func(i int) bool { return c.Less(q.items[i]) })
	q.items = append(q.items, Command{})
	copy(q.items[i+1:], q.items[i:])
	q.items[i] = c
}

// Len returns the number of queued commands.
func (q *Queue) Len() int { return len(q.items) }

// Peek returns the first command in order.
func (q *Queue) Peek() (Command, bool) {
	if len(q.items) == 0 {
		return Command{}, false
	}
	return q.items[0], true
}

// PopReady removes and returns, in order, every command scheduled at or
// before tick.
func (q *Queue) PopReady(tick uint32) []Command {
	n := sort.Search(len(q.items), func(i int) bool { return q.items[i].Tick > tick })
	if n == 0 {
		return nil
	}
	out := make([]Command, n)
	copy(out, q.items[:n])
	q.items = append(q.items[:0], q.items[n:]...)
	return out
}

// Snapshot returns a copy of the queued commands in order.
func (q *Queue) Snapshot() []Command {
	out := make([]Command, len(q.items))
	copy(out, q.items)
	return out
}

// Clear empties the queue.
func (q *Queue) Clear() {
	q.items = q.items[:0]
}
