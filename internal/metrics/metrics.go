// Package metrics provides lightweight, lock-free counters for tracking
// runtime statistics of a lockstep session.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics for a lockstep session.
// A nil Collector is safe to use; all methods become no-ops.
type Collector struct {
	connectsTotal  atomic.Int64
	packetsIn      atomic.Int64
	packetsOut     atomic.Int64
	bytesIn        atomic.Int64
	bytesOut       atomic.Int64
	snapshotBytes  atomic.Int64
	snapshotsTotal atomic.Int64
	commandsQueued atomic.Int64
	authAttempts   atomic.Int64
	desyncs        atomic.Int64
	errorsTotal    atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Connection metrics ───────────────────────────────────────────────

// Connected records a successful transport connect.
func (c *Collector) Connected() {
	if c == nil {
		return
	}
	c.connectsTotal.Add(1)
}

// ── Packet metrics ───────────────────────────────────────────────────

// PacketReceived records one inbound packet of n payload bytes.
func (c *Collector) PacketReceived(n int) {
	if c == nil {
		return
	}
	c.packetsIn.Add(1)
	c.bytesIn.Add(int64(n))
}

// PacketSent records one outbound packet of n payload bytes.
func (c *Collector) PacketSent(n int) {
	if c == nil {
		return
	}
	c.packetsOut.Add(1)
	c.bytesOut.Add(int64(n))
}

// ── Session metrics ──────────────────────────────────────────────────

// SnapshotChunk records n bytes of snapshot data received.
func (c *Collector) SnapshotChunk(n int) {
	if c == nil {
		return
	}
	c.snapshotBytes.Add(int64(n))
}

// SnapshotCompleted records a fully reassembled snapshot.
func (c *Collector) SnapshotCompleted() {
	if c == nil {
		return
	}
	c.snapshotsTotal.Add(1)
}

// CommandQueued records an inbound game command.
func (c *Collector) CommandQueued() {
	if c == nil {
		return
	}
	c.commandsQueued.Add(1)
}

// AuthAttempt records one AUTH message sent.
func (c *Collector) AuthAttempt() {
	if c == nil {
		return
	}
	c.authAttempts.Add(1)
}

// Desync records a detected divergence.
func (c *Collector) Desync() {
	if c == nil {
		return
	}
	c.desyncs.Add(1)
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime           string `json:"uptime"`
	ConnectsTotal    int64  `json:"connects_total"`
	PacketsIn        int64  `json:"packets_in"`
	PacketsOut       int64  `json:"packets_out"`
	BytesIn          int64  `json:"bytes_in"`
	BytesOut         int64  `json:"bytes_out"`
	SnapshotBytes    int64  `json:"snapshot_bytes"`
	SnapshotsTotal   int64  `json:"snapshots_total"`
	CommandsQueued   int64  `json:"commands_queued"`
	AuthAttempts     int64  `json:"auth_attempts"`
	Desyncs          int64  `json:"desyncs"`
	ErrorsTotal      int64  `json:"errors_total"`
	LastError        string `json:"last_error,omitempty"`
	LastErrorMessage string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:         time.Since(c.startTime).Truncate(time.Second).String(),
		ConnectsTotal:  c.connectsTotal.Load(),
		PacketsIn:      c.packetsIn.Load(),
		PacketsOut:     c.packetsOut.Load(),
		BytesIn:        c.bytesIn.Load(),
		BytesOut:       c.bytesOut.Load(),
		SnapshotBytes:  c.snapshotBytes.Load(),
		SnapshotsTotal: c.snapshotsTotal.Load(),
		CommandsQueued: c.commandsQueued.Load(),
		AuthAttempts:   c.authAttempts.Load(),
		Desyncs:        c.desyncs.Load(),
		ErrorsTotal:    c.errorsTotal.Load(),
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
