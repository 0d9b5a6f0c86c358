package metrics

import (
	"encoding/json"
	"sync"
	"testing"
)

func TestCollector_Packets(t *testing.T) {
	c := New()

	c.PacketReceived(1024)
	c.PacketSent(512)
	c.PacketReceived(100)

	s := c.Snapshot()
	if s.PacketsIn != 2 {
		t.Errorf("packets in = %d, want 2", s.PacketsIn)
	}
	if s.PacketsOut != 1 {
		t.Errorf("packets out = %d, want 1", s.PacketsOut)
	}
	if s.BytesIn != 1124 {
		t.Errorf("bytes in = %d, want 1124", s.BytesIn)
	}
	if s.BytesOut != 512 {
		t.Errorf("bytes out = %d, want 512", s.BytesOut)
	}
}

func TestCollector_SessionCounters(t *testing.T) {
	c := New()

	c.Connected()
	c.SnapshotChunk(4096)
	c.SnapshotChunk(100)
	c.SnapshotCompleted()
	c.CommandQueued()
	c.CommandQueued()
	c.CommandQueued()
	c.AuthAttempt()
	c.Desync()

	s := c.Snapshot()
	if s.ConnectsTotal != 1 {
		t.Errorf("connects = %d, want 1", s.ConnectsTotal)
	}
	if s.SnapshotBytes != 4196 {
		t.Errorf("snapshot bytes = %d, want 4196", s.SnapshotBytes)
	}
	if s.CommandsQueued != 3 {
		t.Errorf("commands = %d, want 3", s.CommandsQueued)
	}
	if s.AuthAttempts != 1 {
		t.Errorf("auth attempts = %d, want 1", s.AuthAttempts)
	}
	if s.SnapshotsTotal != 1 || s.Desyncs != 1 {
		t.Errorf("snapshot = %+v", s)
	}
}

func TestCollector_Errors(t *testing.T) {
	c := New()

	c.RecordError("first error")
	c.RecordError("second error")

	if c.Snapshot().ErrorsTotal != 2 {
		t.Errorf("errors = %d, want 2", c.Snapshot().ErrorsTotal)
	}
	s := c.Snapshot()
	if s.LastErrorMessage != "second error" {
		t.Errorf("last error = %q, want %q", s.LastErrorMessage, "second error")
	}
	if s.LastError == "" {
		t.Error("expected non-empty last error timestamp")
	}
}

func TestCollector_JSON(t *testing.T) {
	c := New()
	c.PacketReceived(10)
	c.AuthAttempt()

	var s Snapshot
	if err := json.Unmarshal([]byte(c.JSON()), &s); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if s.BytesIn != 10 || s.AuthAttempts != 1 {
		t.Errorf("decoded snapshot = %+v", s)
	}
	if s.Uptime == "" {
		t.Error("uptime should be set")
	}
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector

	c.Connected()
	c.PacketReceived(1)
	c.PacketSent(1)
	c.SnapshotChunk(1)
	c.SnapshotCompleted()
	c.CommandQueued()
	c.AuthAttempt()
	c.Desync()
	c.RecordError("x")

	if s := c.Snapshot(); s != (Snapshot{}) {
		t.Errorf("nil snapshot = %+v", s)
	}
}

func TestCollector_Concurrent(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.PacketSent(2)
			}
		}()
	}
	wg.Wait()
	if s := c.Snapshot(); s.PacketsOut != 8000 || s.BytesOut != 16000 {
		t.Errorf("packets = %d bytes = %d", s.PacketsOut, s.BytesOut)
	}
}
