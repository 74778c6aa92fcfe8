package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, Event) { s.count.Add(1) }

type gateSink struct {
	gate chan struct{}
}

func (s *gateSink) Emit(context.Context, Event) { <-s.gate }

func TestNewDispatcherDisabledIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, &countingSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	// nil receivers are safe
	d.Emit(context.Background(), NewEvent("x"))
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reported drops")
	}
}

func TestDispatcherDeliversBeforeClose(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 64}, sink)
	for i := 0; i < 50; i++ {
		d.Emit(context.Background(), NewEvent("login_success"))
	}
	d.Close()

	if got := sink.count.Load(); got != 50 {
		t.Fatalf("expected 50 delivered events, got %d", got)
	}
}

func TestDispatcherDropIfFullCountsDrops(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// first event is taken by the worker and blocks in the sink, second fills
	// the buffer, the rest are dropped
	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), NewEvent("login_failure"))
	}
	deadline := time.Now().Add(time.Second)
	for d.Dropped() < 8 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if d.Dropped() < 8 {
		t.Fatalf("expected at least 8 drops, got %d", d.Dropped())
	}
	close(sink.gate)
	d.Close()
}

func TestDispatcherEmitAfterCloseIsIgnored(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)
	d.Close()
	d.Emit(context.Background(), NewEvent("logout"))
	if sink.count.Load() != 0 {
		t.Fatal("event delivered after close")
	}
}

func TestNewEventHasIDAndTimestamp(t *testing.T) {
	a := NewEvent("login_success")
	b := NewEvent("login_success")
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("expected distinct ids, got %q and %q", a.ID, b.ID)
	}
	if a.Timestamp.IsZero() || a.Timestamp.Location() != time.UTC {
		t.Fatalf("expected UTC timestamp, got %v", a.Timestamp)
	}
}

func TestJSONWriterSinkWritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	ev := NewEvent("login_failure")
	ev.UserID = 7
	ev.Reason = "invalid_credentials"
	sink.Emit(context.Background(), ev)
	sink.Emit(context.Background(), NewEvent("logout"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var got Event
	if err := json.Unmarshal([]byte(lines[0]), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != "login_failure" || got.UserID != 7 || got.Reason != "invalid_credentials" {
		t.Fatalf("unexpected event: %+v", got)
	}
}

func TestSlogSinkLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	sink := NewSlogSink(logger)

	ok := NewEvent("login_success")
	ok.Success = true
	sink.Emit(context.Background(), ok)
	fail := NewEvent("login_failure")
	fail.Reason = "rate_limited"
	sink.Emit(context.Background(), fail)

	out := buf.String()
	if !strings.Contains(out, `"level":"INFO"`) || !strings.Contains(out, `"level":"WARN"`) {
		t.Fatalf("expected info and warn records, got %s", out)
	}
	if !strings.Contains(out, `"reason":"rate_limited"`) {
		t.Fatalf("expected reason attribute, got %s", out)
	}
}

func TestChannelSinkRespectsContext(t *testing.T) {
	sink := NewChannelSink(1)
	sink.Emit(context.Background(), NewEvent("a"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan struct{})
	go func() {
		sink.Emit(ctx, NewEvent("b"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("emit on a full channel ignored context cancellation")
	}
	if ev := <-sink.Events(); ev.Type != "a" {
		t.Fatalf("unexpected event %q", ev.Type)
	}
}
