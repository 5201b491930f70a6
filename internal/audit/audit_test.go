package audit

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type blockingSink struct {
	release chan struct{}
	mu      sync.Mutex
	got     []Event
}

func (s *blockingSink) Emit(_ context.Context, e Event) {
	<-s.release
	s.mu.Lock()
	s.got = append(s.got, e)
	s.mu.Unlock()
}

func TestDispatcherDeliversAndFlushesOnClose(t *testing.T) {
	sink := NewChannelSink(8)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)

	for i := 0; i < 3; i++ {
		d.Emit(context.Background(), Event{EventType: "credential_issued", StaffID: "s1"})
	}
	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(sink.Events()) != 3 {
		t.Fatalf("expected 3 flushed events, got %d", len(sink.Events()))
	}

	d.Emit(context.Background(), Event{EventType: "after_close"})
	if len(sink.Events()) != 3 {
		t.Fatal("emit after close must be dropped silently")
	}
	if err := d.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestDispatcherDropIfFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// One event is held by the sink, one fills the buffer, the rest drop.
	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "access_rejected"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected dropped events with a full buffer")
	}
	close(sink.release)
	_ = d.Close()
}

func TestDispatcherBlockingRespectsContext(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)

	d.Emit(context.Background(), Event{EventType: "first"})
	d.Emit(context.Background(), Event{EventType: "second"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	d.Emit(ctx, Event{EventType: "third"})

	if d.Dropped() == 0 {
		t.Fatal("expected a context-cancelled emit to count as dropped")
	}
	close(sink.release)
	_ = d.Close()
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{}, NoOpSink{})
	if d != nil {
		t.Fatal("disabled dispatcher must be nil")
	}
	d.Emit(context.Background(), Event{})
	if d.Dropped() != 0 || d.Close() != nil {
		t.Fatal("nil dispatcher must be inert")
	}
}

func TestZapSinkLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	sink := NewZapSink(zap.New(core))

	sink.Emit(context.Background(), Event{EventType: "refresh_success", StaffID: "s1", Success: true})
	sink.Emit(context.Background(), Event{
		EventType: "refresh_reuse_detected",
		StaffID:   "s1",
		Error:     "credential_revoked",
		Metadata:  map[string]string{"reason": "revoked"},
	})

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Level != zapcore.InfoLevel || entries[1].Level != zapcore.WarnLevel {
		t.Fatalf("unexpected levels: %v %v", entries[0].Level, entries[1].Level)
	}
	fields := entries[1].ContextMap()
	if fields["event"] != "refresh_reuse_detected" || fields["error"] != "credential_revoked" {
		t.Fatalf("unexpected fields: %v", fields)
	}
	if fields["meta.reason"] != "revoked" {
		t.Fatalf("metadata not flattened: %v", fields)
	}
}

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaSinkPublishesKeyedJSON(t *testing.T) {
	w := &fakeWriter{}
	sink := NewKafkaSink(w, "staff-auth-audit", nil)

	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	sink.Emit(context.Background(), Event{Timestamp: at, EventType: "logout_all", StaffID: "s9", Success: true})

	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "s9" {
		t.Fatalf("expected staff key, got %q", w.msgs[0].Key)
	}
	var decoded Event
	if err := json.Unmarshal(w.msgs[0].Value, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.EventType != "logout_all" || !decoded.Timestamp.Equal(at) {
		t.Fatalf("unexpected payload: %+v", decoded)
	}
}

func TestKafkaSinkWriteFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	w := &fakeWriter{err: errors.New("broker unreachable")}
	sink := NewKafkaSink(w, "audit", zap.New(core))

	sink.Emit(context.Background(), Event{EventType: "login_failure"})
	if logs.FilterMessage("kafka write failed").Len() != 1 {
		t.Fatal("expected write failure to be logged")
	}
}

func TestDispatcherClosesSink(t *testing.T) {
	w := &fakeWriter{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 2}, NewKafkaSink(w, "audit", nil))
	d.Emit(context.Background(), Event{EventType: "credential_issued", StaffID: "s1"})
	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !w.closed {
		t.Fatal("dispatcher must close a closable sink")
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected flushed message, got %d", len(w.msgs))
	}
}
