package staffauth

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

type gateSink struct {
	gate chan struct{}
}

func (s *gateSink) Emit(context.Context, AuditEvent) {
	<-s.gate
}

func auditConfig(buffer int, dropIfFull bool) Config {
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = buffer
	cfg.Audit.DropIfFull = dropIfFull
	return cfg
}

func collect(t *testing.T, sink *ChannelSink, n int) []AuditEvent {
	t.Helper()
	out := make([]AuditEvent, 0, n)
	deadline := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case ev := <-sink.Events():
			out = append(out, ev)
		case <-deadline:
			t.Fatalf("timed out after %d of %d events", len(out), n)
		}
	}
	return out
}

func TestAuditLifecycleEvents(t *testing.T) {
	sink := NewChannelSink(32)
	te := newTestEngine(t, auditConfig(32, false), sink)
	ctx := WithClientIP(context.Background(), "10.0.0.7")

	pair, err := te.Login(ctx, "alice", "correct-password-123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := te.Rotate(ctx, pair.Refresh.Token); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	_, _ = te.Rotate(ctx, pair.Refresh.Token)
	_, _ = te.Login(ctx, "alice", "wrong")
	_, _ = te.Authenticate(ctx, "garbage")
	if _, err := te.RevokeAll(ctx, "staff-1"); err != nil {
		t.Fatalf("revoke all: %v", err)
	}

	events := collect(t, sink, 7)
	want := []string{
		auditEventCredentialIssued,
		auditEventLoginSuccess,
		auditEventRefreshSuccess,
		auditEventRefreshReuseDetected,
		auditEventLoginFailure,
		auditEventAccessRejected,
		auditEventLogoutAll,
	}
	for i, ev := range events {
		if ev.EventType != want[i] {
			t.Fatalf("event %d: got %q want %q", i, ev.EventType, want[i])
		}
		if ev.IP != "10.0.0.7" {
			t.Fatalf("event %d: missing client ip", i)
		}
	}

	reuse := events[3]
	if reuse.Success || reuse.Error != "credential_revoked" || reuse.Metadata["reason"] != "revoked" {
		t.Fatalf("unexpected reuse event: %+v", reuse)
	}
	if events[0].CredID == "" {
		t.Fatal("issued event must carry the record id")
	}
	if events[4].Error != "login_invalid" {
		t.Fatalf("unexpected login failure code: %q", events[4].Error)
	}
}

func TestAuditDropIfFull(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	te := newTestEngine(t, auditConfig(1, true), sink)

	for i := 0; i < 10; i++ {
		_, _ = te.Authenticate(context.Background(), "")
	}
	if te.AuditDropped() == 0 {
		t.Fatal("expected dropped audit events")
	}
	close(sink.gate)
}

func TestAuditDisabledByDefault(t *testing.T) {
	sink := &countingSink{}
	te := newTestEngine(t, testConfig(), sink)

	_, _ = te.Authenticate(context.Background(), "")
	if err := te.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if sink.count.Load() != 0 {
		t.Fatal("disabled audit must not reach the sink")
	}
	if te.AuditDropped() != 0 {
		t.Fatal("disabled audit reports no drops")
	}
}
