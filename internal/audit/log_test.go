package audit

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"stockroom.app/internal/auth"
	"stockroom.app/internal/obs"
)

func TestLogEventEnrichesEntry(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	restore := obs.SetLogger(zap.New(core))
	defer restore()

	ctx := obs.WithRequestID(context.Background(), "req-9")
	ctx = auth.ContextWithPrincipal(ctx, auth.Principal{Identity: auth.Identity{ID: 42}})

	if err := LogEvent(ctx, EventOrderCreated, map[string]any{"order_id": int64(1001)}); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["type"] != "audit" || fields["event"] != EventOrderCreated {
		t.Fatalf("unexpected fields %v", fields)
	}
	if fields["request_id"] != "req-9" || fields["identity_id"] != int64(42) || fields["order_id"] != int64(1001) {
		t.Fatalf("missing context fields: %v", fields)
	}
}

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), "  ", nil); err == nil {
		t.Fatal("expected error for blank event")
	}
}
