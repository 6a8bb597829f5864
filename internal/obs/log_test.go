package obs

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerFromContextAddsRequestID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	restore := SetLogger(zap.New(core))
	defer restore()

	ctx := WithRequestID(context.Background(), "req-9")
	LoggerFromContext(ctx).Info("hello")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["request_id"]; got != "req-9" {
		t.Fatalf("unexpected request_id %v", got)
	}
}

func TestWithRequestIDIgnoresBlank(t *testing.T) {
	ctx := WithRequestID(context.Background(), "   ")
	if rid := RequestIDFromContext(ctx); rid != "" {
		t.Fatalf("expected empty request id, got %q", rid)
	}
}
