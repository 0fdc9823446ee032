package logger

import (
	"context"
	"testing"

	"github.com/Strob0t/TaskForge/internal/config"
)

func TestNewSynchronous(t *testing.T) {
	l, closer := New(config.Logging{Level: "debug", Service: "taskforge-test"})
	if l == nil {
		t.Fatal("expected non-nil logger")
	}

	// Synchronous mode hands back a no-op closer.
	if _, isAsync := closer.(*AsyncHandler); isAsync {
		t.Fatal("synchronous config must not produce an async closer")
	}
	closer.Close()
}

func TestNewAsync(t *testing.T) {
	cfg := config.Logging{
		Level:           "info",
		Service:         "taskforge-test",
		Async:           true,
		AsyncBufferSize: 16,
		AsyncWorkers:    2,
	}
	l, closer := New(cfg)
	if l == nil {
		t.Fatal("expected non-nil logger")
	}

	ah, ok := closer.(*AsyncHandler)
	if !ok {
		t.Fatalf("async config must return the async handler as closer, got %T", closer)
	}

	l.Info("queued")
	ah.Close()

	if ah.DroppedCount() != 0 {
		t.Fatalf("expected no drops, got %d", ah.DroppedCount())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"debug", "DEBUG"},
		{"info", "INFO"},
		{"warn", "WARN"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{"ERROR", "ERROR"},
		{"verbose", "INFO"},
		{"", "INFO"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input).String(); got != tt.want {
				t.Errorf("parseLevel(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()

	if got := RequestID(ctx); got != "" {
		t.Errorf("expected empty request ID on a bare context, got %q", got)
	}

	ctx = WithRequestID(ctx, "req-123")
	if got := RequestID(ctx); got != "req-123" {
		t.Errorf("expected req-123, got %q", got)
	}

	// A nested value shadows the outer one without mutating it.
	inner := WithRequestID(ctx, "req-456")
	if got := RequestID(inner); got != "req-456" {
		t.Errorf("expected req-456 on inner context, got %q", got)
	}
	if got := RequestID(ctx); got != "req-123" {
		t.Errorf("outer context must keep req-123, got %q", got)
	}
}
