package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestFromContextPrefersRequestLogger(t *testing.T) {
	t.Parallel()

	var requestBuf, fallbackBuf bytes.Buffer
	requestLogger := slog.New(slog.NewTextHandler(&requestBuf, nil))
	fallback := slog.New(slog.NewTextHandler(&fallbackBuf, nil))

	ctx := WithLogger(t.Context(), requestLogger)
	FromContext(ctx, fallback).Info("order created")

	if !strings.Contains(requestBuf.String(), "order created") {
		t.Fatalf("expected request logger to receive the record")
	}
	if fallbackBuf.Len() != 0 {
		t.Fatalf("fallback logger should not be used")
	}
}

func TestFromContextFallbacks(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	fallback := slog.New(slog.NewTextHandler(&buf, nil))

	FromContext(context.Background(), fallback).Info("hello")
	if !strings.Contains(buf.String(), "hello") {
		t.Fatalf("expected fallback logger to be used")
	}

	if FromContext(context.Background(), nil) == nil {
		t.Fatalf("expected a discard logger, got nil")
	}
}

func TestWithAddsAttributes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := With(WithLogger(t.Context(), base), nil, "order_id", "ord-42")
	FromContext(ctx, nil).Info("payment token issued")

	if !strings.Contains(buf.String(), "order_id=ord-42") {
		t.Fatalf("expected order_id attribute, got %q", buf.String())
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	t.Parallel()

	if got := RequestIDFromContext(t.Context()); got != "" {
		t.Fatalf("expected empty request id, got %q", got)
	}

	ctx := WithRequestID(t.Context(), "req-1")
	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Fatalf("expected req-1, got %q", got)
	}
}
