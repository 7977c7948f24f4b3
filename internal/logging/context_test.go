package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextKeys(t *testing.T) {
	ctx := context.Background()

	// Initially empty.
	assert.Equal(t, "", RequestID(ctx))
	assert.Equal(t, "", SessionID(ctx))
	assert.Equal(t, "", Action(ctx))

	// Set values.
	ctx = WithRequestID(ctx, "req-123")
	ctx = WithSessionID(ctx, "sess-1")
	ctx = WithAction(ctx, "open_browser")

	// Round-trip.
	assert.Equal(t, "req-123", RequestID(ctx))
	assert.Equal(t, "sess-1", SessionID(ctx))
	assert.Equal(t, "open_browser", Action(ctx))
}

func TestCorrelationHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCorrelationHandler(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-abc")
	ctx = WithSessionID(ctx, "sess-x")
	ctx = WithAction(ctx, "cpu_usage")

	logger.InfoContext(ctx, "test message")

	output := buf.String()
	assert.Contains(t, output, "request_id=req-abc")
	assert.Contains(t, output, "session_id=sess-x")
	assert.Contains(t, output, "action=cpu_usage")
	assert.Contains(t, output, "test message")
}

func TestCorrelationHandlerMissingKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCorrelationHandler(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	// Only set request ID — session and action should not appear.
	ctx := WithRequestID(context.Background(), "req-only")

	logger.InfoContext(ctx, "partial context")

	output := buf.String()
	assert.Contains(t, output, "request_id=req-only")
	assert.NotContains(t, output, "session_id")
	assert.NotContains(t, output, "action=")
}

func TestCorrelationHandlerEmptyContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCorrelationHandler(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	// No correlation IDs — no extra attrs.
	logger.InfoContext(context.Background(), "no context")

	output := buf.String()
	assert.NotContains(t, output, "request_id")
	assert.NotContains(t, output, "session_id")
	assert.Contains(t, output, "no context")
}
