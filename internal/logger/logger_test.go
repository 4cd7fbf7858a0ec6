package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestNewWithWriter_JSONAddsTraceContext(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "prod")

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	log.InfoContext(ctx, "contact saved", "user_id", 7)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "contact saved", entry["msg"])
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", entry["span_id"])
	assert.EqualValues(t, 7, entry["user_id"])
}

func TestNewWithWriter_TextColorsErrors(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "local")

	log.Error("boom")
	assert.Contains(t, buf.String(), "[31mboom")

	buf.Reset()
	log.Info("fine")
	assert.NotContains(t, buf.String(), "[31m")
}

func TestNewWithWriter_DerivedLoggerKeepsBehaviour(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "local").With("component", "contact")

	log.Error("store down")
	out := buf.String()
	assert.Contains(t, out, "[31mstore down")
	assert.Contains(t, out, "component=contact")
}

func TestDiscard(t *testing.T) {
	assert.False(t, Discard().Enabled(context.Background(), slog.LevelError))
}
