package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestSetupLevelAndFields(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	var buf bytes.Buffer

	logger := setup(&buf, "warn", false)

	logger.Info(context.Background(), "hidden")
	logger.With(Fields{"component": "http"}).Error(context.Background(), "boom", errors.New("bad"), Fields{"status": 500})

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "boom", entry["message"])
	assert.Equal(t, "bad", entry["error"])
	assert.Equal(t, "http", entry["component"])
	assert.InDelta(t, 500, entry["status"], 0)
}

func TestSetupInvalidLevelFallsBack(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	var buf bytes.Buffer

	logger := setup(&buf, "loud", false)
	logger.Debug(context.Background(), "hidden")
	logger.Info(context.Background(), "shown")

	assert.Contains(t, buf.String(), "Invalid LOG_LEVEL")
	assert.Contains(t, buf.String(), "shown")
	assert.NotContains(t, buf.String(), "hidden")
}

func TestTraceIDsAreAttached(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	var buf bytes.Buffer

	logger := setup(&buf, "info", false)

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	logger.Info(ctx, "traced")
	span.End()

	assert.Contains(t, buf.String(), span.SpanContext().TraceID().String())
}
