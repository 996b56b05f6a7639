package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracerProviderExportsSpans(t *testing.T) {
	var buf bytes.Buffer

	tp, err := initTracerProvider("sso-test", &buf)
	require.NoError(t, err)

	_, span := Tracer.Start(context.Background(), "challenge.create")
	span.End()

	require.NoError(t, tp.Shutdown(context.Background()))

	assert.Contains(t, buf.String(), "challenge.create")
	assert.Contains(t, buf.String(), "sso-test")
}
