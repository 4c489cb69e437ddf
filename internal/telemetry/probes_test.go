package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeTracingEchoesToWriter(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Stdout = true

	tp, shutdown := ProbeTracing(context.Background(), cfg, &buf)
	_, span := tp.Tracer("probe-test").Start(context.Background(), "smith.probe GET /health")
	span.End()
	require.NoError(t, shutdown(context.Background()))

	assert.True(t, span.SpanContext().IsValid())
	assert.Contains(t, buf.String(), "smith.probe GET /health")
}

func TestProbeTracingOffByDefault(t *testing.T) {
	var buf bytes.Buffer

	tp, shutdown := ProbeTracing(context.Background(), DefaultConfig(), &buf)
	_, span := tp.Tracer("probe-test").Start(context.Background(), "smith.probe GET /health")
	span.End()
	require.NoError(t, shutdown(context.Background()))

	assert.False(t, span.SpanContext().IsValid())
	assert.Empty(t, buf.String())
}

func TestProbeTracingDisabledSDK(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Stdout = true
	cfg.Enabled = false

	tp, shutdown := ProbeTracing(context.Background(), cfg, &buf)
	_, span := tp.Tracer("probe-test").Start(context.Background(), "probe")
	span.End()
	require.NoError(t, shutdown(context.Background()))

	assert.Empty(t, buf.String())
}
