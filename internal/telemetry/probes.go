package telemetry

import (
	"context"
	"io"

	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ProbeTracing returns the provider readiness and status probes are traced
// through, and its shutdown. Probe spans are written to w when
// SMITH_TRACE_STDOUT is set and dropped otherwise; they are never sent to the
// collector that is being probed.
func ProbeTracing(ctx context.Context, cfg Config, w io.Writer) (trace.TracerProvider, func(context.Context) error) {
	none := func(context.Context) error { return nil }
	if !cfg.Enabled || !cfg.Stdout {
		return noop.NewTracerProvider(), none
	}

	res, err := createResource(ctx, cfg)
	if err != nil {
		return noop.NewTracerProvider(), none
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return noop.NewTracerProvider(), none
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSyncer(exporter),
	)
	return tp, tp.Shutdown
}
