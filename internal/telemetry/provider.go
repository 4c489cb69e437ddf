// Package telemetry opens and closes the span that brackets an agent run and
// exports it, together with run metrics, to the local collector.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/felixgeelhaar/smith"

// recordingExporter remembers export failures so that Close can report them;
// the SDK otherwise only hands them to the global error handler.
type recordingExporter struct {
	exporter sdktrace.SpanExporter

	mu       sync.Mutex
	exported int
	lastErr  error
}

func newRecordingExporter(exporter sdktrace.SpanExporter) *recordingExporter {
	return &recordingExporter{exporter: exporter}
}

func (re *recordingExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	err := re.exporter.ExportSpans(ctx, spans)

	re.mu.Lock()
	defer re.mu.Unlock()
	if err != nil {
		re.lastErr = err
		return err
	}
	re.exported += len(spans)
	return nil
}

func (re *recordingExporter) Shutdown(ctx context.Context) error {
	return re.exporter.Shutdown(ctx)
}

// takeErr returns and clears the last export error.
func (re *recordingExporter) takeErr() error {
	re.mu.Lock()
	defer re.mu.Unlock()
	err := re.lastErr
	re.lastErr = nil
	return err
}

func (re *recordingExporter) count() int {
	re.mu.Lock()
	defer re.mu.Unlock()
	return re.exported
}

// Option configures a Tracer.
type Option func(*options)

type options struct {
	exporter sdktrace.SpanExporter
	metrics  *metricsOptions
	stdout   io.Writer
	now      func() time.Time
}

// WithExporter replaces the OTLP exporter. Tests use the in-memory exporter.
func WithExporter(exporter sdktrace.SpanExporter) Option {
	return func(o *options) { o.exporter = exporter }
}

// WithStdoutWriter sets where SMITH_TRACE_STDOUT writes spans.
func WithStdoutWriter(w io.Writer) Option {
	return func(o *options) { o.stdout = w }
}

// Tracer emits the smith.observe span for one run.
type Tracer struct {
	cfg      Config
	provider trace.TracerProvider
	sdk      *sdktrace.TracerProvider
	tracer   trace.Tracer
	exporter *recordingExporter
	metrics  *runMetrics
	now      func() time.Time
}

// createResource builds the resource from the service identity and the
// child's resource attributes.
func createResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	}
	for _, kv := range cfg.ResourceAttributes {
		if kv[0] == string(semconv.ServiceNameKey) {
			continue
		}
		attrs = append(attrs, attribute.String(kv[0], kv[1]))
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(attrs...),
		resource.WithHost(),
		resource.WithOS(),
		resource.WithProcessRuntimeDescription(),
		resource.WithTelemetrySDK(),
	)
	if err != nil && res == nil {
		return nil, err
	}
	// a partially detected resource is still usable
	return res, nil
}

func newSpanExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Protocol {
	case ProtocolGRPC:
		endpoint, insecure := cfg.grpcTarget()
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithTimeout(cfg.ExportTimeout),
			otlptracegrpc.WithRetry(otlptracegrpc.RetryConfig{
				Enabled:         true,
				InitialInterval: 100 * time.Millisecond,
				MaxInterval:     time.Second,
				MaxElapsedTime:  cfg.ExportTimeout,
			}),
		}
		if insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)
	default:
		return otlptracehttp.New(ctx,
			otlptracehttp.WithEndpointURL(cfg.TracesEndpoint),
			otlptracehttp.WithTimeout(cfg.ExportTimeout),
			otlptracehttp.WithRetry(otlptracehttp.RetryConfig{
				Enabled:         true,
				InitialInterval: 100 * time.Millisecond,
				MaxInterval:     time.Second,
				MaxElapsedTime:  cfg.ExportTimeout,
			}),
		)
	}
}

// New creates a tracer for cfg. Spans are exported synchronously when they
// end so that Close can report delivery failures.
func New(ctx context.Context, cfg Config, opts ...Option) (*Tracer, error) {
	o := options{stdout: os.Stderr, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if cfg.ExportTimeout <= 0 {
		cfg.ExportTimeout = DefaultExportTimeout
	}

	if !cfg.Enabled {
		provider := noop.NewTracerProvider()
		return &Tracer{
			cfg:      cfg,
			provider: provider,
			tracer:   provider.Tracer(instrumentationName),
			metrics:  noopRunMetrics(),
			now:      o.now,
		}, nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	res, err := createResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter := o.exporter
	if exporter == nil {
		exporter, err = newSpanExporter(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
	}
	recording := newRecordingExporter(exporter)

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(recording)),
	}
	if cfg.Stdout {
		echo, err := stdouttrace.New(stdouttrace.WithWriter(o.stdout), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(echo)))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)

	metrics, err := newRunMetrics(ctx, cfg, res, o.metrics)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}

	return &Tracer{
		cfg:      cfg,
		provider: tp,
		sdk:      tp,
		tracer:   tp.Tracer(instrumentationName),
		exporter: recording,
		metrics:  metrics,
		now:      o.now,
	}, nil
}

// SpanHandle is an open run span.
type SpanHandle struct {
	ctx   context.Context
	span  trace.Span
	start time.Time
	info  RunInfo
}

// Context returns the context carrying the span.
func (h *SpanHandle) Context() context.Context { return h.ctx }

// SpanContext returns the span's identity.
func (h *SpanHandle) SpanContext() trace.SpanContext { return h.span.SpanContext() }

// Open starts the run span. A trace context already present in ctx becomes
// the parent.
func (t *Tracer) Open(ctx context.Context, info RunInfo, attrs ...attribute.KeyValue) *SpanHandle {
	start := t.now()
	all := append(info.Attributes(), attrs...)
	spanCtx, span := t.tracer.Start(ctx, SpanName,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithTimestamp(start),
		trace.WithAttributes(all...),
	)
	return &SpanHandle{ctx: spanCtx, span: span, start: start, info: info}
}

// Close ends the span with the child's outcome and flushes it. Status is ok
// for exit code 0 and error otherwise. An export failure is returned as a
// *SpanExportError.
func (t *Tracer) Close(ctx context.Context, h *SpanHandle, exitCode int, signal string) error {
	if h == nil {
		return nil
	}
	end := t.now()

	h.span.SetAttributes(attribute.Int(AttrExitCode, exitCode))
	if signal != "" {
		h.span.SetAttributes(attribute.String(AttrSignal, signal))
	}
	switch {
	case exitCode == 0:
		h.span.SetStatus(codes.Ok, "")
	case signal != "":
		h.span.SetStatus(codes.Error, fmt.Sprintf("terminated by %s", signal))
	default:
		h.span.SetStatus(codes.Error, fmt.Sprintf("exit code %d", exitCode))
	}

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.cfg.ExportTimeout)
	defer cancel()

	t.metrics.record(flushCtx, h.info.Agent, exitCode, end.Sub(h.start))
	h.span.End(trace.WithTimestamp(end))

	if t.sdk == nil {
		return nil
	}
	if err := t.sdk.ForceFlush(flushCtx); err != nil {
		return &SpanExportError{Endpoint: t.endpoint(), Err: err}
	}
	if err := t.exporter.takeErr(); err != nil {
		return &SpanExportError{Endpoint: t.endpoint(), Err: err}
	}
	return nil
}

// Exported returns how many spans were delivered.
func (t *Tracer) Exported() int {
	if t.exporter == nil {
		return 0
	}
	return t.exporter.count()
}

// Shutdown releases exporters and flushes metrics.
func (t *Tracer) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.cfg.ExportTimeout)
	defer cancel()

	var errs []error
	if t.sdk != nil {
		if err := t.sdk.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("trace provider: %w", err))
		}
	}
	if err := t.metrics.shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("meter provider: %w", err))
	}
	return errors.Join(errs...)
}

// Provider returns the underlying tracer provider.
func (t *Tracer) Provider() trace.TracerProvider { return t.provider }

func (t *Tracer) endpoint() string {
	if t.cfg.Protocol == ProtocolGRPC {
		return t.cfg.Endpoint
	}
	return t.cfg.TracesEndpoint
}
