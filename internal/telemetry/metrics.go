package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// Metric names.
const (
	MetricRuns     = "smith.observe.runs"
	MetricDuration = "smith.observe.duration"
)

type metricsOptions struct {
	reader sdkmetric.Reader
}

// WithMetricReader replaces the OTLP metric exporter with reader. Tests use
// a ManualReader.
func WithMetricReader(reader sdkmetric.Reader) Option {
	return func(o *options) { o.metrics = &metricsOptions{reader: reader} }
}

// runMetrics counts runs and records their duration.
type runMetrics struct {
	provider *sdkmetric.MeterProvider
	runs     metric.Int64Counter
	duration metric.Float64Histogram
}

func noopRunMetrics() *runMetrics {
	return instruments(nil, metricnoop.NewMeterProvider().Meter(instrumentationName))
}

// newRunMetrics exports over OTLP/HTTP. Metrics are skipped for grpc and
// when disabled, unless a reader was supplied.
func newRunMetrics(ctx context.Context, cfg Config, res *resource.Resource, o *metricsOptions) (*runMetrics, error) {
	var reader sdkmetric.Reader
	switch {
	case o != nil && o.reader != nil:
		reader = o.reader
	case cfg.Metrics && cfg.Protocol == ProtocolHTTPProtobuf:
		exporter, err := otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithEndpointURL(cfg.metricsEndpoint()),
			otlpmetrichttp.WithTimeout(cfg.ExportTimeout),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
		}
		// the reader is flushed on shutdown; a run rarely outlives one interval
		reader = sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(time.Minute))
	default:
		return noopRunMetrics(), nil
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	return instruments(mp, mp.Meter(instrumentationName)), nil
}

func instruments(mp *sdkmetric.MeterProvider, meter metric.Meter) *runMetrics {
	m := &runMetrics{provider: mp}

	// instrument creation only fails on invalid names, which are constants here
	m.runs, _ = meter.Int64Counter(
		MetricRuns,
		metric.WithDescription("Total number of observed agent runs"),
		metric.WithUnit("{run}"),
	)
	m.duration, _ = meter.Float64Histogram(
		MetricDuration,
		metric.WithDescription("Agent run duration in seconds"),
		metric.WithUnit("s"),
	)
	return m
}

func (m *runMetrics) record(ctx context.Context, agent string, exitCode int, d time.Duration) {
	status := "ok"
	if exitCode != 0 {
		status = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrAgentName, agent),
		attribute.String("status", status),
	)
	m.runs.Add(ctx, 1, attrs)
	m.duration.Record(ctx, d.Seconds(), attrs)
}

func (m *runMetrics) shutdown(ctx context.Context) error {
	if m == nil || m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}
