package telemetry

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/felixgeelhaar/smith/internal/otelenv"
)

// Supported OTLP protocols.
const (
	ProtocolHTTPProtobuf = "http/protobuf"
	ProtocolGRPC         = "grpc"
)

// Environment switches read by the tracer.
const (
	EnvTraceStdout = "SMITH_TRACE_STDOUT"
	EnvSDKDisabled = "OTEL_SDK_DISABLED"
)

// DefaultExportTimeout bounds the synchronous flush at span close.
const DefaultExportTimeout = 5 * time.Second

// Config holds configuration for the tracer
type Config struct {
	// ServiceName is the service.name resource attribute
	ServiceName string

	// ServiceVersion is smith's own version
	ServiceVersion string

	// Enabled determines whether tracing is enabled.
	// When false, a noop tracer is used and nothing is exported.
	Enabled bool

	// Protocol is http/protobuf or grpc
	Protocol string

	// Endpoint is the OTLP base endpoint (used for grpc and metrics)
	Endpoint string

	// TracesEndpoint is the full OTLP/HTTP traces URL
	TracesEndpoint string

	// Insecure disables TLS for grpc
	Insecure bool

	// Metrics enables the run counter and duration histogram (http only)
	Metrics bool

	// Stdout echoes spans to stderr
	Stdout bool

	// ResourceAttributes are decoded OTEL_RESOURCE_ATTRIBUTES entries in order
	ResourceAttributes [][2]string

	// ExportTimeout bounds every export and the final flush
	ExportTimeout time.Duration
}

// DefaultConfig returns the configuration matching the enrichment defaults.
func DefaultConfig() Config {
	return Config{
		ServiceName:    otelenv.DefaultServiceName,
		ServiceVersion: "dev",
		Enabled:        true,
		Protocol:       ProtocolHTTPProtobuf,
		Endpoint:       otelenv.DefaultEndpoint,
		TracesEndpoint: otelenv.DefaultTracesEndpoint,
		Insecure:       true,
		Metrics:        true,
		ExportTimeout:  DefaultExportTimeout,
	}
}

// ConfigFromEnv derives the tracer configuration from the enriched child
// environment, so smith's span goes wherever the agent's spans go.
func ConfigFromEnv(env *otelenv.Env) (Config, error) {
	cfg := DefaultConfig()

	if v, ok := env.Get(otelenv.KeyServiceName); ok && v != "" {
		cfg.ServiceName = v
	}
	if v, ok := env.Get(otelenv.KeyEndpoint); ok && v != "" {
		cfg.Endpoint = strings.TrimRight(v, "/")
		cfg.TracesEndpoint = cfg.Endpoint + "/v1/traces"
	}
	if v, ok := env.Get(otelenv.KeyTracesEndpoint); ok && v != "" {
		cfg.TracesEndpoint = v
	}
	if v, ok := env.Get(otelenv.KeyProtocol); ok && v != "" {
		cfg.Protocol = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := env.Get(otelenv.KeyInsecure); ok {
		cfg.Insecure = otelenv.Truthy(v)
	}
	cfg.Stdout = otelenv.Truthy(env.Value(EnvTraceStdout))
	cfg.Enabled = !otelenv.Truthy(env.Value(EnvSDKDisabled))

	attrs := otelenv.ParseResourceAttributes(env.Value(otelenv.KeyResourceAttributes))
	for _, k := range attrs.Keys() {
		v, _ := attrs.Get(k)
		cfg.ResourceAttributes = append(cfg.ResourceAttributes, [2]string{k, v})
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the protocol and the endpoint it will use.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch c.Protocol {
	case ProtocolHTTPProtobuf:
		return validateEndpoint(otelenv.KeyTracesEndpoint, c.TracesEndpoint)
	case ProtocolGRPC:
		return validateEndpoint(otelenv.KeyEndpoint, c.Endpoint)
	default:
		return &ConfigError{Key: otelenv.KeyProtocol, Value: c.Protocol,
			Err: fmt.Errorf("unsupported protocol (want %s or %s)", ProtocolHTTPProtobuf, ProtocolGRPC)}
	}
}

func validateEndpoint(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return &ConfigError{Key: key, Value: raw, Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ConfigError{Key: key, Value: raw, Err: fmt.Errorf("unsupported scheme %q", u.Scheme)}
	}
	if u.Host == "" {
		return &ConfigError{Key: key, Value: raw, Err: fmt.Errorf("missing host")}
	}
	return nil
}

// grpcTarget returns host:port and whether the connection must be plaintext.
func (c Config) grpcTarget() (string, bool) {
	u, err := url.Parse(c.Endpoint)
	if err != nil || u.Host == "" {
		return c.Endpoint, c.Insecure
	}
	return u.Host, c.Insecure || u.Scheme == "http"
}

// metricsEndpoint is the OTLP/HTTP metrics URL next to the traces URL.
func (c Config) metricsEndpoint() string {
	if strings.HasSuffix(c.TracesEndpoint, "/v1/traces") {
		return strings.TrimSuffix(c.TracesEndpoint, "/v1/traces") + "/v1/metrics"
	}
	return strings.TrimRight(c.Endpoint, "/") + "/v1/metrics"
}
