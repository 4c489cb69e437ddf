package telemetry

import (
	"errors"
	"testing"

	"github.com/felixgeelhaar/smith/internal/otelenv"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.ServiceName != "smith" {
		t.Errorf("ServiceName = %q, want %q", config.ServiceName, "smith")
	}

	if !config.Enabled {
		t.Error("Enabled should be true by default")
	}

	if config.Protocol != ProtocolHTTPProtobuf {
		t.Errorf("Protocol = %q, want %q", config.Protocol, ProtocolHTTPProtobuf)
	}

	if config.TracesEndpoint != "http://localhost:4318/v1/traces" {
		t.Errorf("TracesEndpoint = %q", config.TracesEndpoint)
	}

	if config.ExportTimeout != DefaultExportTimeout {
		t.Errorf("ExportTimeout = %v, want %v", config.ExportTimeout, DefaultExportTimeout)
	}

	if err := config.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestConfigFromEnrichedEnv(t *testing.T) {
	env := otelenv.FromMap(map[string]string{
		otelenv.KeyEndpoint:           "http://collector:4318/",
		otelenv.KeyProtocol:           "HTTP/Protobuf",
		otelenv.KeyInsecure:           "false",
		otelenv.KeyServiceName:        "codex",
		otelenv.KeyResourceAttributes: "service.name=codex,team=ml%2Cops",
		EnvTraceStdout:                "1",
	})

	config, err := ConfigFromEnv(env)
	if err != nil {
		t.Fatalf("ConfigFromEnv failed: %v", err)
	}

	if config.ServiceName != "codex" {
		t.Errorf("ServiceName = %q, want %q", config.ServiceName, "codex")
	}
	if config.Protocol != ProtocolHTTPProtobuf {
		t.Errorf("Protocol = %q, want normalised %q", config.Protocol, ProtocolHTTPProtobuf)
	}
	if config.TracesEndpoint != "http://collector:4318/v1/traces" {
		t.Errorf("TracesEndpoint = %q, want derived from endpoint", config.TracesEndpoint)
	}
	if config.Insecure {
		t.Error("Insecure should follow OTEL_EXPORTER_OTLP_INSECURE")
	}
	if !config.Stdout {
		t.Error("Stdout should be enabled by SMITH_TRACE_STDOUT")
	}

	want := [][2]string{{"service.name", "codex"}, {"team", "ml,ops"}}
	if len(config.ResourceAttributes) != len(want) {
		t.Fatalf("ResourceAttributes = %v, want %v", config.ResourceAttributes, want)
	}
	for i := range want {
		if config.ResourceAttributes[i] != want[i] {
			t.Errorf("ResourceAttributes[%d] = %v, want %v", i, config.ResourceAttributes[i], want[i])
		}
	}
}

func TestConfigTracesEndpointWins(t *testing.T) {
	env := otelenv.FromMap(map[string]string{
		otelenv.KeyEndpoint:       "http://a:4318",
		otelenv.KeyTracesEndpoint: "http://b:9999/custom/traces",
	})

	config, err := ConfigFromEnv(env)
	if err != nil {
		t.Fatalf("ConfigFromEnv failed: %v", err)
	}
	if config.TracesEndpoint != "http://b:9999/custom/traces" {
		t.Errorf("TracesEndpoint = %q", config.TracesEndpoint)
	}
	if got := config.metricsEndpoint(); got != "http://a:4318/v1/metrics" {
		t.Errorf("metricsEndpoint() = %q", got)
	}
}

func TestConfigDisabledBySDKSwitch(t *testing.T) {
	env := otelenv.FromMap(map[string]string{
		EnvSDKDisabled:      "true",
		otelenv.KeyProtocol: "carrier-pigeon",
	})

	config, err := ConfigFromEnv(env)
	if err != nil {
		t.Fatalf("a disabled SDK must not validate exporters: %v", err)
	}
	if config.Enabled {
		t.Error("Enabled should be false when OTEL_SDK_DISABLED is set")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantKey string
	}{
		{"unknown protocol", func(c *Config) { c.Protocol = "http/json" }, otelenv.KeyProtocol},
		{"bad traces scheme", func(c *Config) { c.TracesEndpoint = "localhost:4318/v1/traces" }, otelenv.KeyTracesEndpoint},
		{"missing host", func(c *Config) { c.TracesEndpoint = "http:///v1/traces" }, otelenv.KeyTracesEndpoint},
		{"grpc bad endpoint", func(c *Config) {
			c.Protocol = ProtocolGRPC
			c.Endpoint = "ftp://collector:4317"
		}, otelenv.KeyEndpoint},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(&config)

			err := config.Validate()
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Validate() = %v, want *ConfigError", err)
			}
			if cfgErr.Key != tt.wantKey {
				t.Errorf("Key = %q, want %q", cfgErr.Key, tt.wantKey)
			}
		})
	}
}

func TestGRPCTarget(t *testing.T) {
	tests := []struct {
		endpoint     string
		insecure     bool
		wantHost     string
		wantInsecure bool
	}{
		{"http://localhost:4317", false, "localhost:4317", true},
		{"https://collector.example.com:4317", false, "collector.example.com:4317", false},
		{"https://collector.example.com:4317", true, "collector.example.com:4317", true},
	}

	for _, tt := range tests {
		config := DefaultConfig()
		config.Protocol = ProtocolGRPC
		config.Endpoint = tt.endpoint
		config.Insecure = tt.insecure

		host, insecure := config.grpcTarget()
		if host != tt.wantHost || insecure != tt.wantInsecure {
			t.Errorf("grpcTarget(%q, %v) = %q, %v; want %q, %v",
				tt.endpoint, tt.insecure, host, insecure, tt.wantHost, tt.wantInsecure)
		}
	}
}
