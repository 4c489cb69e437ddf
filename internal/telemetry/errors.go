package telemetry

import "fmt"

// ConfigError reports an exporter setting the tracer cannot use.
type ConfigError struct {
	Key   string
	Value string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("telemetry config %s=%q: %v", e.Key, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// SpanExportError reports that the run span could not be delivered. It never
// affects the exit code of a run.
type SpanExportError struct {
	Endpoint string
	Err      error
}

func (e *SpanExportError) Error() string {
	if e.Endpoint == "" {
		return fmt.Sprintf("span export failed: %v", e.Err)
	}
	return fmt.Sprintf("span export to %s failed: %v", e.Endpoint, e.Err)
}

func (e *SpanExportError) Unwrap() error { return e.Err }
