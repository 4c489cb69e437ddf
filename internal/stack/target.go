package stack

import (
	"net/http"
	"time"

	"github.com/felixgeelhaar/smith/internal/health"
)

// Readiness defaults.
const (
	DefaultTimeout  = 60 * time.Second
	DefaultInterval = 500 * time.Millisecond

	CollectorProbeURL = "http://localhost:4318/v1/traces"
	GatewayProbeURL   = "http://localhost:8080/health"
)

// emptyTraceExport is the smallest valid OTLP/JSON export request.
const emptyTraceExport = `{"resourceSpans":[]}`

// Probe describes one HTTP readiness check.
type Probe struct {
	Method         string `yaml:"method,omitempty" json:"method,omitempty"`
	URL            string `yaml:"url" json:"url"`
	ContentType    string `yaml:"content_type,omitempty" json:"content_type,omitempty"`
	Body           string `yaml:"body,omitempty" json:"body,omitempty"`
	ExpectedStatus []int  `yaml:"expected_status,omitempty" json:"expected_status,omitempty"`
	ExpectedBody   string `yaml:"expected_body,omitempty" json:"expected_body,omitempty"`
}

// Target is a dependency that must answer its probe before the agent starts.
type Target struct {
	Name     string        `yaml:"name" json:"name"`
	Probe    Probe         `yaml:"probe" json:"probe"`
	Timeout  time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Interval time.Duration `yaml:"interval,omitempty" json:"interval,omitempty"`
}

// DefaultTargets returns the collector and gateway probes, collector first.
func DefaultTargets() []Target {
	return []Target{
		{
			Name: ServiceCollector,
			Probe: Probe{
				Method:         http.MethodPost,
				URL:            CollectorProbeURL,
				ContentType:    "application/json",
				Body:           emptyTraceExport,
				ExpectedStatus: []int{http.StatusOK},
			},
			Timeout:  DefaultTimeout,
			Interval: DefaultInterval,
		},
		{
			Name: ServiceGateway,
			Probe: Probe{
				Method:         http.MethodGet,
				URL:            GatewayProbeURL,
				ExpectedStatus: []int{http.StatusOK},
			},
			Timeout:  DefaultTimeout,
			Interval: DefaultInterval,
		},
	}
}

// Checker builds the health check for the target.
func (t Target) Checker() *health.HTTPChecker {
	c := health.NewHTTPChecker(t.Name, t.Probe.Method, t.Probe.URL)
	if t.Probe.Body != "" {
		c.WithBody(t.Probe.ContentType, []byte(t.Probe.Body))
	}
	if len(t.Probe.ExpectedStatus) > 0 {
		c.WithExpectedStatus(t.Probe.ExpectedStatus...)
	}
	if t.Probe.ExpectedBody != "" {
		c.WithExpectedBody(t.Probe.ExpectedBody)
	}
	return c
}

func (t Target) interval() time.Duration {
	if t.Interval > 0 {
		return t.Interval
	}
	return DefaultInterval
}
