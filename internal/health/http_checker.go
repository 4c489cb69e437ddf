package health

import (
	"bytes"
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/smith/internal/version"
)

const maxProbeBody = 64 << 10

// ProbeError is a failed HTTP probe. Retryable errors are expected while a
// service starts (connection refused, resets, timeouts, wrong status);
// the rest mean the probe can never pass as configured.
type ProbeError struct {
	URL       string
	Retryable bool
	Err       error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %v", e.URL, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is worth probing again.
func IsRetryable(err error) bool {
	var pe *ProbeError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return err != nil
}

// HTTPChecker probes an HTTP endpoint. The probe passes only on an expected
// status code and, when set, an expected body substring.
type HTTPChecker struct {
	name        string
	method      string
	url         string
	body        []byte
	contentType string
	expect      []int
	expectBody  string
	client      *http.Client
}

// NewHTTPChecker creates a checker that expects 200 OK.
func NewHTTPChecker(name, method, rawURL string) *HTTPChecker {
	if method == "" {
		method = http.MethodGet
	}
	return &HTTPChecker{
		name:   name,
		method: method,
		url:    rawURL,
		expect: []int{http.StatusOK},
		client: &http.Client{Timeout: 2 * time.Second},
	}
}

var userAgent = version.GetInfo().UserAgent()

// ProbeSpanPrefix starts the name of every traced probe span.
const ProbeSpanPrefix = "smith.probe"

func probeSpanName(_ string, r *http.Request) string {
	return ProbeSpanPrefix + " " + r.Method + " " + r.URL.Path
}

// WithBody sends body with the given content type on every probe.
func (c *HTTPChecker) WithBody(contentType string, body []byte) *HTTPChecker {
	c.contentType = contentType
	c.body = body
	return c
}

// WithExpectedStatus replaces the accepted status codes.
func (c *HTTPChecker) WithExpectedStatus(codes ...int) *HTTPChecker {
	if len(codes) > 0 {
		c.expect = codes
	}
	return c
}

// WithExpectedBody requires the response body to contain substr.
func (c *HTTPChecker) WithExpectedBody(substr string) *HTTPChecker {
	c.expectBody = substr
	return c
}

// WithClient replaces the HTTP client.
func (c *HTTPChecker) WithClient(client *http.Client) *HTTPChecker {
	if client != nil {
		c.client = client
	}
	return c
}

// WithTracerProvider traces every probe request through tp and sends the
// W3C trace context with it.
func (c *HTTPChecker) WithTracerProvider(tp trace.TracerProvider) *HTTPChecker {
	if tp == nil {
		return c
	}
	base := c.client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	client := *c.client
	client.Transport = otelhttp.NewTransport(base,
		otelhttp.WithTracerProvider(tp),
		otelhttp.WithPropagators(propagation.TraceContext{}),
		otelhttp.WithSpanNameFormatter(probeSpanName),
	)
	c.client = &client
	return c
}

// Name implements Checker.
func (c *HTTPChecker) Name() string { return c.name }

// URL returns the probed URL.
func (c *HTTPChecker) URL() string { return c.url }

// Validate rejects probes that can never succeed: unparsable URLs,
// non-HTTP schemes and missing hosts.
func (c *HTTPChecker) Validate() error {
	u, err := url.Parse(c.url)
	if err != nil {
		return &ProbeError{URL: c.url, Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ProbeError{URL: c.url, Err: fmt.Errorf("unsupported scheme %q", u.Scheme)}
	}
	if u.Hostname() == "" {
		return &ProbeError{URL: c.url, Err: errors.New("missing host")}
	}
	return nil
}

// Probe performs one request. It returns nil on success and a *ProbeError
// otherwise.
func (c *HTTPChecker) Probe(ctx context.Context) error {
	if err := c.Validate(); err != nil {
		return err
	}

	var body io.Reader
	if c.body != nil {
		body = bytes.NewReader(c.body)
	}
	req, err := http.NewRequestWithContext(ctx, c.method, c.url, body)
	if err != nil {
		return &ProbeError{URL: c.url, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	if c.contentType != "" {
		req.Header.Set("Content-Type", c.contentType)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &ProbeError{URL: c.url, Retryable: transient(err), Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxProbeBody))
	if err != nil {
		return &ProbeError{URL: c.url, Retryable: true, Err: fmt.Errorf("reading response: %w", err)}
	}

	if !c.expected(resp.StatusCode) {
		return &ProbeError{URL: c.url, Retryable: true, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
	if c.expectBody != "" && !strings.Contains(string(payload), c.expectBody) {
		return &ProbeError{URL: c.url, Retryable: true, Err: fmt.Errorf("response does not contain %q", c.expectBody)}
	}
	return nil
}

func (c *HTTPChecker) expected(code int) bool {
	for _, want := range c.expect {
		if code == want {
			return true
		}
	}
	return false
}

// transient classifies transport errors. Unknown hosts and certificate
// problems will not fix themselves; everything else is retried.
func transient(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return false
	}

	var (
		unknownAuthority x509.UnknownAuthorityError
		hostnameErr      x509.HostnameError
		invalidCert      x509.CertificateInvalidError
	)
	if errors.As(err, &unknownAuthority) || errors.As(err, &hostnameErr) || errors.As(err, &invalidCert) {
		return false
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && strings.Contains(urlErr.Err.Error(), "unsupported protocol scheme") {
		return false
	}
	return true
}

// Check implements Checker.
func (c *HTTPChecker) Check(ctx context.Context) *Result {
	start := time.Now()
	err := c.Probe(ctx)
	latency := time.Since(start)

	if err == nil {
		return Healthy("responding").
			WithDetail("url", c.url).
			WithLatency(latency)
	}

	result := Unhealthy("not responding").
		WithDetail("url", c.url).
		WithDetail("error", err.Error()).
		WithLatency(latency)
	if !IsRetryable(err) {
		result.Message = "misconfigured probe"
	}
	return result
}
