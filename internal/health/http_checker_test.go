package health

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/felixgeelhaar/smith/internal/version"
)

func TestHTTPCheckerHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		assert.Equal(t, "smith/"+version.Version, r.UserAgent())
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewHTTPChecker("gateway", http.MethodGet, srv.URL+"/health")

	require.NoError(t, c.Probe(context.Background()))
	result := c.Check(context.Background())
	assert.Equal(t, StatusHealthy, result.Status)
	assert.Equal(t, srv.URL+"/health", result.Details["url"])
	assert.Equal(t, "gateway", c.Name())
}

func TestHTTPCheckerTracesRequests(t *testing.T) {
	headers := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Get("traceparent")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	c := NewHTTPChecker("gateway", http.MethodGet, srv.URL+"/health").WithTracerProvider(tp)

	require.NoError(t, c.Probe(context.Background()))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, ProbeSpanPrefix+" GET /health", spans[0].Name())

	sc := spans[0].SpanContext()
	assert.Equal(t, fmt.Sprintf("00-%s-%s-01", sc.TraceID(), sc.SpanID()), <-headers)
}

func TestHTTPCheckerUntracedByDefault(t *testing.T) {
	headers := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Get("traceparent")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewHTTPChecker("gateway", http.MethodGet, srv.URL).WithTracerProvider(nil)

	require.NoError(t, c.Probe(context.Background()))
	assert.Empty(t, <-headers)
}

func TestHTTPCheckerSendsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" || string(body) != `{"resourceSpans":[]}` {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewHTTPChecker("otel-collector", http.MethodPost, srv.URL+"/v1/traces").
		WithBody("application/json", []byte(`{"resourceSpans":[]}`))

	assert.NoError(t, c.Probe(context.Background()))
}

func TestHTTPCheckerUnexpectedStatusIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewHTTPChecker("gateway", http.MethodGet, srv.URL)

	err := c.Probe(context.Background())
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Contains(t, err.Error(), "unexpected status 503")
	assert.Equal(t, StatusUnhealthy, c.Check(context.Background()).Status)
}

func TestHTTPCheckerExpectedStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"status":"starting"}`))
	}))
	defer srv.Close()

	c := NewHTTPChecker("x", "", srv.URL).WithExpectedStatus(http.StatusAccepted)
	assert.NoError(t, c.Probe(context.Background()))

	c.WithExpectedBody(`"status":"ok"`)
	err := c.Probe(context.Background())
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}

func TestHTTPCheckerConnectionRefusedIsRetryable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	c := NewHTTPChecker("gateway", http.MethodGet, "http://"+addr+"/health")

	err = c.Probe(context.Background())
	require.Error(t, err)
	assert.True(t, IsRetryable(err), "a port nobody listens on yet may come up")
}

func TestHTTPCheckerConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"malformed", "http://[::1"},
		{"bad scheme", "ftp://localhost/health"},
		{"no scheme", "localhost:8080/health"},
		{"no host", "http:///health"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewHTTPChecker("gateway", http.MethodGet, tt.url)

			assert.Error(t, c.Validate())
			err := c.Probe(context.Background())
			require.Error(t, err)
			assert.False(t, IsRetryable(err))

			result := c.Check(context.Background())
			assert.Equal(t, StatusUnhealthy, result.Status)
			assert.Equal(t, "misconfigured probe", result.Message)
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.True(t, IsRetryable(io.EOF))
	assert.False(t, IsRetryable(&ProbeError{URL: "x", Err: io.EOF}))
	assert.True(t, IsRetryable(&ProbeError{URL: "x", Retryable: true, Err: io.EOF}))
}
