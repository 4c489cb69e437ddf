package telemetry

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/propagation"

	"github.com/felixgeelhaar/smith/internal/otelenv"
)

// Trace context variables understood by OpenTelemetry SDKs.
const (
	EnvTraceParent = "TRACEPARENT"
	EnvTraceState  = "TRACESTATE"
)

var traceContext = propagation.TraceContext{}

// envCarrier adapts an Env to the W3C propagator using upper-case variable
// names.
type envCarrier struct {
	env *otelenv.Env
}

func (c envCarrier) Get(key string) string {
	return c.env.Value(strings.ToUpper(key))
}

func (c envCarrier) Set(key, value string) {
	c.env.Set(strings.ToUpper(key), value)
}

func (c envCarrier) Keys() []string {
	var keys []string
	for _, k := range []string{EnvTraceParent, EnvTraceState} {
		if c.env.Has(k) {
			keys = append(keys, strings.ToLower(k))
		}
	}
	return keys
}

// ContextFromEnv returns ctx with the remote span context found in env's
// TRACEPARENT, so a run launched from inside another trace nests under it.
func ContextFromEnv(ctx context.Context, env *otelenv.Env) context.Context {
	if env == nil {
		return ctx
	}
	return traceContext.Extract(ctx, envCarrier{env: env})
}

// InjectEnv returns a copy of env carrying h's trace context so spans the
// agent emits become children of the run span. Without a valid span env is
// returned unchanged.
func InjectEnv(h *SpanHandle, env *otelenv.Env) *otelenv.Env {
	out := env.Clone()
	if h == nil || !h.SpanContext().IsValid() {
		return out
	}
	out.Delete(EnvTraceState)
	traceContext.Inject(h.Context(), envCarrier{env: out})
	return out
}
