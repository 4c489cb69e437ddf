// Package health checks the services and tools smith depends on.
//
// A Checker verifies one dependency and returns a Result. The same checkers
// back two callers: the readiness wait in package stack, which polls the
// HTTP checkers until they pass, and `smith status`, which runs every checker
// once through a Manager and prints the report.
//
//	manager := health.NewManager()
//	manager.AddChecker(health.NewRuntimeChecker())
//	manager.AddChecker(health.NewHTTPChecker("gateway", http.MethodGet, "http://localhost:8080/health"))
//
//	report := manager.Run(ctx)
//	fmt.Println(report.Status)
package health

import (
	"context"
	"time"
)

// Checker verifies one dependency. Check must honour ctx.
type Checker interface {
	Name() string
	Check(ctx context.Context) *Result
}

// Status is the outcome of a check. Degraded means usable with reduced
// functionality, e.g. runs without git metadata.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Result is the outcome of a single check. Latency is filled in by the
// Manager when the checker leaves it zero.
type Result struct {
	Status  Status         `json:"status" yaml:"status"`
	Message string         `json:"message" yaml:"message"`
	Details map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
	Latency time.Duration  `json:"latency_ns" yaml:"latency_ns"`
}

func result(status Status, message string) *Result {
	return &Result{Status: status, Message: message, Details: map[string]any{}}
}

func Healthy(message string) *Result   { return result(StatusHealthy, message) }
func Degraded(message string) *Result  { return result(StatusDegraded, message) }
func Unhealthy(message string) *Result { return result(StatusUnhealthy, message) }

// WithDetail sets Details[key] and returns r.
func (r *Result) WithDetail(key string, value any) *Result {
	if r.Details == nil {
		r.Details = map[string]any{}
	}
	r.Details[key] = value
	return r
}

func (r *Result) WithLatency(latency time.Duration) *Result {
	r.Latency = latency
	return r
}
