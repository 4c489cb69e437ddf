// Package stack brings up the local observability stack and waits until its
// services answer their readiness probes.
package stack

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/smith/internal/health"
	"github.com/felixgeelhaar/smith/internal/log"
)

// TargetResult is the readiness outcome of one target.
type TargetResult struct {
	Name     string        `json:"name" yaml:"name"`
	URL      string        `json:"url" yaml:"url"`
	Ready    bool          `json:"ready" yaml:"ready"`
	Attempts int           `json:"attempts" yaml:"attempts"`
	Elapsed  time.Duration `json:"elapsed" yaml:"elapsed"`
	LastErr  error         `json:"-" yaml:"-"`
}

// Report lists target results in target order.
type Report struct {
	Targets []TargetResult `json:"targets" yaml:"targets"`
}

// Ready reports whether every target became ready.
func (r Report) Ready() bool {
	for _, t := range r.Targets {
		if !t.Ready {
			return false
		}
	}
	return len(r.Targets) > 0
}

// Controller ensures the stack is running and ready.
type Controller struct {
	runtime  Runtime
	project  Project
	logger   *log.Logger
	newCheck func(Target) *health.HTTPChecker
	tracing  trace.TracerProvider
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller's logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCheckerFactory replaces how probes are built from targets.
func WithCheckerFactory(fn func(Target) *health.HTTPChecker) Option {
	return func(c *Controller) {
		if fn != nil {
			c.newCheck = fn
		}
	}
}

// WithTracerProvider traces readiness probes through tp.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Controller) { c.tracing = tp }
}

// NewController creates a controller for project driven by runtime.
func NewController(runtime Runtime, project Project, opts ...Option) *Controller {
	c := &Controller{
		runtime:  runtime,
		project:  project,
		logger:   log.Discard(),
		newCheck: Target.Checker,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Missing returns the project's services that are not running, in project
// order.
func (c *Controller) Missing(ctx context.Context) ([]string, error) {
	running, err := c.runtime.Running(ctx)
	if err != nil {
		return nil, err
	}

	up := make(map[string]bool, len(running))
	for _, s := range running {
		up[s] = true
	}

	var missing []string
	for _, name := range c.project.ServiceNames() {
		if !up[name] {
			missing = append(missing, name)
		}
	}
	return missing, nil
}

// Ensure starts the services that are not running. It never stops, removes
// or recreates containers, so calling it on a healthy stack is a no-op.
func (c *Controller) Ensure(ctx context.Context) error {
	if err := c.project.Validate(); err != nil {
		return err
	}

	missing, err := c.Missing(ctx)
	if err != nil {
		return err
	}
	if len(missing) == 0 {
		c.logger.Debug("stack already running", "services", c.project.ServiceNames())
		return nil
	}

	c.logger.Info("starting stack services", "services", missing)
	return c.runtime.Up(ctx, missing...)
}

// Down stops the stack.
func (c *Controller) Down(ctx context.Context) error {
	c.logger.Info("stopping stack", "project", c.project.Name)
	return c.runtime.Down(ctx)
}

// accumulator collects per-target results from the polling goroutines.
type accumulator struct {
	mu      sync.Mutex
	results map[int]TargetResult
}

func (a *accumulator) record(i int, r TargetResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results[i] = r
}

func (a *accumulator) report(n int) Report {
	a.mu.Lock()
	defer a.mu.Unlock()

	idx := make([]int, 0, len(a.results))
	for i := range a.results {
		idx = append(idx, i)
	}
	sort.Ints(idx)

	report := Report{Targets: make([]TargetResult, 0, n)}
	for _, i := range idx {
		report.Targets = append(report.Targets, a.results[i])
	}
	return report
}

// WaitReady polls every target concurrently until all are ready, a probe is
// found to be misconfigured, or globalTimeout elapses. Each target's own
// timeout is capped by globalTimeout.
//
// On timeout the error is a *ReadinessTimeoutError for the first target, in
// target order, that never became ready.
func (c *Controller) WaitReady(ctx context.Context, targets []Target, globalTimeout time.Duration) (Report, error) {
	if len(targets) == 0 {
		return Report{}, nil
	}
	if globalTimeout <= 0 {
		globalTimeout = DefaultTimeout
	}

	checkers := make([]*health.HTTPChecker, len(targets))
	for i, t := range targets {
		checkers[i] = c.newCheck(t).WithTracerProvider(c.tracing)
		if err := checkers[i].Validate(); err != nil {
			return Report{}, &ProbeConfigError{Target: t.Name, URL: t.Probe.URL, Err: err}
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, globalTimeout)
	defer cancel()

	acc := &accumulator{results: make(map[int]TargetResult, len(targets))}
	g, gctx := errgroup.WithContext(waitCtx)
	for i, t := range targets {
		g.Go(func() error {
			result, err := c.poll(gctx, t, checkers[i])
			acc.record(i, result)
			return err
		})
	}

	err := g.Wait()
	report := acc.report(len(targets))
	if err != nil {
		return report, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return report, ctxErr
	}

	for i, r := range report.Targets {
		if !r.Ready {
			return report, &ReadinessTimeoutError{
				Target:  r.Name,
				URL:     r.URL,
				Waited:  capTimeout(targets[i].Timeout, globalTimeout),
				LastErr: r.LastErr,
			}
		}
	}
	return report, nil
}

// poll probes t until it answers, its deadline passes, or the probe turns out
// to be misconfigured. Only a misconfigured probe returns an error; running
// out of time is recorded in the result.
func (c *Controller) poll(ctx context.Context, t Target, checker *health.HTTPChecker) (TargetResult, error) {
	result := TargetResult{Name: t.Name, URL: checker.URL()}
	start := time.Now()

	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	ticker := time.NewTicker(t.interval())
	defer ticker.Stop()

	logger := c.logger.With("target", t.Name, "url", result.URL)
	for {
		result.Attempts++
		err := checker.Probe(ctx)
		result.Elapsed = time.Since(start)
		if err == nil {
			result.Ready = true
			result.LastErr = nil
			logger.Debug("target ready", "attempts", result.Attempts, "elapsed", result.Elapsed)
			return result, nil
		}
		if !health.IsRetryable(err) {
			result.LastErr = err
			return result, &ProbeConfigError{Target: t.Name, URL: result.URL, Err: err}
		}

		// A probe cut short by the deadline says nothing about the target.
		if ctx.Err() == nil || result.LastErr == nil {
			result.LastErr = err
		}
		logger.Debug("target not ready", "attempt", result.Attempts, "error", err)

		select {
		case <-ctx.Done():
			if result.LastErr == nil {
				result.LastErr = ctx.Err()
			}
			return result, nil
		case <-ticker.C:
		}
	}
}

func capTimeout(target, global time.Duration) time.Duration {
	if target > 0 && target < global {
		return target
	}
	return global
}

// IsReadinessFailure reports whether err came from WaitReady giving up.
func IsReadinessFailure(err error) bool {
	var timeout *ReadinessTimeoutError
	var config *ProbeConfigError
	return errors.As(err, &timeout) || errors.As(err, &config)
}

// String renders a one-line summary of the report.
func (r Report) String() string {
	s := ""
	for i, t := range r.Targets {
		if i > 0 {
			s += ", "
		}
		state := "ready"
		if !t.Ready {
			state = "not ready"
		}
		s += fmt.Sprintf("%s %s (%d attempts)", t.Name, state, t.Attempts)
	}
	return s
}
