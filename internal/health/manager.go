package health

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// NamedResult pairs a result with the checker that produced it.
type NamedResult struct {
	Name   string `json:"name" yaml:"name"`
	Result `yaml:",inline"`
}

// Report is the outcome of running every registered checker.
type Report struct {
	Status    Status        `json:"status" yaml:"status"`
	Checks    []NamedResult `json:"checks" yaml:"checks"`
	CheckedAt time.Time     `json:"checked_at" yaml:"checked_at"`
}

// DefaultCheckTimeout bounds each check run by a Manager.
const DefaultCheckTimeout = 5 * time.Second

// Manager runs a fixed set of checkers concurrently. Register checkers before
// the first Run.
type Manager struct {
	checkers []Checker
	timeout  time.Duration
}

func NewManager() *Manager {
	return &Manager{timeout: DefaultCheckTimeout}
}

// AddChecker registers c. Reports list checks in registration order.
func (m *Manager) AddChecker(c Checker) {
	m.checkers = append(m.checkers, c)
}

// Run runs every checker, each under its own timeout, and waits for all of
// them. A failing check never cancels the others.
func (m *Manager) Run(ctx context.Context) Report {
	checks := make([]NamedResult, len(m.checkers))

	var g errgroup.Group
	for i, c := range m.checkers {
		g.Go(func() error {
			checks[i] = m.check(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	return Report{
		Status:    Overall(checks),
		Checks:    checks,
		CheckedAt: time.Now().UTC(),
	}
}

func (m *Manager) check(ctx context.Context, c Checker) NamedResult {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	r := c.Check(ctx)
	if r == nil {
		r = Unhealthy("check returned no result")
	}
	if r.Latency == 0 {
		r.Latency = time.Since(start)
	}
	return NamedResult{Name: c.Name(), Result: *r}
}

// Overall is the worst status in results; no results is healthy.
func Overall(results []NamedResult) Status {
	worst := StatusHealthy
	for _, r := range results {
		switch r.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			worst = StatusDegraded
		}
	}
	return worst
}
