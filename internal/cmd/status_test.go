package cmd

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/smith/internal/health"
	"github.com/felixgeelhaar/smith/internal/stack"
	"github.com/felixgeelhaar/smith/internal/ux"
)

type staticRuntime struct {
	running []string
	err     error
}

func (r staticRuntime) Running(context.Context) ([]string, error) { return r.running, r.err }
func (r staticRuntime) Up(context.Context, ...string) error        { return nil }
func (r staticRuntime) Down(context.Context) error                 { return nil }

type staticChecker struct {
	name   string
	result *health.Result
}

func (c staticChecker) Name() string                            { return c.name }
func (c staticChecker) Check(context.Context) *health.Result { return c.result }

func managerWith(checkers ...health.Checker) *health.Manager {
	m := health.NewManager()
	for _, c := range checkers {
		m.AddChecker(c)
	}
	return m
}

func TestBuildStatusReportHealthy(t *testing.T) {
	project := stack.DefaultProject()
	runtime := staticRuntime{running: project.ServiceNames()}
	manager := managerWith(
		staticChecker{"container-runtime", health.Healthy("Docker is running")},
		staticChecker{"git", health.Degraded("git not found")},
	)

	report := buildStatusReport(context.Background(), runtime, project, manager)

	assert.True(t, report.Healthy())
	assert.Equal(t, health.StatusDegraded, report.Status)
	assert.Empty(t, report.Issues)
	require.Len(t, report.Services, 3)
	for _, s := range report.Services {
		assert.True(t, s.Running, s.Name)
		assert.NotEmpty(t, s.Image)
	}
}

func TestBuildStatusReportUnhealthy(t *testing.T) {
	project := stack.DefaultProject()
	runtime := staticRuntime{running: []string{stack.ServiceClickHouse}}
	manager := managerWith(
		staticChecker{"gateway", health.Unhealthy("connection refused")},
	)

	report := buildStatusReport(context.Background(), runtime, project, manager)

	assert.False(t, report.Healthy())
	assert.Contains(t, report.Issues, "gateway: connection refused")
	assert.Contains(t, report.Issues, "some services are stopped; run 'smith up'")
}

func TestBuildStatusReportRuntimeError(t *testing.T) {
	runtime := staticRuntime{err: errors.New("docker compose ps failed\nstderr: daemon down")}

	report := buildStatusReport(context.Background(), runtime, stack.DefaultProject(), managerWith())

	assert.Equal(t, []string{"cannot list services: docker compose ps failed"}, report.Issues)
	for _, s := range report.Services {
		assert.False(t, s.Running)
	}
}

func TestStatusReportRenderText(t *testing.T) {
	project := stack.DefaultProject()
	runtime := staticRuntime{running: []string{stack.ServiceGateway}}
	manager := managerWith(staticChecker{"gateway", health.Healthy("HTTP 200")})
	report := buildStatusReport(context.Background(), runtime, project, manager)

	text := report.RenderText(ux.NewStyles(new(bytes.Buffer), true))

	lines := strings.Split(text, "\n")
	assert.Equal(t, "smith status  ✓ healthy", lines[0])
	assert.Contains(t, text, "gateway          ✓ healthy  HTTP 200")
	assert.Contains(t, text, "gateway          running  "+stack.DefaultGatewayImage)
	assert.Contains(t, text, "clickhouse       stopped  "+stack.DefaultClickHouseImage)
	assert.Contains(t, text, "Issues\n  • some services are stopped")
}

func TestStatusReportFormats(t *testing.T) {
	report := buildStatusReport(context.Background(), staticRuntime{}, stack.DefaultProject(),
		managerWith(staticChecker{"git", health.Healthy("git 2.44")}))

	var buf bytes.Buffer
	f, err := ux.NewFormatter("json", &ux.FormatterOptions{Writer: &buf})
	require.NoError(t, err)
	require.NoError(t, f.Format(report))
	assert.Contains(t, buf.String(), `"name": "git"`)
	assert.Contains(t, buf.String(), `"running": false`)

	buf.Reset()
	f, err = ux.NewFormatter("yaml", &ux.FormatterOptions{Writer: &buf})
	require.NoError(t, err)
	require.NoError(t, f.Format(report))
	assert.Contains(t, buf.String(), "status: healthy")
	assert.Contains(t, buf.String(), "name: otel-collector")
}
