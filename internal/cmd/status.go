package cmd

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/smith/internal/exitcode"
	"github.com/felixgeelhaar/smith/internal/health"
	"github.com/felixgeelhaar/smith/internal/stack"
	"github.com/felixgeelhaar/smith/internal/ux"
)

var statusFormat string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the health of the observability stack",
	Long: `Check the container runtime, git, and each readiness probe in parallel
and list which stack services are running.

Exits 3 when a required check is unhealthy.

Examples:
  smith status
  smith status --format json
  smith status --format yaml
`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusFormat, "format", "text", "output format: text, json or yaml")
	rootCmd.AddCommand(statusCmd)
}

// StatusReport is the output of smith status.
type StatusReport struct {
	CheckedAt time.Time            `json:"checked_at" yaml:"checked_at"`
	Status    health.Status        `json:"status" yaml:"status"`
	Checks    []health.NamedResult `json:"checks" yaml:"checks"`
	Services  []ServiceStatus      `json:"services" yaml:"services"`
	Issues    []string             `json:"issues,omitempty" yaml:"issues,omitempty"`
}

// ServiceStatus describes one compose service.
type ServiceStatus struct {
	Name    string `json:"name" yaml:"name"`
	Image   string `json:"image" yaml:"image"`
	Running bool   `json:"running" yaml:"running"`
}

// Healthy reports whether no check is unhealthy.
func (r *StatusReport) Healthy() bool {
	return r.Status != health.StatusUnhealthy
}

// RenderText implements ux.TextRenderer.
func (r *StatusReport) RenderText(styles ux.Styles) string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("smith status"))
	b.WriteString("  ")
	b.WriteString(styles.Status(r.Status))
	b.WriteString("\n\n")

	b.WriteString(styles.Label.Render("Checks"))
	b.WriteString("\n")
	for _, c := range r.Checks {
		fmt.Fprintf(&b, "  %-16s %s  %s\n", c.Name, styles.Status(c.Status), styles.Muted.Render(c.Message))
	}

	b.WriteString("\n")
	b.WriteString(styles.Label.Render("Services"))
	b.WriteString("\n")
	for _, s := range r.Services {
		state := styles.Fail.Render("stopped")
		if s.Running {
			state = styles.OK.Render("running")
		}
		fmt.Fprintf(&b, "  %-16s %-8s %s\n", s.Name, state, styles.Muted.Render(s.Image))
	}

	if len(r.Issues) > 0 {
		b.WriteString("\n")
		b.WriteString(styles.Label.Render("Issues"))
		for _, issue := range r.Issues {
			b.WriteString("\n  • ")
			b.WriteString(issue)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// newHealthManager registers the runtime and git checks and one HTTP check
// per readiness target, traced through tp.
func newHealthManager(targets []stack.Target, tp trace.TracerProvider) *health.Manager {
	manager := health.NewManager()
	manager.AddChecker(health.NewRuntimeChecker())
	manager.AddChecker(health.NewGitChecker(""))
	for _, t := range targets {
		manager.AddChecker(t.Checker().WithTracerProvider(tp))
	}
	return manager
}

func buildStatusReport(ctx context.Context, runtime stack.Runtime, project stack.Project, manager *health.Manager) *StatusReport {
	checks := manager.Run(ctx)
	report := &StatusReport{
		CheckedAt: checks.CheckedAt,
		Status:    checks.Status,
		Checks:    checks.Checks,
	}

	running, err := runtime.Running(ctx)
	if err != nil {
		report.Issues = append(report.Issues, fmt.Sprintf("cannot list services: %v", firstLine(err.Error())))
	}
	for _, s := range project.Services {
		report.Services = append(report.Services, ServiceStatus{
			Name:    s.Name,
			Image:   s.Image,
			Running: slices.Contains(running, s.Name),
		})
	}

	for _, c := range checks.Checks {
		if c.Status == health.StatusUnhealthy {
			report.Issues = append(report.Issues, fmt.Sprintf("%s: %s", c.Name, c.Message))
		}
	}
	if err == nil && len(running) < len(project.Services) {
		report.Issues = append(report.Issues, "some services are stopped; run 'smith up'")
	}
	return report
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func runStatus(cmd *cobra.Command, args []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	formatter, err := ux.NewFormatter(statusFormat, &ux.FormatterOptions{Writer: out, NoColor: ux.NoColor(out)})
	if err != nil {
		return err
	}

	tracing, flush := cmdCtx.ProbeTracing(cmd)
	defer flush()

	cfg := cmdCtx.Config
	report := buildStatusReport(cmd.Context(), cfg.Runtime(), cfg.Project(), newHealthManager(cfg.Targets(), tracing))
	if err := formatter.Format(report); err != nil {
		return err
	}

	if !report.Healthy() {
		return exitWith(exitcode.StackNotReady, nil)
	}
	return nil
}
