package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/smith/internal/orchestrator"
	"github.com/felixgeelhaar/smith/internal/stack"
)

type observeOptions struct {
	keepOtelConfig bool
	skipStack      bool
	binary         string
	timeout        time.Duration
}

func newObserveCommand() *cobra.Command {
	opts := &observeOptions{}

	cmd := &cobra.Command{
		Use:   "observe <agent> [-- <agent-args>...]",
		Short: "Run an agent with telemetry routed to the local stack",
		Long: `Run a coding agent with its OpenTelemetry exporter and API base URL
pointed at the local stack.

Before the agent starts, smith brings up any stack service that is not
running and waits until the collector and the gateway answer. The agent's
environment receives OTEL_EXPORTER_OTLP_* settings, service.name and git
resource attributes, and a TRACEPARENT linking its spans to smith's
smith.observe span.

Everything after "--" is passed to the agent unchanged. For codex, exactly one
--model flag is guaranteed and the model gets the gateway's "openai/" prefix.

smith exits with the agent's exit code. When the agent never starts the code
says why: 2 usage, 3 stack not ready, 4 container runtime error, 127 agent
not found, 130 interrupted.

Examples:
  smith observe codex -- exec "add a changelog entry"
  smith observe codex -- --model gpt-5 exec "refactor the parser"
  smith observe claude --skip-stack
  SMITH_KEEP_OTEL_CONFIG=1 smith observe claude
`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runObserve(cmd, opts, args)
		},
	}

	flags := cmd.Flags()
	// the first positional argument ends smith's flags; the rest belongs to the agent
	flags.SetInterspersed(false)
	flags.BoolVar(&opts.keepOtelConfig, "keep-otel-config", false, "keep OTEL_* settings already present in the environment")
	flags.BoolVar(&opts.skipStack, "skip-stack", false, "assume the stack is managed elsewhere; do not start or probe it")
	flags.StringVar(&opts.binary, "binary", "", "agent executable to run (default is the agent name)")
	flags.DurationVar(&opts.timeout, "timeout", 0, "readiness deadline for the stack (default 60s)")

	return cmd
}

func init() {
	rootCmd.AddCommand(newObserveCommand())
}

func runObserve(cmd *cobra.Command, opts *observeOptions, args []string) error {
	agentName, agentArgs := splitAgentArgs(args, cmd.Flags().ArgsLenAtDash())

	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	cfg := cmdCtx.Config
	logger := cmdCtx.Logger

	dir, err := os.Getwd()
	if err != nil {
		logger.Debug("working directory unavailable", "error", err)
	}

	tracing, flush := cmdCtx.ProbeTracing(cmd)
	defer flush()

	controller := stack.NewController(cfg.Runtime(), cfg.Project(),
		stack.WithLogger(logger), stack.WithTracerProvider(tracing))
	orch := orchestrator.New(
		orchestrator.WithStack(controller),
		orchestrator.WithTargets(cfg.Targets()),
		orchestrator.WithReadinessTimeout(cfg.Timeout(opts.timeout)),
		orchestrator.WithRegistry(cfg.Registry()),
		orchestrator.WithLogger(logger),
	)

	code, err := orch.Run(cmd.Context(), orchestrator.Request{
		Agent:        agentName,
		Binary:       opts.binary,
		Args:         agentArgs,
		Dir:          dir,
		Environ:      os.Environ(),
		KeepExisting: opts.keepOtelConfig,
		SkipStack:    opts.skipStack,
	})
	return exitWith(code, err)
}

// splitAgentArgs separates the agent name from its arguments. With flag
// interspersing off, "--" after the agent name reaches us as an argument and
// is dropped here; "--" before the agent name was consumed by flag parsing
// and dash is 0.
func splitAgentArgs(args []string, dash int) (string, []string) {
	if len(args) == 0 {
		return "", nil
	}
	rest := args[1:]
	if dash != 0 && len(rest) > 0 && rest[0] == "--" {
		rest = rest[1:]
	}
	return args[0], rest
}
