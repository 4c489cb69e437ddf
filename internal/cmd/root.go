package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "smith",
	Short: "Run coding agents with OpenTelemetry wired in",
	Long: `smith launches coding agents (codex, claude, ...) against a local
observability stack: an LLM gateway, an OpenTelemetry collector and ClickHouse.

It starts whatever part of the stack is not running, waits until it is ready,
points the agent's OTLP exporter and API base URL at it, and wraps the run in
a trace span. The agent's exit code is smith's exit code.

Examples:
  smith observe codex -- exec "fix the failing tests"
  smith observe claude --keep-otel-config
  smith status
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command under ctx. Cancelling ctx interrupts
// readiness waits; a running agent is left to handle the signal itself.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default is $SMITH_CONFIG or ~/.smith/config.yaml)")
	flags.String("log-level", "", "log level: debug, info, warn or error (default warn)")
	flags.String("log-format", "", "log format: text or json (default text)")
}
