package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/smith/internal/stack"
	"github.com/felixgeelhaar/smith/internal/ux"
)

var upTimeout time.Duration

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Start the observability stack and wait until it is ready",
	Long: `Start the gateway, the OpenTelemetry collector and ClickHouse with
docker compose, then wait until the collector and the gateway answer their
readiness probes. Services that are already running are left alone.

Examples:
  smith up
  smith up --timeout 2m
`,
	Args: cobra.NoArgs,
	RunE: runUp,
}

func init() {
	upCmd.Flags().DurationVar(&upTimeout, "timeout", 0, "readiness deadline (default 60s)")
	rootCmd.AddCommand(upCmd)
}

func runUp(cmd *cobra.Command, args []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	cfg := cmdCtx.Config
	ctx := cmd.Context()

	tracing, flush := cmdCtx.ProbeTracing(cmd)
	defer flush()

	controller := stack.NewController(cfg.Runtime(), cfg.Project(),
		stack.WithLogger(cmdCtx.Logger), stack.WithTracerProvider(tracing))
	if err := controller.Ensure(ctx); err != nil {
		return err
	}

	report, err := controller.WaitReady(ctx, cfg.Targets(), cfg.Timeout(upTimeout))
	if err != nil {
		return stack.Coded(err)
	}

	styles := ux.NewStyles(cmd.OutOrStdout(), ux.NoColor(cmd.OutOrStdout()))
	for _, t := range report.Targets {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n",
			styles.OK.Render("✓"), styles.Label.Render(t.Name), styles.Muted.Render(t.URL))
	}
	return nil
}
