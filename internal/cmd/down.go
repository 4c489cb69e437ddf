package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/smith/internal/stack"
	"github.com/felixgeelhaar/smith/internal/tui"
)

var (
	downYes       bool
	downConfirmer tui.Confirmer = tui.HuhConfirmer{}
)

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Stop and remove the observability stack",
	Long: `Stop and remove the stack's containers. Named volumes, and with them
the traces stored in ClickHouse, are kept.

Without a terminal (CI, pipes) the command only proceeds with --yes.

Examples:
  smith down
  smith down --yes
`,
	Args: cobra.NoArgs,
	RunE: runDown,
}

func init() {
	downCmd.Flags().BoolVarP(&downYes, "yes", "y", false, "do not ask for confirmation")
	rootCmd.AddCommand(downCmd)
}

func runDown(cmd *cobra.Command, args []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	if !downYes {
		ok, err := tui.ConfirmOrDefault(downConfirmer, "Stop the smith observability stack?", false)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.ErrOrStderr(), "Aborted; pass --yes to stop the stack without a prompt.")
			return nil
		}
	}

	cfg := cmdCtx.Config
	controller := stack.NewController(cfg.Runtime(), cfg.Project(), stack.WithLogger(cmdCtx.Logger))
	if err := controller.Down(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Stack stopped.")
	return nil
}
