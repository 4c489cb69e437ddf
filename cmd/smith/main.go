package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/smith/internal/cmd"
	"github.com/felixgeelhaar/smith/internal/exitcode"
	"github.com/felixgeelhaar/smith/internal/log"
	"github.com/felixgeelhaar/smith/internal/ux"
)

func main() {
	exitcode.ExitWithError(run())
}

func run() error {
	// Interrupts cancel readiness waits. While an agent runs, the launcher
	// forwards signals to it and smith waits for its exit code.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return nil
	}

	log.DefaultLogger().WithError(err).Debug("command failed", "exit_code", exitcode.DetermineExitCode(err))
	switch {
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(os.Stderr, "\nOperation cancelled by user")
	case err.Error() != "":
		fmt.Fprintln(os.Stderr, ux.RenderError(err, ux.NewStyles(os.Stderr, ux.NoColor(os.Stderr))))
	}
	return err
}
