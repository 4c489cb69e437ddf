package exitcode

import (
	"context"
	"errors"
	"os"
	"strings"

	smitherrors "github.com/felixgeelhaar/smith/internal/errors"
)

// Exit codes for orchestration failures. A launched agent's own exit code is
// passed through unchanged and never goes through this table.
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage (bad flags, missing args, etc.)
	UsageError = 2

	// StackNotReady indicates a stack dependency never became healthy
	StackNotReady = 3

	// StackError indicates the container runtime could not bring the stack up
	StackError = 4

	// CannotExecute mirrors the shell convention for a binary that exists but cannot run
	CannotExecute = 126

	// CommandNotFound mirrors the shell convention for a missing binary
	CommandNotFound = 127

	// SignalBase is added to a signal number when a child dies from a signal
	SignalBase = 128

	// Interrupted indicates the user cancelled before the agent launched (128 + SIGINT)
	Interrupted = 130
)

// Coder is implemented by errors that carry their own exit code.
type Coder interface {
	ExitCode() int
}

// osExit is replaced in tests.
var osExit = os.Exit

// Exit terminates the program with the given exit code
func Exit(code int) {
	osExit(code)
}

// ExitWithError exits with the code DetermineExitCode assigns to err. An
// ExitError-style Coder passes a launched agent's code through unchanged.
func ExitWithError(err error) {
	Exit(DetermineExitCode(err))
}

// DetermineExitCode analyzes an error and returns the appropriate exit code
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	var coder Coder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}

	if errors.Is(err, context.Canceled) {
		return Interrupted
	}

	var smithErr *smitherrors.SmithError
	if errors.As(err, &smithErr) {
		switch smithErr.Code {
		case smitherrors.ErrCodeStackReadinessTimeout, smitherrors.ErrCodeStackProbeConfig:
			return StackNotReady
		case smitherrors.ErrCodeStackComposeFailed, smitherrors.ErrCodeStackRuntimeMissing,
			smitherrors.ErrCodeStackImageInvalid:
			return StackError
		case smitherrors.ErrCodeLaunchBinaryNotFound:
			return CommandNotFound
		case smitherrors.ErrCodeLaunchNotExecutable:
			return CannotExecute
		case smitherrors.ErrCodeLaunchAgentMissing, smitherrors.ErrCodeConfigInvalid:
			return UsageError
		}
	}

	// cobra reports argument problems as plain errors
	errMsg := strings.ToLower(err.Error())
	if strings.Contains(errMsg, "unknown flag") || strings.Contains(errMsg, "unknown command") {
		return UsageError
	}
	if strings.Contains(errMsg, "required flag") || strings.Contains(errMsg, "accepts") ||
		strings.Contains(errMsg, "requires at least") {
		return UsageError
	}

	return GeneralError
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags or arguments)"
	case StackNotReady:
		return "Observability stack not ready"
	case StackError:
		return "Container runtime error"
	case CannotExecute:
		return "Agent binary cannot be executed"
	case CommandNotFound:
		return "Agent binary not found"
	case Interrupted:
		return "Interrupted"
	default:
		if code > SignalBase && code < SignalBase+65 {
			return "Terminated by signal"
		}
		return "Unknown error"
	}
}
