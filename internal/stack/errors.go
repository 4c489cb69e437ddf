package stack

import (
	"errors"
	"fmt"
	"time"

	smitherrors "github.com/felixgeelhaar/smith/internal/errors"
	"github.com/felixgeelhaar/smith/internal/exitcode"
)

// ReadinessTimeoutError names the dependency that never became healthy.
type ReadinessTimeoutError struct {
	Target  string
	URL     string
	Waited  time.Duration
	LastErr error
}

func (e *ReadinessTimeoutError) Error() string {
	msg := fmt.Sprintf("%s not ready at %s", e.Target, e.URL)
	if e.Waited > 0 {
		msg += fmt.Sprintf(" after %s", e.Waited.Round(time.Millisecond))
	}
	if e.LastErr != nil {
		msg += fmt.Sprintf(": %v", e.LastErr)
	}
	return msg
}

func (e *ReadinessTimeoutError) Unwrap() error { return e.LastErr }

// ExitCode implements exitcode.Coder.
func (e *ReadinessTimeoutError) ExitCode() int { return exitcode.StackNotReady }

// ProbeConfigError is returned for a probe that can never succeed.
type ProbeConfigError struct {
	Target string
	URL    string
	Err    error
}

func (e *ProbeConfigError) Error() string {
	return fmt.Sprintf("invalid readiness probe for %s (%s): %v", e.Target, e.URL, e.Err)
}

func (e *ProbeConfigError) Unwrap() error { return e.Err }

// ExitCode implements exitcode.Coder.
func (e *ProbeConfigError) ExitCode() int { return exitcode.StackNotReady }

// Coded wraps readiness errors in a SmithError with suggestions. Other errors
// are returned unchanged.
func Coded(err error) error {
	var timeout *ReadinessTimeoutError
	if errors.As(err, &timeout) {
		return smitherrors.NewReadinessTimeoutError(timeout.Target, timeout.URL, timeout)
	}
	var config *ProbeConfigError
	if errors.As(err, &config) {
		return smitherrors.NewProbeConfigError(config.Target, config.URL, config)
	}
	return err
}
