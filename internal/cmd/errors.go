package cmd

import "github.com/felixgeelhaar/smith/internal/exitcode"

// ExitError carries a process exit code out of a command. With a nil Err
// nothing is printed: the agent has already reported its own failure.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode implements exitcode.Coder.
func (e *ExitError) ExitCode() int { return e.Code }

// exitWith returns nil for success and an ExitError otherwise.
func exitWith(code int, err error) error {
	if code == exitcode.Success && err == nil {
		return nil
	}
	return &ExitError{Code: code, Err: err}
}
