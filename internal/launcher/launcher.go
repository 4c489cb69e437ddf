// Package launcher runs the agent binary with the enriched environment,
// forwards termination signals to it and reports how it exited.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/felixgeelhaar/smith/internal/exitcode"
	"github.com/felixgeelhaar/smith/internal/log"
	"github.com/felixgeelhaar/smith/internal/otelenv"
)

// Result is how the child exited. ExitCode is 128+n when it was killed by
// signal n.
type Result struct {
	ExitCode int
	Signal   string
}

// SpawnError reports a binary that could not be started.
type SpawnError struct {
	Binary string
	Err    error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Binary, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// ExitCode implements exitcode.Coder.
func (e *SpawnError) ExitCode() int { return exitcode.CommandNotFound }

// NotFound reports whether the binary does not exist.
func (e *SpawnError) NotFound() bool {
	return errors.Is(e.Err, exec.ErrNotFound) || errors.Is(e.Err, fs.ErrNotExist)
}

// Permission reports whether the binary exists but may not be executed.
func (e *SpawnError) Permission() bool {
	return errors.Is(e.Err, fs.ErrPermission)
}

// Launcher spawns one child at a time.
type Launcher struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	logger     *log.Logger
	isTerminal func() bool
	notify     func(c chan<- os.Signal, sig ...os.Signal)
	stop       func(c chan<- os.Signal)
}

// Option configures a Launcher.
type Option func(*Launcher)

// WithStdio replaces the inherited standard streams.
func WithStdio(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(l *Launcher) {
		l.stdin, l.stdout, l.stderr = stdin, stdout, stderr
	}
}

// WithLogger sets the launcher's logger.
func WithLogger(logger *log.Logger) Option {
	return func(l *Launcher) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithTerminal overrides terminal detection for stdin.
func WithTerminal(isTerminal func() bool) Option {
	return func(l *Launcher) { l.isTerminal = isTerminal }
}

// New creates a launcher that inherits smith's stdio.
func New(opts ...Option) *Launcher {
	l := &Launcher{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		logger: log.Discard(),
		isTerminal: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd()))
		},
		notify: signal.Notify,
		stop:   signal.Stop,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ForwardedSignals returns the signals relayed to the child. SIGINT is
// relayed only when stdin is not a terminal: a terminal already delivers
// Ctrl+C to the whole foreground process group.
func ForwardedSignals(stdinIsTerminal bool) []os.Signal {
	sigs := []os.Signal{syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT}
	if !stdinIsTerminal {
		sigs = append(sigs, os.Interrupt)
	}
	return sigs
}

// Spawn starts binary and waits for it. Cancelling ctx before the child
// starts aborts the launch; once started, the child is always waited for and
// interrupts reach it through signal forwarding.
func (l *Launcher) Spawn(ctx context.Context, binary string, args []string, env *otelenv.Env) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	path, err := exec.LookPath(binary)
	if err != nil {
		return Result{}, &SpawnError{Binary: binary, Err: err}
	}

	cmd := exec.Command(path, args...)
	cmd.Env = env.Environ()
	cmd.Stdin = l.stdin
	cmd.Stdout = l.stdout
	cmd.Stderr = l.stderr

	sigCh := make(chan os.Signal, 4)
	l.notify(sigCh, ForwardedSignals(l.isTerminal())...)
	defer l.stop(sigCh)

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if err := cmd.Start(); err != nil {
		return Result{}, &SpawnError{Binary: binary, Err: err}
	}
	l.logger.Debug("agent started", "binary", path, "pid", cmd.Process.Pid)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	for {
		select {
		case sig := <-sigCh:
			l.logger.Debug("forwarding signal", "signal", sig.String(), "pid", cmd.Process.Pid)
			if err := cmd.Process.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
				l.logger.Warn("failed to forward signal", "signal", sig.String(), "error", err)
			}
		case err := <-done:
			return result(cmd.ProcessState, err)
		}
	}
}

func result(state *os.ProcessState, waitErr error) (Result, error) {
	if state == nil {
		return Result{}, fmt.Errorf("waiting for agent: %w", waitErr)
	}

	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		sig := ws.Signal()
		return Result{
			ExitCode: exitcode.SignalBase + int(sig),
			Signal:   signalName(sig),
		}, nil
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		// stdio copy failed after the child exited
		return Result{ExitCode: state.ExitCode()}, fmt.Errorf("waiting for agent: %w", waitErr)
	}
	return Result{ExitCode: state.ExitCode()}, nil
}
