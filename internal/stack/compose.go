package stack

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	smitherrors "github.com/felixgeelhaar/smith/internal/errors"
)

// Runtime is the container runtime the controller drives.
type Runtime interface {
	// Running lists the services of the project that are running.
	Running(ctx context.Context) ([]string, error)
	// Up starts the named services without recreating existing containers.
	Up(ctx context.Context, services ...string) error
	// Down stops and removes the project's containers.
	Down(ctx context.Context) error
}

// CommandResult holds the output of one runtime invocation.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Executor runs a command, feeding stdin when non-nil.
type Executor interface {
	Execute(ctx context.Context, stdin []byte, name string, args ...string) (*CommandResult, error)
}

// OSExecutor runs commands with os/exec.
type OSExecutor struct{}

// Execute runs the command. A non-zero exit is reported in the result and as
// an error; a command that fails to start returns a nil result.
func (OSExecutor) Execute(ctx context.Context, stdin []byte, name string, args ...string) (*CommandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &CommandResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, err
		}
		result.ExitCode = exitErr.ExitCode()
		return result, err
	}
	return result, nil
}

// ComposeRuntime drives `docker compose` for the smith project. The rendered
// project is piped on stdin unless ComposeFile names a user-managed file.
type ComposeRuntime struct {
	Binary      string
	Project     Project
	ComposeFile string
	Exec        Executor
}

// NewComposeRuntime creates a runtime for project using the docker CLI.
func NewComposeRuntime(project Project) *ComposeRuntime {
	return &ComposeRuntime{
		Binary:  "docker",
		Project: project,
		Exec:    OSExecutor{},
	}
}

// Running implements Runtime.
func (r *ComposeRuntime) Running(ctx context.Context) ([]string, error) {
	out, err := r.compose(ctx, "ps", "ps", "--services", "--status", "running")
	if err != nil {
		return nil, err
	}

	var services []string
	for _, line := range strings.Split(out, "\n") {
		if s := strings.TrimSpace(line); s != "" {
			services = append(services, s)
		}
	}
	sort.Strings(services)
	return services, nil
}

// Up implements Runtime.
func (r *ComposeRuntime) Up(ctx context.Context, services ...string) error {
	args := append([]string{"up", "-d", "--no-recreate"}, services...)
	_, err := r.compose(ctx, "up", args...)
	return err
}

// Down implements Runtime.
func (r *ComposeRuntime) Down(ctx context.Context) error {
	_, err := r.compose(ctx, "down", "down")
	return err
}

// Args returns the full docker argument list for a compose subcommand.
func (r *ComposeRuntime) Args(sub ...string) []string {
	file := "-"
	if r.ComposeFile != "" {
		file = r.ComposeFile
	}
	name := r.Project.Name
	if name == "" {
		name = ProjectName
	}
	return append([]string{"compose", "-p", name, "-f", file}, sub...)
}

func (r *ComposeRuntime) compose(ctx context.Context, action string, sub ...string) (string, error) {
	binary := r.Binary
	if binary == "" {
		binary = "docker"
	}
	var stdin []byte
	if r.ComposeFile == "" {
		rendered, err := r.Project.Render()
		if err != nil {
			return "", smitherrors.NewComposeFailedError(action, err)
		}
		stdin = rendered
	}

	executor := r.Exec
	if executor == nil {
		executor = OSExecutor{}
	}

	result, err := executor.Execute(ctx, stdin, binary, r.Args(sub...)...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if errors.Is(err, exec.ErrNotFound) {
			return "", smitherrors.NewRuntimeMissingError(err)
		}
		if result != nil && strings.TrimSpace(result.Stderr) != "" {
			err = fmt.Errorf("%w: %s", err, strings.TrimSpace(result.Stderr))
		}
		return "", smitherrors.NewComposeFailedError(action, err)
	}
	return result.Stdout, nil
}
