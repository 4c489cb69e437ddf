package health

import (
	"context"
	"os/exec"
	"strings"
)

// RuntimeChecker checks that Docker and its compose plugin are usable.
type RuntimeChecker struct {
	binary string
}

// NewRuntimeChecker creates a checker for the docker CLI on PATH.
func NewRuntimeChecker() *RuntimeChecker {
	return &RuntimeChecker{binary: "docker"}
}

// Name implements Checker.
func (c *RuntimeChecker) Name() string {
	return "container-runtime"
}

// Check runs `docker info` and `docker compose version`.
// A reachable daemon without the compose plugin is degraded: the stack cannot
// be started but one that is already running can still be used.
func (c *RuntimeChecker) Check(ctx context.Context) *Result {
	dockerPath, err := exec.LookPath(c.binary)
	if err != nil {
		return Unhealthy("docker command not found in PATH").
			WithDetail("error", err.Error()).
			WithDetail("suggestion", "Install Docker Desktop or Docker Engine")
	}

	output, err := exec.CommandContext(ctx, dockerPath, "info", "--format", "{{.ServerVersion}}").CombinedOutput()
	if err != nil {
		errMsg := strings.TrimSpace(string(output))
		if strings.Contains(errMsg, "Cannot connect to the Docker daemon") {
			return Unhealthy("Docker daemon is not running").
				WithDetail("error", errMsg).
				WithDetail("suggestion", "Start Docker Desktop or the Docker daemon")
		}
		return Unhealthy("failed to connect to Docker daemon").
			WithDetail("error", err.Error()).
			WithDetail("output", errMsg)
	}
	serverVersion := strings.TrimSpace(string(output))

	composeOut, err := exec.CommandContext(ctx, dockerPath, "compose", "version", "--short").CombinedOutput()
	if err != nil {
		return Degraded("Docker is running but the compose plugin is unavailable").
			WithDetail("docker_path", dockerPath).
			WithDetail("server_version", serverVersion).
			WithDetail("suggestion", "Install the Docker Compose plugin")
	}

	return Healthy("Docker is running").
		WithDetail("docker_path", dockerPath).
		WithDetail("server_version", serverVersion).
		WithDetail("compose_version", strings.TrimSpace(string(composeOut)))
}
