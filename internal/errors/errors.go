package errors

import (
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Stack errors (STACK-001 to STACK-099)
	ErrCodeStackReadinessTimeout ErrorCode = "STACK-001"
	ErrCodeStackProbeConfig      ErrorCode = "STACK-002"
	ErrCodeStackComposeFailed    ErrorCode = "STACK-003"
	ErrCodeStackRuntimeMissing   ErrorCode = "STACK-004"
	ErrCodeStackImageInvalid     ErrorCode = "STACK-005"

	// Launch errors (LAUNCH-001 to LAUNCH-099)
	ErrCodeLaunchBinaryNotFound ErrorCode = "LAUNCH-001"
	ErrCodeLaunchNotExecutable  ErrorCode = "LAUNCH-002"
	ErrCodeLaunchAgentMissing   ErrorCode = "LAUNCH-003"

	// Telemetry errors (TELEMETRY-001 to TELEMETRY-099)
	ErrCodeTelemetryExportFailed ErrorCode = "TELEMETRY-001"
	ErrCodeTelemetryConfig       ErrorCode = "TELEMETRY-002"

	// Config errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigReadFailed ErrorCode = "CONFIG-001"
	ErrCodeConfigInvalid    ErrorCode = "CONFIG-002"
)

// SmithError represents an enhanced error with code, suggestions, and documentation
type SmithError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	DocsURL     string
	Cause       error
}

// Error implements the error interface
func (e *SmithError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	if e.DocsURL != "" {
		b.WriteString(fmt.Sprintf("\n\nDocumentation: %s", e.DocsURL))
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *SmithError) Unwrap() error {
	return e.Cause
}

// New creates a new SmithError
func New(code ErrorCode, message string) *SmithError {
	return &SmithError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new SmithError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *SmithError {
	return &SmithError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *SmithError) WithSuggestion(suggestion string) *SmithError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *SmithError) WithSuggestions(suggestions ...string) *SmithError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// WithDocs adds a documentation URL to the error
func (e *SmithError) WithDocs(url string) *SmithError {
	e.DocsURL = url
	return e
}

// NewReadinessTimeoutError reports a dependency that never became healthy.
func NewReadinessTimeoutError(target, url string, cause error) *SmithError {
	return Wrap(ErrCodeStackReadinessTimeout,
		fmt.Sprintf("%s did not become ready at %s", target, url), cause).
		WithSuggestion("Run 'smith status' to see which services are unhealthy").
		WithSuggestion(fmt.Sprintf("Inspect the service logs with 'docker compose -p smith logs %s'", target)).
		WithSuggestion("Increase the wait with --timeout if the stack is still starting")
}

// NewProbeConfigError reports a readiness probe that can never succeed as configured.
func NewProbeConfigError(target, url string, cause error) *SmithError {
	return Wrap(ErrCodeStackProbeConfig,
		fmt.Sprintf("invalid readiness probe for %s: %q", target, url), cause).
		WithSuggestion("Check the probe URL in ~/.smith/config.yaml (stack.targets)")
}

// NewComposeFailedError reports a failed container runtime invocation.
func NewComposeFailedError(action string, cause error) *SmithError {
	return Wrap(ErrCodeStackComposeFailed, fmt.Sprintf("docker compose %s failed", action), cause).
		WithSuggestion("Run 'docker compose version' to verify the compose plugin is installed").
		WithSuggestion("Use --skip-stack if the stack is managed elsewhere")
}

// NewRuntimeMissingError reports that no container runtime is available.
func NewRuntimeMissingError(cause error) *SmithError {
	return Wrap(ErrCodeStackRuntimeMissing, "Docker is not available", cause).
		WithSuggestion("Install Docker Desktop or Docker Engine").
		WithSuggestion("Make sure Docker daemon is running").
		WithDocs("https://docs.docker.com/get-docker/")
}

// NewBinaryNotFoundError reports an agent binary that cannot be located.
func NewBinaryNotFoundError(binary string, cause error) *SmithError {
	return Wrap(ErrCodeLaunchBinaryNotFound, fmt.Sprintf("agent binary not found: %s", binary), cause).
		WithSuggestion(fmt.Sprintf("Check that %q is installed and on your PATH", binary)).
		WithSuggestion("Pass an explicit path with --binary")
}

// NewNotExecutableError reports an agent binary that exists but cannot be started.
func NewNotExecutableError(binary string, cause error) *SmithError {
	return Wrap(ErrCodeLaunchNotExecutable, fmt.Sprintf("agent binary cannot be executed: %s", binary), cause).
		WithSuggestion(fmt.Sprintf("Check the permissions of %s (chmod +x)", binary))
}

// NewConfigInvalidError reports an unreadable or invalid configuration file.
func NewConfigInvalidError(path string, cause error) *SmithError {
	return Wrap(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration file: %s", path), cause).
		WithSuggestion("Run 'smith config view' to inspect the effective configuration").
		WithSuggestion("Ensure the file is valid YAML")
}
