package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeLaunchAgentMissing, "test error message")

	if err.Code != ErrCodeLaunchAgentMissing {
		t.Errorf("expected code %s, got %s", ErrCodeLaunchAgentMissing, err.Code)
	}

	if err.Message != "test error message" {
		t.Errorf("expected message 'test error message', got '%s'", err.Message)
	}

	if err.Cause != nil {
		t.Errorf("expected nil cause, got %v", err.Cause)
	}
}

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("underlying error")
	err := Wrap(ErrCodeConfigReadFailed, "failed to read config", cause)

	if err.Code != ErrCodeConfigReadFailed {
		t.Errorf("expected code %s, got %s", ErrCodeConfigReadFailed, err.Code)
	}

	if !errors.Is(err, cause) {
		t.Errorf("Wrap should support errors.Is")
	}
}

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name     string
		err      *SmithError
		wantCode string
		wantMsg  string
	}{
		{
			name:     "simple error",
			err:      New(ErrCodeStackProbeConfig, "bad probe"),
			wantCode: "STACK-002",
			wantMsg:  "bad probe",
		},
		{
			name:     "error with cause",
			err:      Wrap(ErrCodeLaunchNotExecutable, "exec failed", fmt.Errorf("permission denied")),
			wantCode: "LAUNCH-002",
			wantMsg:  "permission denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errStr := tt.err.Error()

			if !strings.Contains(errStr, tt.wantCode) {
				t.Errorf("error string should contain code %s, got: %s", tt.wantCode, errStr)
			}
			if !strings.Contains(errStr, tt.wantMsg) {
				t.Errorf("error string should contain message '%s', got: %s", tt.wantMsg, errStr)
			}
		})
	}
}

func TestWithSuggestions(t *testing.T) {
	err := New(ErrCodeStackComposeFailed, "compose failed").
		WithSuggestion("first").
		WithSuggestions("second", "third")

	if len(err.Suggestions) != 3 {
		t.Fatalf("expected 3 suggestions, got %d", len(err.Suggestions))
	}

	errStr := err.Error()
	if !strings.Contains(errStr, "Suggestions:") {
		t.Errorf("error string should contain suggestions section")
	}
	for _, s := range err.Suggestions {
		if !strings.Contains(errStr, s) {
			t.Errorf("error string should contain suggestion: %s", s)
		}
	}
}

func TestWithDocs(t *testing.T) {
	err := New(ErrCodeStackRuntimeMissing, "no docker").WithDocs("https://docs.docker.com/get-docker/")

	if !strings.Contains(err.Error(), "Documentation: https://docs.docker.com/get-docker/") {
		t.Errorf("error string should contain docs URL, got: %s", err.Error())
	}
}

func TestConstructorsNameTheFailingThing(t *testing.T) {
	cause := fmt.Errorf("connection refused")

	tests := []struct {
		name     string
		err      *SmithError
		code     ErrorCode
		contains []string
	}{
		{
			name:     "readiness timeout",
			err:      NewReadinessTimeoutError("gateway", "http://localhost:8080/health", cause),
			code:     ErrCodeStackReadinessTimeout,
			contains: []string{"gateway", "http://localhost:8080/health", "connection refused"},
		},
		{
			name:     "probe config",
			err:      NewProbeConfigError("otel-collector", "::bad", cause),
			code:     ErrCodeStackProbeConfig,
			contains: []string{"otel-collector", "::bad"},
		},
		{
			name:     "binary not found",
			err:      NewBinaryNotFoundError("codex", cause),
			code:     ErrCodeLaunchBinaryNotFound,
			contains: []string{"codex", "--binary"},
		},
		{
			name:     "not executable",
			err:      NewNotExecutableError("/tmp/agent", cause),
			code:     ErrCodeLaunchNotExecutable,
			contains: []string{"/tmp/agent", "chmod"},
		},
		{
			name:     "compose failed",
			err:      NewComposeFailedError("up", cause),
			code:     ErrCodeStackComposeFailed,
			contains: []string{"docker compose up", "--skip-stack"},
		},
		{
			name:     "config invalid",
			err:      NewConfigInvalidError("/home/u/.smith/config.yaml", cause),
			code:     ErrCodeConfigInvalid,
			contains: []string{"/home/u/.smith/config.yaml"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("code = %s, want %s", tt.err.Code, tt.code)
			}
			if !errors.Is(tt.err, cause) {
				t.Errorf("constructor should wrap the cause")
			}
			msg := tt.err.Error()
			for _, want := range tt.contains {
				if !strings.Contains(msg, want) {
					t.Errorf("error %q should contain %q", msg, want)
				}
			}
		})
	}
}
