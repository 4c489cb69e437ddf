package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/smith/internal/errors"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{" warn ", LevelWarn},
		{"error", LevelError},
		{"", LevelWarn},
		{"loud", LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatJSON, ParseFormat("json"))
	assert.Equal(t, FormatJSON, ParseFormat("JSON"))
	assert.Equal(t, FormatText, ParseFormat("text"))
	assert.Equal(t, FormatText, ParseFormat("console"))
	assert.Equal(t, FormatText, ParseFormat(""))
}

func TestLevelAndFormatNamesParse(t *testing.T) {
	for _, l := range []Level{LevelDebug, LevelInfo, LevelWarn, LevelError} {
		assert.Equal(t, l, ParseLevel(l.String()))
	}
	for _, f := range []Format{FormatText, FormatJSON} {
		assert.Equal(t, f, ParseFormat(f.String()))
	}
	assert.Equal(t, "unknown", Level(9).String())
}

func TestConfigFromEnv(t *testing.T) {
	env := map[string]string{
		"SMITH_LOG_LEVEL":  "debug",
		"SMITH_LOG_FORMAT": "json",
	}
	cfg := ConfigFromEnv(DefaultConfig(), func(k string) string { return env[k] })

	assert.Equal(t, LevelDebug, cfg.Level)
	assert.Equal(t, FormatJSON, cfg.Format)

	untouched := ConfigFromEnv(DefaultConfig(), func(string) string { return "" })
	assert.Equal(t, LevelWarn, untouched.Level)
	assert.Equal(t, FormatText, untouched.Format)
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelWarn, Format: FormatText, Output: &buf})

	logger.Info("hidden")
	logger.Warn("shown", "target", "gateway")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "target=gateway")
}

func TestLoggerJSONIncludesVersion(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelDebug, Format: FormatJSON, Output: &buf, ServiceVersion: "1.2.3"})

	logger.Debug("probe", "attempt", 2)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "probe", record["msg"])
	assert.Equal(t, "1.2.3", record["smith_version"])
	assert.EqualValues(t, 2, record["attempt"])
}

func TestWithErrorSmithError(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelDebug, Format: FormatJSON, Output: &buf})

	cause := fmt.Errorf("connection refused")
	err := fmt.Errorf("launch: %w", errors.NewReadinessTimeoutError("gateway", "http://localhost:8080/health", cause))

	logger.WithError(err).Error("stack not ready")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "STACK-001", record["error_code"])
	assert.Equal(t, "connection refused", record["cause"])
	assert.NotEmpty(t, record["suggestions"])
}

func TestWithErrorPlainAndNil(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelDebug, Format: FormatText, Output: &buf})

	assert.Same(t, logger, logger.WithError(nil))

	logger.WithError(fmt.Errorf("plain failure")).Warn("degraded")
	assert.Contains(t, buf.String(), `error="plain failure"`)
}

func TestDiscardLogger(t *testing.T) {
	logger := Discard()
	logger.Error("nothing")
	assert.False(t, logger.Enabled(context.Background(), LevelWarn))
	assert.True(t, logger.Enabled(context.Background(), LevelError))
}

func TestEnabledFollowsLevel(t *testing.T) {
	logger := New(Config{Level: LevelInfo, Output: &bytes.Buffer{}})

	assert.False(t, logger.Enabled(context.Background(), LevelDebug))
	assert.True(t, logger.Enabled(context.Background(), LevelInfo))
	assert.True(t, logger.With("agent", "codex").Enabled(context.Background(), LevelWarn))
}
