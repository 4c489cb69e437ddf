package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Level is a record severity. The zero value is debug.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn // default: stack and telemetry degradations
	LevelError
)

var levels = [...]struct {
	name string
	slog slog.Level
}{
	LevelDebug: {"debug", slog.LevelDebug},
	LevelInfo:  {"info", slog.LevelInfo},
	LevelWarn:  {"warn", slog.LevelWarn},
	LevelError: {"error", slog.LevelError},
}

func (l Level) known() bool { return l >= 0 && int(l) < len(levels) }

func (l Level) String() string {
	if !l.known() {
		return "unknown"
	}
	return levels[l].name
}

// ToSlogLevel maps l onto slog; unknown values map to warn.
func (l Level) ToSlogLevel() slog.Level {
	if !l.known() {
		return slog.LevelWarn
	}
	return levels[l].slog
}

// ParseLevel accepts the level names case-insensitively. Anything else is
// warn, the CLI default.
func ParseLevel(s string) Level {
	s = strings.ToLower(strings.TrimSpace(s))
	for l, lv := range levels {
		if lv.name == s {
			return Level(l)
		}
	}
	return LevelWarn
}

// Format selects the slog handler.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

func (f Format) String() string {
	if f == FormatJSON {
		return "json"
	}
	return "text"
}

// ParseFormat accepts "json"; anything else is text.
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), "json") {
		return FormatJSON
	}
	return FormatText
}

// Config configures New.
type Config struct {
	Level  Level
	Format Format

	// Output is where logs are written. stdout belongs to the agent, so
	// this is stderr unless a test overrides it.
	Output io.Writer

	AddSource bool

	// ServiceVersion is attached to every record as smith_version.
	ServiceVersion string
}

// DefaultConfig logs warnings and errors as text to stderr.
func DefaultConfig() Config {
	return Config{
		Level:          LevelWarn,
		Format:         FormatText,
		Output:         os.Stderr,
		ServiceVersion: "dev",
	}
}

// ConfigFromEnv applies SMITH_LOG_LEVEL and SMITH_LOG_FORMAT on top of base.
func ConfigFromEnv(base Config, getenv func(string) string) Config {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := getenv("SMITH_LOG_LEVEL"); v != "" {
		base.Level = ParseLevel(v)
	}
	if v := getenv("SMITH_LOG_FORMAT"); v != "" {
		base.Format = ParseFormat(v)
	}
	return base
}
