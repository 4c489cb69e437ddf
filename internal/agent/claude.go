package agent

import (
	"strings"

	"github.com/felixgeelhaar/smith/internal/otelenv"
)

const (
	// EnvAnthropicModel is the model override Claude Code reads.
	EnvAnthropicModel = "ANTHROPIC_MODEL"

	// EnvAnthropicBaseURL is the variable Claude Code reads its API base URL from.
	EnvAnthropicBaseURL = "ANTHROPIC_BASE_URL"
)

// Claude adapts Claude Code. Its arguments are reported on but never rewritten.
type Claude struct {
	Gateway string
}

// NewClaude returns a Claude adapter pointed at the default gateway.
func NewClaude() *Claude {
	return &Claude{Gateway: DefaultGateway}
}

// Name implements Adapter.
func (c *Claude) Name() string { return "claude" }

// NormalizeArgs reports the model from --model or ANTHROPIC_MODEL.
func (c *Claude) NormalizeArgs(args []string, env *otelenv.Env) Normalized {
	out := append([]string(nil), args...)

	found, _ := scanModelFlags(args, "--model")
	if len(found) > 0 {
		return Normalized{Args: out, Model: found[len(found)-1].value, Source: SourceArgs}
	}
	if v := strings.TrimSpace(env.Value(EnvAnthropicModel)); v != "" {
		return Normalized{Args: out, Model: v, Source: SourceEnv}
	}
	return Normalized{Args: out}
}

// RewriteBaseURL implements Adapter.
func (c *Claude) RewriteBaseURL(env *otelenv.Env) *otelenv.Env {
	out := env.Clone()
	out.Set(EnvAnthropicBaseURL, gatewayRoot(c.Gateway)+"/anthropic")
	return out
}
