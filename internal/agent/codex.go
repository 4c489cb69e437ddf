package agent

import (
	"strings"

	"github.com/felixgeelhaar/smith/internal/otelenv"
)

const (
	// CodexFallbackModel is used when neither the command line nor the
	// environment names a model.
	CodexFallbackModel = "openai/gpt-5-codex"

	// EnvCodexDefaultModel overrides the fallback model.
	EnvCodexDefaultModel = "CODEX_DEFAULT_MODEL"

	// EnvOpenAIBaseURL is the variable Codex reads its API base URL from.
	EnvOpenAIBaseURL = "OPENAI_BASE_URL"
)

// Codex adapts the OpenAI Codex CLI.
type Codex struct {
	// Gateway is the gateway root; OPENAI_BASE_URL becomes Gateway+"/openai/v1".
	Gateway string

	// FallbackModel replaces CodexFallbackModel when set.
	FallbackModel string

	// PrefixSeparateValue controls whether "--model gpt-4o" is rewritten to
	// "--model openai/gpt-4o". "-m v" and "--model=v" are always prefixed.
	PrefixSeparateValue bool
}

// NewCodex returns a Codex adapter with defaults.
func NewCodex() *Codex {
	return &Codex{
		Gateway:             DefaultGateway,
		FallbackModel:       CodexFallbackModel,
		PrefixSeparateValue: true,
	}
}

// Name implements Adapter.
func (c *Codex) Name() string { return "codex" }

// NormalizeArgs resolves the model Codex will run with and guarantees exactly
// one model flag in the returned arguments.
//
// An explicit flag wins; when several are given the last one is kept and the
// others are removed. Without a flag, CODEX_DEFAULT_MODEL and then the
// fallback model are used and "--model <model>" is prepended. Arguments after
// "--" are never inspected.
func (c *Codex) NormalizeArgs(args []string, env *otelenv.Env) Normalized {
	found, dangling := scanModelFlags(args, "--model", "-m")

	if len(found) > 0 {
		last := found[len(found)-1]
		model := last.value
		if last.form != formSeparate || last.flag != "--model" || c.PrefixSeparateValue {
			model = PrefixModel(model)
		}

		drop := append(append([]modelFlag(nil), found[:len(found)-1]...), dangling...)
		return Normalized{
			Args:   rebuild(args, drop, &last, model),
			Model:  model,
			Source: SourceArgs,
		}
	}

	model, source := c.defaultModel(env)
	out := append([]string{"--model", model}, rebuild(args, dangling, nil, "")...)
	return Normalized{Args: out, Model: model, Source: source}
}

func (c *Codex) defaultModel(env *otelenv.Env) (string, ModelSource) {
	if v := strings.TrimSpace(env.Value(EnvCodexDefaultModel)); v != "" {
		return PrefixModel(v), SourceEnv
	}
	if c.FallbackModel != "" {
		return c.FallbackModel, SourceFallback
	}
	return CodexFallbackModel, SourceFallback
}

// RewriteBaseURL implements Adapter.
func (c *Codex) RewriteBaseURL(env *otelenv.Env) *otelenv.Env {
	out := env.Clone()
	out.Set(EnvOpenAIBaseURL, gatewayRoot(c.Gateway)+"/openai/v1")
	return out
}

func gatewayRoot(gateway string) string {
	if gateway == "" {
		gateway = DefaultGateway
	}
	return strings.TrimRight(gateway, "/")
}
