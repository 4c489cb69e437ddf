package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/felixgeelhaar/smith/internal/otelenv"
)

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	assert.Equal(t, []string{"claude", "codex"}, r.List())
	assert.IsType(t, &Codex{}, r.For("codex"))
	assert.IsType(t, &Claude{}, r.For("claude"))
}

func TestDefaultRegistryOptions(t *testing.T) {
	r := DefaultRegistry(
		WithGateway("http://gw:9000"),
		WithCodexFallbackModel("openai/o3"),
		WithCodexPrefixSeparateValue(false),
	)

	codex, ok := r.Lookup("codex")
	require.True(t, ok)
	c := codex.(*Codex)
	assert.Equal(t, "http://gw:9000", c.Gateway)
	assert.Equal(t, "openai/o3", c.FallbackModel)
	assert.False(t, c.PrefixSeparateValue)

	claude := r.For("claude")
	assert.Equal(t, "http://gw:9000/anthropic", claude.RewriteBaseURL(nil).Value(EnvAnthropicBaseURL))
}

func TestRegistryUnknownAgentIsGeneric(t *testing.T) {
	r := DefaultRegistry()

	a, err := r.Resolve("aider")
	require.Error(t, err)
	var warn *UnsupportedAgentWarning
	require.ErrorAs(t, err, &warn)
	assert.Equal(t, "aider", warn.Name)
	assert.Equal(t, "aider", a.Name())

	args := []string{"--model", "gpt-4o", "--yes"}
	env := otelenv.FromEnviron([]string{"OPENAI_BASE_URL=https://api.openai.com/v1"})

	got := a.NormalizeArgs(args, env)
	assert.Equal(t, args, got.Args)
	assert.Empty(t, got.Model)
	assert.Equal(t, SourceNone, got.Source)
	assert.Equal(t, env.Environ(), a.RewriteBaseURL(env).Environ())
}

func TestRegistryKnownAgentHasNoWarning(t *testing.T) {
	_, err := DefaultRegistry().Resolve("codex")
	assert.NoError(t, err)
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(Generic{AgentName: "aider"}))
	assert.Error(t, r.Register(Generic{AgentName: "aider"}), "duplicates are rejected")
	assert.Error(t, r.Register(Generic{}), "empty names are rejected")
	assert.Error(t, r.Register(nil))
	assert.Equal(t, []string{"aider"}, r.List())
}

func TestClaudeNormalizeArgs(t *testing.T) {
	c := NewClaude()

	got := c.NormalizeArgs([]string{"--model", "claude-sonnet-4", "-p", "hi"}, otelenv.FromMap(map[string]string{"ANTHROPIC_MODEL": "claude-opus-4"}))
	assert.Equal(t, []string{"--model", "claude-sonnet-4", "-p", "hi"}, got.Args, "claude args are never rewritten")
	assert.Equal(t, "claude-sonnet-4", got.Model)
	assert.Equal(t, SourceArgs, got.Source)

	got = c.NormalizeArgs([]string{"--model=opus"}, nil)
	assert.Equal(t, "opus", got.Model)

	got = c.NormalizeArgs([]string{"-p", "hi"}, otelenv.FromMap(map[string]string{"ANTHROPIC_MODEL": "claude-opus-4"}))
	assert.Equal(t, "claude-opus-4", got.Model)
	assert.Equal(t, SourceEnv, got.Source)

	got = c.NormalizeArgs([]string{"-m", "x"}, nil)
	assert.Empty(t, got.Model, "-m is not a claude flag")
	assert.Equal(t, SourceNone, got.Source)
}

func TestClaudeRewriteBaseURL(t *testing.T) {
	env := otelenv.FromEnviron([]string{"ANTHROPIC_API_KEY=k", "OPENAI_BASE_URL=x"})

	out := NewClaude().RewriteBaseURL(env)

	assert.Equal(t, "http://localhost:8080/anthropic", out.Value(EnvAnthropicBaseURL))
	assert.Equal(t, "x", out.Value("OPENAI_BASE_URL"))
	assert.Equal(t, "k", out.Value("ANTHROPIC_API_KEY"))
	assert.False(t, env.Has(EnvAnthropicBaseURL))
}

func TestPrefixModel(t *testing.T) {
	tests := []struct{ in, want string }{
		{"gpt-4o-mini", "openai/gpt-4o-mini"},
		{"openai/gpt-4o-mini", "openai/gpt-4o-mini"},
		{"anthropic/claude-3", "anthropic/claude-3"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PrefixModel(tt.in), tt.in)
	}
}

func TestPropertyPrefixModel(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		model := rapid.String().Draw(t, "model")
		once := PrefixModel(model)

		if PrefixModel(once) != once {
			t.Fatalf("PrefixModel not idempotent for %q", model)
		}
		if model != "" && !strings.Contains(once, "/") {
			t.Fatalf("PrefixModel(%q) = %q has no provider", model, once)
		}
		if strings.Contains(model, "/") && once != model {
			t.Fatalf("PrefixModel changed qualified model %q", model)
		}
	})
}

// Whatever the command line, Codex ends up with exactly one model flag ahead
// of any "--" and the reported model is the one on the command line.
func TestPropertyCodexSingleModelFlag(t *testing.T) {
	tokens := rapid.SampledFrom([]string{
		"--model", "-m", "--model=gpt-4o", "-m=o3", "gpt-4o", "anthropic/claude-3",
		"exec", "--yes", "--", "", "prompt text",
	})

	rapid.Check(t, func(t *rapid.T) {
		args := rapid.SliceOfN(tokens, 0, 8).Draw(t, "args")
		prefix := rapid.Bool().Draw(t, "prefix")
		c := &Codex{PrefixSeparateValue: prefix}

		got := c.NormalizeArgs(args, nil)

		head := got.Args
		for i, a := range head {
			if a == "--" {
				head = head[:i]
				break
			}
		}
		found, dangling := scanModelFlags(head, "--model", "-m")
		if len(found) != 1 || len(dangling) != 0 {
			t.Fatalf("args %q normalized to %q: %d model flags, %d dangling", args, got.Args, len(found), len(dangling))
		}
		if found[0].value != got.Model {
			t.Fatalf("reported model %q but flag carries %q", got.Model, found[0].value)
		}
	})
}
