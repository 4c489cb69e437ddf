// Package agent holds per-agent launch adjustments.
//
// An Adapter resolves which model an agent will use and points the agent's
// API base URL at the local gateway. Agents without an adapter run through
// Generic, which changes nothing.
package agent

import (
	"strings"

	"github.com/felixgeelhaar/smith/internal/otelenv"
)

// DefaultGateway is the address the local gateway listens on.
const DefaultGateway = "http://localhost:8080"

// ModelSource records where a resolved model came from.
type ModelSource string

const (
	// SourceNone means no model was resolved.
	SourceNone ModelSource = ""
	// SourceArgs means the model was given on the agent's command line.
	SourceArgs ModelSource = "args"
	// SourceEnv means the model came from an environment override.
	SourceEnv ModelSource = "env"
	// SourceFallback means the built-in default was used.
	SourceFallback ModelSource = "fallback"
)

// Normalized is the result of NormalizeArgs.
type Normalized struct {
	Args   []string
	Model  string
	Source ModelSource
}

// Adapter adjusts the launch of one kind of agent.
type Adapter interface {
	// Name is the agent name the adapter is registered under.
	Name() string

	// NormalizeArgs resolves the model and returns the arguments to launch
	// with. env is the agent's environment and is only read.
	NormalizeArgs(args []string, env *otelenv.Env) Normalized

	// RewriteBaseURL returns a copy of env with the agent's API base URL
	// pointed at the gateway.
	RewriteBaseURL(env *otelenv.Env) *otelenv.Env
}

// Generic passes arguments and environment through unchanged.
type Generic struct {
	AgentName string
}

// Name implements Adapter.
func (g Generic) Name() string { return g.AgentName }

// NormalizeArgs implements Adapter.
func (Generic) NormalizeArgs(args []string, _ *otelenv.Env) Normalized {
	return Normalized{Args: append([]string(nil), args...)}
}

// RewriteBaseURL implements Adapter.
func (Generic) RewriteBaseURL(env *otelenv.Env) *otelenv.Env {
	return env.Clone()
}

// PrefixModel qualifies a bare model name with the openai provider. Empty
// names and names that already carry a provider are returned unchanged.
func PrefixModel(model string) string {
	if model == "" || strings.Contains(model, "/") {
		return model
	}
	return "openai/" + model
}

// flagForm is the syntax a model flag was written in.
type flagForm int

const (
	formSeparate flagForm = iota // --model v / -m v
	formEquals                   // --model=v / -m=v
)

// modelFlag is one model flag found on a command line.
type modelFlag struct {
	index int    // position of the flag
	width int    // arguments occupied: 2 for the separate form, 1 otherwise
	flag  string // "--model" or "-m"
	form  flagForm
	value string
}

// scanModelFlags finds model flags before the first "--". Flags with an
// empty or missing value are returned in dangling.
func scanModelFlags(args []string, names ...string) (found, dangling []modelFlag) {
	isName := func(s string) bool {
		for _, n := range names {
			if s == n {
				return true
			}
		}
		return false
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			break
		}

		if isName(arg) {
			if i+1 >= len(args) || args[i+1] == "--" {
				dangling = append(dangling, modelFlag{index: i, width: 1, flag: arg})
				continue
			}
			if args[i+1] == "" {
				dangling = append(dangling, modelFlag{index: i, width: 2, flag: arg})
				i++
				continue
			}
			found = append(found, modelFlag{index: i, width: 2, flag: arg, form: formSeparate, value: args[i+1]})
			i++
			continue
		}

		if name, value, ok := strings.Cut(arg, "="); ok && isName(name) {
			if value == "" {
				dangling = append(dangling, modelFlag{index: i, width: 1, flag: name, form: formEquals})
				continue
			}
			found = append(found, modelFlag{index: i, width: 1, flag: name, form: formEquals, value: value})
		}
	}
	return found, dangling
}

// render writes the flag back with a new value in its original syntax.
func (f modelFlag) render(value string) []string {
	if f.form == formEquals {
		return []string{f.flag + "=" + value}
	}
	return []string{f.flag, value}
}

// rebuild returns args with every flag in drop removed and keep re-rendered
// with value.
func rebuild(args []string, drop []modelFlag, keep *modelFlag, value string) []string {
	skip := make(map[int]int, len(drop))
	for _, f := range drop {
		skip[f.index] = f.width
	}

	out := make([]string, 0, len(args)+2)
	for i := 0; i < len(args); i++ {
		if w, ok := skip[i]; ok {
			i += w - 1
			continue
		}
		if keep != nil && i == keep.index {
			out = append(out, keep.render(value)...)
			i += keep.width - 1
			continue
		}
		out = append(out, args[i])
	}
	return out
}
