// Package otelenv builds the environment handed to an observed agent.
//
// Build is pure: it takes the caller's environment and collected metadata as
// arguments and returns a new Env without reading or mutating process state.
package otelenv

import (
	"strconv"
	"strings"

	"github.com/felixgeelhaar/smith/internal/gitmeta"
)

// Variables written by Build.
const (
	KeyEndpoint           = "OTEL_EXPORTER_OTLP_ENDPOINT"
	KeyTracesEndpoint     = "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"
	KeyProtocol           = "OTEL_EXPORTER_OTLP_PROTOCOL"
	KeyInsecure           = "OTEL_EXPORTER_OTLP_INSECURE"
	KeyResourceAttributes = "OTEL_RESOURCE_ATTRIBUTES"
	KeyServiceName        = "OTEL_SERVICE_NAME"
)

// KeyKeepExisting toggles keep-existing mode when set to a truthy value.
const KeyKeepExisting = "SMITH_KEEP_OTEL_CONFIG"

// Default values pointing at the local collector.
const (
	DefaultEndpoint       = "http://localhost:4318"
	DefaultTracesEndpoint = "http://localhost:4318/v1/traces"
	DefaultProtocol       = "http/protobuf"
	DefaultInsecure       = "true"
	DefaultServiceName    = "smith"
)

// Resource attribute keys appended by Build, in the order they are appended.
const (
	AttrServiceName = "service.name"
	AttrAgentName   = "smith.agent.name"
	AttrGitRoot     = "smith.git.root"
	AttrGitBranch   = "smith.git.branch"
	AttrGitRemote   = "smith.git.remote"
	AttrGitDirty    = "smith.git.status_dirty"
)

// ManagedKeys lists every variable Build may write, in output order.
var ManagedKeys = []string{
	KeyEndpoint,
	KeyTracesEndpoint,
	KeyProtocol,
	KeyInsecure,
	KeyResourceAttributes,
	KeyServiceName,
}

// Defaults returns the exporter defaults that Build applies.
func Defaults() *Env {
	env := NewEnv()
	env.Set(KeyEndpoint, DefaultEndpoint)
	env.Set(KeyTracesEndpoint, DefaultTracesEndpoint)
	env.Set(KeyProtocol, DefaultProtocol)
	env.Set(KeyInsecure, DefaultInsecure)
	return env
}

// Build returns the environment for an agent process.
//
// The result starts as a copy of existing. Exporter defaults are written over
// it unless keepExisting is set, in which case only unset keys receive a
// default. OTEL_RESOURCE_ATTRIBUTES is always merged by key: attributes already
// present are kept in place and smith's attributes are appended when missing.
// OTEL_SERVICE_NAME mirrors the resolved service.name.
func Build(existing *Env, meta gitmeta.Metadata, agentName string, keepExisting bool) *Env {
	out := existing.Clone()

	defaults := Defaults()
	for _, k := range defaults.Keys() {
		if keepExisting && out.Has(k) {
			continue
		}
		out.Set(k, defaults.Value(k))
	}

	attrs := ParseResourceAttributes(existing.Value(KeyResourceAttributes))
	serviceName := resolveServiceName(existing, attrs, agentName, keepExisting)

	attrs.Append(AttrServiceName, serviceName)
	attrs.Append(AttrAgentName, agentName)
	appendGit(attrs, meta)
	out.Set(KeyResourceAttributes, attrs.String())

	if !(keepExisting && out.Has(KeyServiceName)) {
		out.Set(KeyServiceName, serviceName)
	}
	return out
}

// resolveServiceName picks service.name: an attribute the user already set,
// then a kept OTEL_SERVICE_NAME, then the agent name.
func resolveServiceName(existing *Env, attrs *ResourceAttributes, agentName string, keepExisting bool) string {
	if v, ok := attrs.Get(AttrServiceName); ok && v != "" {
		return v
	}
	if keepExisting {
		if v := existing.Value(KeyServiceName); v != "" {
			return v
		}
	}
	if agentName != "" {
		return agentName
	}
	return DefaultServiceName
}

func appendGit(attrs *ResourceAttributes, meta gitmeta.Metadata) {
	if v, ok := meta.Root.Get(); ok {
		attrs.Append(AttrGitRoot, v)
	}
	if v, ok := meta.Branch.Get(); ok {
		attrs.Append(AttrGitBranch, v)
	}
	if v, ok := meta.Remote.Get(); ok {
		attrs.Append(AttrGitRemote, v)
	}
	if v, ok := meta.Dirty.Get(); ok {
		attrs.Append(AttrGitDirty, strconv.FormatBool(v))
	}
}

// KeepExisting reports whether env asks to keep pre-existing OTEL settings.
func KeepExisting(env *Env) bool {
	return Truthy(env.Value(KeyKeepExisting))
}

// Truthy interprets common boolean spellings. Anything unrecognised is false.
func Truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on", "y":
		return true
	default:
		return false
	}
}
