package telemetry

import (
	"go.opentelemetry.io/otel/attribute"

	"github.com/felixgeelhaar/smith/internal/gitmeta"
	"github.com/felixgeelhaar/smith/internal/otelenv"
)

// SpanName is the name of the span that brackets an agent run.
const SpanName = "smith.observe"

// Span attribute keys.
const (
	AttrAgentName        = otelenv.AttrAgentName
	AttrAgentBinary      = "smith.agent.binary"
	AttrAgentModel       = "smith.agent.model"
	AttrAgentModelSource = "smith.agent.model_source"
	AttrSessionID        = "smith.session.id"
	AttrExitCode         = "process.exit_code"
	AttrSignal           = "smith.process.signal"
)

// RunInfo describes one agent run.
type RunInfo struct {
	Agent       string
	Binary      string
	Model       string
	ModelSource string
	SessionID   string
	Git         gitmeta.Metadata
}

// Attributes returns the span attributes for the run. Empty values and
// absent git fields are left out.
func (r RunInfo) Attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrAgentName, r.Agent),
	}
	if r.Binary != "" {
		attrs = append(attrs, attribute.String(AttrAgentBinary, r.Binary))
	}
	if r.Model != "" {
		attrs = append(attrs, attribute.String(AttrAgentModel, r.Model))
		if r.ModelSource != "" {
			attrs = append(attrs, attribute.String(AttrAgentModelSource, r.ModelSource))
		}
	}
	if r.SessionID != "" {
		attrs = append(attrs, attribute.String(AttrSessionID, r.SessionID))
	}

	if v, ok := r.Git.Root.Get(); ok {
		attrs = append(attrs, attribute.String(otelenv.AttrGitRoot, v))
	}
	if v, ok := r.Git.Branch.Get(); ok {
		attrs = append(attrs, attribute.String(otelenv.AttrGitBranch, v))
	}
	if v, ok := r.Git.Remote.Get(); ok {
		attrs = append(attrs, attribute.String(otelenv.AttrGitRemote, v))
	}
	if v, ok := r.Git.Dirty.Get(); ok {
		attrs = append(attrs, attribute.Bool(otelenv.AttrGitDirty, v))
	}
	return attrs
}
