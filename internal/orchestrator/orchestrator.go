// Package orchestrator sequences one observed agent run: stack readiness,
// repository metadata, environment enrichment, per-agent adjustments, the
// run span and the child process.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/smith/internal/agent"
	smitherrors "github.com/felixgeelhaar/smith/internal/errors"
	"github.com/felixgeelhaar/smith/internal/exitcode"
	"github.com/felixgeelhaar/smith/internal/gitmeta"
	"github.com/felixgeelhaar/smith/internal/launcher"
	"github.com/felixgeelhaar/smith/internal/log"
	"github.com/felixgeelhaar/smith/internal/otelenv"
	"github.com/felixgeelhaar/smith/internal/stack"
	"github.com/felixgeelhaar/smith/internal/telemetry"
	"github.com/felixgeelhaar/smith/internal/version"
)

// Stack brings the observability stack up and waits for it.
type Stack interface {
	Ensure(ctx context.Context) error
	WaitReady(ctx context.Context, targets []stack.Target, globalTimeout time.Duration) (stack.Report, error)
}

// GitCollector gathers repository metadata.
type GitCollector interface {
	Collect(ctx context.Context, dir string) gitmeta.Metadata
}

// Spawner runs the agent process.
type Spawner interface {
	Spawn(ctx context.Context, binary string, args []string, env *otelenv.Env) (launcher.Result, error)
}

// TracerFactory creates the run tracer from the enriched environment's
// exporter settings.
type TracerFactory func(ctx context.Context, cfg telemetry.Config) (*telemetry.Tracer, error)

// Request describes one run.
type Request struct {
	// Agent selects the adapter and labels telemetry.
	Agent string
	// Binary is the executable; defaults to Agent.
	Binary string
	// Args are forwarded to the agent after normalization.
	Args []string
	// Dir is the directory git metadata is read from.
	Dir string
	// Environ is the pre-existing environment, as from os.Environ.
	Environ []string
	// KeepExisting preserves OTEL settings already present in Environ.
	KeepExisting bool
	// SkipStack assumes the stack is managed elsewhere.
	SkipStack bool
}

// Orchestrator runs agents.
type Orchestrator struct {
	stack     Stack
	targets   []stack.Target
	timeout   time.Duration
	git       GitCollector
	agents    *agent.Registry
	launcher  Spawner
	newTracer TracerFactory
	logger    *log.Logger
	sessionID func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithStack sets the stack controller. Without one, runs behave as if
// SkipStack were set.
func WithStack(s Stack) Option {
	return func(o *Orchestrator) { o.stack = s }
}

// WithTargets replaces the readiness targets.
func WithTargets(targets []stack.Target) Option {
	return func(o *Orchestrator) { o.targets = targets }
}

// WithReadinessTimeout sets the global readiness deadline.
func WithReadinessTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithGitCollector replaces the git metadata collector.
func WithGitCollector(g GitCollector) Option {
	return func(o *Orchestrator) { o.git = g }
}

// WithRegistry replaces the agent adapter registry.
func WithRegistry(r *agent.Registry) Option {
	return func(o *Orchestrator) { o.agents = r }
}

// WithLauncher replaces the process launcher.
func WithLauncher(s Spawner) Option {
	return func(o *Orchestrator) { o.launcher = s }
}

// WithTracerFactory replaces how the run tracer is built.
func WithTracerFactory(f TracerFactory) Option {
	return func(o *Orchestrator) { o.newTracer = f }
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSessionID replaces session id generation.
func WithSessionID(fn func() string) Option {
	return func(o *Orchestrator) { o.sessionID = fn }
}

// New creates an orchestrator with the default collaborators.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		targets: stack.DefaultTargets(),
		timeout: stack.DefaultTimeout,
		git:     gitmeta.NewCollector(),
		agents:  agent.DefaultRegistry(),
		logger:  log.Discard(),
		newTracer: func(ctx context.Context, cfg telemetry.Config) (*telemetry.Tracer, error) {
			return telemetry.New(ctx, cfg)
		},
		sessionID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.launcher == nil {
		o.launcher = launcher.New(launcher.WithLogger(o.logger))
	}
	return o
}

// Run launches the agent and returns its exit code. When the agent never
// starts, the code describes the orchestration failure and err says why.
//
// Readiness and spawn failures are fatal. Git, adapter and telemetry
// problems are logged and the run continues.
func (o *Orchestrator) Run(ctx context.Context, req Request) (int, error) {
	if req.Agent == "" {
		err := smitherrors.New(smitherrors.ErrCodeLaunchAgentMissing, "no agent given").
			WithSuggestion("Usage: smith observe <agent> [-- <agent-args>]")
		return exitcode.UsageError, err
	}
	if err := ctx.Err(); err != nil {
		return exitcode.Interrupted, err
	}

	binary := req.Binary
	if binary == "" {
		binary = req.Agent
	}
	session := o.sessionID()
	logger := o.logger.With("session", session, "agent", req.Agent)

	meta, err := o.prepare(ctx, req, logger)
	if err != nil {
		return exitcode.DetermineExitCode(err), err
	}

	existing := otelenv.FromEnviron(req.Environ)
	keep := req.KeepExisting || otelenv.KeepExisting(existing)
	env := otelenv.Build(existing, meta, req.Agent, keep)

	adapter, warn := o.agents.Resolve(req.Agent)
	if warn != nil {
		logger.Debug(warn.Error())
	}
	norm := adapter.NormalizeArgs(req.Args, env)
	env = adapter.RewriteBaseURL(env)
	if logger.Enabled(ctx, log.LevelDebug) {
		logger.Debug("environment prepared",
			"keep_existing", keep,
			"model", norm.Model,
			"model_source", string(norm.Source),
			"otel", env.Subset(otelenv.ManagedKeys...))
	}

	if err := ctx.Err(); err != nil {
		return exitcode.Interrupted, err
	}

	tracer := o.tracer(ctx, env, logger)
	defer func() {
		if err := tracer.Shutdown(ctx); err != nil {
			logger.WithError(err).Debug("telemetry shutdown failed")
		}
	}()

	span := tracer.Open(telemetry.ContextFromEnv(ctx, existing), telemetry.RunInfo{
		Agent:       req.Agent,
		Binary:      binary,
		Model:       norm.Model,
		ModelSource: string(norm.Source),
		SessionID:   session,
		Git:         meta,
	})
	childEnv := telemetry.InjectEnv(span, env)

	result, err := o.launcher.Spawn(ctx, binary, norm.Args, childEnv)
	if err != nil {
		var spawnErr *launcher.SpawnError
		if !errors.As(err, &spawnErr) {
			// never started: the span is dropped unexported
			if ctxErr := ctx.Err(); ctxErr != nil {
				return exitcode.Interrupted, ctxErr
			}
			return exitcode.DetermineExitCode(err), err
		}
		o.closeSpan(ctx, tracer, span, spawnErr.ExitCode(), "", logger)
		return spawnErr.ExitCode(), surfaceSpawnError(spawnErr)
	}

	o.closeSpan(ctx, tracer, span, result.ExitCode, result.Signal, logger)
	logger.Debug("agent exited", "exit_code", result.ExitCode, "signal", result.Signal)
	return result.ExitCode, nil
}

// prepare runs stack readiness and git collection concurrently. Only
// readiness can fail.
func (o *Orchestrator) prepare(ctx context.Context, req Request, logger *log.Logger) (gitmeta.Metadata, error) {
	metaCh := make(chan gitmeta.Metadata, 1)
	go func() {
		metaCh <- o.git.Collect(ctx, req.Dir)
	}()

	if !req.SkipStack && o.stack != nil {
		if err := o.ready(ctx, logger); err != nil {
			return gitmeta.Metadata{}, err
		}
	}

	meta := <-metaCh
	for _, err := range meta.Errors() {
		logger.WithError(err).Debug("git metadata unavailable")
	}
	return meta, nil
}

func (o *Orchestrator) ready(ctx context.Context, logger *log.Logger) error {
	if err := o.stack.Ensure(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}

	report, err := o.stack.WaitReady(ctx, o.targets, o.timeout)
	if err != nil {
		return stack.Coded(err)
	}
	logger.Debug("stack ready", "report", report.String())
	return nil
}

// tracer builds the run tracer. A tracer that cannot be configured degrades
// to a disabled one; the run itself is never blocked by telemetry.
func (o *Orchestrator) tracer(ctx context.Context, env *otelenv.Env, logger *log.Logger) *telemetry.Tracer {
	cfg, err := telemetry.ConfigFromEnv(env)
	if err == nil {
		cfg.ServiceVersion = version.Version
		var tracer *telemetry.Tracer
		if tracer, err = o.newTracer(ctx, cfg); err == nil {
			return tracer
		}
	}
	logger.WithError(err).Warn("tracing disabled for this run")

	disabled := telemetry.DefaultConfig()
	disabled.Enabled = false
	tracer, _ := telemetry.New(ctx, disabled)
	return tracer
}

func (o *Orchestrator) closeSpan(ctx context.Context, tracer *telemetry.Tracer, span *telemetry.SpanHandle, code int, signal string, logger *log.Logger) {
	if err := tracer.Close(ctx, span, code, signal); err != nil {
		logger.WithError(err).Warn("run span was not exported")
	}
}

func surfaceSpawnError(err *launcher.SpawnError) error {
	if err.Permission() {
		return smitherrors.NewNotExecutableError(err.Binary, err)
	}
	return smitherrors.NewBinaryNotFoundError(err.Binary, err)
}
