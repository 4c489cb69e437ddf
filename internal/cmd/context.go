package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/smith/internal/log"
	"github.com/felixgeelhaar/smith/internal/otelenv"
	"github.com/felixgeelhaar/smith/internal/telemetry"
	"github.com/felixgeelhaar/smith/internal/version"
)

// CommandContext holds the resolved global flags, configuration and logger
// for one command invocation.
type CommandContext struct {
	ConfigPath string
	Config     *GlobalConfig
	Logger     *log.Logger
}

// NewCommandContext reads the global flags, loads the configuration file and
// builds the logger. Commands call it at the top of RunE:
//
//	cmdCtx, err := NewCommandContext(cmd)
//	if err != nil {
//		return err
//	}
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	configFlag, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	levelFlag, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return nil, err
	}
	formatFlag, err := cmd.Flags().GetString("log-format")
	if err != nil {
		return nil, err
	}

	path, err := resolveConfigPath(configFlag, os.Getenv)
	if err != nil {
		return nil, err
	}
	config, err := loadConfig(path)
	if err != nil {
		return nil, err
	}

	logCfg := loggerConfig(config.Logging, levelFlag, formatFlag, os.Getenv)
	logCfg.Output = cmd.ErrOrStderr()
	logger := log.New(logCfg)
	log.SetDefaultLogger(logger)
	logger.Debug("configuration loaded", "path", path, "log_level", logCfg.Level.String(), "log_format", logCfg.Format.String())

	return &CommandContext{
		ConfigPath: path,
		Config:     config,
		Logger:     logger,
	}, nil
}

// ProbeTracing returns the tracer provider for stack probes and a function
// that flushes it. Probe spans are printed to stderr with SMITH_TRACE_STDOUT.
func (c *CommandContext) ProbeTracing(cmd *cobra.Command) (trace.TracerProvider, func()) {
	// an unusable OTLP endpoint does not matter here; probe spans never leave the process
	cfg, _ := telemetry.ConfigFromEnv(otelenv.FromEnviron(os.Environ()))
	cfg.ServiceName = otelenv.DefaultServiceName
	cfg.ServiceVersion = version.Version

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	tp, shutdown := telemetry.ProbeTracing(ctx, cfg, cmd.ErrOrStderr())
	return tp, func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			c.Logger.WithError(err).Debug("probe tracing shutdown failed")
		}
	}
}

// loggerConfig layers the log settings: defaults, then the config file, then
// SMITH_LOG_LEVEL and SMITH_LOG_FORMAT, then flags.
func loggerConfig(file LoggingConfig, levelFlag, formatFlag string, getenv func(string) string) log.Config {
	cfg := log.DefaultConfig()
	cfg.ServiceVersion = version.Version
	if file.Level != "" {
		cfg.Level = log.ParseLevel(file.Level)
	}
	if file.Format != "" {
		cfg.Format = log.ParseFormat(file.Format)
	}
	cfg = log.ConfigFromEnv(cfg, getenv)
	if levelFlag != "" {
		cfg.Level = log.ParseLevel(levelFlag)
	}
	if formatFlag != "" {
		cfg.Format = log.ParseFormat(formatFlag)
	}
	if cfg.Level == log.LevelDebug {
		cfg.AddSource = true
	}
	return cfg
}
