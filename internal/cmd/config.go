package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/smith/internal/agent"
	smitherrors "github.com/felixgeelhaar/smith/internal/errors"
	"github.com/felixgeelhaar/smith/internal/stack"
	"github.com/felixgeelhaar/smith/internal/ux"
)

// EnvConfig overrides the configuration file location.
const EnvConfig = "SMITH_CONFIG"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect smith configuration",
	Long: `Inspect the optional configuration file, ~/.smith/config.yaml by default.

The file is never written by smith. Every key is optional:

  gateway: http://localhost:8080
  stack:
    compose_file: ""        # use your own compose file instead of the built-in stack
    timeout: 60s            # global readiness deadline
    images:
      gateway: maximhq/bifrost:v1.2.3
    targets: []             # replace the readiness probes
  agents:
    codex:
      fallback_model: openai/gpt-5-codex
      prefix_separate_value: true
  logging:
    level: warn
    format: text

Examples:
  smith config path
  smith config view --format json
`,
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "Display the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigView,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

var configViewFormat string

func init() {
	configViewCmd.Flags().StringVar(&configViewFormat, "format", "yaml", "output format: yaml or json")

	configCmd.AddCommand(configViewCmd)
	configCmd.AddCommand(configPathCmd)

	rootCmd.AddCommand(configCmd)
}

// GlobalConfig is the user configuration file.
type GlobalConfig struct {
	Gateway string        `yaml:"gateway,omitempty" json:"gateway,omitempty"`
	Stack   StackConfig   `yaml:"stack,omitempty" json:"stack,omitempty"`
	Agents  AgentsConfig  `yaml:"agents,omitempty" json:"agents,omitempty"`
	Logging LoggingConfig `yaml:"logging,omitempty" json:"logging,omitempty"`
}

// StackConfig overrides the default stack: its compose file, readiness
// timeout, per-service images and readiness targets.
type StackConfig struct {
	ComposeFile string            `yaml:"compose_file,omitempty" json:"compose_file,omitempty"`
	Timeout     time.Duration     `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Images      map[string]string `yaml:"images,omitempty" json:"images,omitempty"`
	Targets     []stack.Target    `yaml:"targets,omitempty" json:"targets,omitempty"`
}

// AgentsConfig holds per-agent settings.
type AgentsConfig struct {
	Codex CodexConfig `yaml:"codex,omitempty" json:"codex,omitempty"`
}

// CodexConfig controls the model codex is launched with when the command
// line does not name one.
type CodexConfig struct {
	FallbackModel string `yaml:"fallback_model,omitempty" json:"fallback_model,omitempty"`
	// PrefixSeparateValue is a pointer so an explicit false survives the
	// default of true.
	PrefixSeparateValue *bool `yaml:"prefix_separate_value,omitempty" json:"prefix_separate_value,omitempty"`
}

// LoggingConfig sets smith's own log level and format. Flags win over it.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty" json:"level,omitempty"`
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
}

// defaultConfigPath returns ~/.smith/config.yaml.
func defaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".smith", "config.yaml"), nil
}

// resolveConfigPath picks the --config flag, then SMITH_CONFIG, then the default.
func resolveConfigPath(flag string, getenv func(string) string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if v := getenv(EnvConfig); v != "" {
		return v, nil
	}
	return defaultConfigPath()
}

// loadConfig reads the configuration file. A missing file yields the zero
// configuration; an unreadable or invalid one is an error.
func loadConfig(path string) (*GlobalConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &GlobalConfig{}, nil
	}
	if err != nil {
		return nil, smitherrors.Wrap(smitherrors.ErrCodeConfigReadFailed,
			fmt.Sprintf("failed to read config: %s", path), err)
	}

	var config GlobalConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, smitherrors.NewConfigInvalidError(path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, smitherrors.NewConfigInvalidError(path, err)
	}
	return &config, nil
}

// Validate checks the values the file can get wrong without a YAML error.
func (c *GlobalConfig) Validate() error {
	if c.Stack.Timeout < 0 {
		return fmt.Errorf("stack.timeout must not be negative")
	}
	project := stack.DefaultProject()
	for service := range c.Stack.Images {
		if !slices.Contains(project.ServiceNames(), service) {
			return fmt.Errorf("stack.images: unknown service %q", service)
		}
	}
	for i, t := range c.Stack.Targets {
		if t.Name == "" || t.Probe.URL == "" {
			return fmt.Errorf("stack.targets[%d]: name and probe.url are required", i)
		}
	}
	return nil
}

// Project returns the compose project with configured image overrides.
func (c *GlobalConfig) Project() stack.Project {
	project := stack.DefaultProject()
	for service, image := range c.Stack.Images {
		project = project.WithImage(service, image)
	}
	return project
}

// Targets returns the readiness targets.
func (c *GlobalConfig) Targets() []stack.Target {
	if len(c.Stack.Targets) > 0 {
		return c.Stack.Targets
	}
	return stack.DefaultTargets()
}

// Timeout returns the readiness deadline; flag wins when positive.
func (c *GlobalConfig) Timeout(flag time.Duration) time.Duration {
	switch {
	case flag > 0:
		return flag
	case c.Stack.Timeout > 0:
		return c.Stack.Timeout
	default:
		return stack.DefaultTimeout
	}
}

// Runtime returns the compose runtime for the configured project.
func (c *GlobalConfig) Runtime() *stack.ComposeRuntime {
	runtime := stack.NewComposeRuntime(c.Project())
	runtime.ComposeFile = c.Stack.ComposeFile
	return runtime
}

// Registry returns the agent adapters with configured overrides.
func (c *GlobalConfig) Registry() *agent.Registry {
	var opts []agent.Option
	if c.Gateway != "" {
		opts = append(opts, agent.WithGateway(c.Gateway))
	}
	if c.Agents.Codex.FallbackModel != "" {
		opts = append(opts, agent.WithCodexFallbackModel(c.Agents.Codex.FallbackModel))
	}
	if p := c.Agents.Codex.PrefixSeparateValue; p != nil {
		opts = append(opts, agent.WithCodexPrefixSeparateValue(*p))
	}
	return agent.DefaultRegistry(opts...)
}

func runConfigView(cmd *cobra.Command, args []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	view := *cmdCtx.Config
	view.Stack.Timeout = cmdCtx.Config.Timeout(0)
	view.Stack.Targets = cmdCtx.Config.Targets()

	if configViewFormat == "text" {
		return fmt.Errorf("config view supports yaml or json")
	}
	formatter, err := ux.NewFormatter(configViewFormat, &ux.FormatterOptions{Writer: cmd.OutOrStdout()})
	if err != nil {
		return err
	}
	return formatter.Format(view)
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	flag, _ := cmd.Flags().GetString("config")
	path, err := resolveConfigPath(flag, os.Getenv)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
