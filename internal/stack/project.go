package stack

import (
	"fmt"

	"github.com/google/go-containerregistry/pkg/name"
	"gopkg.in/yaml.v3"

	smitherrors "github.com/felixgeelhaar/smith/internal/errors"
)

// ProjectName is the compose project smith manages.
const ProjectName = "smith"

// Service names in the default project.
const (
	ServiceGateway    = "gateway"
	ServiceCollector  = "otel-collector"
	ServiceClickHouse = "clickhouse"
)

// Default images. The collector and ClickHouse tags are pinned because the
// collector config and the trace schema depend on them. The gateway tracks
// latest; pin it with stack.images.gateway in the config file.
const (
	DefaultGatewayImage    = "maximhq/bifrost:latest"
	DefaultCollectorImage  = "otel/opentelemetry-collector-contrib:0.111.0"
	DefaultClickHouseImage = "clickhouse/clickhouse-server:24.8"
)

const collectorConfigPath = "/etc/otelcol-contrib/config.yaml"

// Service is one compose service.
type Service struct {
	Name        string            `yaml:"-"`
	Image       string            `yaml:"image"`
	Command     []string          `yaml:"command,omitempty"`
	Ports       []string          `yaml:"ports,omitempty"`
	Environment map[string]string `yaml:"environment,omitempty"`
	Volumes     []string          `yaml:"volumes,omitempty"`
	Configs     []ConfigMount     `yaml:"configs,omitempty"`
	DependsOn   []string          `yaml:"depends_on,omitempty"`
	Restart     string            `yaml:"restart,omitempty"`
}

// ConfigMount mounts a top-level compose config into a service.
type ConfigMount struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

// Project is the compose document smith renders and pipes to
// `docker compose -f -`.
type Project struct {
	Name     string
	Services []Service
	// Configs holds inline file contents keyed by config name.
	Configs map[string]string
	Volumes []string
}

// DefaultProject returns the gateway, collector and analytical store.
func DefaultProject() Project {
	return Project{
		Name: ProjectName,
		Services: []Service{
			{
				Name:  ServiceClickHouse,
				Image: DefaultClickHouseImage,
				Ports: []string{"8123:8123"},
				Environment: map[string]string{
					"CLICKHOUSE_DB":                        "otel",
					"CLICKHOUSE_DEFAULT_ACCESS_MANAGEMENT": "1",
				},
				Volumes: []string{"clickhouse-data:/var/lib/clickhouse"},
				Restart: "unless-stopped",
			},
			{
				Name:      ServiceCollector,
				Image:     DefaultCollectorImage,
				Command:   []string{"--config=" + collectorConfigPath},
				Ports:     []string{"4317:4317", "4318:4318"},
				Configs:   []ConfigMount{{Source: "otelcol-config", Target: collectorConfigPath}},
				DependsOn: []string{ServiceClickHouse},
				Restart:   "unless-stopped",
			},
			{
				Name:  ServiceGateway,
				Image: DefaultGatewayImage,
				Ports: []string{"8080:8080"},
				Environment: map[string]string{
					"APP_HOST": "0.0.0.0",
					"APP_PORT": "8080",
				},
				Volumes:   []string{"bifrost-data:/app/data"},
				DependsOn: []string{ServiceCollector},
				Restart:   "unless-stopped",
			},
		},
		Configs: map[string]string{"otelcol-config": collectorConfig()},
		Volumes: []string{"clickhouse-data", "bifrost-data"},
	}
}

// ServiceNames returns service names in declaration order.
func (p Project) ServiceNames() []string {
	names := make([]string, len(p.Services))
	for i, s := range p.Services {
		names[i] = s.Name
	}
	return names
}

// WithImage returns a copy of p with service's image replaced. Unknown
// services are ignored.
func (p Project) WithImage(service, image string) Project {
	out := p
	out.Services = append([]Service(nil), p.Services...)
	for i := range out.Services {
		if out.Services[i].Name == service {
			out.Services[i].Image = image
		}
	}
	return out
}

// Validate checks every image reference before anything is handed to the
// container runtime.
func (p Project) Validate() error {
	if len(p.Services) == 0 {
		return fmt.Errorf("compose project %q has no services", p.Name)
	}
	seen := make(map[string]bool, len(p.Services))
	for _, s := range p.Services {
		if s.Name == "" {
			return fmt.Errorf("compose project %q has a service without a name", p.Name)
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate service %q", s.Name)
		}
		seen[s.Name] = true

		if _, err := name.ParseReference(s.Image); err != nil {
			return smitherrors.Wrap(smitherrors.ErrCodeStackImageInvalid,
				fmt.Sprintf("invalid image for service %s: %q", s.Name, s.Image), err).
				WithSuggestion("Check stack.images in ~/.smith/config.yaml")
		}
	}
	return nil
}

type composeFile struct {
	Name     string                   `yaml:"name"`
	Services map[string]Service       `yaml:"services"`
	Configs  map[string]composeConfig `yaml:"configs,omitempty"`
	Volumes  map[string]struct{}      `yaml:"volumes,omitempty"`
}

type composeConfig struct {
	Content string `yaml:"content"`
}

// Render produces the compose YAML.
func (p Project) Render() ([]byte, error) {
	doc := composeFile{
		Name:     p.Name,
		Services: make(map[string]Service, len(p.Services)),
	}
	for _, s := range p.Services {
		doc.Services[s.Name] = s
	}
	if len(p.Configs) > 0 {
		doc.Configs = make(map[string]composeConfig, len(p.Configs))
		for k, v := range p.Configs {
			doc.Configs[k] = composeConfig{Content: v}
		}
	}
	if len(p.Volumes) > 0 {
		doc.Volumes = make(map[string]struct{}, len(p.Volumes))
		for _, v := range p.Volumes {
			doc.Volumes[v] = struct{}{}
		}
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("render compose file: %w", err)
	}
	return out, nil
}

// collectorConfig receives OTLP on both transports and writes everything to
// ClickHouse.
func collectorConfig() string {
	pipeline := map[string]any{
		"receivers":  []string{"otlp"},
		"processors": []string{"batch"},
		"exporters":  []string{"clickhouse"},
	}
	cfg := map[string]any{
		"receivers": map[string]any{
			"otlp": map[string]any{
				"protocols": map[string]any{
					"grpc": map[string]any{"endpoint": "0.0.0.0:4317"},
					"http": map[string]any{"endpoint": "0.0.0.0:4318"},
				},
			},
		},
		"processors": map[string]any{
			"batch": map[string]any{"timeout": "1s"},
		},
		"exporters": map[string]any{
			"clickhouse": map[string]any{
				"endpoint":      "tcp://" + ServiceClickHouse + ":9000?dial_timeout=10s",
				"database":      "otel",
				"create_schema": true,
				"ttl":           "72h",
			},
		},
		"service": map[string]any{
			"pipelines": map[string]any{
				"traces":  pipeline,
				"metrics": pipeline,
				"logs":    pipeline,
			},
		},
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		// static input; cannot fail
		panic(err)
	}
	return string(out)
}
