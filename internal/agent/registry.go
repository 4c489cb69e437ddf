package agent

import (
	"fmt"
	"sort"
	"sync"
)

// UnsupportedAgentWarning is returned by Resolve when no adapter is
// registered for an agent. The launch continues with Generic.
type UnsupportedAgentWarning struct {
	Name string
}

func (w *UnsupportedAgentWarning) Error() string {
	return fmt.Sprintf("no adapter for agent %q; arguments and environment are passed through unchanged", w.Name)
}

// Registry maps agent names to adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Option configures the adapters created by DefaultRegistry.
type Option func(*defaultOptions)

type defaultOptions struct {
	gateway             string
	codexFallback       string
	prefixSeparateValue bool
}

// WithGateway points every adapter at gateway instead of DefaultGateway.
func WithGateway(gateway string) Option {
	return func(o *defaultOptions) { o.gateway = gateway }
}

// WithCodexFallbackModel replaces the Codex fallback model.
func WithCodexFallbackModel(model string) Option {
	return func(o *defaultOptions) { o.codexFallback = model }
}

// WithCodexPrefixSeparateValue sets Codex.PrefixSeparateValue.
func WithCodexPrefixSeparateValue(prefix bool) Option {
	return func(o *defaultOptions) { o.prefixSeparateValue = prefix }
}

// DefaultRegistry returns a registry with the codex and claude adapters.
func DefaultRegistry(opts ...Option) *Registry {
	o := defaultOptions{
		gateway:             DefaultGateway,
		codexFallback:       CodexFallbackModel,
		prefixSeparateValue: true,
	}
	for _, opt := range opts {
		opt(&o)
	}

	r := NewRegistry()
	// Names are distinct, so Register cannot fail here.
	_ = r.Register(&Codex{Gateway: o.gateway, FallbackModel: o.codexFallback, PrefixSeparateValue: o.prefixSeparateValue})
	_ = r.Register(&Claude{Gateway: o.gateway})
	return r
}

// Register adds an adapter under its name.
func (r *Registry) Register(a Adapter) error {
	if a == nil || a.Name() == "" {
		return fmt.Errorf("adapter name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.adapters[a.Name()]; exists {
		return fmt.Errorf("adapter %s already registered", a.Name())
	}
	r.adapters[a.Name()] = a
	return nil
}

// Lookup returns the adapter registered under name.
func (r *Registry) Lookup(name string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.adapters[name]
	return a, ok
}

// For returns the adapter for name, or Generic when none is registered.
func (r *Registry) For(name string) Adapter {
	a, _ := r.Resolve(name)
	return a
}

// Resolve is For with the fallback reported. The adapter is never nil; the
// error, when set, is an *UnsupportedAgentWarning and is not fatal.
func (r *Registry) Resolve(name string) (Adapter, error) {
	if a, ok := r.Lookup(name); ok {
		return a, nil
	}
	return Generic{AgentName: name}, &UnsupportedAgentWarning{Name: name}
}

// List returns the registered agent names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
