// Package provider builds the named catalog providers of a configuration
// and hands out connected instances to the sync engine.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"bricksync/internal/config"
	"bricksync/internal/domain"
	"bricksync/internal/provider/duckdb"
	"bricksync/internal/provider/glue"
	"bricksync/internal/provider/icebergrest"
	"bricksync/internal/provider/props"
	"bricksync/internal/provider/snowflake"
	"bricksync/internal/provider/unity"
)

// Factory constructs an unconnected provider from its properties.
type Factory func(name string, p props.Props, logger *slog.Logger) (domain.Provider, error)

// DefaultFactories returns a factory for every built-in provider kind.
func DefaultFactories() map[domain.ProviderKind]Factory {
	return map[domain.ProviderKind]Factory{
		domain.ProviderDatabricks: func(name string, p props.Props, logger *slog.Logger) (domain.Provider, error) {
			cfg, err := unity.ConfigFromProperties(name, p)
			if err != nil {
				return nil, err
			}
			return unity.New(name, cfg, unity.Deps{Logger: logger}), nil
		},
		domain.ProviderSnowflake: func(name string, p props.Props, logger *slog.Logger) (domain.Provider, error) {
			cfg, err := snowflake.ConfigFromProperties(name, p)
			if err != nil {
				return nil, err
			}
			return snowflake.New(name, cfg, snowflake.Deps{Logger: logger}), nil
		},
		domain.ProviderGlue: func(name string, p props.Props, logger *slog.Logger) (domain.Provider, error) {
			cfg, err := glue.ConfigFromProperties(name, p)
			if err != nil {
				return nil, err
			}
			return glue.New(name, cfg, glue.Deps{Logger: logger}), nil
		},
		domain.ProviderIcebergREST: func(name string, p props.Props, logger *slog.Logger) (domain.Provider, error) {
			cfg, err := icebergrest.ConfigFromProperties(name, p)
			if err != nil {
				return nil, err
			}
			return icebergrest.New(name, cfg, icebergrest.Deps{Logger: logger}), nil
		},
		domain.ProviderDuckDB: func(name string, p props.Props, logger *slog.Logger) (domain.Provider, error) {
			cfg, err := duckdb.ConfigFromProperties(name, p)
			if err != nil {
				return nil, err
			}
			return duckdb.New(name, cfg, duckdb.Deps{Logger: logger}), nil
		},
	}
}

type entry struct {
	provider domain.Provider
	lazy     bool

	mu        sync.Mutex
	connected bool
}

// Registry holds the providers of one run. Providers connect at most once;
// a failed connect is retried on the next Get.
type Registry struct {
	factories map[domain.ProviderKind]Factory
	logger    *slog.Logger

	mu      sync.RWMutex
	entries map[string]*entry
}

// NewRegistry creates an empty registry. Nil factories means
// DefaultFactories.
func NewRegistry(factories map[domain.ProviderKind]Factory, logger *slog.Logger) *Registry {
	if factories == nil {
		factories = DefaultFactories()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		factories: factories,
		logger:    logger.With("component", "provider-registry"),
		entries:   make(map[string]*entry),
	}
}

// Register adds an already constructed provider.
func (r *Registry) Register(p domain.Provider, lazy bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[p.Name()]; ok {
		return domain.ErrConfig("provider %q is registered twice", p.Name())
	}
	r.entries[p.Name()] = &entry{provider: p, lazy: lazy}
	return nil
}

// Build constructs every configured provider without connecting any of
// them. Construction errors are joined.
func (r *Registry) Build(specs []config.ProviderConfig) error {
	var errs []error
	for _, spec := range specs {
		factory, ok := r.factories[spec.Kind]
		if !ok {
			errs = append(errs, domain.ErrConfig("provider %q has unknown kind %q", spec.Name, spec.Kind))
			continue
		}
		p, err := factory(spec.Name, props.Props(spec.Properties), r.logger)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := r.Register(p, spec.Lazy); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Lookup returns the named provider without connecting it.
func (r *Registry) Lookup(name string) (domain.Provider, bool) {
	e, ok := r.entry(name)
	if !ok {
		return nil, false
	}
	return e.provider, true
}

// Get returns the named provider, connecting it first if needed.
func (r *Registry) Get(ctx context.Context, name string) (domain.Provider, error) {
	e, ok := r.entry(name)
	if !ok {
		return nil, domain.ErrConfig("unknown provider %q", name)
	}
	if err := r.connect(ctx, e); err != nil {
		return nil, err
	}
	return e.provider, nil
}

// ConnectAll connects every provider not flagged lazy. Every provider is
// attempted and the failures are joined.
func (r *Registry) ConnectAll(ctx context.Context) error {
	var errs []error
	for _, name := range r.Names() {
		e, _ := r.entry(name)
		if e.lazy {
			continue
		}
		if err := r.connect(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) connect(ctx context.Context, e *entry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.connected {
		return nil
	}
	p := e.provider
	if err := p.Connect(ctx); err != nil {
		return fmt.Errorf("connect provider %s (%s): %w", p.Name(), p.Kind(), err)
	}
	e.connected = true
	r.logger.Debug("provider connected", "provider", p.Name(), "kind", string(p.Kind()))
	return nil
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes every connected provider.
func (r *Registry) Close() error {
	var errs []error
	for _, name := range r.Names() {
		e, _ := r.entry(name)
		e.mu.Lock()
		if e.connected {
			if err := e.provider.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close provider %s: %w", name, err))
			}
			e.connected = false
		}
		e.mu.Unlock()
	}
	return errors.Join(errs...)
}

func (r *Registry) entry(name string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}
