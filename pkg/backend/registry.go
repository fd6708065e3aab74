package backend

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/systmms/multicloud/pkg/config"
	mcerrors "github.com/systmms/multicloud/pkg/errors"
)

// DefaultType is used when a backend section has no "type".
const DefaultType = "local"

// Factory creates a backend from its configuration section.
type Factory func(h Host, cfg *config.Config) (Backend, error)

// Registry maps backend type tags to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register registers a factory for a backend type, replacing any previous one.
func (r *Registry) Register(backendType string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[backendType] = factory
}

// Lookup returns the factory registered for backendType.
func (r *Registry) Lookup(backendType string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[backendType]
	return f, ok
}

// IsSupported checks if a backend type is registered.
func (r *Registry) IsSupported(backendType string) bool {
	_, ok := r.Lookup(backendType)
	return ok
}

// SupportedTypes returns the registered type tags in sorted order.
func (r *Registry) SupportedTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Create dispatches cfg to exactly one factory. The "type" field selects it
// (default "local"); an unregistered type falls back to the factory
// registered under the "library" field, if any.
func (r *Registry) Create(h Host, cfg *config.Config) (Backend, error) {
	backendType, err := cfg.GetString(h.Environment, "type", DefaultType)
	if err != nil {
		return nil, err
	}

	if factory, ok := r.Lookup(backendType); ok {
		return factory(h, cfg)
	}

	library, err := cfg.GetString(h.Environment, "library", "")
	if err != nil {
		return nil, err
	}
	if library == "" {
		return nil, mcerrors.ConfigurationError{
			Field:      "backend.type",
			Value:      backendType,
			Message:    "unsupported backend type and no library specified",
			Suggestion: fmt.Sprintf("Supported types: %s", strings.Join(r.SupportedTypes(), ", ")),
		}
	}

	factory, ok := r.Lookup(library)
	if !ok {
		return nil, mcerrors.ConfigurationError{
			Field:      "backend.library",
			Value:      library,
			Message:    "backend library is not registered",
			Suggestion: "Register the plugin with multicloud.Register before creating the Context",
		}
	}
	return factory(h, cfg)
}
