package multicloud

import (
	"sync"

	"github.com/systmms/multicloud/internal/backends"
	"github.com/systmms/multicloud/pkg/backend"
)

var (
	defaultRegistry     *backend.Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the process-wide registry, holding the built-in
// backends plus anything added with Register.
func DefaultRegistry() *backend.Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = backend.NewRegistry()
		backends.RegisterBuiltins(defaultRegistry)
	})
	return defaultRegistry
}

// Register adds a backend factory to the default registry. The name is
// matched against a section's "type", then its "library".
func Register(name string, factory backend.Factory) {
	DefaultRegistry().Register(name, factory)
}
