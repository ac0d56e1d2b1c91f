// Package pluginregistry provides the compile-time plugin registration that
// replaces runtime module:Class imports: an explicitly owned map from a
// manifest's entrypoint name to a constructor function.
package pluginregistry

import "github.com/validforge/validpipe/internal/pluginapi"

// Factory builds a Plugin instance from its resolved manifest.
type Factory func(manifest pluginapi.Manifest) (pluginapi.Plugin, error)

// Registry is an explicitly owned factory table. It carries no
// package-level state; the driver constructs one, registers the
// linked-in plugins, and hands it to the plugin manager.
type Registry struct {
	factories map[string]Factory
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register associates entrypoint with factory. A later call for the same
// entrypoint overwrites the earlier one.
func (r *Registry) Register(entrypoint string, factory Factory) {
	r.factories[entrypoint] = factory
}

// Resolve looks up the factory for entrypoint.
func (r *Registry) Resolve(entrypoint string) (Factory, bool) {
	f, ok := r.factories[entrypoint]
	return f, ok
}
