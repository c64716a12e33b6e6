package provider

import (
	"fmt"
	"sort"
	"sync"

	"github.com/terassyi/vx/internal/manifest"
)

// Factory constructs a Runtime from its manifest metadata. Providers
// register one factory per runtime name (or a shared factory for an entire
// provider's runtimes, keyed individually) with the registry at startup.
type Factory func(meta manifest.RuntimeMetadata) (Runtime, error)

// Registry maps runtime name/alias to a constructed Runtime instance. It is
// built once from a ManifestIndex plus registered factories and is
// read-only for the lifetime of a pipeline (§3 Lifecycle).
type Registry struct {
	mu        sync.RWMutex
	index     *manifest.ManifestIndex
	factories map[string]Factory
	instances map[string]Runtime
}

// NewRegistry creates an empty Registry bound to idx. Factories must be
// registered via Register before Build.
func NewRegistry(idx *manifest.ManifestIndex) *Registry {
	return &Registry{
		index:     idx,
		factories: make(map[string]Factory),
		instances: make(map[string]Runtime),
	}
}

// Register associates a runtime name with a construction Factory. Calling
// Register again for the same name replaces the factory.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Build constructs every runtime that has both manifest metadata and a
// registered factory. Runtimes with manifest entries but no factory are
// left unconstructed and Lookup will report them as not found — this lets
// a manifest describe a runtime before its Go-side provider ships.
func (r *Registry) Build() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.index.RuntimeNames() {
		factory, ok := r.factories[name]
		if !ok {
			continue
		}
		meta, ok := r.index.Lookup(name)
		if !ok {
			continue
		}
		rt, err := factory(*meta)
		if err != nil {
			return fmt.Errorf("provider: build runtime %s: %w", name, err)
		}
		r.instances[name] = rt
	}
	return nil
}

// Lookup resolves nameOrAlias (via the manifest index) and returns the
// constructed Runtime instance.
func (r *Registry) Lookup(nameOrAlias string) (Runtime, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	canonical, ok := r.index.Resolve(nameOrAlias)
	if !ok {
		return nil, false
	}
	rt, ok := r.instances[canonical]
	return rt, ok
}

// ResolveBundled walks a bundled-runtime pointer to its parent, returning
// the parent Runtime and the command prefix to prepend to argv. If rt is
// not bundled, ok is false and the returned Runtime is rt itself.
func (r *Registry) ResolveBundled(rt Runtime) (parent Runtime, prefix []string, ok bool) {
	bundled, isBundled := rt.(BundledRuntime)
	if !isBundled {
		return rt, nil, false
	}
	parentRT, found := r.Lookup(bundled.ParentRuntime())
	if !found {
		return rt, nil, false
	}
	return parentRT, bundled.CommandPrefix(), true
}

// Names returns the canonical names of every successfully built runtime,
// sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.instances))
	for name := range r.instances {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Index returns the underlying ManifestIndex.
func (r *Registry) Index() *manifest.ManifestIndex { return r.index }
