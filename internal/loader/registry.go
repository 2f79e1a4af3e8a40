package loader

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Loader turns an artifact on disk into a pipeline.
type Loader interface {
	Name() string
	Load(ctx context.Context, path string, dev Device) (Pipeline, error)
}

// Plugin is a loader for directory bundles that decides by locator.
type Plugin interface {
	Loader
	CanLoad(locator string) bool
}

// Registry holds plugins in registration order.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry { return &Registry{} }

// Register appends p. Names must be unique.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := p.Name()
	for _, have := range r.plugins {
		if have.Name() == name {
			return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
		}
	}
	r.plugins = append(r.plugins, p)
	return nil
}

// Get retrieves a plugin by name.
func (r *Registry) Get(name string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.plugins {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// Match returns the first plugin accepting locator.
func (r *Registry) Match(locator string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.plugins {
		if p.CanLoad(locator) {
			return p, true
		}
	}
	return nil, false
}

// Names lists plugin names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.plugins))
	for i, p := range r.plugins {
		out[i] = p.Name()
	}
	return out
}

// Env carries what plugin factories need.
type Env struct {
	Backend       Backend
	TranslatorDir string
	// OpenTranslator defaults to OpenTranslator.
	OpenTranslator func(dir string) (Translator, error)
}

func (e Env) withDefaults() Env {
	if e.Backend == nil {
		e.Backend = InertBackend{}
	}
	if e.OpenTranslator == nil {
		e.OpenTranslator = OpenTranslator
	}
	return e
}

var factories = map[string]func(Env) Plugin{
	PluginKandinsky22: func(e Env) Plugin { return newKandinsky22(e) },
	PluginDiffusers:   func(e Env) Plugin { return newDiffusers(e) },
}

// Available lists the plugin names that can be configured.
func Available() []string {
	out := make([]string, 0, len(factories))
	for n := range factories {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// BuildRegistry registers the named plugins in order.
func BuildRegistry(names []string, env Env) (*Registry, error) {
	env = env.withDefaults()
	r := NewRegistry()
	for _, n := range names {
		f, ok := factories[n]
		if !ok {
			return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownPlugin, n, Available())
		}
		if err := r.Register(f(env)); err != nil {
			return nil, err
		}
	}
	return r, nil
}
