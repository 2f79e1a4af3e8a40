package loader

import (
	"fmt"

	"imaged/internal/catalog"
)

// Dispatcher picks the loader for a catalog record.
type Dispatcher struct {
	reg     *Registry
	backend Backend
}

// NewDispatcher builds a dispatcher over reg. A nil backend means
// InertBackend.
func NewDispatcher(reg *Registry, b Backend) *Dispatcher {
	if reg == nil {
		reg = NewRegistry()
	}
	if b == nil {
		b = InertBackend{}
	}
	return &Dispatcher{reg: reg, backend: b}
}

// Registry returns the plugin registry.
func (d *Dispatcher) Registry() *Registry { return d.reg }

// Resolve chooses a loader for rec located at path. Single files are
// classified from their safetensors header; directories go to the first
// accepting plugin. Failures wrap ErrNoLoader.
func (d *Dispatcher) Resolve(rec catalog.Record, path string) (Loader, error) {
	switch rec.Kind {
	case catalog.KindFile:
		names, err := readTensorNames(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrNoLoader, rec.Locator, err)
		}
		return newSingleFileLoader(detectArch(names), d.backend), nil
	case catalog.KindDirectory:
		if p, ok := d.reg.Match(rec.Locator); ok {
			return p, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrNoLoader, rec.Locator)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrNoLoader, rec.Kind)
	}
}
