package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Request is one generation call against a loaded pipeline.
type Request struct {
	Prompt         string
	NegativePrompt string
	Steps          int
	Guidance       float64
	Seed           *int64
	Width          int
	Height         int
	Count          int

	// Conditioning is the output of the previous stage in a multi-stage
	// pipeline; empty for the first stage.
	Conditioning []byte
}

// Result holds encoded images, or conditioning for the next stage.
type Result struct {
	Images       [][]byte
	Conditioning []byte
}

// Pipeline is the opaque handle produced by a loader.
type Pipeline interface {
	Loader() string
	Run(ctx context.Context, req Request) (*Result, error)
	Close() error
}

// ComponentSpec describes one component to open on a backend.
type ComponentSpec struct {
	Role     string // e.g. "unet", "prior", "decoder", "translator"
	Path     string
	Arch     string
	Device   Device
	Xformers bool
}

// Component is a backend-owned unit of weights.
type Component interface {
	Run(ctx context.Context, req Request) (*Result, error)
	Close() error
}

// Backend is the inference runtime that materialises components.
type Backend interface {
	Open(ctx context.Context, spec ComponentSpec) (Component, error)
	// Reclaim returns cached device memory after an unload.
	Reclaim() error
}

// InertBackend opens placeholder components that refuse to run. It is the
// default when no inference runtime is linked in.
type InertBackend struct{}

func (InertBackend) Open(ctx context.Context, spec ComponentSpec) (Component, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(spec.Path); err != nil {
		return nil, fmt.Errorf("open %s: %w", spec.Role, err)
	}
	return inertComponent{spec: spec}, nil
}

func (InertBackend) Reclaim() error { return nil }

type inertComponent struct{ spec ComponentSpec }

func (c inertComponent) Run(ctx context.Context, _ Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, ErrDependencyUnavailable(fmt.Sprintf("no inference backend for %s (%s)", c.spec.Role, c.spec.Arch))
}

func (inertComponent) Close() error { return nil }

// stagedPipeline runs its stages in order, feeding each stage the
// conditioning produced by the previous one.
type stagedPipeline struct {
	loader  string
	stages  []Component
	prepare func(ctx context.Context, req Request) (Request, error)
	closers []func() error
}

func (p *stagedPipeline) Loader() string { return p.loader }

func (p *stagedPipeline) Run(ctx context.Context, req Request) (*Result, error) {
	if p.prepare != nil {
		var err error
		if req, err = p.prepare(ctx, req); err != nil {
			return nil, err
		}
	}
	var res *Result
	for _, st := range p.stages {
		out, err := st.Run(ctx, req)
		if err != nil {
			return nil, err
		}
		if out == nil {
			return nil, errors.New("stage returned no result")
		}
		res = out
		req.Conditioning = out.Conditioning
	}
	if res == nil {
		return nil, errors.New("pipeline has no stages")
	}
	return res, nil
}

func (p *stagedPipeline) Close() error {
	var errs []error
	for _, c := range p.stages {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, f := range p.closers {
		if err := f(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// openAll opens specs in order. When any open fails, components opened so
// far are closed and the error is returned.
func openAll(ctx context.Context, b Backend, specs []ComponentSpec) ([]Component, error) {
	out := make([]Component, 0, len(specs))
	for _, s := range specs {
		c, err := b.Open(ctx, s)
		if err != nil {
			closeAll(out)
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func closeAll(cs []Component) {
	for _, c := range cs {
		_ = c.Close()
	}
}
