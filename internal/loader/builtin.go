package loader

import "context"

// Names of the built-in single-file loaders as persisted in the index.
const (
	LoaderSD15 = "SD15_BUILTIN"
	LoaderSDXL = "SDXL_BUILTIN"
)

// singleFileLoader opens a whole checkpoint as one component.
type singleFileLoader struct {
	name    string
	arch    string
	backend Backend
}

func newSingleFileLoader(arch string, b Backend) *singleFileLoader {
	name := LoaderSD15
	if arch == ArchSDXL {
		name = LoaderSDXL
	}
	return &singleFileLoader{name: name, arch: arch, backend: b}
}

func (l *singleFileLoader) Name() string { return l.name }

func (l *singleFileLoader) Load(ctx context.Context, path string, dev Device) (Pipeline, error) {
	c, err := l.backend.Open(ctx, ComponentSpec{
		Role:     "checkpoint",
		Path:     path,
		Arch:     l.arch,
		Device:   dev,
		Xformers: dev.Xformers && dev.Accelerated(),
	})
	if err != nil {
		return nil, err
	}
	return &stagedPipeline{loader: l.name, stages: []Component{c}}, nil
}
