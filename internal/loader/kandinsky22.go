package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"imaged/internal/common/fsutil"
)

// PluginKandinsky22 is the registered name of the Kandinsky 2.2 loader.
const PluginKandinsky22 = "kandinsky22"

// kandinsky22 loads a prior/decoder bundle plus a prompt translator.
type kandinsky22 struct {
	backend       Backend
	translatorDir string
	openTr        func(string) (Translator, error)
}

func newKandinsky22(e Env) *kandinsky22 {
	return &kandinsky22{backend: e.Backend, translatorDir: e.TranslatorDir, openTr: e.OpenTranslator}
}

func (k *kandinsky22) Name() string { return PluginKandinsky22 }

func (k *kandinsky22) CanLoad(locator string) bool {
	return strings.Contains(strings.ToLower(locator), "kandinsky")
}

func (k *kandinsky22) Load(ctx context.Context, path string, dev Device) (Pipeline, error) {
	if !fsutil.IsDir(path) {
		return nil, fmt.Errorf("expected a model directory: %s", path)
	}
	prior := filepath.Join(path, "prior")
	decoder := filepath.Join(path, "decoder")
	for _, d := range []string{prior, decoder} {
		if !fsutil.IsDir(d) {
			return nil, fmt.Errorf("missing %s directory: %s", filepath.Base(d), d)
		}
	}
	if k.translatorDir == "" || !fsutil.IsDir(k.translatorDir) {
		return nil, fmt.Errorf("translator directory not found: %s", k.translatorDir)
	}

	stages, err := openAll(ctx, k.backend, []ComponentSpec{
		{Role: "prior", Path: prior, Arch: "kandinsky22-prior", Device: dev},
		{Role: "decoder", Path: decoder, Arch: "kandinsky22-decoder", Device: dev},
	})
	if err != nil {
		return nil, err
	}
	tr, err := k.openTr(k.translatorDir)
	if err != nil {
		closeAll(stages)
		return nil, fmt.Errorf("open translator: %w", err)
	}
	return &stagedPipeline{
		loader: PluginKandinsky22,
		stages: stages,
		prepare: func(ctx context.Context, req Request) (Request, error) {
			return translatePrompts(ctx, tr, req)
		},
		closers: []func() error{tr.Close},
	}, nil
}
