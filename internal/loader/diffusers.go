package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"imaged/internal/catalog"
	"imaged/internal/common/fsutil"
)

// PluginDiffusers is the registered name of the generic bundle loader.
const PluginDiffusers = "diffusers"

// diffusers loads any bundle that carries a manifest. It accepts every
// locator, so it belongs last in the plugin order.
type diffusers struct{ backend Backend }

func newDiffusers(e Env) *diffusers { return &diffusers{backend: e.Backend} }

func (d *diffusers) Name() string { return PluginDiffusers }

func (d *diffusers) CanLoad(string) bool { return true }

func (d *diffusers) Load(ctx context.Context, path string, dev Device) (Pipeline, error) {
	class, comps, err := readManifest(path)
	if err != nil {
		return nil, err
	}
	specs := make([]ComponentSpec, 0, len(comps))
	for _, c := range comps {
		dir := filepath.Join(path, c)
		if !fsutil.IsDir(dir) {
			return nil, fmt.Errorf("component %s listed in %s but missing", c, catalog.ManifestName)
		}
		specs = append(specs, ComponentSpec{
			Role:     c,
			Path:     dir,
			Arch:     class,
			Device:   dev,
			Xformers: dev.Xformers && dev.Accelerated(),
		})
	}
	stages, err := openAll(ctx, d.backend, specs)
	if err != nil {
		return nil, err
	}
	return &stagedPipeline{loader: PluginDiffusers, stages: stages}, nil
}

// readManifest returns the pipeline class and the sorted component names
// from a bundle manifest. Components are the non-underscore keys whose
// value is a [library, class] pair.
func readManifest(dir string) (string, []string, error) {
	b, err := os.ReadFile(filepath.Join(dir, catalog.ManifestName))
	if err != nil {
		return "", nil, err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return "", nil, fmt.Errorf("decode %s: %w", catalog.ManifestName, err)
	}
	var class string
	if v, ok := raw["_class_name"]; ok {
		if err := json.Unmarshal(v, &class); err != nil {
			return "", nil, fmt.Errorf("decode _class_name: %w", err)
		}
	}
	if class == "" {
		return "", nil, fmt.Errorf("%s has no _class_name", catalog.ManifestName)
	}
	var comps []string
	for k, v := range raw {
		if strings.HasPrefix(k, "_") {
			continue
		}
		var pair []*string
		if json.Unmarshal(v, &pair) != nil || len(pair) != 2 || pair[0] == nil || pair[1] == nil {
			continue
		}
		comps = append(comps, k)
	}
	if len(comps) == 0 {
		return "", nil, fmt.Errorf("%s lists no components", catalog.ManifestName)
	}
	sort.Strings(comps)
	return class, comps, nil
}
