package e2e

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"imaged/internal/catalog"
	"imaged/internal/httpapi"
	"imaged/internal/loader"
	"imaged/internal/manager"
)

// stack is the full daemon assembled in-process.
type stack struct {
	root    string
	catalog *catalog.Catalog
	mgr     *manager.Manager
	backend *fakeBackend
	events  *manager.MemoryPublisher
	srv     *httptest.Server
}

// newStack builds catalog, loaders, manager and mux over root. mutate may
// adjust the manager config before construction.
func newStack(t *testing.T, root string, mutate func(*manager.ManagerConfig)) *stack {
	t.Helper()
	fb := &fakeBackend{}
	reg, err := loader.BuildRegistry([]string{loader.PluginKandinsky22, loader.PluginDiffusers}, loader.Env{
		Backend:        fb,
		TranslatorDir:  t.TempDir(),
		OpenTranslator: func(string) (loader.Translator, error) { return tagTranslator{}, nil },
	})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	var n atomic.Int32
	cat := catalog.New(catalog.Config{
		Root:   root,
		NewUID: func() string { return fmt.Sprintf("uid-%02d", n.Add(1)) },
	})
	if err := cat.Open(); err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	pub := manager.NewMemoryPublisher()
	cfg := manager.ManagerConfig{
		Catalog:    cat,
		Dispatcher: loader.NewDispatcher(reg, fb),
		Backend:    fb,
		Device:     loader.Device{Name: "cuda", DType: "float16", Xformers: true},
		Publisher:  pub,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	mgr := manager.NewWithConfig(cfg)
	srv := httptest.NewServer(httpapi.NewMux(mgr))
	t.Cleanup(srv.Close)
	return &stack{root: root, catalog: cat, mgr: mgr, backend: fb, events: pub, srv: srv}
}

// uidFor returns the uid indexed for locator.
func (s *stack) uidFor(t *testing.T, locator string) string {
	t.Helper()
	for uid, r := range s.catalog.List() {
		if r.Locator == locator {
			return uid
		}
	}
	t.Fatalf("no record for %s", locator)
	return ""
}

// fakeBackend opens components that append their role to the conditioning
// and echo the prompt as image bytes. A gate set by block holds Run until
// closed.
type fakeBackend struct {
	mu       sync.Mutex
	gate     chan struct{}
	opened   []loader.ComponentSpec
	running  atomic.Int32
	live     atomic.Int32
	reclaims atomic.Int32
}

func (b *fakeBackend) Open(_ context.Context, spec loader.ComponentSpec) (loader.Component, error) {
	if _, err := os.Stat(spec.Path); err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.opened = append(b.opened, spec)
	b.mu.Unlock()
	b.live.Add(1)
	return &fakeComponent{b: b, spec: spec}, nil
}

func (b *fakeBackend) Reclaim() error { b.reclaims.Add(1); return nil }

func (b *fakeBackend) block() chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gate = make(chan struct{})
	return b.gate
}

func (b *fakeBackend) specs() []loader.ComponentSpec {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]loader.ComponentSpec(nil), b.opened...)
}

type fakeComponent struct {
	b    *fakeBackend
	spec loader.ComponentSpec
}

func (c *fakeComponent) Run(ctx context.Context, req loader.Request) (*loader.Result, error) {
	c.b.running.Add(1)
	defer c.b.running.Add(-1)
	c.b.mu.Lock()
	gate := c.b.gate
	c.b.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	n := req.Count
	if n == 0 {
		n = 1
	}
	imgs := make([][]byte, n)
	for i := range imgs {
		imgs[i] = []byte(req.Prompt + "|" + string(req.Conditioning))
	}
	cond := append(append([]byte(nil), req.Conditioning...), c.spec.Role+";"...)
	return &loader.Result{Images: imgs, Conditioning: cond}, nil
}

func (c *fakeComponent) Close() error { c.b.live.Add(-1); return nil }

type tagTranslator struct{}

func (tagTranslator) Translate(_ context.Context, s string) (string, error) {
	return "en:" + s, nil
}

func (tagTranslator) Close() error { return nil }

func writeCheckpoint(t *testing.T, path string, tensors ...string) {
	t.Helper()
	hdr := map[string]any{}
	for _, n := range tensors {
		hdr[n] = map[string]any{"dtype": "F16", "shape": []int{1}, "data_offsets": []int{0, 2}}
	}
	js, err := json.Marshal(hdr)
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 8, 8+len(js)+2)
	binary.LittleEndian.PutUint64(buf, uint64(len(js)))
	buf = append(buf, js...)
	buf = append(buf, 0, 0)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}
}

func writeManifest(t *testing.T, dir, class string, components ...string) {
	t.Helper()
	m := map[string]any{"_class_name": class, "_diffusers_version": "0.21.0"}
	for _, c := range components {
		m[c] = []string{"diffusers", "Component"}
		if err := os.MkdirAll(filepath.Join(dir, c), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	b, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, catalog.ManifestName), b, 0o644); err != nil {
		t.Fatal(err)
	}
}

// populate lays out an sd15 checkpoint, an sdxl checkpoint, a staged
// kandinsky bundle and a generic bundle under root.
func populate(t *testing.T, root string) {
	t.Helper()
	writeCheckpoint(t, filepath.Join(root, "sd15.safetensors"), "model.diffusion_model.input_blocks.0.0.weight")
	writeCheckpoint(t, filepath.Join(root, "sdxl.safetensors"), "conditioner.embedders.1.model.ln_final.weight")
	writeManifest(t, filepath.Join(root, "kandinsky-2-2", "prior"), "KandinskyV22PriorPipeline", "prior", "image_encoder")
	writeManifest(t, filepath.Join(root, "kandinsky-2-2", "decoder"), "KandinskyV22Pipeline", "unet", "movq")
	writeManifest(t, filepath.Join(root, "sd-turbo"), "StableDiffusionPipeline", "unet", "vae", "text_encoder")
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
