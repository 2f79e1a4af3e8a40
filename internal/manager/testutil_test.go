package manager

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"imaged/internal/catalog"
	"imaged/internal/loader"
)

// fakePlugin is a directory loader whose behaviour tests control.
type fakePlugin struct {
	name     string
	match    string
	loadErr  error
	panicMsg string
	// block, when set, holds Load until closed.
	block   chan struct{}
	started chan struct{}
	loadCtx context.Context
	// onLoad runs at the start of every Load.
	onLoad func()
	run    func(ctx context.Context, req loader.Request) (*loader.Result, error)

	opened atomic.Int32
	closed atomic.Int32
}

func (f *fakePlugin) Name() string { return f.name }

func (f *fakePlugin) CanLoad(locator string) bool { return strings.Contains(locator, f.match) }

func (f *fakePlugin) Load(ctx context.Context, path string, dev loader.Device) (loader.Pipeline, error) {
	f.loadCtx = ctx
	if f.onLoad != nil {
		f.onLoad()
	}
	if f.started != nil {
		close(f.started)
		f.started = nil
	}
	if f.block != nil {
		<-f.block
	}
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	f.opened.Add(1)
	return &fakePipeline{f: f}, nil
}

func (f *fakePlugin) live() int32 { return f.opened.Load() - f.closed.Load() }

type fakePipeline struct{ f *fakePlugin }

func (p *fakePipeline) Loader() string { return p.f.name }

func (p *fakePipeline) Run(ctx context.Context, req loader.Request) (*loader.Result, error) {
	if p.f.run != nil {
		return p.f.run(ctx, req)
	}
	return &loader.Result{Images: [][]byte{[]byte("png:" + req.Prompt)}}, nil
}

func (p *fakePipeline) Close() error { p.f.closed.Add(1); return nil }

// countingBackend counts Reclaim calls.
type countingBackend struct {
	loader.InertBackend
	reclaims atomic.Int32
}

func (b *countingBackend) Reclaim() error { b.reclaims.Add(1); return nil }

type fixture struct {
	m       *Manager
	cat     *catalog.Catalog
	root    string
	pub     *MemoryPublisher
	backend *countingBackend
}

// newFixture builds a manager over a storage root holding the alpha, beta
// and gamma bundles and a weight file. Plugins are registered in order.
func newFixture(t *testing.T, mutate func(*ManagerConfig), plugins ...loader.Plugin) *fixture {
	t.Helper()
	root := t.TempDir()
	for _, d := range []string{"alpha-bundle", "beta-bundle", "gamma-bundle"} {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(root, d, catalog.ManifestName), []byte("{}"), 0o644); err != nil {
			t.Fatalf("write manifest: %v", err)
		}
	}
	cat := catalog.New(catalog.Config{Root: root})
	if err := cat.Open(); err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	if _, _, err := cat.Rescan(); err != nil {
		t.Fatalf("rescan: %v", err)
	}
	reg := loader.NewRegistry()
	for _, p := range plugins {
		if err := reg.Register(p); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	backend := &countingBackend{}
	pub := NewMemoryPublisher()
	cfg := ManagerConfig{
		Catalog:      cat,
		Dispatcher:   loader.NewDispatcher(reg, backend),
		Backend:      backend,
		Device:       loader.Device{Name: "cuda", DType: "float16"},
		DrainTimeout: 2 * time.Second,
		MaxWait:      2 * time.Second,
		Publisher:    pub,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return &fixture{m: NewWithConfig(cfg), cat: cat, root: root, pub: pub, backend: backend}
}

// uid returns the uid indexed for locator.
func (fx *fixture) uid(t *testing.T, locator string) string {
	t.Helper()
	for uid, r := range fx.cat.List() {
		if r.Locator == locator {
			return uid
		}
	}
	t.Fatalf("no record for %s", locator)
	return ""
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}

// waitFor polls cond until it holds or the test times out.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
