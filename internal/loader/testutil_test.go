package loader

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// writeSafetensors writes a header-only safetensors file listing names.
func writeSafetensors(t *testing.T, path string, names ...string) {
	t.Helper()
	hdr := map[string]any{"__metadata__": map[string]string{"format": "pt"}}
	for _, n := range names {
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

func mkdirs(t *testing.T, root string, dirs ...string) {
	t.Helper()
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			t.Fatal(err)
		}
	}
}

// recordingBackend tracks opened and closed components.
type recordingBackend struct {
	mu       sync.Mutex
	failRole string
	opened   []string
	closed   []string
	reclaims int
}

func (b *recordingBackend) Open(_ context.Context, spec ComponentSpec) (Component, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if spec.Role == b.failRole {
		return nil, os.ErrPermission
	}
	b.opened = append(b.opened, spec.Role)
	return &recordingComponent{b: b, spec: spec}, nil
}

func (b *recordingBackend) Reclaim() error {
	b.mu.Lock()
	b.reclaims++
	b.mu.Unlock()
	return nil
}

func (b *recordingBackend) closedRoles() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.closed...)
}

type recordingComponent struct {
	b    *recordingBackend
	spec ComponentSpec
}

func (c *recordingComponent) Run(_ context.Context, req Request) (*Result, error) {
	// echo the prompt so tests can observe translation and staging
	return &Result{
		Images:       [][]byte{[]byte(c.spec.Role + ":" + req.Prompt)},
		Conditioning: append(append([]byte(nil), req.Conditioning...), []byte(c.spec.Role+";")...),
	}, nil
}

func (c *recordingComponent) Close() error {
	c.b.mu.Lock()
	c.b.closed = append(c.b.closed, c.spec.Role)
	c.b.mu.Unlock()
	return nil
}

// fakeTranslator prefixes "en:" to its input.
type fakeTranslator struct {
	closed bool
	calls  int
}

func (f *fakeTranslator) Translate(_ context.Context, s string) (string, error) {
	f.calls++
	return "en:" + s, nil
}

func (f *fakeTranslator) Close() error { f.closed = true; return nil }
