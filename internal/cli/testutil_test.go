package cli

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"imaged/internal/config"
)

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

// startDaemon serves a freshly built daemon over httptest on a storage root
// holding one sd15 checkpoint.
func startDaemon(t *testing.T, mutate func(*config.Config)) (*daemon, *httptest.Server) {
	t.Helper()
	old := accelerator
	accelerator = func() bool { return false }
	t.Cleanup(func() { accelerator = old })

	dir := t.TempDir()
	writeCheckpoint(t, filepath.Join(dir, "sd15.safetensors"), "model.diffusion_model.input_blocks.0.0.weight")
	cfg := config.Config{ModelsDir: dir}
	if mutate != nil {
		mutate(&cfg)
	}
	cfg.ApplyDefaults()
	d, err := buildDaemon(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("build daemon: %v", err)
	}
	srv := httptest.NewServer(d.handler)
	t.Cleanup(func() {
		srv.Close()
		_ = d.close(context.Background())
	})
	return d, srv
}

// run executes the command tree against server and returns stdout.
func run(t *testing.T, server string, args ...string) (string, error) {
	t.Helper()
	var out, errb bytes.Buffer
	opts := &Options{Server: server, Stdout: &out, Stderr: &errb}
	root := buildRootCmdWith(opts)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}
