package catalog

import (
	"fmt"
	"os"
	"path/filepath"
)

// fataler is satisfied by *testing.T and *rapid.T.
type fataler interface {
	Helper()
	Fatalf(format string, args ...any)
}

// writeFile creates root/name with the given size in bytes.
func writeFile(t fataler, root, name string, size int) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(root, name), make([]byte, size), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

// mkBundle creates root/name containing a manifest.
func mkBundle(t fataler, root, name string) {
	t.Helper()
	d := filepath.Join(root, name)
	if err := os.MkdirAll(d, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", d, err)
	}
	writeFile(t, d, ManifestName, 2)
}

// seqUID returns a deterministic uid generator.
func seqUID(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}
