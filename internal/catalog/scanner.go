package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// weightExt is the recognized weight-container extension.
	weightExt = ".safetensors"
	// ManifestName marks a directory as a multi-component bundle.
	ManifestName = "model_index.json"
)

// Candidate is an on-disk artifact found by a scan.
type Candidate struct {
	Kind    Kind
	Locator string
	Size    int64
}

func (c Candidate) key() string { return string(c.Kind) + "\x00" + c.Locator }

// Scanner classifies the immediate entries of the storage root.
type Scanner struct {
	root   string
	ignore map[string]bool
}

// NewScanner returns a scanner for root. Names in ignore (e.g. the index
// file) are skipped.
func NewScanner(root string, ignore ...string) *Scanner {
	ig := make(map[string]bool, len(ignore))
	for _, n := range ignore {
		ig[n] = true
	}
	return &Scanner{root: root, ignore: ig}
}

// Root returns the storage root.
func (s *Scanner) Root() string { return s.root }

// Scan lists artifact candidates sorted by locator.
func (s *Scanner) Scan() ([]Candidate, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var out []Candidate
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") || s.ignore[name] {
			continue
		}
		full := filepath.Join(s.root, name)
		fi, err := os.Stat(full) // follow symlinks
		if err != nil {
			continue
		}
		switch {
		case fi.Mode().IsRegular() && isWeightFile(name):
			out = append(out, Candidate{Kind: KindFile, Locator: name, Size: fi.Size()})
		case fi.IsDir() && isBundleDir(full):
			out = append(out, Candidate{Kind: KindDirectory, Locator: name})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Locator < out[j].Locator })
	return out, nil
}

func isWeightFile(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), weightExt)
}

// isBundleDir reports whether dir holds a manifest or a weight file at its
// top level, or a manifest one level down (staged bundles such as
// prior/ + decoder/).
func isBundleDir(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	var subdirs []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			subdirs = append(subdirs, name)
			continue
		}
		if name == ManifestName || isWeightFile(name) {
			return true
		}
	}
	for _, sd := range subdirs {
		if fi, err := os.Stat(filepath.Join(dir, sd, ManifestName)); err == nil && fi.Mode().IsRegular() {
			return true
		}
	}
	return false
}

// Reconcile merges scan candidates into existing records. Records matched by
// (kind, locator) are kept as is; unmatched candidates get a fresh uid from
// newUID; records with no candidate are dropped, as are all but the lowest
// uid of records sharing a (kind, locator). changed reports whether the
// result differs from existing.
func Reconcile(existing map[string]Record, cands []Candidate, newUID func() string) (map[string]Record, bool) {
	present := make(map[string]bool, len(cands))
	for _, c := range cands {
		present[c.key()] = true
	}

	next := make(map[string]Record, len(cands))
	known := make(map[string]bool, len(existing))
	changed := false
	// Lowest uid wins when a snapshot names one artifact twice.
	uids := make([]string, 0, len(existing))
	for uid := range existing {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	for _, uid := range uids {
		r := existing[uid]
		if !present[r.key()] || known[r.key()] {
			changed = true
			continue
		}
		next[uid] = r
		known[r.key()] = true
	}
	// uids of pruned records are never handed out again
	taken := func(id string) bool {
		_, inNext := next[id]
		_, inOld := existing[id]
		return inNext || inOld
	}
	for _, c := range cands {
		if known[c.key()] {
			continue
		}
		uid := newUID()
		for taken(uid) {
			uid = newUID()
		}
		next[uid] = Record{UID: uid, Kind: c.Kind, Locator: c.Locator, SizeBytes: c.Size}
		known[c.key()] = true
		changed = true
	}
	return next, changed
}
