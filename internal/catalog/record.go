package catalog

import (
	"fmt"

	"imaged/pkg/types"
)

// Kind distinguishes single weight files from multi-component bundles.
type Kind string

const (
	KindFile      Kind = types.ArtifactTypeFile
	KindDirectory Kind = types.ArtifactTypeDirectory
)

// Record is one indexed artifact. Identity is the (Kind, Locator) pair at
// discovery time; UID is minted once and never reused.
type Record struct {
	UID       string
	Kind      Kind
	Locator   string
	SizeBytes int64
	// Loader is the identifier of the loader that last loaded this artifact;
	// empty means none yet.
	Loader string
}

func (r Record) key() string { return string(r.Kind) + "\x00" + r.Locator }

// Artifact converts the record to its wire form.
func (r Record) Artifact() types.Artifact {
	a := types.Artifact{Type: string(r.Kind), Filesize: r.SizeBytes}
	if r.Kind == KindDirectory {
		a.Dirname = r.Locator
	} else {
		a.Filename = r.Locator
	}
	if r.Loader != "" {
		l := r.Loader
		a.Loader = &l
	}
	return a
}

func recordFromArtifact(uid string, a types.Artifact) (Record, error) {
	r := Record{UID: uid, Kind: Kind(a.Type), SizeBytes: a.Filesize}
	switch r.Kind {
	case KindFile:
		r.Locator = a.Filename
	case KindDirectory:
		r.Locator = a.Dirname
	default:
		return Record{}, fmt.Errorf("record %s: unknown type %q", uid, a.Type)
	}
	if r.Locator == "" {
		return Record{}, fmt.Errorf("record %s: empty locator", uid)
	}
	if a.Loader != nil {
		r.Loader = *a.Loader
	}
	return r, nil
}

// Index converts a record map to the wire snapshot.
func Index(records map[string]Record) types.Index {
	out := make(types.Index, len(records))
	for uid, r := range records {
		out[uid] = r.Artifact()
	}
	return out
}

func cloneRecords(in map[string]Record) map[string]Record {
	out := make(map[string]Record, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
