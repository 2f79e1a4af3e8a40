package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"imaged/internal/common/fsutil"
	"imaged/pkg/types"
)

//go:embed index.schema.json
var indexSchemaJSON string

var indexSchema = jsonschema.MustCompileString("index.schema.json", indexSchemaJSON)

// Store persists the uid -> record mapping as a JSON snapshot. It holds no
// state besides the path; callers own the in-memory mapping.
type Store struct {
	path string
}

// NewStore returns a store backed by the snapshot file at path.
func NewStore(path string) *Store { return &Store{path: path} }

// Path returns the snapshot location.
func (s *Store) Path() string { return s.path }

// Load reads the snapshot. A missing file yields an empty mapping; anything
// unparsable or failing schema validation is a *StorageError.
func (s *Store) Load() (map[string]Record, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]Record{}, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "load", Path: s.path, Err: err}
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, &StorageError{Op: "load", Path: s.path, Err: fmt.Errorf("parse: %w", err)}
	}
	if err := indexSchema.Validate(raw); err != nil {
		return nil, &StorageError{Op: "load", Path: s.path, Err: fmt.Errorf("validate: %w", err)}
	}

	var idx types.Index
	if err := json.Unmarshal(b, &idx); err != nil {
		return nil, &StorageError{Op: "load", Path: s.path, Err: fmt.Errorf("decode: %w", err)}
	}
	out := make(map[string]Record, len(idx))
	for uid, a := range idx {
		r, err := recordFromArtifact(uid, a)
		if err != nil {
			return nil, &StorageError{Op: "load", Path: s.path, Err: err}
		}
		out[uid] = r
	}
	return out, nil
}

// Save atomically replaces the snapshot with records.
func (s *Store) Save(records map[string]Record) error {
	b, err := json.MarshalIndent(Index(records), "", "  ")
	if err != nil {
		return &StorageError{Op: "save", Path: s.path, Err: err}
	}
	b = append(b, '\n')
	if err := fsutil.WriteFileAtomic(s.path, b, 0o644); err != nil {
		return &StorageError{Op: "save", Path: s.path, Err: err}
	}
	return nil
}
