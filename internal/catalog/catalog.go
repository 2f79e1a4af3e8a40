package catalog

import (
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config configures a Catalog.
type Config struct {
	// Root is the storage root holding artifacts.
	Root string
	// IndexPath is the snapshot file. Defaults to <Root>/models.index.
	IndexPath string
	Logger    zerolog.Logger
	// NewUID mints artifact ids; defaults to random UUIDs.
	NewUID func() string
}

// Catalog owns the in-memory index and serializes write-backs with scans.
// Reads may run concurrently with a scan's filesystem walk.
type Catalog struct {
	mu      sync.RWMutex
	root    string
	store   *Store
	scanner *Scanner
	records map[string]Record
	newUID  func() string
	log     zerolog.Logger
}

// New builds a catalog. Call Open to read the persisted snapshot.
func New(cfg Config) *Catalog {
	idx := cfg.IndexPath
	if idx == "" {
		idx = filepath.Join(cfg.Root, "models.index")
	}
	newUID := cfg.NewUID
	if newUID == nil {
		newUID = uuid.NewString
	}
	return &Catalog{
		root:    cfg.Root,
		store:   NewStore(idx),
		scanner: NewScanner(cfg.Root, filepath.Base(idx)),
		records: map[string]Record{},
		newUID:  newUID,
		log:     cfg.Logger,
	}
}

// Open loads the persisted snapshot into memory.
func (c *Catalog) Open() error {
	recs, err := c.store.Load()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.records = recs
	c.mu.Unlock()
	c.log.Debug().Int("artifacts", len(recs)).Str("index", c.store.Path()).Msg("catalog opened")
	return nil
}

// Root returns the storage root.
func (c *Catalog) Root() string { return c.root }

// IndexPath returns the snapshot location.
func (c *Catalog) IndexPath() string { return c.store.Path() }

// Rescan reconciles the persisted snapshot with the storage root and
// persists the result only when it changed. On error neither the snapshot
// nor the in-memory index is modified.
func (c *Catalog) Rescan() (map[string]Record, bool, error) {
	cands, err := c.scanner.Scan()
	if err != nil {
		return nil, false, &StorageError{Op: "scan", Path: c.root, Err: err}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	persisted, err := c.store.Load()
	if err != nil {
		return nil, false, err
	}
	next, changed := Reconcile(persisted, cands, c.newUID)
	if changed {
		if err := c.store.Save(next); err != nil {
			return nil, false, err
		}
	}
	c.records = next
	c.log.Debug().Int("artifacts", len(next)).Bool("changed", changed).Msg("catalog rescanned")
	return cloneRecords(next), changed, nil
}

// List returns a copy of the current index.
func (c *Catalog) List() map[string]Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneRecords(c.records)
}

// Len returns the number of indexed artifacts.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Get looks up a record by uid.
func (c *Catalog) Get(uid string) (Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.records[uid]
	return r, ok
}

// Path returns the absolute on-disk path of a record.
func (c *Catalog) Path(r Record) string { return filepath.Join(c.root, r.Locator) }

// SetLoader records the loader that handled uid and persists the index.
// It is a no-op when the record is gone or already carries that loader.
// On save failure the in-memory index is left unchanged.
func (c *Catalog) SetLoader(uid, loader string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.records[uid]
	if !ok || r.Loader == loader {
		return nil
	}
	next := cloneRecords(c.records)
	r.Loader = loader
	next[uid] = r
	if err := c.store.Save(next); err != nil {
		return err
	}
	c.records = next
	return nil
}
