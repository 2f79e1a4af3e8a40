package manager

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"imaged/internal/catalog"
	"imaged/internal/loader"
)

// Manager is the active slot: at most one loaded pipeline at a time.
type Manager struct {
	mu         sync.RWMutex
	state      State
	cur        string // loaded uid, "" when empty
	pending    string // uid being loaded
	loaderName string
	handle     loader.Pipeline
	lastErr    string
	loadsTotal uint64

	// leases on the current handle; epoch changes whenever the handle does
	leases   int
	epoch    uint64
	draining bool

	sem   *semaphore.Weighted // transitions
	genCh chan struct{}       // size 1: single in-flight generation

	catalog      *catalog.Catalog
	dispatcher   *loader.Dispatcher
	backend      loader.Backend
	device       loader.Device
	busyPolicy   string
	drainTimeout time.Duration
	maxWait      time.Duration
	gen          GenerationDefaults
	log          zerolog.Logger
	publisher    EventPublisher
	startTime    time.Time
}

// Current returns the loaded uid, or "" when the slot is empty.
func (m *Manager) Current() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cur
}

// Ready reports whether a pipeline is loaded.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.handle != nil && !m.draining
}

// ListArtifacts returns the current catalog.
func (m *Manager) ListArtifacts() map[string]catalog.Record {
	return m.catalog.List()
}

// Rescan reconciles the catalog with the storage root.
func (m *Manager) Rescan(ctx context.Context) (map[string]catalog.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	recs, changed, err := m.catalog.Rescan()
	if err != nil {
		rescansTotal.WithLabelValues("error").Inc()
		m.log.Error().Err(err).Msg("rescan failed")
		return nil, err
	}
	rescansTotal.WithLabelValues("ok").Inc()
	artifactsGauge.Set(float64(len(recs)))
	m.log.Info().Int("artifacts", len(recs)).Bool("changed", changed).Dur("took", time.Since(start)).Msg("rescan done")
	m.publish(EventRescanDone, "", map[string]any{"artifacts": len(recs), "changed": changed})
	return recs, nil
}

// Plugins lists the configured directory loaders in match order.
func (m *Manager) Plugins() []string { return m.dispatcher.Registry().Names() }

// Device returns the placement used for loads.
func (m *Manager) Device() loader.Device { return m.device }

// acquire takes the transition semaphore according to the busy policy.
func (m *Manager) acquire(ctx context.Context, op string) error {
	if m.busyPolicy == PolicyFail {
		if !m.sem.TryAcquire(1) {
			return tooBusyError{reason: op + ": another transition is in progress"}
		}
		return nil
	}
	return m.sem.Acquire(ctx, 1)
}
