package manager

import (
	"context"
	"sync"

	"imaged/internal/loader"
)

// Lease pins the loaded pipeline for one inference. Unload waits for
// outstanding leases (bounded by the drain timeout). Release is idempotent.
type Lease struct {
	m      *Manager
	epoch  uint64
	uid    string
	loader string
	p      loader.Pipeline
	once   sync.Once
}

// Acquire leases the loaded pipeline. It fails with NotLoaded when the slot
// is empty and with Busy while the slot is loading or draining.
func (m *Manager) Acquire() (*Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.draining {
		return nil, tooBusyError{reason: "model is unloading"}
	}
	if m.state == StateLoading {
		return nil, tooBusyError{reason: "model is loading"}
	}
	if m.handle == nil {
		return nil, ErrNotLoaded
	}
	m.leases++
	leasesGauge.Set(float64(m.leases))
	return &Lease{m: m, epoch: m.epoch, uid: m.cur, loader: m.loaderName, p: m.handle}, nil
}

// UID returns the leased model uid.
func (l *Lease) UID() string { return l.uid }

// Loader returns the name of the loader that produced the pipeline.
func (l *Lease) Loader() string { return l.loader }

// Run executes req on the leased pipeline.
func (l *Lease) Run(ctx context.Context, req loader.Request) (*loader.Result, error) {
	return l.p.Run(ctx, req)
}

// Release returns the lease.
func (l *Lease) Release() {
	l.once.Do(func() {
		m := l.m
		m.mu.Lock()
		// a lease that outlived a timed-out drain belongs to a retired epoch
		if l.epoch == m.epoch && m.leases > 0 {
			m.leases--
			leasesGauge.Set(float64(m.leases))
		}
		m.mu.Unlock()
	})
}

// Inflight returns the number of outstanding leases.
func (m *Manager) Inflight() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.leases
}
