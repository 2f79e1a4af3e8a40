package manager

import (
	"context"
	"time"
)

const drainPoll = 10 * time.Millisecond

// Unload releases the loaded model, if any. It always waits for an
// in-progress transition regardless of the busy policy.
func (m *Manager) Unload(ctx context.Context) error {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer m.sem.Release(1)
	m.unloadLocked("request")
	return nil
}

// unloadLocked requires the transition semaphore.
// - Marks the slot draining so new leases are rejected.
// - Waits up to drainTimeout for outstanding leases.
// - Closes the pipeline and asks the backend to reclaim device memory.
func (m *Manager) unloadLocked(reason string) {
	m.mu.Lock()
	h, uid := m.handle, m.cur
	if h == nil {
		m.mu.Unlock()
		return
	}
	m.draining = true
	m.mu.Unlock()
	m.publish(EventUnloadStart, uid, map[string]any{"reason": reason})

	m.drain(uid)

	m.mu.Lock()
	m.handle = nil
	m.cur = ""
	m.loaderName = ""
	m.state = StateUnloaded
	m.draining = false
	m.leases = 0
	m.epoch++
	m.mu.Unlock()
	setSlotState(StateUnloaded)
	leasesGauge.Set(0)

	if err := h.Close(); err != nil {
		m.log.Warn().Err(err).Str("uid", uid).Msg("close pipeline")
	}
	if err := m.backend.Reclaim(); err != nil {
		m.log.Warn().Err(err).Msg("reclaim device memory")
	}
	m.log.Info().Str("uid", uid).Str("reason", reason).Msg("model unloaded")
	m.publish(EventUnloadDone, uid, nil)
}

// drain waits for outstanding leases, bounded by drainTimeout when set.
func (m *Manager) drain(uid string) {
	var deadline time.Time
	if m.drainTimeout > 0 {
		deadline = time.Now().Add(m.drainTimeout)
	}
	for {
		m.mu.RLock()
		n := m.leases
		m.mu.RUnlock()
		if n == 0 {
			return
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			m.log.Warn().Str("uid", uid).Int("inflight", n).Msg("drain timed out")
			m.publish(EventUnloadTimeout, uid, map[string]any{"inflight": n})
			return
		}
		time.Sleep(drainPoll)
	}
}
