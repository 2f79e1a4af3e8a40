package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"imaged/internal/loader"
)

// Load makes uid the active model. An unknown uid or an artifact no loader
// accepts is rejected before the current model is touched. Otherwise the
// current model is unloaded first and, if the loader then fails, the slot is
// left empty.
func (m *Manager) Load(ctx context.Context, uid string) error {
	if err := m.acquire(ctx, "load"); err != nil {
		return err
	}
	defer m.sem.Release(1)
	return m.loadLocked(ctx, uid)
}

// Reload unloads and loads the current model again. Any failure, including
// the artifact having been pruned or no longer matching a loader, leaves the
// slot empty and is reported as a load failure.
func (m *Manager) Reload(ctx context.Context) (string, error) {
	if err := m.acquire(ctx, "reload"); err != nil {
		return "", err
	}
	defer m.sem.Release(1)
	m.mu.Lock()
	uid, name := m.cur, m.loaderName
	m.mu.Unlock()
	if uid == "" {
		return "", ErrNotLoaded
	}
	err := m.loadLocked(ctx, uid)
	if err == nil {
		return uid, nil
	}
	if IsLoadFailure(err) {
		return "", err
	}
	// loadLocked rejected the uid before touching the slot.
	m.unloadLocked("reload")
	m.mu.Lock()
	m.lastErr = err.Error()
	m.mu.Unlock()
	m.log.Error().Err(err).Str("uid", uid).Msg("reload failed")
	m.publish(EventLoadFailed, uid, map[string]any{"loader": name, "error": err.Error()})
	return "", loadFailureError{uid: uid, loader: name, err: err}
}

// loadLocked requires the transition semaphore.
func (m *Manager) loadLocked(ctx context.Context, uid string) error {
	rec, ok := m.catalog.Get(uid)
	if !ok {
		loadsCounter.WithLabelValues("not_found").Inc()
		return ErrNotFound(uid)
	}
	path := m.catalog.Path(rec)
	ld, err := m.dispatcher.Resolve(rec, path)
	if err != nil {
		loadsCounter.WithLabelValues("no_loader").Inc()
		m.log.Warn().Err(err).Str("uid", uid).Str("locator", rec.Locator).Msg("no loader")
		return loaderNotFoundError{uid: uid, err: err}
	}

	m.unloadLocked("replace")

	m.mu.Lock()
	m.state = StateLoading
	m.pending = uid
	m.mu.Unlock()
	setSlotState(StateLoading)
	m.publish(EventLoadStart, uid, map[string]any{"loader": ld.Name(), "locator": rec.Locator})
	m.log.Info().Str("uid", uid).Str("loader", ld.Name()).Str("device", m.device.String()).Msg("loading model")

	start := time.Now()
	p, err := m.invoke(context.WithoutCancel(ctx), ld, path)
	took := time.Since(start)
	loadDuration.Observe(took.Seconds())
	if err != nil {
		m.mu.Lock()
		m.state = StateUnloaded
		m.pending = ""
		m.lastErr = err.Error()
		m.mu.Unlock()
		setSlotState(StateUnloaded)
		loadsCounter.WithLabelValues("failed").Inc()
		m.log.Error().Err(err).Str("uid", uid).Str("loader", ld.Name()).Msg("load failed")
		m.publish(EventLoadFailed, uid, map[string]any{"loader": ld.Name(), "error": err.Error()})
		return loadFailureError{uid: uid, loader: ld.Name(), err: err}
	}

	m.mu.Lock()
	m.handle = p
	m.cur = uid
	m.loaderName = ld.Name()
	m.state = StateLoaded
	m.pending = ""
	m.lastErr = ""
	m.loadsTotal++
	m.epoch++
	m.mu.Unlock()
	setSlotState(StateLoaded)
	loadsCounter.WithLabelValues("ok").Inc()

	if err := m.catalog.SetLoader(uid, ld.Name()); err != nil {
		m.log.Warn().Err(err).Str("uid", uid).Msg("persist loader failed")
	}
	m.log.Info().Str("uid", uid).Str("loader", ld.Name()).Dur("took", took).Msg("model loaded")
	m.publish(EventLoadDone, uid, map[string]any{"loader": ld.Name(), "took_ms": took.Milliseconds()})
	return nil
}

// invoke runs the loader, turning a panic into an error.
func (m *Manager) invoke(ctx context.Context, ld loader.Loader, path string) (p loader.Pipeline, err error) {
	defer func() {
		if r := recover(); r != nil {
			p = nil
			err = fmt.Errorf("loader %s panicked: %v", ld.Name(), r)
		}
	}()
	p, err = ld.Load(ctx, path, m.device)
	if err == nil && p == nil {
		err = errors.New("loader returned no pipeline")
	}
	return p, err
}
