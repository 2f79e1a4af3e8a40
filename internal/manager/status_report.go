package manager

import (
	"time"

	"imaged/pkg/types"
)

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	m.mu.RLock()
	resp := types.StatusResponse{
		State:        string(m.state),
		CurrentModel: m.cur,
		PendingModel: m.pending,
		Loader:       m.loaderName,
		Device:       m.device.String(),
		DType:        m.device.DType,
		LastError:    m.lastErr,
		Inflight:     m.leases,
		Draining:     m.draining,
		LoadsTotal:   m.loadsTotal,
	}
	m.mu.RUnlock()
	resp.Artifacts = m.catalog.Len()
	resp.Plugins = m.Plugins()
	now := time.Now()
	resp.UptimeSeconds = int64(now.Sub(m.startTime).Seconds())
	resp.ServerTimeUnix = now.Unix()
	return resp
}
