package manager

import (
	"context"
	"time"
)

// beginGeneration reserves the single in-flight generation slot, waiting at
// most maxWait. Returns a release func to be deferred.
func (m *Manager) beginGeneration(ctx context.Context) (func(), error) {
	t := time.NewTimer(m.maxWait)
	defer t.Stop()
	select {
	case m.genCh <- struct{}{}:
		return func() { <-m.genCh }, nil
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-t.C:
		return func() {}, tooBusyError{reason: "generation queue timeout"}
	}
}
