package worker

import (
	"context"
	"log/slog"
	"time"
)

// acquire blocks until a pipeline slot is free
func (m *Manager) acquire(ctx context.Context) (func(), error) {
	if m.slots == nil {
		return func() {}, nil
	}

	select {
	case m.slots <- struct{}{}:
		return func() { <-m.slots }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Sweep evicts finished jobs older than maxAge and returns how many were removed.
// Running jobs are never evicted.
func (m *Manager) Sweep(maxAge time.Duration) int {
	cutoff := m.now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, j := range m.jobs {
		info := j.snapshot()
		if info.Finished() && info.FinishedAt.Before(cutoff) {
			delete(m.jobs, id)
			removed++
		}
	}
	return removed
}

// janitor periodically sweeps the job table
func (m *Manager) janitor(ctx context.Context) {
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	m.logger.Debug("Job janitor started", slog.Duration("sweep_interval", m.sweepInterval))

	for {
		select {
		case <-m.stopChan:
			m.logger.Debug("Job janitor stopped")
			return

		case <-ctx.Done():
			m.logger.Debug("Job janitor stopped - context canceled")
			return

		case <-ticker.C:
			if removed := m.Sweep(m.retention); removed > 0 {
				m.logger.Info("Evicted finished jobs",
					slog.Int("removed", removed),
					slog.Duration("retention", m.retention),
				)
			}
		}
	}
}
