package pool

import (
	"time"

	"github.com/SahanWeerasiri/genApp/internal/model"
)

const (
	HealthHealthy  = "healthy"
	HealthDegraded = "degraded"
)

// WorkerStatus is a point-in-time view of one worker.
type WorkerStatus struct {
	ID            string            `json:"id"`
	State         model.WorkerState `json:"state"`
	QueueDepth    int               `json:"queue_depth"`
	HasCapability bool              `json:"has_capability"`
	LastError     string            `json:"last_error,omitempty"`
}

// Status aggregates worker states and queue depths. Initialized maps each
// worker id to whether it holds a capability.
type Status struct {
	Health      string          `json:"status"`
	Workers     []WorkerStatus  `json:"workers"`
	Available   int             `json:"available_workers"`
	TotalQueued int             `json:"total_active_jobs"`
	Initialized map[string]bool `json:"workers_initialized"`
	Timestamp   time.Time       `json:"timestamp"`
}

// Status reports the pool's health. It is healthy only when every worker is
// Ready.
func (p *Pool) Status() Status {
	workers := p.Snapshot()
	s := Status{
		Workers:     workers,
		Initialized: make(map[string]bool, len(workers)),
		Timestamp:   time.Now().UTC(),
	}
	for _, w := range workers {
		s.Initialized[w.ID] = w.HasCapability
		if w.State == model.WorkerStateReady && w.HasCapability {
			s.Available++
		}
		s.TotalQueued += w.QueueDepth
	}
	s.Health = HealthDegraded
	if len(workers) > 0 && s.Available == len(workers) {
		s.Health = HealthHealthy
	}
	return s
}
