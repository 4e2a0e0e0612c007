package pool

import (
	"sync"

	"github.com/SahanWeerasiri/genApp/internal/metrics"
)

// Dispatcher picks Ready workers round-robin. The ready set is recomputed on
// every call so workers that change state are seen on the next dispatch.
type Dispatcher struct {
	pool    *Pool
	metrics *metrics.Metrics

	mu     sync.Mutex
	cursor uint64
}

// NewDispatcher creates a new Dispatcher
func NewDispatcher(p *Pool, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{pool: p, metrics: m}
}

// SelectWorker returns the next Ready worker, or false when none is Ready.
func (d *Dispatcher) SelectWorker() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ready := d.pool.ReadyWorkers()
	if len(ready) == 0 {
		return "", false
	}
	id := ready[d.cursor%uint64(len(ready))]
	d.cursor++
	return id, true
}

// Dispatch selects a worker and appends job to its queue.
func (d *Dispatcher) Dispatch(job *Job) (string, error) {
	id, ok := d.SelectWorker()
	if !ok {
		d.metrics.NoCapacity()
		return "", ErrNoCapacity
	}
	if err := d.pool.enqueue(id, job); err != nil {
		return "", err
	}
	d.metrics.Dispatched(id)
	return id, nil
}
