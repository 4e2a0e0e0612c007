package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "genapp"

// Metrics holds the service's prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	dispatched      *prometheus.CounterVec
	noCapacity      prometheus.Counter
	generation      *prometheus.HistogramVec
	bridgeOutcomes  *prometheus.CounterVec
	lateCompletions prometheus.Counter
	queueDepth      *prometheus.GaugeVec
	workerState     *prometheus.GaugeVec
	admissions      *prometheus.CounterVec
	rateLimited     *prometheus.CounterVec
}

// New registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		dispatched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_dispatched_total",
			Help:      "Jobs enqueued per worker.",
		}, []string{"worker"}),
		noCapacity: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_no_capacity_total",
			Help:      "Dispatch attempts that found no ready worker.",
		}),
		generation: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Capability call latency by worker and outcome.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"worker", "outcome"}),
		bridgeOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bridge_outcomes_total",
			Help:      "Outcomes observed by waiting callers.",
		}, []string{"outcome"}),
		lateCompletions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_completed_after_deadline_total",
			Help:      "Jobs that finished after their caller timed out; their credits were consumed but nothing was delivered.",
		}),
		queueDepth: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_queue_depth",
			Help:      "Jobs waiting in each worker's queue.",
		}, []string{"worker"}),
		workerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_state",
			Help:      "1 for the current lifecycle state of each worker.",
		}, []string{"worker", "state"}),
		admissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credit_admissions_total",
			Help:      "Admission decisions by outcome and answering store.",
		}, []string{"outcome", "store"}),
		rateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}, []string{"route"}),
	}
}

func (m *Metrics) Dispatched(workerID string) {
	if m == nil {
		return
	}
	m.dispatched.WithLabelValues(workerID).Inc()
}

func (m *Metrics) NoCapacity() {
	if m == nil {
		return
	}
	m.noCapacity.Inc()
}

func (m *Metrics) Generation(workerID, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.generation.WithLabelValues(workerID, outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) BridgeOutcome(outcome string) {
	if m == nil {
		return
	}
	m.bridgeOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) LateCompletion() {
	if m == nil {
		return
	}
	m.lateCompletions.Inc()
}

func (m *Metrics) QueueDepth(workerID string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(workerID).Set(float64(depth))
}

// WorkerState sets the gauge for state to 1 and every other known state to 0.
func (m *Metrics) WorkerState(workerID, state string, all []string) {
	if m == nil {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		m.workerState.WithLabelValues(workerID, s).Set(v)
	}
}

func (m *Metrics) Admission(outcome, store string) {
	if m == nil {
		return
	}
	m.admissions.WithLabelValues(outcome, store).Inc()
}

func (m *Metrics) RateLimited(route string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(route).Inc()
}
