package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Dispatched("worker-1")
		m.NoCapacity()
		m.Generation("worker-1", "success", time.Second)
		m.BridgeOutcome("timeout")
		m.LateCompletion()
		m.QueueDepth("worker-1", 3)
		m.WorkerState("worker-1", "ready", []string{"pending", "ready"})
		m.Admission("granted", "redis")
		m.RateLimited("generate")
	})
}

func TestMetrics_Record(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Dispatched("worker-1")
	m.Dispatched("worker-1")
	m.LateCompletion()
	m.WorkerState("worker-2", "ready", []string{"pending", "initializing", "ready", "failed"})
	m.Admission("denied", "memory")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.dispatched.WithLabelValues("worker-1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lateCompletions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.workerState.WithLabelValues("worker-2", "ready")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.workerState.WithLabelValues("worker-2", "pending")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.admissions.WithLabelValues("denied", "memory")))
}
