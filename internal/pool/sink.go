package pool

import (
	"context"
	"sync"
	"time"

	"github.com/SahanWeerasiri/genApp/internal/model"
)

// ResultSink is a single-use handoff cell between a worker loop and the
// caller waiting on it. It holds either an artifact or a failure.
type ResultSink struct {
	deadline time.Time
	done     chan struct{}

	mu        sync.Mutex
	written   bool
	abandoned bool
	artifact  *model.Artifact
	err       error
}

// NewResultSink creates a sink whose waiter gives up after timeout.
func NewResultSink(timeout time.Duration) *ResultSink {
	return &ResultSink{
		deadline: time.Now().Add(timeout),
		done:     make(chan struct{}),
	}
}

// Deadline returns the instant after which Wait reports ErrTimeout.
func (s *ResultSink) Deadline() time.Time {
	return s.deadline
}

// Complete writes the outcome. Only the first call has any effect. It
// reports whether the outcome can still be observed, i.e. false when the sink
// was already written or its waiter has given up.
func (s *ResultSink) Complete(artifact *model.Artifact, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.written {
		return false
	}
	s.written = true
	s.artifact = artifact
	s.err = err
	close(s.done)
	return !s.abandoned
}

// Abandoned reports whether the waiter stopped waiting before completion.
func (s *ResultSink) Abandoned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.abandoned
}

// Wait blocks until the sink is completed, the deadline passes or ctx is
// done. An outcome written before the waiter gives up always wins.
func (s *ResultSink) Wait(ctx context.Context) (*model.Artifact, error) {
	timer := time.NewTimer(time.Until(s.deadline))
	defer timer.Stop()

	var cause error
	select {
	case <-s.done:
	case <-timer.C:
		cause = ErrTimeout
	case <-ctx.Done():
		cause = ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.written {
		return s.artifact, s.err
	}
	s.abandoned = true
	return nil, cause
}
