package pool

import (
	"context"
	"errors"
	"time"

	"github.com/SahanWeerasiri/genApp/internal/metrics"
	"github.com/SahanWeerasiri/genApp/internal/model"
	"github.com/rs/zerolog"
)

// Request is what a caller asks the pool to generate.
type Request struct {
	UserID string
	Prompt string
	Style  string
}

// Result is a delivered generation.
type Result struct {
	JobID    string
	WorkerID string
	Artifact *model.Artifact
	Elapsed  time.Duration
}

// Bridge lets a blocking caller submit a job and wait for its outcome.
type Bridge struct {
	dispatcher *Dispatcher
	timeout    time.Duration
	logger     zerolog.Logger
	metrics    *metrics.Metrics
}

// NewBridge creates a bridge whose callers wait at most timeout.
func NewBridge(d *Dispatcher, timeout time.Duration, logger zerolog.Logger, m *metrics.Metrics) *Bridge {
	return &Bridge{
		dispatcher: d,
		timeout:    timeout,
		logger:     logger.With().Str("component", "bridge").Logger(),
		metrics:    m,
	}
}

// Timeout returns the caller deadline.
func (b *Bridge) Timeout() time.Duration {
	return b.timeout
}

// Submit dispatches req and blocks until it completes or the deadline
// passes. Errors are ErrNoCapacity, ErrTimeout, ErrStopped, ErrWorkerNotReady,
// a *CapabilityError or ctx's error.
func (b *Bridge) Submit(ctx context.Context, req Request) (*Result, error) {
	job := NewJob(req.UserID, req.Prompt, req.Style, NewResultSink(b.timeout))

	workerID, err := b.dispatcher.Dispatch(job)
	if err != nil {
		return nil, err
	}

	artifact, err := job.Sink.Wait(ctx)
	elapsed := time.Since(job.SubmittedAt)
	if err != nil {
		b.recordFailure(job, workerID, err, elapsed)
		return nil, err
	}

	b.metrics.BridgeOutcome("success")
	return &Result{
		JobID:    job.ID,
		WorkerID: workerID,
		Artifact: artifact,
		Elapsed:  elapsed,
	}, nil
}

// SubmitAsync dispatches req without waiting. The outcome is only logged.
func (b *Bridge) SubmitAsync(req Request) (jobID, workerID string, err error) {
	job := NewJob(req.UserID, req.Prompt, req.Style, NewResultSink(b.timeout))
	workerID, err = b.dispatcher.Dispatch(job)
	if err != nil {
		return "", "", err
	}
	return job.ID, workerID, nil
}

func (b *Bridge) recordFailure(job *Job, workerID string, err error, elapsed time.Duration) {
	log := b.logger.With().
		Str("job_id", job.ID).
		Str("worker_id", workerID).
		Str("user_id", job.UserID).
		Dur("elapsed", elapsed).
		Logger()

	var capErr *CapabilityError
	switch {
	case errors.Is(err, ErrTimeout):
		// credits for this job were consumed and are not refunded
		log.Warn().Msg("caller timed out waiting for generation")
		b.metrics.BridgeOutcome("timeout")
	case errors.As(err, &capErr):
		b.metrics.BridgeOutcome("failure")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.Info().Err(err).Msg("caller went away before generation finished")
		b.metrics.BridgeOutcome("canceled")
	default:
		log.Warn().Err(err).Msg("job failed before generation")
		b.metrics.BridgeOutcome("failure")
	}
}
