package pool

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCapacity is returned when no worker is Ready at dispatch time.
	ErrNoCapacity = errors.New("no workers available")
	// ErrTimeout is returned when the caller's deadline passes before the job completes.
	ErrTimeout = errors.New("generation timed out")
	// ErrWorkerNotReady completes a job whose worker left Ready after it was queued.
	ErrWorkerNotReady = errors.New("worker not ready")

	ErrUnknownWorker     = errors.New("unknown worker")
	ErrDuplicateWorker   = errors.New("worker already registered")
	ErrInvalidTransition = errors.New("invalid worker state transition")
	// ErrStopped is returned when submitting to a worker whose loop received the stop job.
	ErrStopped = errors.New("worker stopped")
)

// CapabilityError wraps a failure raised by the generation capability itself.
type CapabilityError struct {
	WorkerID string
	Err      error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("generation failed on %s: %v", e.WorkerID, e.Err)
}

func (e *CapabilityError) Unwrap() error {
	return e.Err
}
