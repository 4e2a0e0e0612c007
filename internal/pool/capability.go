package pool

import (
	"context"
	"io"

	"github.com/SahanWeerasiri/genApp/internal/model"
)

// Capability is one instance of the external generation backend. It is not
// safe for concurrent use; the pool invokes it from a single worker loop.
type Capability interface {
	Generate(ctx context.Context, prompt, style string) (*model.Artifact, error)
}

// Launcher runs the blocking setup routine for a worker and returns its
// capability handle.
type Launcher func(ctx context.Context, workerID string) (Capability, error)

// StateObserver is notified after every worker state transition.
type StateObserver func(workerID string, state model.WorkerState, err error)

func closeCapability(c Capability) {
	if closer, ok := c.(io.Closer); ok {
		_ = closer.Close()
	}
}
