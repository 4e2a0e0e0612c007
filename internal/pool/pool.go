package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/SahanWeerasiri/genApp/internal/metrics"
	"github.com/SahanWeerasiri/genApp/internal/model"
	"github.com/rs/zerolog"
)

var allStates = []string{
	string(model.WorkerStatePending),
	string(model.WorkerStateInitializing),
	string(model.WorkerStateReady),
	string(model.WorkerStateFailed),
}

type worker struct {
	id         string
	state      model.WorkerState
	capability Capability
	lastErr    string
	// incremented on every initialization attempt; stale results are dropped
	attempt int

	queue  *jobQueue
	execMu sync.Mutex
	done   chan struct{}
}

// Pool owns every worker's state, capability handle, queue and loop.
type Pool struct {
	launch      Launcher
	initTimeout time.Duration
	logger      zerolog.Logger
	metrics     *metrics.Metrics
	observer    StateObserver

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	workers map[string]*worker
	order   []string
}

// Option configures a Pool
type Option func(*Pool)

// WithInitTimeout bounds each worker's setup routine.
func WithInitTimeout(d time.Duration) Option {
	return func(p *Pool) { p.initTimeout = d }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pool) { p.metrics = m }
}

// WithObserver registers a callback for worker state transitions.
func WithObserver(fn StateObserver) Option {
	return func(p *Pool) { p.observer = fn }
}

// New creates an empty pool. Workers are added with Register.
func New(launch Launcher, logger zerolog.Logger, opts ...Option) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		launch:      launch,
		initTimeout: 2 * time.Minute,
		logger:      logger.With().Str("component", "pool").Logger(),
		ctx:         ctx,
		cancel:      cancel,
		workers:     make(map[string]*worker),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Register creates a Pending worker and starts its loop.
func (p *Pool) Register(id string) error {
	p.mu.Lock()
	if _, ok := p.workers[id]; ok {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateWorker, id)
	}
	w := &worker{
		id:    id,
		state: model.WorkerStatePending,
		queue: newJobQueue(),
		done:  make(chan struct{}),
	}
	p.workers[id] = w
	p.order = append(p.order, id)
	p.mu.Unlock()

	go p.run(w)
	p.notify(id, model.WorkerStatePending, nil)
	return nil
}

// BeginInit moves a Pending worker to Initializing and runs its setup in the
// background.
func (p *Pool) BeginInit(id string) error {
	p.mu.Lock()
	w, ok := p.workers[id]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownWorker, id)
	}
	if w.state != model.WorkerStatePending {
		state := w.state
		p.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", ErrInvalidTransition, id, state)
	}
	w.state = model.WorkerStateInitializing
	w.lastErr = ""
	w.attempt++
	attempt := w.attempt
	p.mu.Unlock()

	p.notify(id, model.WorkerStateInitializing, nil)
	go p.initialize(w, attempt)
	return nil
}

// InitAll begins initialization of every Pending worker.
func (p *Pool) InitAll() {
	for _, id := range p.IDs() {
		if err := p.BeginInit(id); err != nil && !errors.Is(err, ErrInvalidTransition) {
			p.logger.Error().Err(err).Str("worker_id", id).Msg("failed to begin initialization")
		}
	}
}

// Reinitialize resets a Failed (or still Pending) worker and initializes a
// fresh capability instance. Ready and Initializing workers are left alone.
func (p *Pool) Reinitialize(id string) error {
	p.mu.Lock()
	w, ok := p.workers[id]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownWorker, id)
	}
	reset := false
	switch w.state {
	case model.WorkerStateFailed:
		w.state = model.WorkerStatePending
		w.capability = nil
		reset = true
	case model.WorkerStatePending:
	default:
		state := w.state
		p.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", ErrInvalidTransition, id, state)
	}
	p.mu.Unlock()
	if reset {
		p.notify(id, model.WorkerStatePending, nil)
	}

	p.logger.Info().Str("worker_id", id).Msg("re-initializing worker")
	return p.BeginInit(id)
}

type initResult struct {
	capability Capability
	err        error
}

func (p *Pool) initialize(w *worker, attempt int) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(p.ctx, p.initTimeout)
	defer cancel()

	ch := make(chan initResult, 1)
	go func() {
		var r initResult
		defer func() {
			if rec := recover(); rec != nil {
				r = initResult{err: fmt.Errorf("setup panicked: %v", rec)}
			}
			ch <- r
		}()
		r.capability, r.err = p.launch(ctx, w.id)
	}()

	var r initResult
	select {
	case r = <-ch:
		if r.err == nil && r.capability == nil {
			r.err = errors.New("setup returned no capability")
		}
	case <-ctx.Done():
		r.err = fmt.Errorf("setup did not finish within %s: %w", p.initTimeout, ctx.Err())
		// the launcher may still hand back a handle nobody will use
		go func() {
			if late := <-ch; late.capability != nil {
				closeCapability(late.capability)
			}
		}()
	}

	p.finishInit(w, attempt, r, time.Since(start))
}

func (p *Pool) finishInit(w *worker, attempt int, r initResult, elapsed time.Duration) {
	p.mu.Lock()
	if w.attempt != attempt || w.state != model.WorkerStateInitializing {
		p.mu.Unlock()
		if r.capability != nil {
			closeCapability(r.capability)
		}
		return
	}
	if r.err != nil {
		if r.capability != nil {
			closeCapability(r.capability)
		}
		w.state = model.WorkerStateFailed
		w.capability = nil
		w.lastErr = r.err.Error()
	} else {
		w.state = model.WorkerStateReady
		w.capability = r.capability
	}
	state := w.state
	p.mu.Unlock()

	if r.err != nil {
		p.logger.Error().Err(r.err).Str("worker_id", w.id).Dur("elapsed", elapsed).Msg("worker initialization failed")
	} else {
		p.logger.Info().Str("worker_id", w.id).Dur("elapsed", elapsed).Msg("worker ready")
	}
	p.notify(w.id, state, r.err)
}

func (p *Pool) notify(id string, state model.WorkerState, err error) {
	p.metrics.WorkerState(id, string(state), allStates)
	if p.observer != nil {
		p.observer(id, state, err)
	}
}

// IDs returns worker ids in registration order.
func (p *Pool) IDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.order...)
}

// ReadyWorkers returns, in registration order, the workers that are Ready
// and hold a capability handle.
func (p *Pool) ReadyWorkers() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	ready := make([]string, 0, len(p.order))
	for _, id := range p.order {
		w := p.workers[id]
		if w.state == model.WorkerStateReady && w.capability != nil {
			ready = append(ready, id)
		}
	}
	return ready
}

// Snapshot returns a copy of every worker's state. It never waits on an
// in-flight initialization.
func (p *Pool) Snapshot() []WorkerStatus {
	p.mu.Lock()
	workers := make([]*worker, 0, len(p.order))
	out := make([]WorkerStatus, 0, len(p.order))
	for _, id := range p.order {
		w := p.workers[id]
		workers = append(workers, w)
		out = append(out, WorkerStatus{
			ID:            w.id,
			State:         w.state,
			HasCapability: w.capability != nil,
			LastError:     w.lastErr,
		})
	}
	p.mu.Unlock()

	for i, w := range workers {
		out[i].QueueDepth = w.queue.len()
	}
	return out
}

// enqueue appends job to the worker's queue.
func (p *Pool) enqueue(id string, job *Job) error {
	if job == nil || job.Sink == nil {
		return errors.New("job requires a result sink")
	}
	p.mu.Lock()
	w, ok := p.workers[id]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownWorker, id)
	}
	if err := w.queue.push(job); err != nil {
		return fmt.Errorf("enqueue on %s: %w", id, err)
	}
	p.metrics.QueueDepth(id, w.queue.len())
	return nil
}

// StopWorker enqueues the stop job. Jobs already queued still run; later
// submissions fail with ErrStopped.
func (p *Pool) StopWorker(id string) error {
	p.mu.Lock()
	w, ok := p.workers[id]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownWorker, id)
	}
	return w.queue.push(stopJob())
}

// Stop ends every worker loop after its queue drains, or cancels in-flight
// generations when ctx expires first.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	workers := make([]*worker, 0, len(p.order))
	for _, id := range p.order {
		workers = append(workers, p.workers[id])
	}
	p.mu.Unlock()

	for _, w := range workers {
		_ = w.queue.push(stopJob())
	}
	defer p.cancel()

	for _, w := range workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			return fmt.Errorf("pool stop: %w", ctx.Err())
		}
	}
	return nil
}

func (p *Pool) run(w *worker) {
	defer close(w.done)
	log := p.logger.With().Str("worker_id", w.id).Logger()

	for {
		job := w.queue.pop()
		p.metrics.QueueDepth(w.id, w.queue.len())
		if job.stop {
			log.Info().Msg("worker loop stopped")
			return
		}
		p.execute(w, job, log)
	}
}

func (p *Pool) execute(w *worker, job *Job, log zerolog.Logger) {
	log = log.With().Str("job_id", job.ID).Str("user_id", job.UserID).Logger()

	p.mu.Lock()
	capability := w.capability
	ready := w.state == model.WorkerStateReady && capability != nil
	p.mu.Unlock()

	if !ready {
		log.Warn().Msg("dropping job for worker that is no longer ready")
		p.deliver(job, nil, ErrWorkerNotReady, log)
		return
	}

	w.execMu.Lock()
	start := time.Now()
	artifact, err := safeGenerate(p.ctx, capability, job)
	elapsed := time.Since(start)
	w.execMu.Unlock()

	if err != nil {
		err = &CapabilityError{WorkerID: w.id, Err: err}
		log.Error().Err(err).Dur("elapsed", elapsed).Msg("generation failed")
		p.metrics.Generation(w.id, "failure", elapsed)
	} else {
		log.Info().Dur("elapsed", elapsed).Msg("generation completed")
		p.metrics.Generation(w.id, "success", elapsed)
	}
	p.deliver(job, artifact, err, log)
}

func (p *Pool) deliver(job *Job, artifact *model.Artifact, err error, log zerolog.Logger) {
	if job.Sink.Complete(artifact, err) {
		return
	}
	if job.Sink.Abandoned() {
		log.Warn().
			Dur("since_submit", time.Since(job.SubmittedAt)).
			Bool("failed", err != nil).
			Msg("job completed after caller deadline")
		p.metrics.LateCompletion()
	}
}

func safeGenerate(ctx context.Context, c Capability, job *Job) (artifact *model.Artifact, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			artifact = nil
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	artifact, err = c.Generate(ctx, job.Prompt, job.Style)
	if err == nil && artifact == nil {
		err = errors.New("capability returned no artifact")
	}
	return artifact, err
}
