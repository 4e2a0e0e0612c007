package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/SahanWeerasiri/genApp/internal/config"
	"github.com/SahanWeerasiri/genApp/internal/model"
	"github.com/SahanWeerasiri/genApp/internal/pool"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// Task types
const (
	TaskTypeWarmup = "pool:warmup"
	QueueWarmup    = "maintenance"
)

// WarmupPayload is the payload of a warm-up task
type WarmupPayload struct {
	Prompt string `json:"prompt"`
	Style  string `json:"style"`
}

// Submitter hands a job to the pool without waiting for it
type Submitter interface {
	SubmitAsync(req pool.Request) (jobID, workerID string, err error)
}

// NewWarmupTask builds a warm-up task. It is never retried; the next
// scheduled run takes its place.
func NewWarmupTask(prompt, style string) (*asynq.Task, error) {
	payload, err := json.Marshal(WarmupPayload{Prompt: prompt, Style: style})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal warmup payload: %w", err)
	}
	return asynq.NewTask(TaskTypeWarmup, payload, asynq.MaxRetry(0), asynq.Queue(QueueWarmup)), nil
}

// RegisterWarmup schedules the warm-up task on cfg.Cron
func RegisterWarmup(scheduler *asynq.Scheduler, cfg *config.WarmupConfig) (string, error) {
	task, err := NewWarmupTask(cfg.Prompt, cfg.Style)
	if err != nil {
		return "", err
	}
	entryID, err := scheduler.Register(cfg.Cron, task)
	if err != nil {
		return "", fmt.Errorf("failed to register warmup schedule %q: %w", cfg.Cron, err)
	}
	return entryID, nil
}

// WarmupWorker keeps generation workers warm by feeding them a cheap job
type WarmupWorker struct {
	bridge Submitter
	logger zerolog.Logger
}

// NewWarmupWorker creates a new warm-up worker
func NewWarmupWorker(bridge Submitter, logger zerolog.Logger) *WarmupWorker {
	return &WarmupWorker{
		bridge: bridge,
		logger: logger.With().Str("component", "warmup").Logger(),
	}
}

// ProcessTask handles warm-up task processing
func (w *WarmupWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload WarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal warmup payload: %w: %w", err, asynq.SkipRetry)
	}
	if payload.Prompt == "" {
		return fmt.Errorf("warmup prompt is empty: %w", asynq.SkipRetry)
	}

	jobID, workerID, err := w.bridge.SubmitAsync(pool.Request{
		UserID: model.WarmupUserID,
		Prompt: model.NormalizePrompt(payload.Prompt),
		Style:  model.ResolveStyle(payload.Style),
	})
	if errors.Is(err, pool.ErrNoCapacity) {
		w.logger.Warn().Msg("no ready workers to warm up")
		return fmt.Errorf("warmup skipped: %w: %w", err, asynq.SkipRetry)
	}
	if err != nil {
		return fmt.Errorf("failed to submit warmup job: %w", err)
	}

	w.logger.Info().Str("job_id", jobID).Str("worker_id", workerID).Msg("warm-up job submitted")
	return nil
}
