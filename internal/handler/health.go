package handler

import (
	"errors"
	"time"

	"github.com/SahanWeerasiri/genApp/internal/model"
	"github.com/SahanWeerasiri/genApp/internal/pool"
	"github.com/SahanWeerasiri/genApp/pkg/response"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// HealthResponse is the status view served by /api/health
type HealthResponse struct {
	Status             string                       `json:"status"`
	Workers            []pool.WorkerStatus          `json:"workers"`
	AvailableWorkers   int                          `json:"available_workers"`
	WorkerStatuses     map[string]model.WorkerState `json:"worker_statuses"`
	WorkerQueueSizes   map[string]int               `json:"worker_queue_sizes"`
	TotalActiveJobs    int                          `json:"total_active_jobs"`
	WorkersInitialized map[string]bool              `json:"workers_initialized"`
	Timestamp          time.Time                    `json:"timestamp"`
}

type HealthHandler struct {
	pool        *pool.Pool
	bridge      *pool.Bridge
	warmupStyle string
	warmupText  string
	logger      zerolog.Logger
}

// NewHealthHandler creates a new health handler. prompt and style are used
// for warm-up jobs.
func NewHealthHandler(p *pool.Pool, bridge *pool.Bridge, prompt, style string, logger zerolog.Logger) *HealthHandler {
	return &HealthHandler{
		pool:        p,
		bridge:      bridge,
		warmupText:  model.NormalizePrompt(prompt),
		warmupStyle: model.ResolveStyle(style),
		logger:      logger.With().Str("component", "health").Logger(),
	}
}

// Health handles GET /api/health
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	status := h.pool.Status()

	resp := HealthResponse{
		Status:             status.Health,
		Workers:            status.Workers,
		AvailableWorkers:   status.Available,
		WorkerStatuses:     make(map[string]model.WorkerState, len(status.Workers)),
		WorkerQueueSizes:   make(map[string]int, len(status.Workers)),
		TotalActiveJobs:    status.TotalQueued,
		WorkersInitialized: status.Initialized,
		Timestamp:          status.Timestamp,
	}
	for _, w := range status.Workers {
		resp.WorkerStatuses[w.ID] = w.State
		resp.WorkerQueueSizes[w.ID] = w.QueueDepth
	}

	return response.OK(c, resp)
}

// Warmup handles GET|POST /api/health-generate. The job runs in the
// background; only the selected worker is reported.
func (h *HealthHandler) Warmup(c *fiber.Ctx) error {
	jobID, workerID, err := h.bridge.SubmitAsync(pool.Request{
		UserID: model.WarmupUserID,
		Prompt: h.warmupText,
		Style:  h.warmupStyle,
	})
	if err != nil {
		if errors.Is(err, pool.ErrNoCapacity) {
			return response.NoWorkersAvailable(c)
		}
		h.logger.Error().Err(err).Msg("warm-up submission failed")
		return response.ServiceError(c, "Failed to submit warm-up job")
	}

	return response.OK(c, model.WarmupResponse{
		Status:     "success",
		Message:    "Warm-up generation started",
		WorkerUsed: workerID,
		JobID:      jobID,
	})
}

// Styles handles GET /api/styles
func (h *HealthHandler) Styles(c *fiber.Ctx) error {
	return response.OK(c, model.StylesResponse{
		Styles: model.Styles,
		Count:  len(model.Styles),
	})
}
