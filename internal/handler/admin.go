package handler

import (
	"errors"

	"github.com/SahanWeerasiri/genApp/internal/middleware"
	"github.com/SahanWeerasiri/genApp/internal/model"
	"github.com/SahanWeerasiri/genApp/internal/pool"
	"github.com/SahanWeerasiri/genApp/pkg/response"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// AdminHandler exposes worker management to admins
type AdminHandler struct {
	pool   *pool.Pool
	logger zerolog.Logger
}

func NewAdminHandler(p *pool.Pool, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		pool:   p,
		logger: logger.With().Str("component", "admin").Logger(),
	}
}

// Workers handles GET /api/admin/workers
func (h *AdminHandler) Workers(c *fiber.Ctx) error {
	return response.OK(c, fiber.Map{"workers": h.pool.Snapshot()})
}

// InitWorker handles POST /api/admin/workers/:id/init
func (h *AdminHandler) InitWorker(c *fiber.Ctx) error {
	id := c.Params("id")

	err := h.pool.Reinitialize(id)
	switch {
	case errors.Is(err, pool.ErrUnknownWorker):
		return response.NotFound(c, "Worker not found")
	case errors.Is(err, pool.ErrInvalidTransition):
		return response.Conflict(c, err.Error())
	case err != nil:
		return response.ServiceError(c, err.Error())
	}

	h.logger.Info().Str("worker_id", id).Str("admin_id", middleware.GetUserID(c)).Msg("worker re-initialization requested")
	return response.Accepted(c, fiber.Map{
		"workerId": id,
		"state":    model.WorkerStateInitializing,
	})
}
