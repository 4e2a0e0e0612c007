package handler

import (
	"encoding/base64"
	"errors"

	"github.com/SahanWeerasiri/genApp/internal/client"
	"github.com/SahanWeerasiri/genApp/internal/credit"
	"github.com/SahanWeerasiri/genApp/internal/middleware"
	"github.com/SahanWeerasiri/genApp/internal/model"
	"github.com/SahanWeerasiri/genApp/internal/pool"
	"github.com/SahanWeerasiri/genApp/pkg/response"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

type GenerateHandler struct {
	credits   *credit.Controller
	bridge    *pool.Bridge
	archive   client.ArtifactArchive
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewGenerateHandler creates a new generate handler. archive may be nil.
func NewGenerateHandler(credits *credit.Controller, bridge *pool.Bridge, archive client.ArtifactArchive, v *validator.Validate, logger zerolog.Logger) *GenerateHandler {
	return &GenerateHandler{
		credits:   credits,
		bridge:    bridge,
		archive:   archive,
		validator: v,
		logger:    logger.With().Str("component", "generate").Logger(),
	}
}

// Generate handles POST /api/generate
func (h *GenerateHandler) Generate(c *fiber.Ctx) error {
	var req model.GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	req.Prompt = model.NormalizePrompt(req.Prompt)
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	style := model.ResolveStyle(req.Style)
	userID := middleware.GetUserID(c)

	decision, err := h.credits.TryConsume(c.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("credit check failed")
		return response.CreditSystemError(c)
	}
	if decision.Outcome != credit.Granted {
		return response.InsufficientCredits(c)
	}

	result, err := h.bridge.Submit(c.Context(), pool.Request{
		UserID: userID,
		Prompt: req.Prompt,
		Style:  style,
	})
	if err != nil {
		return h.submitError(c, userID, err)
	}

	resp := model.GenerateResponse{
		Message:  "Image generated successfully",
		Image:    base64.StdEncoding.EncodeToString(result.Artifact.Data),
		MimeType: result.Artifact.MimeType,
		Prompt:   req.Prompt,
		Style:    style,
		Worker:   result.WorkerID,
	}

	if h.archive != nil {
		url, err := h.archive.Archive(c.Context(), userID, result.Artifact)
		if err != nil {
			h.logger.Warn().Err(err).Str("job_id", result.JobID).Msg("artifact archive failed")
		} else {
			resp.URL = url
		}
	}

	return response.OK(c, resp)
}

func (h *GenerateHandler) submitError(c *fiber.Ctx, userID string, err error) error {
	var capErr *pool.CapabilityError
	switch {
	case errors.Is(err, pool.ErrNoCapacity):
		h.logger.Warn().Str("user_id", userID).Msg("credit consumed but no worker was ready")
		return response.NoWorkersAvailable(c)
	case errors.Is(err, pool.ErrTimeout):
		return response.GenerationTimeout(c)
	case errors.As(err, &capErr):
		return response.GenerationFailed(c, "Image generation failed")
	case errors.Is(err, pool.ErrWorkerNotReady), errors.Is(err, pool.ErrStopped):
		return response.NoWorkersAvailable(c)
	default:
		h.logger.Error().Err(err).Str("user_id", userID).Msg("generation request failed")
		return response.GenerationFailed(c, "Image generation failed")
	}
}
