package handler

import (
	"github.com/SahanWeerasiri/genApp/internal/credit"
	"github.com/SahanWeerasiri/genApp/internal/middleware"
	"github.com/SahanWeerasiri/genApp/internal/model"
	"github.com/SahanWeerasiri/genApp/pkg/response"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

type CreditsHandler struct {
	credits   *credit.Controller
	validator *validator.Validate
	adReward  int
	logger    zerolog.Logger
}

// NewCreditsHandler creates a new credits handler. adReward is the amount
// granted by /api/user/tokens/add when the body names none.
func NewCreditsHandler(credits *credit.Controller, v *validator.Validate, adReward int, logger zerolog.Logger) *CreditsHandler {
	return &CreditsHandler{
		credits:   credits,
		validator: v,
		adReward:  adReward,
		logger:    logger.With().Str("component", "credits").Logger(),
	}
}

// Tokens handles GET /api/user/tokens
func (h *CreditsHandler) Tokens(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	balance, source, err := h.credits.Balance(c.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("balance lookup failed")
		return response.CreditSystemError(c)
	}

	return response.OK(c, model.TokensResponse{
		TokenCount: balance,
		UserID:     userID,
		Source:     source,
	})
}

// AddTokens handles POST /api/user/tokens/add
func (h *CreditsHandler) AddTokens(c *fiber.Ctx) error {
	var req model.AddTokensRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.ValidationError(c, "Invalid request body", nil)
		}
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	amount := h.adReward
	if req.Tokens != nil {
		amount = *req.Tokens
	}

	userID := middleware.GetUserID(c)
	balance, source, err := h.credits.AddCredits(c.Context(), userID, amount)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Int("amount", amount).Msg("adding credits failed")
		return response.CreditSystemError(c)
	}

	return response.OK(c, model.AddTokensResponse{
		Message:    "Tokens added successfully",
		TokenCount: balance,
		UserID:     userID,
		Source:     source,
	})
}

// Profile handles GET /api/user/profile
func (h *CreditsHandler) Profile(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	balance, source, err := h.credits.Balance(c.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("balance lookup failed")
		return response.CreditSystemError(c)
	}

	return response.OK(c, model.ProfileResponse{
		UserID:     userID,
		Email:      middleware.GetUserEmail(c),
		Role:       middleware.GetUserRole(c),
		TokenCount: balance,
		Source:     source,
	})
}
