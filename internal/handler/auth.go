package handler

import (
	"github.com/SahanWeerasiri/genApp/internal/auth"
	"github.com/SahanWeerasiri/genApp/internal/credit"
	"github.com/SahanWeerasiri/genApp/internal/middleware"
	"github.com/SahanWeerasiri/genApp/internal/model"
	"github.com/SahanWeerasiri/genApp/pkg/response"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// AuthHandler registers users and issues service tokens
type AuthHandler struct {
	issuer         *auth.Issuer
	identity       auth.IdentityVerifier
	credits        *credit.Controller
	validator      *validator.Validate
	initialCredits int
	admins         map[string]struct{}
	logger         zerolog.Logger
}

// NewAuthHandler creates a new auth handler. identity may be nil, in which
// case registration trusts the submitted uid. Users in adminUIDs are issued
// admin tokens.
func NewAuthHandler(issuer *auth.Issuer, identity auth.IdentityVerifier, credits *credit.Controller, v *validator.Validate, initialCredits int, adminUIDs []string, logger zerolog.Logger) *AuthHandler {
	admins := make(map[string]struct{}, len(adminUIDs))
	for _, uid := range adminUIDs {
		admins[uid] = struct{}{}
	}
	return &AuthHandler{
		issuer:         issuer,
		identity:       identity,
		credits:        credits,
		validator:      v,
		initialCredits: initialCredits,
		admins:         admins,
		logger:         logger.With().Str("component", "auth").Logger(),
	}
}

func (h *AuthHandler) roleFor(uid string) string {
	if _, ok := h.admins[uid]; ok {
		return model.RoleAdmin
	}
	return model.RoleUser
}

// Register handles POST /api/register
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req model.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	if h.identity != nil {
		if req.IDToken == "" {
			return response.Unauthorized(c, "Identity token required")
		}
		claims, err := h.identity.Verify(req.IDToken)
		if err != nil {
			h.logger.Warn().Err(err).Str("user_id", req.UID).Msg("identity token rejected")
			return response.Unauthorized(c, "Invalid identity token")
		}
		if claims.Subject != req.UID {
			return response.Unauthorized(c, "Identity token does not match uid")
		}
		if req.Email == "" {
			req.Email = claims.Email
		}
		if req.Name == "" {
			req.Name = claims.Name
		}
		if req.PhotoURL == "" {
			req.PhotoURL = claims.Picture
		}
	}

	created, source, err := h.credits.Provision(c.Context(), req.UID, h.initialCredits)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", req.UID).Msg("provisioning credits failed")
		return response.CreditSystemError(c)
	}

	balance, _, err := h.credits.Balance(c.Context(), req.UID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", req.UID).Msg("balance lookup failed")
		return response.CreditSystemError(c)
	}

	role := h.roleFor(req.UID)
	access, refresh, err := h.issuer.IssuePair(req.UID, req.Email, role)
	if err != nil {
		return response.ServiceError(c, "Failed to issue tokens")
	}
	if role == model.RoleAdmin {
		h.logger.Info().Str("user_id", req.UID).Msg("issued admin tokens")
	}

	resp := model.AuthResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		User: model.RegisteredUser{
			UID:        req.UID,
			Email:      req.Email,
			Name:       req.Name,
			PhotoURL:   req.PhotoURL,
			TokenCount: balance,
			Role:       role,
		},
	}

	if created {
		h.logger.Info().Str("user_id", req.UID).Str("store", source).Int("credits", h.initialCredits).Msg("user registered")
		resp.Message = "User registered successfully"
		return response.Created(c, resp)
	}
	resp.Message = "User already registered"
	return response.OK(c, resp)
}

// Refresh handles POST /api/refresh
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req model.RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	access, _, err := h.issuer.Refresh(req.RefreshToken)
	if err != nil {
		return response.Unauthorized(c, "Invalid or expired refresh token")
	}

	return response.OK(c, model.RefreshResponse{
		Message:     "Token refreshed successfully",
		AccessToken: access,
	})
}

// Verify handles GET|POST /api/verify. The token comes from the
// Authorization header or, for POST, the access_token field.
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	token, ok := middleware.BearerToken(c)
	if !ok && c.Method() == fiber.MethodPost && len(c.Body()) > 0 {
		var req model.VerifyRequest
		if err := c.BodyParser(&req); err == nil && req.AccessToken != "" {
			token, ok = req.AccessToken, true
		}
	}
	if !ok {
		return response.Unauthorized(c, "Missing access token")
	}

	claims, err := h.issuer.Validate(token, auth.TokenTypeAccess)
	if err != nil {
		return response.Unauthorized(c, "Invalid or expired token")
	}

	balance, _, err := h.credits.Balance(c.Context(), claims.UserID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", claims.UserID).Msg("balance lookup failed")
		return response.CreditSystemError(c)
	}

	return response.OK(c, model.VerifyResponse{
		Message: "Token is valid",
		User: model.RegisteredUser{
			UID:        claims.UserID,
			Email:      claims.Email,
			TokenCount: balance,
			Role:       claims.Role,
		},
	})
}
