package middleware

import (
	"strings"

	"github.com/SahanWeerasiri/genApp/internal/auth"
	"github.com/SahanWeerasiri/genApp/pkg/response"
	"github.com/gofiber/fiber/v2"
)

// AuthMiddleware handles bearer token authentication
type AuthMiddleware struct {
	issuer *auth.Issuer
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(issuer *auth.Issuer) *AuthMiddleware {
	return &AuthMiddleware{issuer: issuer}
}

// Authenticate validates the access token from the Authorization header
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, ok := BearerToken(c)
		if !ok {
			return response.Unauthorized(c, "Missing or invalid authorization header")
		}

		claims, err := m.issuer.Validate(tokenString, auth.TokenTypeAccess)
		if err != nil {
			return response.Unauthorized(c, "Invalid or expired token")
		}

		c.Locals("userId", claims.UserID)
		c.Locals("email", claims.Email)
		c.Locals("role", claims.Role)
		c.Locals("claims", claims)
		return c.Next()
	}
}

// RequireRole rejects authenticated users without the given role
func (m *AuthMiddleware) RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if GetUserRole(c) != role {
			return response.Forbidden(c, "Insufficient permissions")
		}
		return c.Next()
	}
}

// BearerToken extracts the token from "Authorization: Bearer <token>"
func BearerToken(c *fiber.Ctx) (string, bool) {
	parts := strings.SplitN(c.Get("Authorization"), " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// GetUserID extracts user ID from context
func GetUserID(c *fiber.Ctx) string {
	if userID, ok := c.Locals("userId").(string); ok {
		return userID
	}
	return ""
}

// GetUserEmail extracts user email from context
func GetUserEmail(c *fiber.Ctx) string {
	if email, ok := c.Locals("email").(string); ok {
		return email
	}
	return ""
}

func GetUserRole(c *fiber.Ctx) string {
	if role, ok := c.Locals("role").(string); ok {
		return role
	}
	return ""
}
