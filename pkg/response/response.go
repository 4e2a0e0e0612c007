package response

import "github.com/gofiber/fiber/v2"

// Error codes
const (
	CodeValidationError     = "VALIDATION_ERROR"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeNotFound            = "NOT_FOUND"
	CodeConflict            = "CONFLICT"
	CodeRateLimited         = "RATE_LIMITED"
	CodeInsufficientCredits = "INSUFFICIENT_CREDITS"
	CodeCreditSystemError   = "CREDIT_SYSTEM_ERROR"
	CodeNoWorkersAvailable  = "NO_WORKERS_AVAILABLE"
	CodeGenerationTimeout   = "GENERATION_TIMEOUT"
	CodeGenerationFailed    = "GENERATION_FAILED"
	CodeServiceError        = "SERVICE_ERROR"
)

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func Error(c *fiber.Ctx, status int, code, message string, details interface{}) error {
	return c.Status(status).JSON(ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func ValidationError(c *fiber.Ctx, message string, details interface{}) error {
	return Error(c, fiber.StatusBadRequest, CodeValidationError, message, details)
}

func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusUnauthorized, CodeUnauthorized, message, nil)
}

func Forbidden(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusForbidden, CodeForbidden, message, nil)
}

func NotFound(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusNotFound, CodeNotFound, message, nil)
}

func Conflict(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusConflict, CodeConflict, message, nil)
}

func RateLimited(c *fiber.Ctx) error {
	return Error(c, fiber.StatusTooManyRequests, CodeRateLimited, "Rate limit exceeded", nil)
}

// InsufficientCredits tells the caller to earn or buy more credits.
func InsufficientCredits(c *fiber.Ctx) error {
	return Error(c, fiber.StatusPaymentRequired, CodeInsufficientCredits,
		"Insufficient credits. Please watch an ad or purchase more credits.", nil)
}

func CreditSystemError(c *fiber.Ctx) error {
	return Error(c, fiber.StatusServiceUnavailable, CodeCreditSystemError, "Credit system unavailable, please retry later", nil)
}

// NoWorkersAvailable is retryable; workers may still be initializing.
func NoWorkersAvailable(c *fiber.Ctx) error {
	return Error(c, fiber.StatusServiceUnavailable, CodeNoWorkersAvailable, "No generation workers available, please retry shortly", nil)
}

func GenerationTimeout(c *fiber.Ctx) error {
	return Error(c, fiber.StatusGatewayTimeout, CodeGenerationTimeout, "Image generation timed out", nil)
}

func GenerationFailed(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadGateway, CodeGenerationFailed, message, nil)
}

func ServiceError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, CodeServiceError, message, nil)
}

func OK(c *fiber.Ctx, data interface{}) error {
	return c.JSON(data)
}

func Created(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(data)
}

func Accepted(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusAccepted).JSON(data)
}
