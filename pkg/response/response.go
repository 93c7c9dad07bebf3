package response

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/listingcast/api/internal/exporterr"
)

// Error codes
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodeRateLimited     = "RATE_LIMITED"
	CodeJobFailed       = "JOB_FAILED"
	CodeServiceError    = "SERVICE_ERROR"
	CodeConflict        = "CONFLICT"
)

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Remedy  string      `json:"remedy,omitempty"`
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

func RateLimited(c *fiber.Ctx) error {
	return Error(c, fiber.StatusTooManyRequests, CodeRateLimited, "Rate limit exceeded", nil)
}

func ServiceError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, CodeServiceError, message, nil)
}

func Conflict(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusConflict, CodeConflict, message, nil)
}

// ExportError writes an export failure with its user-facing message and remedy.
func ExportError(c *fiber.Ctx, err error) error {
	msg := exporterr.Describe(err)
	return c.Status(ExportStatus(err)).JSON(ErrorResponse{
		Error: ErrorDetail{
			Code:    msg.Code,
			Message: msg.Text,
			Remedy:  msg.Remedy,
		},
	})
}

// ExportStatus maps an export failure kind to an HTTP status.
func ExportStatus(err error) int {
	var (
		cfgErr     *exporterr.ConfigError
		secErr     *exporterr.ExportSecurityError
		assetErr   *exporterr.AssetLoadError
		busyErr    *exporterr.EncoderBusyError
		codecErr   *exporterr.CodecUnsupportedError
		cancelErr  *exporterr.CaptureCancelledError
		captureErr *exporterr.RenderCaptureError
	)
	switch {
	case errors.As(err, &cfgErr):
		return fiber.StatusBadRequest
	case errors.As(err, &secErr):
		return fiber.StatusUnprocessableEntity
	case errors.As(err, &assetErr):
		return fiber.StatusBadGateway
	case errors.As(err, &busyErr):
		return fiber.StatusServiceUnavailable
	case errors.As(err, &codecErr):
		return fiber.StatusNotImplemented
	case errors.As(err, &cancelErr):
		return fiber.StatusConflict
	case errors.As(err, &captureErr):
		return fiber.StatusInternalServerError
	}
	return fiber.StatusInternalServerError
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

func NoContent(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}
