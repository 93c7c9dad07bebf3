package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/listingcast/api/internal/exporterr"
	"github.com/listingcast/api/internal/model"
	"github.com/listingcast/api/internal/service"
	"github.com/listingcast/api/pkg/response"
)

type ExportHandler struct {
	service   *service.ExportService
	validator *validator.Validate
}

func NewExportHandler(svc *service.ExportService, v *validator.Validate) *ExportHandler {
	return &ExportHandler{
		service:   svc,
		validator: v,
	}
}

// Start handles POST /api/exports
// @Summary      Start export job
// @Description  Queue an export of a listing as an image, GIF or video
// @Tags         Exports
// @Accept       json
// @Produce      json
// @Param        request body model.ExportStartRequest true "Export start request"
// @Success      202 {object} model.ExportStartResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Router       /api/exports [post]
func (h *ExportHandler) Start(c *fiber.Ctx) error {
	var req model.ExportStartRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.StartExport(c.Context(), &req)
	if err != nil {
		var cfgErr *exporterr.ConfigError
		if errors.As(err, &cfgErr) {
			return response.ExportError(c, err)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// Status handles GET /api/exports/:jobId/status
// @Summary      Get export job status
// @Description  Get the current stage and progress of an export job
// @Tags         Exports
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.ExportStatusResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Router       /api/exports/{jobId}/status [get]
func (h *ExportHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.GetStatus(c.Context(), jobID)
	if err != nil {
		return jobError(c, err)
	}

	return response.OK(c, result)
}

// Result handles GET /api/exports/:jobId/result
// @Summary      Get export result
// @Description  Get the artifact URLs of a completed export
// @Tags         Exports
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.ExportResultResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Router       /api/exports/{jobId}/result [get]
func (h *ExportHandler) Result(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.GetResult(c.Context(), jobID)
	if err != nil {
		return jobError(c, err)
	}

	return response.OK(c, result)
}

// Cancel handles POST /api/exports/:jobId/cancel
// @Summary      Cancel export job
// @Description  Cancel a queued or running export
// @Tags         Exports
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.ExportCancelResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Router       /api/exports/{jobId}/cancel [post]
func (h *ExportHandler) Cancel(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.CancelExport(c.Context(), jobID)
	if err != nil {
		return jobError(c, err)
	}

	return response.OK(c, result)
}

func jobError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrJobNotFound):
		return response.NotFound(c, "Job not found")
	case errors.Is(err, service.ErrJobNotCompleted):
		return response.ValidationError(c, "Job not completed", nil)
	case errors.Is(err, service.ErrJobFinished):
		return response.Conflict(c, "Job already finished")
	}
	return response.ServiceError(c, err.Error())
}
