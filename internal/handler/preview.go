package handler

import (
	"bytes"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/listingcast/api/internal/export/gif"
	"github.com/listingcast/api/internal/model"
	"github.com/listingcast/api/internal/service"
	"github.com/listingcast/api/pkg/response"
)

type PreviewHandler struct {
	service   *service.PreviewService
	validator *validator.Validate
}

func NewPreviewHandler(svc *service.PreviewService, v *validator.Validate) *PreviewHandler {
	return &PreviewHandler{
		service:   svc,
		validator: v,
	}
}

// Frame handles POST /api/preview/frame
// @Summary      Render preview frame
// @Description  Render one frame synchronously and return it as a PNG
// @Tags         Preview
// @Accept       json
// @Produce      png
// @Param        request body model.PreviewFrameRequest true "Preview request"
// @Success      200 {file} binary
// @Failure      400 {object} response.ErrorResponse
// @Failure      422 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      502 {object} response.ErrorResponse
// @Router       /api/preview/frame [post]
func (h *PreviewHandler) Frame(c *fiber.Ctx) error {
	var req model.PreviewFrameRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	var buf bytes.Buffer
	if err := h.service.RenderFrame(c.Context(), &req, &buf); err != nil {
		return response.ExportError(c, err)
	}

	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(buf.Bytes())
}

// GIFPreset handles GET /api/presets/gif
// @Summary      Pick GIF preset
// @Description  Return the GIF preset used for a source of the given duration
// @Tags         Preview
// @Produce      json
// @Param        duration query number true  "Source duration in seconds"
// @Param        preset   query string false "Preset override (premium, standard, compact)"
// @Success      200 {object} model.GIFPresetResponse
// @Failure      400 {object} response.ErrorResponse
// @Router       /api/presets/gif [get]
func (h *PreviewHandler) GIFPreset(c *fiber.Ctx) error {
	seconds, err := strconv.ParseFloat(c.Query("duration"), 64)
	if err != nil || seconds < 0 {
		return response.ValidationError(c, "duration must be a non-negative number of seconds", nil)
	}

	d := time.Duration(seconds * float64(time.Second))
	preset, err := gif.PresetByName(c.Query("preset"), d)
	if err != nil {
		return response.ValidationError(c, err.Error(), nil)
	}

	return response.OK(c, model.GIFPresetResponse{
		Name:     preset.Name,
		FPS:      preset.FPS,
		Quality:  preset.Quality,
		Scale:    preset.Scale,
		Duration: seconds,
	})
}
