package handler

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/listingcast/api/internal/exporterr"
	"github.com/listingcast/api/internal/model"
	"github.com/listingcast/api/internal/service"
	"github.com/listingcast/api/pkg/response"
)

type UploadHandler struct {
	service   *service.UploadService
	validator *validator.Validate
}

func NewUploadHandler(svc *service.UploadService, v *validator.Validate) *UploadHandler {
	return &UploadHandler{
		service:   svc,
		validator: v,
	}
}

// Media handles POST /api/uploads/media
// @Summary      Upload listing media
// @Description  Upload a listing photo (JPEG, PNG, WebP; max 5MB) or clip (MP4, WebM, MOV; max 100MB and 60s)
// @Tags         Upload
// @Accept       multipart/form-data
// @Produce      json
// @Param        file     formData file   true  "Photo or video clip"
// @Param        duration formData number false "Clip duration in seconds (required for video)"
// @Success      201 {object} model.UploadMediaResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Router       /api/uploads/media [post]
func (h *UploadHandler) Media(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "File is required", nil)
	}

	contentType := file.Header.Get("Content-Type")
	kind, _, ok := service.MediaKind(contentType)
	if !ok {
		return response.ValidationError(c, "Invalid file type. Supported: JPEG, PNG, WebP, MP4, WebM, MOV", map[string]interface{}{
			"contentType": contentType,
		})
	}

	var seconds float64
	if kind == service.MediaVideo {
		seconds, err = strconv.ParseFloat(c.FormValue("duration"), 64)
		if err != nil {
			return response.ValidationError(c, "duration is required for video", nil)
		}
	}

	if err := service.CheckMediaSize(kind, file.Size, seconds); err != nil {
		return response.ValidationError(c, err.Error(), map[string]interface{}{
			"maxImageSize":  model.MaxImageBytes,
			"maxVideoSize":  model.MaxVideoBytes,
			"maxClipLength": model.MaxClipSeconds,
			"fileSize":      file.Size,
		})
	}

	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to open file")
	}
	defer f.Close()

	result, err := h.service.UploadMedia(c.Context(), contentType, f, file.Size, seconds)
	if err != nil {
		var cfgErr *exporterr.ConfigError
		if errors.As(err, &cfgErr) {
			return response.ValidationError(c, err.Error(), nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Created(c, result)
}

// DeleteMedia handles DELETE /api/uploads/media/:kind/:id.:ext
// @Summary      Delete listing media
// @Description  Delete a previously uploaded photo or clip
// @Tags         Upload
// @Param        kind path string true "image or video"
// @Param        id   path string true "Media ID"
// @Param        ext  path string true "File extension"
// @Success      204
// @Failure      400 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Router       /api/uploads/media/{kind}/{id}.{ext} [delete]
func (h *UploadHandler) DeleteMedia(c *fiber.Ctx) error {
	err := h.service.DeleteMedia(c.Context(), c.Params("kind"), c.Params("id"), c.Params("ext"))
	if err != nil {
		var cfgErr *exporterr.ConfigError
		if errors.As(err, &cfgErr) {
			return response.ValidationError(c, err.Error(), nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.NoContent(c)
}
