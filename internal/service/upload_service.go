package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"time"

	"github.com/google/uuid"
	_ "golang.org/x/image/webp"

	"github.com/listingcast/api/internal/client"
	"github.com/listingcast/api/internal/exporterr"
	"github.com/listingcast/api/internal/model"
)

// Media kinds accepted by UploadMedia
const (
	MediaImage = "image"
	MediaVideo = "video"
)

var imageTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/jpg":  "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

var videoTypes = map[string]string{
	"video/mp4":       "mp4",
	"video/webm":      "webm",
	"video/quicktime": "mov",
}

// MediaKind returns the media kind and file extension for a content type.
func MediaKind(contentType string) (kind, ext string, ok bool) {
	if ext, ok := imageTypes[contentType]; ok {
		return MediaImage, ext, true
	}
	if ext, ok := videoTypes[contentType]; ok {
		return MediaVideo, ext, true
	}
	return "", "", false
}

// CheckMediaSize applies the per-kind upload limits.
func CheckMediaSize(kind string, size int64, seconds float64) error {
	switch kind {
	case MediaImage:
		if size > model.MaxImageBytes {
			return exporterr.Invalid("file", "images must be 5MB or smaller")
		}
	case MediaVideo:
		if size > model.MaxVideoBytes {
			return exporterr.Invalid("file", "videos must be 100MB or smaller")
		}
		if seconds <= 0 {
			return exporterr.Invalid("duration", "video duration is required")
		}
		if seconds > model.MaxClipSeconds {
			return exporterr.Invalid("duration", fmt.Sprintf("videos must be %ds or shorter", model.MaxClipSeconds))
		}
	default:
		return exporterr.Unknown("kind", kind)
	}
	return nil
}

// UploadService stores listing photos and clips in R2
type UploadService struct {
	r2Client client.StorageClient
}

// NewUploadService creates a new upload service with R2 client
func NewUploadService(r2Client client.StorageClient) *UploadService {
	return &UploadService{
		r2Client: r2Client,
	}
}

// UploadMedia validates and stores one photo or clip. seconds is the
// client-declared clip duration and is ignored for images.
func (s *UploadService) UploadMedia(ctx context.Context, contentType string, file io.Reader, size int64, seconds float64) (*model.UploadMediaResponse, error) {
	kind, ext, ok := MediaKind(contentType)
	if !ok {
		return nil, exporterr.Invalid("file", fmt.Sprintf("unsupported content type %q", contentType))
	}
	if err := CheckMediaSize(kind, size, seconds); err != nil {
		return nil, err
	}

	body := file
	if kind == MediaImage {
		data, err := io.ReadAll(io.LimitReader(file, model.MaxImageBytes+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read image: %w", err)
		}
		if len(data) > model.MaxImageBytes {
			return nil, exporterr.Invalid("file", "images must be 5MB or smaller")
		}
		if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
			return nil, exporterr.Invalid("file", "image could not be decoded")
		}
		body = bytes.NewReader(data)
	} else {
		body = io.LimitReader(file, model.MaxVideoBytes)
		seconds = float64(int(seconds*1000)) / 1000
	}

	if s.r2Client == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	id := uuid.New().String()
	fileURL, err := s.r2Client.Upload(ctx, client.MediaKey(kind, id, ext), body, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to upload media: %w", err)
	}

	resp := &model.UploadMediaResponse{
		ID:          id,
		Kind:        kind,
		FileURL:     fileURL,
		Size:        size,
		ContentType: contentType,
		CreatedAt:   time.Now(),
	}
	if kind == MediaVideo {
		resp.Duration = seconds
	}
	return resp, nil
}

// DeleteMedia deletes an uploaded file by kind, id and extension
func (s *UploadService) DeleteMedia(ctx context.Context, kind, id, ext string) error {
	if !knownExt(kind, ext) {
		return exporterr.Invalid("file", fmt.Sprintf("no %s uploads use .%s", kind, ext))
	}
	if _, err := uuid.Parse(id); err != nil {
		return exporterr.Invalid("id", "media id must be a UUID")
	}
	if s.r2Client == nil {
		return fmt.Errorf("storage is not configured")
	}
	if err := s.r2Client.Delete(ctx, client.MediaKey(kind, id, ext)); err != nil {
		return fmt.Errorf("failed to delete media: %w", err)
	}
	return nil
}

func knownExt(kind, ext string) bool {
	types := imageTypes
	switch kind {
	case MediaImage:
	case MediaVideo:
		types = videoTypes
	default:
		return false
	}
	for _, e := range types {
		if e == ext {
			return true
		}
	}
	return false
}
