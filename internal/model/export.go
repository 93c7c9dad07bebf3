package model

import "time"

// ExportStartRequest represents the request to start an export job
type ExportStartRequest struct {
	Content    ContentType  `json:"content" validate:"required,oneof=single carousel video"`
	Format     ExportFormat `json:"format" validate:"required,oneof=png jpeg gif mp4 webm"`
	Listing    ListingData  `json:"listing" validate:"required"`
	Brand      BrandConfig  `json:"brand" validate:"required"`
	Style      *StyleConfig `json:"style" validate:"omitempty"`
	FrameIndex int          `json:"frameIndex" validate:"min=0,max=10"`
	Quality    *float64     `json:"quality" validate:"omitempty,min=0,max=1"`
	Watermark  string       `json:"watermark" validate:"max=60"`
	GIFPreset  string       `json:"gifPreset" validate:"omitempty,oneof=premium standard compact"`
}

// ExportStartResponse represents the response when starting an export
type ExportStartResponse struct {
	JobID             string    `json:"jobId"`
	Status            JobStatus `json:"status"`
	EstimatedDuration int       `json:"estimatedDuration"`
	CreatedAt         time.Time `json:"createdAt"`
}

// ExportStatusResponse represents the status of an export job
type ExportStatusResponse struct {
	JobID        string       `json:"jobId"`
	Status       JobStatus    `json:"status"`
	Format       ExportFormat `json:"format"`
	Progress     int          `json:"progress"`
	Stage        ExportStage  `json:"stage,omitempty"`
	CurrentStep  string       `json:"currentStep,omitempty"`
	CurrentFrame int          `json:"currentFrame,omitempty"`
	TotalFrames  int          `json:"totalFrames,omitempty"`
	Error        *JobError    `json:"error"`
	CreatedAt    time.Time    `json:"createdAt"`
	StartedAt    *time.Time   `json:"startedAt"`
	CompletedAt  *time.Time   `json:"completedAt"`
	RetryCount   int          `json:"retryCount"`
}

// ExportResultResponse represents the artifact of a completed export
type ExportResultResponse struct {
	ID          string       `json:"id"`
	Format      ExportFormat `json:"format"`
	ContentType string       `json:"contentType"`
	FileURL     string       `json:"fileUrl"`
	SignedURL   string       `json:"signedUrl,omitempty"`
	Size        int64        `json:"size"`
	Frames      int          `json:"frames"`
	CreatedAt   time.Time    `json:"createdAt"`
	ExpiresAt   time.Time    `json:"expiresAt"`
}

// ExportCancelResponse represents the response when canceling an export
type ExportCancelResponse struct {
	Success bool      `json:"success"`
	JobID   string    `json:"jobId"`
	Status  JobStatus `json:"status"`
}

// PreviewFrameRequest asks for one synchronously rendered frame
type PreviewFrameRequest struct {
	Listing    ListingData  `json:"listing" validate:"required"`
	Brand      BrandConfig  `json:"brand" validate:"required"`
	Style      *StyleConfig `json:"style" validate:"omitempty"`
	FrameIndex int          `json:"frameIndex" validate:"min=0,max=10"`
	Elapsed    int          `json:"elapsed" validate:"min=0"` // ms
	Summary    bool         `json:"summary"`
}

// GIFPresetResponse describes the preset picked for a duration
type GIFPresetResponse struct {
	Name     string  `json:"name"`
	FPS      int     `json:"fps"`
	Quality  int     `json:"quality"`
	Scale    float64 `json:"scale"`
	Duration float64 `json:"duration"`
}

// UploadMediaResponse represents an uploaded source photo or clip
type UploadMediaResponse struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	FileURL     string    `json:"fileUrl"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType"`
	Duration    float64   `json:"duration,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}
