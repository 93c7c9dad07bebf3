package model

import (
	"encoding/json"
	"time"
)

// Job represents a background export job in the system
type Job struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`
	Status       JobStatus       `json:"status"`
	Progress     int             `json:"progress"`
	Stage        ExportStage     `json:"stage,omitempty"`
	CurrentStep  string          `json:"currentStep,omitempty"`
	CurrentFrame int             `json:"currentFrame,omitempty"`
	TotalFrames  int             `json:"totalFrames,omitempty"`
	Error        *JobError       `json:"error,omitempty"`
	Payload      []byte          `json:"-"` // carried by the task, not the record
	Result       json.RawMessage `json:"result,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	StartedAt    *time.Time      `json:"startedAt,omitempty"`
	CompletedAt  *time.Time      `json:"completedAt,omitempty"`
	RetryCount   int             `json:"retryCount"`
	Format       ExportFormat    `json:"format"`
}

// JobError is the user-facing failure stored on a job
type JobError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Remedy  string `json:"remedy,omitempty"`
}

// Job types
const (
	JobTypeExport = "export"
)

// ExportJobPayload contains the data for an export job
type ExportJobPayload struct {
	Content    ContentType  `json:"content"`
	Format     ExportFormat `json:"format"`
	Listing    ListingData  `json:"listing"`
	Brand      BrandConfig  `json:"brand"`
	Style      StyleConfig  `json:"style"`
	FrameIndex int          `json:"frameIndex"`
	Quality    float64      `json:"quality"`
	Watermark  string       `json:"watermark,omitempty"`
	GIFPreset  string       `json:"gifPreset,omitempty"`
}

// Progress is one progress report from a running export
type Progress struct {
	Stage        ExportStage `json:"stage"`
	Percent      int         `json:"percent"`
	Message      string      `json:"message"`
	CurrentFrame int         `json:"currentFrame,omitempty"`
	TotalFrames  int         `json:"totalFrames,omitempty"`
}

// ProgressFunc receives progress reports. It must not block for long.
type ProgressFunc func(Progress)
