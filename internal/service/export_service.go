package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/listingcast/api/internal/export"
	"github.com/listingcast/api/internal/exporterr"
	"github.com/listingcast/api/internal/model"
)

const (
	TaskTypeExport = "export:process"
	ExportQueue    = "exports"

	jobTTL         = 24 * time.Hour
	defaultQuality = 0.92
)

var (
	ErrJobNotFound     = errors.New("job not found")
	ErrJobNotCompleted = errors.New("job not completed")
	ErrJobFinished     = errors.New("job already finished")
)

// ExportTask is the asynq payload of an export job
type ExportTask struct {
	JobID   string          `json:"jobId"`
	Payload json.RawMessage `json:"payload"`
}

// ExportService manages export job records and the export queue
type ExportService struct {
	redis       *redis.Client
	asynqClient *asynq.Client
	inspector   *asynq.Inspector
	timeout     time.Duration
}

func NewExportService(redisClient *redis.Client, asynqClient *asynq.Client, inspector *asynq.Inspector, timeout time.Duration) *ExportService {
	return &ExportService{
		redis:       redisClient,
		asynqClient: asynqClient,
		inspector:   inspector,
		timeout:     timeout,
	}
}

// CheckRequest applies the checks struct tags cannot express.
func CheckRequest(req *model.ExportStartRequest) error {
	if _, err := export.Select(req.Content, req.Format); err != nil {
		return err
	}
	if err := req.Listing.CheckPrice(); err != nil {
		return exporterr.Invalid("listing", err.Error())
	}
	if err := req.Listing.CheckMedia(req.Content); err != nil {
		return exporterr.Invalid("listing", err.Error())
	}
	if req.Content != model.ContentVideo && req.FrameIndex >= len(req.Listing.Photos)+1 {
		return exporterr.Invalid("frameIndex", fmt.Sprintf("%d is past the last frame", req.FrameIndex))
	}
	return nil
}

// StartExport saves a queued job and enqueues its task
func (s *ExportService) StartExport(ctx context.Context, req *model.ExportStartRequest) (*model.ExportStartResponse, error) {
	if err := CheckRequest(req); err != nil {
		return nil, err
	}

	jobID := uuid.New().String()
	now := time.Now()

	payload := &model.ExportJobPayload{
		Content:    req.Content,
		Format:     req.Format,
		Listing:    req.Listing,
		Brand:      req.Brand,
		Style:      model.DefaultStyle(),
		FrameIndex: req.FrameIndex,
		Quality:    defaultQuality,
		Watermark:  req.Watermark,
		GIFPreset:  req.GIFPreset,
	}
	if req.Style != nil {
		payload.Style = *req.Style
	}
	if req.Quality != nil {
		payload.Quality = *req.Quality
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	job := &model.Job{
		ID:        jobID,
		Type:      model.JobTypeExport,
		Status:    model.JobStatusQueued,
		Format:    req.Format,
		CreatedAt: now,
	}
	if err := s.saveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	task, err := NewExportTask(jobID, payloadBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	opts := []asynq.Option{
		asynq.TaskID(jobID),
		asynq.Queue(ExportQueue),
		asynq.MaxRetry(3),
		asynq.Retention(jobTTL),
	}
	if s.timeout > 0 {
		opts = append(opts, asynq.Timeout(s.timeout))
	}
	if _, err := s.asynqClient.EnqueueContext(ctx, task, opts...); err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	return &model.ExportStartResponse{
		JobID:             jobID,
		Status:            model.JobStatusQueued,
		EstimatedDuration: EstimateSeconds(payload),
		CreatedAt:         now,
	}, nil
}

// EstimateSeconds guesses how long an export takes, for the client's spinner.
func EstimateSeconds(p *model.ExportJobPayload) int {
	slides := len(p.Listing.Photos)
	if p.Style.Summary {
		slides++
	}
	switch p.Format {
	case model.FormatPNG, model.FormatJPEG:
		return 2
	case model.FormatGIF:
		if p.Content == model.ContentVideo {
			return 5 + int(math.Ceil(p.Listing.TourSeconds()))
		}
		return 3 + slides
	case model.FormatWebM:
		// Live capture plays in real time.
		return 5 + slides*model.StillSecondsPerFrame
	default:
		return 5 + 2*slides
	}
}

// GetStatus returns the current status of an export job
func (s *ExportService) GetStatus(ctx context.Context, jobID string) (*model.ExportStatusResponse, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	return &model.ExportStatusResponse{
		JobID:        job.ID,
		Status:       job.Status,
		Format:       job.Format,
		Progress:     job.Progress,
		Stage:        job.Stage,
		CurrentStep:  job.CurrentStep,
		CurrentFrame: job.CurrentFrame,
		TotalFrames:  job.TotalFrames,
		Error:        job.Error,
		CreatedAt:    job.CreatedAt,
		StartedAt:    job.StartedAt,
		CompletedAt:  job.CompletedAt,
		RetryCount:   job.RetryCount,
	}, nil
}

// GetResult returns the artifact of a completed export job
func (s *ExportService) GetResult(ctx context.Context, jobID string) (*model.ExportResultResponse, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status != model.JobStatusSucceeded {
		return nil, ErrJobNotCompleted
	}

	var result model.ExportResultResponse
	if err := json.Unmarshal(job.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}

	return &result, nil
}

// CancelExport marks a job canceled and stops its task, queued or running
func (s *ExportService) CancelExport(ctx context.Context, jobID string) (*model.ExportCancelResponse, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if isFinished(job.Status) {
		return nil, ErrJobFinished
	}

	wasRunning := job.Status == model.JobStatusRunning
	job.Status = model.JobStatusCanceled
	now := time.Now()
	job.CompletedAt = &now
	job.Error = &model.JobError{Code: exporterr.CodeCanceled, Message: "The export was cancelled."}

	if err := s.saveJob(ctx, job); err != nil {
		return nil, err
	}

	if s.inspector != nil {
		if wasRunning {
			if err := s.inspector.CancelProcessing(jobID); err != nil {
				log.Printf("[Export] Failed to signal cancel for job %s: %v", jobID, err)
			}
		} else if err := s.inspector.DeleteTask(ExportQueue, jobID); err != nil && !errors.Is(err, asynq.ErrTaskNotFound) {
			// The task may already be active; fall back to a cancel signal.
			if cerr := s.inspector.CancelProcessing(jobID); cerr != nil {
				log.Printf("[Export] Failed to cancel job %s: %v / %v", jobID, err, cerr)
			}
		}
	}

	return &model.ExportCancelResponse{
		Success: true,
		JobID:   jobID,
		Status:  model.JobStatusCanceled,
	}, nil
}

// IsCanceled reports whether a job was canceled by the client
func (s *ExportService) IsCanceled(ctx context.Context, jobID string) (bool, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	return job.Status == model.JobStatusCanceled, nil
}

// UpdateJobProgress records a progress report (called by worker)
func (s *ExportService) UpdateJobProgress(ctx context.Context, jobID string, p model.Progress) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}
	if isFinished(job.Status) {
		return nil
	}

	job.Progress = p.Percent
	job.Stage = p.Stage
	job.CurrentStep = p.Message
	job.CurrentFrame = p.CurrentFrame
	job.TotalFrames = p.TotalFrames

	if job.Status == model.JobStatusQueued {
		job.Status = model.JobStatusRunning
		now := time.Now()
		job.StartedAt = &now
	}

	return s.saveJob(ctx, job)
}

// MarkRetry records another delivery of the task (called by worker)
func (s *ExportService) MarkRetry(ctx context.Context, jobID string, retry int) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.RetryCount == retry {
		return nil
	}
	job.RetryCount = retry
	return s.saveJob(ctx, job)
}

// CompleteJob marks job as succeeded (called by worker)
func (s *ExportService) CompleteJob(ctx context.Context, jobID string, result *model.ExportResultResponse) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}

	resultBytes, err := json.Marshal(result)
	if err != nil {
		return err
	}

	job.Status = model.JobStatusSucceeded
	job.Progress = 100
	job.Stage = model.StageComplete
	job.Error = nil
	job.Result = resultBytes
	now := time.Now()
	job.CompletedAt = &now

	return s.saveJob(ctx, job)
}

// FailJob marks job as failed (called by worker)
func (s *ExportService) FailJob(ctx context.Context, jobID string, jobErr model.JobError) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status == model.JobStatusCanceled {
		return nil
	}

	job.Status = model.JobStatusFailed
	job.Error = &jobErr
	now := time.Now()
	job.CompletedAt = &now

	return s.saveJob(ctx, job)
}

func isFinished(status model.JobStatus) bool {
	switch status {
	case model.JobStatusSucceeded, model.JobStatusFailed, model.JobStatusCanceled:
		return true
	}
	return false
}

// Helper methods

func (s *ExportService) saveJob(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, jobKey(job.ID), data, jobTTL).Err()
}

func (s *ExportService) getJob(ctx context.Context, jobID string) (*model.Job, error) {
	data, err := s.redis.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}

	return &job, nil
}

func jobKey(id string) string {
	return fmt.Sprintf("job:%s", id)
}

// NewExportTask wraps a job payload into an asynq task
func NewExportTask(jobID string, payload []byte) (*asynq.Task, error) {
	data, err := json.Marshal(ExportTask{JobID: jobID, Payload: payload})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeExport, data), nil
}
