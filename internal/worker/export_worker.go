package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/hibiken/asynq"

	"github.com/listingcast/api/internal/client"
	"github.com/listingcast/api/internal/export"
	"github.com/listingcast/api/internal/exporterr"
	"github.com/listingcast/api/internal/model"
	"github.com/listingcast/api/internal/service"
	"github.com/listingcast/api/internal/websocket"
)

const defaultResultTTL = 24 * time.Hour

// JobStore is the part of the export service the worker writes to
type JobStore interface {
	UpdateJobProgress(ctx context.Context, jobID string, p model.Progress) error
	CompleteJob(ctx context.Context, jobID string, result *model.ExportResultResponse) error
	FailJob(ctx context.Context, jobID string, jobErr model.JobError) error
	IsCanceled(ctx context.Context, jobID string) (bool, error)
	MarkRetry(ctx context.Context, jobID string, retry int) error
}

// Pool hands out dispatchers, one per concurrent task
type Pool struct {
	free chan *export.Dispatcher
	all  []*export.Dispatcher
}

func NewPool(dispatchers ...*export.Dispatcher) *Pool {
	p := &Pool{free: make(chan *export.Dispatcher, len(dispatchers)), all: dispatchers}
	for _, d := range dispatchers {
		p.free <- d
	}
	return p
}

// Get blocks until a dispatcher is free.
func (p *Pool) Get(ctx context.Context) (*export.Dispatcher, error) {
	select {
	case d := <-p.free:
		return d, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pool) Put(d *export.Dispatcher) {
	p.free <- d
}

// Close releases every dispatcher's surfaces and encoder.
func (p *Pool) Close() error {
	var errs []error
	for _, d := range p.all {
		errs = append(errs, d.Close())
	}
	return errors.Join(errs...)
}

// ExportWorker processes export tasks
type ExportWorker struct {
	store    JobStore
	pool     *Pool
	r2Client client.StorageClient
	hub      *websocket.Hub

	// ResultTTL is how long the presigned artifact URL stays valid.
	ResultTTL time.Duration
}

// NewExportWorker creates a new export worker
func NewExportWorker(store JobStore, pool *Pool, r2Client client.StorageClient, hub *websocket.Hub) *ExportWorker {
	return &ExportWorker{
		store:     store,
		pool:      pool,
		r2Client:  r2Client,
		hub:       hub,
		ResultTTL: defaultResultTTL,
	}
}

// ProcessTask handles export task processing
func (w *ExportWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var task service.ExportTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}

	jobID := task.JobID
	if canceled, err := w.store.IsCanceled(ctx, jobID); err != nil {
		return fmt.Errorf("failed to load job %s: %w", jobID, err)
	} else if canceled {
		log.Printf("[Export] Job %s was cancelled before it started", jobID)
		return nil
	}
	if retry, ok := asynq.GetRetryCount(ctx); ok && retry > 0 {
		if err := w.store.MarkRetry(ctx, jobID, retry); err != nil {
			log.Printf("[Export] Failed to record retry for job %s: %v", jobID, err)
		}
	}

	log.Printf("[Export] Starting job %s", jobID)

	var payload model.ExportJobPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		w.failJob(ctx, jobID, exporterr.Invalid("payload", err.Error()))
		return fmt.Errorf("failed to unmarshal export payload: %v: %w", err, asynq.SkipRetry)
	}

	err := w.process(ctx, jobID, &payload)
	if err == nil {
		return nil
	}
	return w.handleFailure(ctx, jobID, err)
}

func (w *ExportWorker) process(ctx context.Context, jobID string, payload *model.ExportJobPayload) error {
	d, err := w.pool.Get(ctx)
	if err != nil {
		return err
	}
	defer w.pool.Put(d)

	req := export.Request{
		Content:    payload.Content,
		Format:     payload.Format,
		Listing:    &payload.Listing,
		Brand:      &payload.Brand,
		Style:      payload.Style,
		FrameIndex: payload.FrameIndex,
		Quality:    payload.Quality,
		Watermark:  payload.Watermark,
		GIFPreset:  payload.GIFPreset,
	}

	var buf bytes.Buffer
	progress := w.progressReporter(ctx, jobID)
	job, err := d.Start(ctx, req, &buf, progress)
	if err != nil {
		return err
	}
	if err := job.Wait(); err != nil {
		return err
	}

	out := job.Output()
	progress(model.Progress{Stage: model.StageProcessing, Percent: 99, Message: "Uploading"})
	result, err := w.upload(ctx, jobID, payload.Format, out, buf.Bytes())
	if err != nil {
		return err
	}

	if err := w.store.CompleteJob(ctx, jobID, result); err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	w.hub.BroadcastComplete(jobID, result)
	log.Printf("[Export] Job %s completed: %s, %d frames, %d bytes", jobID, out.ContentType, out.Frames, out.Size)
	return nil
}

func (w *ExportWorker) upload(ctx context.Context, jobID string, format model.ExportFormat, out export.Output, data []byte) (*model.ExportResultResponse, error) {
	if w.r2Client == nil {
		return nil, errors.New("artifact storage is not configured")
	}
	key := client.ArtifactKey(jobID, out.Ext)
	fileURL, err := w.r2Client.Upload(ctx, key, bytes.NewReader(data), out.ContentType)
	if err != nil {
		return nil, fmt.Errorf("failed to upload artifact: %w", err)
	}

	ttl := w.ResultTTL
	if ttl <= 0 {
		ttl = defaultResultTTL
	}
	now := time.Now()
	result := &model.ExportResultResponse{
		ID:          jobID,
		Format:      format,
		ContentType: out.ContentType,
		FileURL:     fileURL,
		Size:        int64(len(data)),
		Frames:      out.Frames,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
	if signed, err := w.r2Client.GetSignedURL(ctx, key, ttl); err != nil {
		log.Printf("[Export] Failed to presign %s: %v", key, err)
	} else {
		result.SignedURL = signed
	}
	return result, nil
}

// handleFailure decides between retry, cancellation and a terminal failure.
func (w *ExportWorker) handleFailure(ctx context.Context, jobID string, err error) error {
	// The task context may be gone; job bookkeeping still has to land.
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if exporterr.IsCancellation(err) {
		if canceled, _ := w.store.IsCanceled(bg, jobID); canceled {
			log.Printf("[Export] Job %s cancelled", jobID)
			w.hub.BroadcastError(jobID, toJobError(err))
			return nil
		}
	}

	if ctx.Err() != nil && !(errors.Is(ctx.Err(), context.DeadlineExceeded) && lastAttempt(ctx)) {
		// Shutdown or timeout: asynq requeues the task.
		log.Printf("[Export] Job %s interrupted: %v", jobID, err)
		return err
	}

	if retriable(err) && !lastAttempt(ctx) {
		log.Printf("[Export] Job %s will retry: %v", jobID, err)
		return err
	}

	w.failJob(bg, jobID, err)
	return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
}

// progressReporter persists and broadcasts progress, skipping repeats.
func (w *ExportWorker) progressReporter(ctx context.Context, jobID string) model.ProgressFunc {
	var (
		mu    sync.Mutex
		last  model.Progress
		first = true
	)
	return func(p model.Progress) {
		mu.Lock()
		defer mu.Unlock()
		if !first && p.Stage == last.Stage && p.Percent == last.Percent {
			return
		}
		first = false
		last = p
		if err := w.store.UpdateJobProgress(ctx, jobID, p); err != nil {
			log.Printf("[Export] Failed to update progress for %s: %v", jobID, err)
		}
		w.hub.BroadcastProgress(jobID, p)
	}
}

func (w *ExportWorker) failJob(ctx context.Context, jobID string, err error) {
	jobErr := toJobError(err)
	log.Printf("[Export] Job %s failed: %v", jobID, err)
	if serr := w.store.FailJob(ctx, jobID, jobErr); serr != nil {
		log.Printf("[Export] Failed to mark job as failed: %v", serr)
	}
	w.hub.BroadcastError(jobID, jobErr)
}

func toJobError(err error) model.JobError {
	msg := exporterr.Describe(err)
	return model.JobError{Code: msg.Code, Message: msg.Text, Remedy: msg.Remedy}
}

// retriable reports whether another attempt could succeed.
func retriable(err error) bool {
	var (
		cfgErr   *exporterr.ConfigError
		secErr   *exporterr.ExportSecurityError
		codecErr *exporterr.CodecUnsupportedError
	)
	switch {
	case errors.As(err, &cfgErr), errors.As(err, &secErr), errors.As(err, &codecErr):
		return false
	case exporterr.IsCancellation(err):
		return false
	}
	return true
}

func lastAttempt(ctx context.Context) bool {
	retry, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	return retry >= maxRetry
}
