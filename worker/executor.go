// Package worker provides the extraction execution engine — an Executor
// that runs one job through its pipeline steps behind middleware, and a
// Pool that manages concurrent worker slots polling for due jobs.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/docpipe/docpipe/backoff"
	"github.com/docpipe/docpipe/dlq"
	"github.com/docpipe/docpipe/document"
	"github.com/docpipe/docpipe/ext"
	"github.com/docpipe/docpipe/extract"
	"github.com/docpipe/docpipe/id"
	"github.com/docpipe/docpipe/job"
	"github.com/docpipe/docpipe/middleware"
	"github.com/docpipe/docpipe/schema"
	"github.com/docpipe/docpipe/storage"
)

// Executor runs a single job through middleware and the extraction
// pipeline, then handles retry scheduling, failure archival, state
// updates, and lifecycle events.
type Executor struct {
	store      job.Store
	docs       document.Service
	files      storage.FileStore
	extractor  extract.Extractor
	validator  extract.Validator
	extensions *ext.Registry
	dlqService *dlq.Service
	backoff    backoff.Strategy
	mw         middleware.Middleware
	logger     *slog.Logger
}

// NewExecutor creates an Executor with the given dependencies. The
// validator may be nil, in which case the pre-extraction content check
// is never run.
func NewExecutor(
	store job.Store,
	docs document.Service,
	files storage.FileStore,
	extractor extract.Extractor,
	validator extract.Validator,
	extensions *ext.Registry,
	dlqService *dlq.Service,
	bo backoff.Strategy,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Executor {
	return &Executor{
		store:      store,
		docs:       docs,
		files:      files,
		extractor:  extractor,
		validator:  validator,
		extensions: extensions,
		dlqService: dlqService,
		backoff:    bo,
		mw:         middleware.Chain(mws...),
		logger:     logger,
	}
}

// Execute runs a job through the middleware chain and pipeline steps.
// On success: marks completed, emits JobCompleted.
// On content rejection: marks completed with the rejection reason — a
// terminal outcome that is never retried.
// On infrastructure failure with attempts remaining: marks delayed with
// backoff, emits JobRetrying.
// On failure with attempts exhausted: marks failed, archives the
// failure, emits JobFailed.
func (e *Executor) Execute(ctx context.Context, j *job.Job) error {
	start := time.Now()

	// Every execution counts as an attempt, successful or not, so a
	// terminal job always reports how many times it actually ran.
	j.Attempts++

	err := e.mw(ctx, j, func(ctx context.Context) error {
		return e.process(ctx, j)
	})
	elapsed := time.Since(start)

	now := time.Now().UTC()
	j.UpdatedAt = now

	if err != nil {
		var rej *extract.RejectionError
		if errors.As(err, &rej) {
			return e.handleRejection(ctx, j, rej, now, elapsed)
		}
		return e.handleFailure(ctx, j, err, now)
	}

	return e.handleSuccess(ctx, j, now, elapsed)
}

// process runs the pipeline steps for one job: resolve the document,
// read its file, optionally run the content pre-check, extract, validate
// the result against the schema snapshot, and persist the outcome.
func (e *Executor) process(ctx context.Context, j *job.Job) error {
	e.setProgress(ctx, j, job.Progress{Status: "starting", Percent: 5})

	doc, err := e.docs.GetDocument(ctx, j.DocumentID)
	if err != nil {
		return fmt.Errorf("resolve document %s: %w", j.DocumentID, err)
	}

	file, err := e.files.Read(ctx, doc.StorageLocation)
	if err != nil {
		return fmt.Errorf("read file %s: %w", doc.StorageLocation, err)
	}

	req := extract.Request{
		File:     file.Data,
		MIMEType: file.MIMEType,
		Schema:   j.SchemaSnapshot,
		Model:    j.Model,
	}

	if !j.SkipValidation && e.validator != nil {
		e.setProgress(ctx, j, job.Progress{Status: "validating", Percent: 15})
		if err := e.validator.Validate(ctx, req); err != nil {
			// A RejectionError propagates to Execute as a terminal
			// completed-with-rejection outcome.
			return err
		}
	}

	e.setProgress(ctx, j, job.Progress{Status: "extracting", Percent: 25})

	var result *extract.Result
	if j.Streaming {
		result, err = e.extractor.ExtractStream(ctx, req, func(partial json.RawMessage) {
			e.setProgress(ctx, j, job.Progress{Status: "extracting", Percent: 60, Data: partial})
		})
	} else {
		result, err = e.extractor.Extract(ctx, req)
	}
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	// A result that does not conform to the schema snapshot means the
	// collaborator misbehaved: an infrastructure failure, retryable.
	if err := schema.Validate(j.SchemaSnapshot, result.Data); err != nil {
		return fmt.Errorf("extracted data does not match schema: %w", err)
	}

	e.setProgress(ctx, j, job.Progress{Status: "saving", Percent: 90})

	saved, err := e.docs.UpdateDocument(ctx, j.DocumentID, document.Update{
		ExtractedData:  result.Data,
		Status:         document.StatusProcessed,
		SchemaSnapshot: j.SchemaSnapshot,
	})
	if err != nil {
		return fmt.Errorf("save document %s: %w", j.DocumentID, err)
	}

	e.extensions.EmitDocumentSaved(ctx, j, saved)

	j.Progress = job.Progress{Status: "completed", Percent: 100, Data: result.Data}
	return nil
}

// handleSuccess marks the job as completed and emits the lifecycle event.
func (e *Executor) handleSuccess(ctx context.Context, j *job.Job, now time.Time, elapsed time.Duration) error {
	j.State = job.StateCompleted
	j.CompletedAt = &now

	if updateErr := e.store.UpdateJob(ctx, j); updateErr != nil {
		e.logger.Error("failed to update job after success",
			slog.String("job_id", j.ID.String()),
			slog.String("document_id", j.DocumentID),
			slog.String("error", updateErr.Error()),
		)
		return updateErr
	}

	e.extensions.EmitJobCompleted(ctx, j, elapsed)
	return nil
}

// handleRejection marks the job as completed with a rejection reason.
// Rejection is a verdict about the document, not a malfunction, so it
// is terminal and never retried.
func (e *Executor) handleRejection(ctx context.Context, j *job.Job, rej *extract.RejectionError, now time.Time, elapsed time.Duration) error {
	j.State = job.StateCompleted
	j.Rejection = rej.Reason
	j.CompletedAt = &now
	j.Progress = job.Progress{Status: "rejected", Percent: 100, Error: rej.Reason}

	// The document record carries the verdict too.
	if _, docErr := e.docs.UpdateDocument(ctx, j.DocumentID, document.Update{
		Status: document.StatusRejected,
	}); docErr != nil {
		e.logger.Error("failed to mark document rejected",
			slog.String("job_id", j.ID.String()),
			slog.String("document_id", j.DocumentID),
			slog.String("error", docErr.Error()),
		)
	}

	if updateErr := e.store.UpdateJob(ctx, j); updateErr != nil {
		e.logger.Error("failed to update job after rejection",
			slog.String("job_id", j.ID.String()),
			slog.String("error", updateErr.Error()),
		)
		return updateErr
	}

	e.logger.Info("document rejected by content check",
		slog.String("job_id", j.ID.String()),
		slog.String("document_id", j.DocumentID),
		slog.String("reason", rej.Reason),
	)

	e.extensions.EmitJobCompleted(ctx, j, elapsed)
	return nil
}

// handleFailure either schedules a retry or records a terminal
// failure, depending on how many attempts remain.
func (e *Executor) handleFailure(ctx context.Context, j *job.Job, jobErr error, now time.Time) error {
	j.LastError = jobErr.Error()

	if j.Attempts < j.MaxAttempts {
		return e.scheduleRetry(ctx, j, now)
	}

	return e.failTerminally(ctx, j, jobErr, now)
}

// scheduleRetry sets the job to StateDelayed with a backoff delay.
func (e *Executor) scheduleRetry(ctx context.Context, j *job.Job, now time.Time) error {
	delay := e.backoff.Delay(j.Attempts)
	nextRunAt := now.Add(delay)
	j.RunAt = nextRunAt
	j.State = job.StateDelayed
	j.WorkerID = id.WorkerID{}
	j.Progress = job.Progress{Status: "queued", Error: j.LastError}

	if updateErr := e.store.UpdateJob(ctx, j); updateErr != nil {
		e.logger.Error("failed to update job for retry",
			slog.String("job_id", j.ID.String()),
			slog.String("error", updateErr.Error()),
		)
		return updateErr
	}

	e.extensions.EmitJobRetrying(ctx, j, j.Attempts, nextRunAt)

	e.logger.Info("job scheduled for retry",
		slog.String("job_id", j.ID.String()),
		slog.String("document_id", j.DocumentID),
		slog.Int("attempt", j.Attempts),
		slog.Int("max_attempts", j.MaxAttempts),
		slog.Duration("delay", delay),
	)

	return fmt.Errorf("job %s attempt %d/%d: %s", j.ID, j.Attempts, j.MaxAttempts, j.LastError)
}

// failTerminally marks the job as failed, archives the failure, and
// emits events.
func (e *Executor) failTerminally(ctx context.Context, j *job.Job, jobErr error, now time.Time) error {
	j.State = job.StateFailed
	j.CompletedAt = &now
	j.Progress = job.Progress{Status: "failed", Error: j.LastError}

	if updateErr := e.store.UpdateJob(ctx, j); updateErr != nil {
		e.logger.Error("failed to update job as failed",
			slog.String("job_id", j.ID.String()),
			slog.String("error", updateErr.Error()),
		)
		return updateErr
	}

	if e.dlqService != nil {
		if dlqErr := e.dlqService.Push(ctx, j, jobErr); dlqErr != nil {
			e.logger.Error("failed to archive job failure",
				slog.String("job_id", j.ID.String()),
				slog.String("error", dlqErr.Error()),
			)
		}
	}

	e.extensions.EmitJobFailed(ctx, j, jobErr)

	e.logger.Warn("job failed after exhausting attempts",
		slog.String("job_id", j.ID.String()),
		slog.String("document_id", j.DocumentID),
		slog.Int("attempts", j.Attempts),
		slog.String("error", jobErr.Error()),
	)

	return jobErr
}

// setProgress persists a progress snapshot and fans it out to hooks.
// Persistence failures are logged, never fatal: losing a progress tick
// must not fail the job.
func (e *Executor) setProgress(ctx context.Context, j *job.Job, p job.Progress) {
	j.Progress = p
	if err := e.store.UpdateProgress(ctx, j.ID, p); err != nil {
		e.logger.Warn("failed to persist progress",
			slog.String("job_id", j.ID.String()),
			slog.String("status", p.Status),
			slog.String("error", err.Error()),
		)
	}
	e.extensions.EmitJobProgress(ctx, j, p)
}
