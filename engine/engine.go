package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/docpipe/docpipe"
	"github.com/docpipe/docpipe/auth"
	"github.com/docpipe/docpipe/backoff"
	"github.com/docpipe/docpipe/dlq"
	"github.com/docpipe/docpipe/document"
	"github.com/docpipe/docpipe/ext"
	"github.com/docpipe/docpipe/extract"
	"github.com/docpipe/docpipe/extract/gemini"
	"github.com/docpipe/docpipe/id"
	"github.com/docpipe/docpipe/job"
	mw "github.com/docpipe/docpipe/middleware"
	"github.com/docpipe/docpipe/observability"
	"github.com/docpipe/docpipe/ratelimit"
	"github.com/docpipe/docpipe/schema"
	"github.com/docpipe/docpipe/storage"
	"github.com/docpipe/docpipe/stream"
	"github.com/docpipe/docpipe/worker"
)

// Engine is the top-level facade for document-extraction processing.
// It owns the worker pool, extension registry, stream broker, and DLQ
// service, and exposes the submission, status, cancellation, and
// subscription operations.
type Engine struct {
	p          *docpipe.Pipeline
	jobStore   job.Store
	dlqService *dlq.Service
	extensions *ext.Registry
	broker     *stream.Broker
	pool       *worker.Pool
	logger     *slog.Logger

	// Collaborators.
	docs      document.Service
	types     document.TypeService
	files     storage.FileStore
	extractor extract.Extractor
	validator extract.Validator

	// Options.
	bo             backoff.Strategy
	mws            []mw.Middleware
	rateLimits     []ratelimit.Config
	limiter        *ratelimit.Manager
	defaultModel   string
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures an Engine.
type Option func(*Engine)

// WithExtension registers an extension with the engine. Use this to
// attach webhook triggers, audit hooks, or custom lifecycle observers.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) {
		eng.extensions.Register(e)
	}
}

// WithMiddleware adds middleware to the engine's execution chain.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) {
		eng.mws = append(eng.mws, m)
	}
}

// WithBackoff sets the retry backoff strategy for the engine.
// If not set, an exponential strategy seeded from the pipeline's
// RetryBaseDelay is used.
func WithBackoff(b backoff.Strategy) Option {
	return func(eng *Engine) {
		eng.bo = b
	}
}

// WithValidator sets the pre-extraction content validator. Without one,
// the validation pre-check is skipped for every job.
func WithValidator(v extract.Validator) Option {
	return func(eng *Engine) {
		eng.validator = v
	}
}

// WithRateLimits registers per-document-type concurrency and rate
// configurations. Types not listed have no limits.
func WithRateLimits(configs ...ratelimit.Config) Option {
	return func(eng *Engine) {
		eng.rateLimits = append(eng.rateLimits, configs...)
	}
}

// WithDefaultModel sets the extraction model used when neither the
// document type nor an authorized caller supplies one.
func WithDefaultModel(model string) Option {
	return func(eng *Engine) {
		eng.defaultModel = model
	}
}

// WithTracerProvider sets a custom OTel TracerProvider for the engine.
// If not set, the global otel.GetTracerProvider() is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) {
		eng.tracerProvider = tp
	}
}

// WithMeterProvider sets a custom OTel MeterProvider for the engine.
// When set, both the metrics middleware and the observability extension
// use this provider instead of the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) {
		eng.meterProvider = mp
	}
}

// Build creates an Engine on top of an existing Pipeline. The
// Pipeline's store must implement job.Store and dlq.Store.
func Build(
	p *docpipe.Pipeline,
	docs document.Service,
	types document.TypeService,
	files storage.FileStore,
	extractor extract.Extractor,
	opts ...Option,
) (*Engine, error) {
	logger := p.Logger()
	store := p.Store()

	if store == nil {
		return nil, docpipe.ErrNoStore
	}
	js, ok := store.(job.Store)
	if !ok {
		return nil, fmt.Errorf("docpipe: store does not implement job.Store")
	}
	ds, ok := store.(dlq.Store)
	if !ok {
		return nil, fmt.Errorf("docpipe: store does not implement dlq.Store")
	}

	eng := &Engine{
		p:            p,
		jobStore:     js,
		extensions:   ext.NewRegistry(logger),
		broker:       stream.NewBroker(logger),
		logger:       logger,
		docs:         docs,
		types:        types,
		files:        files,
		extractor:    extractor,
		defaultModel: gemini.DefaultModel,
	}

	for _, opt := range opts {
		opt(eng)
	}

	if eng.bo == nil {
		if base := p.Config().RetryBaseDelay; base > 0 {
			eng.bo = backoff.NewExponential(base, 1*time.Minute)
		} else {
			eng.bo = backoff.DefaultStrategy()
		}
	}

	eng.dlqService = dlq.NewService(ds, js)

	// The stream broker receives every lifecycle event so subscribers
	// see the full ordered feed for their job or batch.
	eng.extensions.Register(eng.broker)

	// Register the observability metrics extension.
	var obsExt *observability.MetricsExtension
	if eng.meterProvider != nil {
		meter := eng.meterProvider.Meter("github.com/docpipe/docpipe/observability")
		obsExt = observability.NewMetricsExtensionWithMeter(meter)
	} else {
		obsExt = observability.NewMetricsExtension()
	}
	eng.extensions.Register(obsExt)

	// Build tracing middleware (custom provider or global).
	var tracingMw mw.Middleware
	if eng.tracerProvider != nil {
		tracer := eng.tracerProvider.Tracer("github.com/docpipe/docpipe")
		tracingMw = mw.TracingWithTracer(tracer)
	} else {
		tracingMw = mw.Tracing()
	}

	// Build metrics middleware (custom provider or global).
	var metricsMw mw.Middleware
	if eng.meterProvider != nil {
		meter := eng.meterProvider.Meter("github.com/docpipe/docpipe")
		metricsMw = mw.MetricsWithMeter(meter)
	} else {
		metricsMw = mw.Metrics()
	}

	// Default middleware stack: recover → tracing → metrics → logging →
	// principal → timeout.
	defaultMws := []mw.Middleware{
		mw.Recover(logger),
		tracingMw,
		metricsMw,
		mw.Logging(logger),
		mw.Principal(),
		mw.Timeout(logger),
	}
	allMws := make([]mw.Middleware, 0, len(defaultMws)+len(eng.mws))
	allMws = append(allMws, defaultMws...)
	allMws = append(allMws, eng.mws...)

	config := p.Config()
	executor := worker.NewExecutor(
		js,
		eng.docs,
		eng.files,
		eng.extractor,
		eng.validator,
		eng.extensions,
		eng.dlqService,
		eng.bo,
		logger,
		allMws...,
	)

	poolOpts := []worker.PoolOption{
		worker.WithPoolConcurrency(config.Concurrency),
		worker.WithPollInterval(config.PollInterval),
		worker.WithHeartbeatInterval(config.HeartbeatInterval),
		worker.WithStaleJobThreshold(config.StaleJobThreshold),
		worker.WithRetention(config.RetentionTTL, time.Minute),
	}
	if len(eng.rateLimits) > 0 {
		eng.limiter = ratelimit.NewManager(eng.rateLimits...)
		poolOpts = append(poolOpts, worker.WithLimiter(eng.limiter))
	}

	eng.pool = worker.NewPool(js, executor, eng.extensions, logger, poolOpts...)

	// Wire back into the Pipeline for lifecycle management.
	p.SetPool(eng.pool)
	p.SetExtensions(eng.extensions)

	return eng, nil
}

// Extensions returns the extension registry.
func (eng *Engine) Extensions() *ext.Registry { return eng.extensions }

// Broker returns the stream broker.
func (eng *Engine) Broker() *stream.Broker { return eng.broker }

// DLQ returns the dead-letter queue service.
func (eng *Engine) DLQ() *dlq.Service { return eng.dlqService }

// Pool returns the worker pool.
func (eng *Engine) Pool() *worker.Pool { return eng.pool }

// Store returns the job store.
func (eng *Engine) Store() job.Store { return eng.jobStore }

// Backoff returns the retry backoff strategy in effect.
func (eng *Engine) Backoff() backoff.Strategy { return eng.bo }

// Start begins job processing.
func (eng *Engine) Start(ctx context.Context) error {
	return eng.p.Start(ctx)
}

// Stop gracefully shuts down the engine: the pool drains, extensions
// receive the shutdown hook (closing open stream subscribers), and the
// store is closed.
func (eng *Engine) Stop(ctx context.Context) error {
	return eng.p.Stop(ctx)
}

// ──────────────────────────────────────────────────
// Submission
// ──────────────────────────────────────────────────

// SubmitRequest describes a batch of documents to extract.
type SubmitRequest struct {
	// DocumentIDs are the externally-owned document identifiers.
	DocumentIDs []string

	// DocumentTypeID selects the document type whose schema and model
	// govern extraction.
	DocumentTypeID string

	// Schema optionally overrides the document type's schema. When
	// empty, the schema is resolved from the type service at submission
	// time and snapshotted onto each job.
	Schema json.RawMessage

	// OverrideModel requests a different extraction model. Honored only
	// for elevated principals; silently stripped otherwise.
	OverrideModel string

	// BatchID optionally joins an existing batch. A new batch id is
	// generated when empty.
	BatchID string

	// Streaming enables fine-grained partial-progress updates.
	Streaming bool

	// SkipValidation skips the pre-extraction content check.
	SkipValidation bool
}

// SubmitResult reports the outcome of a submission.
type SubmitResult struct {
	// JobIDs has one entry per document, in request order. Documents
	// that already had a live job contribute that job's id.
	JobIDs []id.JobID `json:"job_ids"`

	// BatchID groups the submitted jobs.
	BatchID id.BatchID `json:"batch_id"`

	// TotalCount is the number of documents accepted.
	TotalCount int `json:"total_count"`
}

// Submit validates the request, snapshots the schema, and enqueues one
// job per document. Resubmitting a document with a live job is a no-op
// success returning the existing job id. The worker pool is started
// lazily on the first successful submission.
func (eng *Engine) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if len(req.DocumentIDs) == 0 {
		return nil, docpipe.ErrNoDocuments
	}
	if req.DocumentTypeID == "" {
		return nil, docpipe.ErrNoSchema
	}

	userID, userName := auth.Capture(ctx)
	if userID == "" || userName == "" {
		return nil, docpipe.ErrNoSubmitter
	}

	// Resolve the document type. Its schema is snapshotted onto every
	// job unless the request carries its own.
	dt, err := eng.types.GetDocumentType(ctx, req.DocumentTypeID)
	if err != nil {
		return nil, fmt.Errorf("resolve document type %q: %w", req.DocumentTypeID, err)
	}
	rawSchema := req.Schema
	if len(rawSchema) == 0 {
		rawSchema = dt.Schema
	}
	if len(rawSchema) == 0 {
		return nil, docpipe.ErrNoSchema
	}
	if _, err := schema.Compile(rawSchema); err != nil {
		return nil, fmt.Errorf("%w: %s", docpipe.ErrInvalidSchema, err)
	}

	model := eng.resolveModel(ctx, dt.ModelName, req.OverrideModel)

	batchID, err := eng.resolveBatch(req.BatchID)
	if err != nil {
		return nil, err
	}

	cfg := eng.p.Config()
	now := time.Now().UTC()
	jobIDs := make([]id.JobID, 0, len(req.DocumentIDs))

	for _, docID := range req.DocumentIDs {
		j := &job.Job{
			Entity:         docpipe.NewEntity(),
			ID:             id.JobForDocument(docID),
			DocumentID:     docID,
			DocumentTypeID: req.DocumentTypeID,
			BatchID:        batchID,
			SchemaSnapshot: rawSchema,
			Model:          model,
			UserID:         userID,
			UserName:       userName,
			Streaming:      req.Streaming,
			SkipValidation: req.SkipValidation,
			State:          job.StateWaiting,
			Progress:       job.Progress{Status: "queued"},
			MaxAttempts:    cfg.MaxAttempts,
			RunAt:          now,
			Timeout:        cfg.ExtractTimeout,
		}

		if enqErr := eng.jobStore.EnqueueJob(ctx, j); enqErr != nil {
			if errors.Is(enqErr, docpipe.ErrJobAlreadyExists) {
				// A live job for this document already exists; the
				// deterministic id guarantees it is the same logical
				// work, so resubmission merges into it.
				eng.logger.Debug("duplicate submission merged",
					slog.String("job_id", j.ID.String()),
					slog.String("document_id", docID),
				)
				jobIDs = append(jobIDs, j.ID)
				continue
			}
			return nil, fmt.Errorf("enqueue document %s: %w", docID, enqErr)
		}
		eng.extensions.EmitJobEnqueued(ctx, j)
		jobIDs = append(jobIDs, j.ID)
	}

	// Lazy startup: submission guarantees workers are running but does
	// not wait for any job to start.
	if startErr := eng.p.Start(ctx); startErr != nil {
		return nil, fmt.Errorf("start worker pool: %w", startErr)
	}

	return &SubmitResult{
		JobIDs:     jobIDs,
		BatchID:    batchID,
		TotalCount: len(jobIDs),
	}, nil
}

// resolveModel picks the extraction model for a submission. An override
// from a non-elevated caller is stripped, not rejected: the submission
// proceeds with the type's model or the engine default.
func (eng *Engine) resolveModel(ctx context.Context, typeModel, override string) string {
	if override != "" {
		if p, ok := auth.PrincipalFrom(ctx); ok && p.Elevated {
			return override
		}
		eng.logger.Warn("model override stripped for non-elevated caller",
			slog.String("override", override),
		)
	}
	if typeModel != "" {
		return typeModel
	}
	return eng.defaultModel
}

func (eng *Engine) resolveBatch(raw string) (id.BatchID, error) {
	if raw == "" {
		return id.NewBatchID(), nil
	}
	batchID, err := id.ParseBatchID(raw)
	if err != nil {
		return id.Nil, fmt.Errorf("parse batch id: %w", err)
	}
	return batchID, nil
}

// ──────────────────────────────────────────────────
// Status
// ──────────────────────────────────────────────────

// JobStatus is a point-in-time view of one job.
type JobStatus struct {
	JobID      string       `json:"job_id"`
	DocumentID string       `json:"document_id,omitempty"`
	State      string       `json:"state"`
	Progress   job.Progress `json:"progress"`
	Attempts   int          `json:"attempts,omitempty"`
	Rejection  string       `json:"rejection,omitempty"`
	LastError  string       `json:"last_error,omitempty"`
}

// StateNotFound marks jobs absent from the store, typically evicted
// after completion.
const StateNotFound = "not_found"

// BatchSummary aggregates job states across a batch.
type BatchSummary struct {
	BatchID   string `json:"batch_id"`
	Total     int    `json:"total"`
	Waiting   int    `json:"waiting"`
	Active    int    `json:"active"`
	Completed int    `json:"completed"`
	Rejected  int    `json:"rejected"`
	Failed    int    `json:"failed"`
	Cancelled int    `json:"cancelled"`
}

// Status returns the current state of each requested job. Jobs absent
// from the store are reported with state "not_found" rather than
// failing the whole query.
func (eng *Engine) Status(ctx context.Context, jobIDs []string) ([]JobStatus, error) {
	statuses := make([]JobStatus, 0, len(jobIDs))
	for _, raw := range jobIDs {
		jobID, err := id.ParseJobID(raw)
		if err != nil {
			statuses = append(statuses, JobStatus{JobID: raw, State: StateNotFound})
			continue
		}
		j, err := eng.jobStore.GetJob(ctx, jobID)
		if err != nil {
			if errors.Is(err, docpipe.ErrJobNotFound) {
				statuses = append(statuses, JobStatus{JobID: raw, State: StateNotFound})
				continue
			}
			return nil, err
		}
		if authErr := eng.authorize(ctx, j); authErr != nil {
			return nil, authErr
		}
		statuses = append(statuses, jobStatusOf(j))
	}
	return statuses, nil
}

// BatchStatus returns per-job statuses plus an aggregate summary for
// every job in a batch. Failures inside one job never hide its
// siblings: partial success is always reported with counts.
func (eng *Engine) BatchStatus(ctx context.Context, rawBatchID string) ([]JobStatus, *BatchSummary, error) {
	batchID, err := id.ParseBatchID(rawBatchID)
	if err != nil {
		return nil, nil, fmt.Errorf("parse batch id: %w", err)
	}
	jobs, err := eng.jobStore.ListJobsByBatch(ctx, batchID)
	if err != nil {
		return nil, nil, err
	}
	if len(jobs) == 0 {
		return nil, nil, docpipe.ErrBatchNotFound
	}

	summary := &BatchSummary{BatchID: rawBatchID, Total: len(jobs)}
	statuses := make([]JobStatus, 0, len(jobs))
	for _, j := range jobs {
		if authErr := eng.authorize(ctx, j); authErr != nil {
			return nil, nil, authErr
		}
		statuses = append(statuses, jobStatusOf(j))

		switch j.State {
		case job.StateWaiting, job.StateDelayed:
			summary.Waiting++
		case job.StateActive:
			summary.Active++
		case job.StateCompleted:
			if j.Rejected() {
				summary.Rejected++
			} else {
				summary.Completed++
			}
		case job.StateFailed:
			summary.Failed++
		case job.StateCancelled:
			summary.Cancelled++
		}
	}
	return statuses, summary, nil
}

func jobStatusOf(j *job.Job) JobStatus {
	return JobStatus{
		JobID:      j.ID.String(),
		DocumentID: j.DocumentID,
		State:      string(j.State),
		Progress:   j.Progress,
		Attempts:   j.Attempts,
		Rejection:  j.Rejection,
		LastError:  j.LastError,
	}
}

// ──────────────────────────────────────────────────
// Cancellation
// ──────────────────────────────────────────────────

// Cancel cancels a single waiting or delayed job. Active jobs cannot be
// interrupted (ErrJobActive) and terminal jobs cannot change state
// (ErrJobTerminal).
func (eng *Engine) Cancel(ctx context.Context, rawJobID string) error {
	jobID, err := id.ParseJobID(rawJobID)
	if err != nil {
		return docpipe.ErrJobNotFound
	}
	j, err := eng.jobStore.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if authErr := eng.authorize(ctx, j); authErr != nil {
		return authErr
	}
	if err := eng.jobStore.CancelJob(ctx, jobID); err != nil {
		return err
	}
	j.State = job.StateCancelled
	eng.extensions.EmitJobCancelled(ctx, j)
	return nil
}

// CancelBatchResult reports batch cancellation counts. Cancelled and
// StillActive always sum to TotalFound; jobs already terminal before
// the request are excluded from all three.
type CancelBatchResult struct {
	Cancelled   int `json:"cancelled"`
	StillActive int `json:"still_active"`
	TotalFound  int `json:"total_found"`
}

// CancelBatch cancels every still-cancellable job in a batch. Active
// jobs run to completion and are reported as StillActive rather than
// optimistically counted as cancelled.
func (eng *Engine) CancelBatch(ctx context.Context, rawBatchID string) (*CancelBatchResult, error) {
	batchID, err := id.ParseBatchID(rawBatchID)
	if err != nil {
		return nil, fmt.Errorf("parse batch id: %w", err)
	}
	jobs, err := eng.jobStore.ListJobsByBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, docpipe.ErrBatchNotFound
	}

	res := &CancelBatchResult{}
	for _, j := range jobs {
		if authErr := eng.authorize(ctx, j); authErr != nil {
			return nil, authErr
		}
		if j.State.Terminal() {
			continue
		}
		res.TotalFound++

		cancelErr := eng.jobStore.CancelJob(ctx, j.ID)
		switch {
		case cancelErr == nil:
			res.Cancelled++
			j.State = job.StateCancelled
			eng.extensions.EmitJobCancelled(ctx, j)
		case errors.Is(cancelErr, docpipe.ErrJobActive):
			res.StillActive++
		case errors.Is(cancelErr, docpipe.ErrJobTerminal):
			// Finished between the list and the cancel. It was counted
			// as found while non-terminal, so report it as still active.
			res.StillActive++
		default:
			return nil, fmt.Errorf("cancel job %s: %w", j.ID, cancelErr)
		}
	}
	return res, nil
}

// authorize enforces ownership: only the submitting principal or an
// elevated one may touch a job. Calls without any principal in context
// are trusted internal callers and bypass the check.
func (eng *Engine) authorize(ctx context.Context, j *job.Job) error {
	p, ok := auth.PrincipalFrom(ctx)
	if !ok {
		return nil
	}
	if p.Elevated || p.UserID == j.UserID {
		return nil
	}
	return docpipe.ErrNotAuthorized
}

// ──────────────────────────────────────────────────
// Subscriptions
// ──────────────────────────────────────────────────

// SubscribeJob attaches a new subscriber to a single job's event feed.
// The subscriber immediately receives a connected event carrying the
// job's current state; past events are not replayed. Callers must call
// Unsubscribe when done.
func (eng *Engine) SubscribeJob(ctx context.Context, rawJobID string) (*stream.Subscriber, error) {
	jobID, err := id.ParseJobID(rawJobID)
	if err != nil {
		return nil, docpipe.ErrJobNotFound
	}
	j, err := eng.jobStore.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if authErr := eng.authorize(ctx, j); authErr != nil {
		return nil, authErr
	}

	subID := id.NewSubscriberID().String()
	sub := eng.broker.Subscribe(subID, stream.JobTopic(rawJobID))
	eng.broker.SendConnected(subID, j)
	return sub, nil
}

// SubscribeBatch attaches a new subscriber to a batch's event feed. A
// connected event is sent for each job currently in the batch.
func (eng *Engine) SubscribeBatch(ctx context.Context, rawBatchID string) (*stream.Subscriber, error) {
	batchID, err := id.ParseBatchID(rawBatchID)
	if err != nil {
		return nil, fmt.Errorf("parse batch id: %w", err)
	}
	jobs, err := eng.jobStore.ListJobsByBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, docpipe.ErrBatchNotFound
	}
	for _, j := range jobs {
		if authErr := eng.authorize(ctx, j); authErr != nil {
			return nil, authErr
		}
	}

	subID := id.NewSubscriberID().String()
	sub := eng.broker.Subscribe(subID, stream.BatchTopic(rawBatchID))
	for _, j := range jobs {
		eng.broker.SendConnected(subID, j)
	}
	return sub, nil
}

// Unsubscribe synchronously releases all broker subscriptions held by
// the subscriber and closes its channel. Mandatory on client
// disconnect; a leaked subscriber blocks broker cleanup.
func (eng *Engine) Unsubscribe(subscriberID string) {
	eng.broker.RemoveSubscriber(subscriberID)
}
