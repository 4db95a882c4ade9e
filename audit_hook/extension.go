package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/docpipe/docpipe/document"
	"github.com/docpipe/docpipe/ext"
	"github.com/docpipe/docpipe/job"
)

// Compile-time interface checks.
var (
	_ ext.Extension     = (*Extension)(nil)
	_ ext.JobEnqueued   = (*Extension)(nil)
	_ ext.JobStarted    = (*Extension)(nil)
	_ ext.JobCompleted  = (*Extension)(nil)
	_ ext.JobFailed     = (*Extension)(nil)
	_ ext.JobRetrying   = (*Extension)(nil)
	_ ext.JobCancelled  = (*Extension)(nil)
	_ ext.DocumentSaved = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement. It is
// defined locally so this package carries no backend dependency —
// callers inject their concrete audit client at wiring time.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a backend-neutral audit record.
type AuditEvent struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension bridges pipeline lifecycle events to an audit trail
// backend. Each lifecycle hook emits a structured audit event through
// the [Recorder], carrying the submitting user so bulk operations stay
// attributable.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// ── Job lifecycle hooks ─────────────────────────────

// OnJobEnqueued implements ext.JobEnqueued.
func (e *Extension) OnJobEnqueued(ctx context.Context, j *job.Job) error {
	return e.record(ctx, ActionJobEnqueued, SeverityInfo, OutcomeSuccess,
		ResourceJob, j.ID.String(), CategoryJob, nil,
		"document_id", j.DocumentID,
		"document_type", j.DocumentTypeID,
		"batch_id", j.BatchID.String(),
		"user_id", j.UserID,
	)
}

// OnJobStarted implements ext.JobStarted.
func (e *Extension) OnJobStarted(ctx context.Context, j *job.Job) error {
	return e.record(ctx, ActionJobStarted, SeverityInfo, OutcomeSuccess,
		ResourceJob, j.ID.String(), CategoryJob, nil,
		"document_id", j.DocumentID,
		"document_type", j.DocumentTypeID,
		"worker_id", j.WorkerID.String(),
		"attempt", j.Attempts+1,
	)
}

// OnJobCompleted implements ext.JobCompleted. A completed job carrying
// a rejection is audited as job.rejected with the reason.
func (e *Extension) OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error {
	if j.Rejected() {
		return e.record(ctx, ActionJobRejected, SeverityWarning, OutcomeSuccess,
			ResourceJob, j.ID.String(), CategoryJob, nil,
			"document_id", j.DocumentID,
			"document_type", j.DocumentTypeID,
			"rejection", j.Rejection,
		)
	}
	return e.record(ctx, ActionJobCompleted, SeverityInfo, OutcomeSuccess,
		ResourceJob, j.ID.String(), CategoryJob, nil,
		"document_id", j.DocumentID,
		"document_type", j.DocumentTypeID,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnJobFailed implements ext.JobFailed.
func (e *Extension) OnJobFailed(ctx context.Context, j *job.Job, jobErr error) error {
	return e.record(ctx, ActionJobFailed, SeverityCritical, OutcomeFailure,
		ResourceJob, j.ID.String(), CategoryJob, jobErr,
		"document_id", j.DocumentID,
		"document_type", j.DocumentTypeID,
		"attempts", j.Attempts,
		"max_attempts", j.MaxAttempts,
	)
}

// OnJobRetrying implements ext.JobRetrying.
func (e *Extension) OnJobRetrying(ctx context.Context, j *job.Job, attempt int, nextRunAt time.Time) error {
	return e.record(ctx, ActionJobRetrying, SeverityWarning, OutcomeFailure,
		ResourceJob, j.ID.String(), CategoryJob, nil,
		"document_id", j.DocumentID,
		"document_type", j.DocumentTypeID,
		"attempt", attempt,
		"next_run_at", nextRunAt.Format(time.RFC3339),
	)
}

// OnJobCancelled implements ext.JobCancelled.
func (e *Extension) OnJobCancelled(ctx context.Context, j *job.Job) error {
	return e.record(ctx, ActionJobCancelled, SeverityInfo, OutcomeSuccess,
		ResourceJob, j.ID.String(), CategoryJob, nil,
		"document_id", j.DocumentID,
		"document_type", j.DocumentTypeID,
		"user_id", j.UserID,
	)
}

// ── Document hooks ──────────────────────────────────

// OnDocumentSaved implements ext.DocumentSaved. Status transitions on
// the external document record are the audit-critical write.
func (e *Extension) OnDocumentSaved(ctx context.Context, j *job.Job, doc *document.Document) error {
	return e.record(ctx, ActionDocumentSaved, SeverityInfo, OutcomeSuccess,
		ResourceDocument, doc.ID, CategoryDocument, nil,
		"job_id", j.ID.String(),
		"status", string(doc.Status),
		"user_id", j.UserID,
	)
}

// ── Internal helpers ────────────────────────────────

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
