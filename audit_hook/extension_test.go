package audithook_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	audithook "github.com/docpipe/docpipe/audit_hook"
	"github.com/docpipe/docpipe/document"
	"github.com/docpipe/docpipe/id"
	"github.com/docpipe/docpipe/job"
)

// captureRecorder collects every event handed to it.
type captureRecorder struct {
	mu     sync.Mutex
	events []*audithook.AuditEvent
	err    error
}

func (r *captureRecorder) Record(_ context.Context, evt *audithook.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, evt)
	return nil
}

func (r *captureRecorder) all() []*audithook.AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*audithook.AuditEvent, len(r.events))
	copy(out, r.events)
	return out
}

func (r *captureRecorder) last(t *testing.T) *audithook.AuditEvent {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		t.Fatal("no audit events recorded")
	}
	return r.events[len(r.events)-1]
}

func newTestJob() *job.Job {
	return &job.Job{
		ID:             id.JobForDocument("doc-audit-1"),
		DocumentID:     "doc-audit-1",
		DocumentTypeID: "invoice",
		BatchID:        id.NewBatchID(),
		UserID:         "user-1",
		UserName:       "Pat Doe",
		State:          job.StateWaiting,
		MaxAttempts:    3,
	}
}

func TestExtension_EnqueuedCarriesSubmitter(t *testing.T) {
	rec := &captureRecorder{}
	e := audithook.New(rec)

	j := newTestJob()
	if err := e.OnJobEnqueued(context.Background(), j); err != nil {
		t.Fatalf("OnJobEnqueued: %v", err)
	}

	evt := rec.last(t)
	if evt.Action != audithook.ActionJobEnqueued {
		t.Errorf("action = %q, want %q", evt.Action, audithook.ActionJobEnqueued)
	}
	if evt.Resource != audithook.ResourceJob || evt.Category != audithook.CategoryJob {
		t.Errorf("unexpected resource/category: %q/%q", evt.Resource, evt.Category)
	}
	if evt.ResourceID != j.ID.String() {
		t.Errorf("resource_id = %q, want %q", evt.ResourceID, j.ID)
	}
	if evt.Outcome != audithook.OutcomeSuccess || evt.Severity != audithook.SeverityInfo {
		t.Errorf("unexpected outcome/severity: %q/%q", evt.Outcome, evt.Severity)
	}
	if got := evt.Metadata["user_id"]; got != "user-1" {
		t.Errorf("metadata user_id = %v, want user-1", got)
	}
	if got := evt.Metadata["document_id"]; got != "doc-audit-1" {
		t.Errorf("metadata document_id = %v", got)
	}
	if got := evt.Metadata["batch_id"]; got != j.BatchID.String() {
		t.Errorf("metadata batch_id = %v, want %v", got, j.BatchID)
	}
}

func TestExtension_CompletedVsRejected(t *testing.T) {
	rec := &captureRecorder{}
	e := audithook.New(rec)

	done := newTestJob()
	done.State = job.StateCompleted
	if err := e.OnJobCompleted(context.Background(), done, 1500*time.Millisecond); err != nil {
		t.Fatalf("OnJobCompleted: %v", err)
	}
	evt := rec.last(t)
	if evt.Action != audithook.ActionJobCompleted {
		t.Errorf("action = %q, want %q", evt.Action, audithook.ActionJobCompleted)
	}
	if got := evt.Metadata["elapsed_ms"]; got != int64(1500) {
		t.Errorf("metadata elapsed_ms = %v, want 1500", got)
	}

	rejected := newTestJob()
	rejected.State = job.StateCompleted
	rejected.Rejection = "document is not an invoice"
	if err := e.OnJobCompleted(context.Background(), rejected, time.Second); err != nil {
		t.Fatalf("OnJobCompleted: %v", err)
	}
	evt = rec.last(t)
	if evt.Action != audithook.ActionJobRejected {
		t.Errorf("action = %q, want %q", evt.Action, audithook.ActionJobRejected)
	}
	if evt.Severity != audithook.SeverityWarning {
		t.Errorf("severity = %q, want warning", evt.Severity)
	}
	if got := evt.Metadata["rejection"]; got != "document is not an invoice" {
		t.Errorf("metadata rejection = %v", got)
	}
}

func TestExtension_FailedRecordsErrorAndReason(t *testing.T) {
	rec := &captureRecorder{}
	e := audithook.New(rec)

	j := newTestJob()
	j.State = job.StateFailed
	j.Attempts = 3
	jobErr := errors.New("extraction timed out")
	if err := e.OnJobFailed(context.Background(), j, jobErr); err != nil {
		t.Fatalf("OnJobFailed: %v", err)
	}

	evt := rec.last(t)
	if evt.Action != audithook.ActionJobFailed {
		t.Errorf("action = %q, want %q", evt.Action, audithook.ActionJobFailed)
	}
	if evt.Outcome != audithook.OutcomeFailure || evt.Severity != audithook.SeverityCritical {
		t.Errorf("unexpected outcome/severity: %q/%q", evt.Outcome, evt.Severity)
	}
	if evt.Reason != "extraction timed out" {
		t.Errorf("reason = %q", evt.Reason)
	}
	if got := evt.Metadata["attempts"]; got != 3 {
		t.Errorf("metadata attempts = %v, want 3", got)
	}
}

func TestExtension_RetryingAndCancelled(t *testing.T) {
	rec := &captureRecorder{}
	e := audithook.New(rec)

	j := newTestJob()
	nextRun := time.Now().Add(4 * time.Second)
	if err := e.OnJobRetrying(context.Background(), j, 2, nextRun); err != nil {
		t.Fatalf("OnJobRetrying: %v", err)
	}
	evt := rec.last(t)
	if evt.Action != audithook.ActionJobRetrying || evt.Severity != audithook.SeverityWarning {
		t.Errorf("unexpected retry event: %q/%q", evt.Action, evt.Severity)
	}
	if got := evt.Metadata["attempt"]; got != 2 {
		t.Errorf("metadata attempt = %v, want 2", got)
	}

	if err := e.OnJobCancelled(context.Background(), j); err != nil {
		t.Fatalf("OnJobCancelled: %v", err)
	}
	if evt := rec.last(t); evt.Action != audithook.ActionJobCancelled {
		t.Errorf("action = %q, want %q", evt.Action, audithook.ActionJobCancelled)
	}
}

func TestExtension_DocumentSaved(t *testing.T) {
	rec := &captureRecorder{}
	e := audithook.New(rec)

	j := newTestJob()
	doc := &document.Document{
		ID:     "doc-audit-1",
		Status: document.StatusProcessed,
	}
	if err := e.OnDocumentSaved(context.Background(), j, doc); err != nil {
		t.Fatalf("OnDocumentSaved: %v", err)
	}

	evt := rec.last(t)
	if evt.Action != audithook.ActionDocumentSaved {
		t.Errorf("action = %q, want %q", evt.Action, audithook.ActionDocumentSaved)
	}
	if evt.Resource != audithook.ResourceDocument || evt.Category != audithook.CategoryDocument {
		t.Errorf("unexpected resource/category: %q/%q", evt.Resource, evt.Category)
	}
	if evt.ResourceID != "doc-audit-1" {
		t.Errorf("resource_id = %q", evt.ResourceID)
	}
	if got := evt.Metadata["status"]; got != string(document.StatusProcessed) {
		t.Errorf("metadata status = %v", got)
	}
}

func TestExtension_WithActionsFilters(t *testing.T) {
	rec := &captureRecorder{}
	e := audithook.New(rec, audithook.WithActions(audithook.ActionJobFailed))

	j := newTestJob()
	if err := e.OnJobEnqueued(context.Background(), j); err != nil {
		t.Fatalf("OnJobEnqueued: %v", err)
	}
	if err := e.OnJobStarted(context.Background(), j); err != nil {
		t.Fatalf("OnJobStarted: %v", err)
	}
	if err := e.OnJobFailed(context.Background(), j, errors.New("boom")); err != nil {
		t.Fatalf("OnJobFailed: %v", err)
	}

	events := rec.all()
	if len(events) != 1 {
		t.Fatalf("expected 1 recorded event, got %d", len(events))
	}
	if events[0].Action != audithook.ActionJobFailed {
		t.Errorf("action = %q, want %q", events[0].Action, audithook.ActionJobFailed)
	}
}

func TestExtension_RecorderFailureIsSwallowed(t *testing.T) {
	rec := &captureRecorder{err: errors.New("audit backend down")}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := audithook.New(rec, audithook.WithLogger(logger))

	j := newTestJob()
	if err := e.OnJobEnqueued(context.Background(), j); err != nil {
		t.Fatalf("recorder error must not propagate, got: %v", err)
	}
}

func TestRecorderFunc(t *testing.T) {
	var got *audithook.AuditEvent
	fn := audithook.RecorderFunc(func(_ context.Context, evt *audithook.AuditEvent) error {
		got = evt
		return nil
	})
	e := audithook.New(fn)
	if err := e.OnJobStarted(context.Background(), newTestJob()); err != nil {
		t.Fatalf("OnJobStarted: %v", err)
	}
	if got == nil || got.Action != audithook.ActionJobStarted {
		t.Fatalf("RecorderFunc did not receive event: %+v", got)
	}
}
