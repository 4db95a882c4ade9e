package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
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

// Lifecycle event types. Each constant maps to one ext lifecycle hook
// and is used as the envelope's "type" field.
const (
	EventJobEnqueued   = "docpipe.job.enqueued"
	EventJobStarted    = "docpipe.job.started"
	EventJobCompleted  = "docpipe.job.completed"
	EventJobFailed     = "docpipe.job.failed"
	EventJobRetrying   = "docpipe.job.retrying"
	EventJobCancelled  = "docpipe.job.cancelled"
	EventDocumentSaved = "docpipe.document.saved"
)

// DefaultTimeout bounds a single delivery attempt.
const DefaultTimeout = 10 * time.Second

// signatureHeader carries the hex HMAC-SHA256 of the request body.
const signatureHeader = "X-Docpipe-Signature"

// Extension delivers lifecycle events to a webhook endpoint.
// By default only completion and terminal-failure events are sent.
type Extension struct {
	url      string
	client   *http.Client
	logger   *slog.Logger
	secret   []byte
	enabled  map[string]bool        // nil = defaults
	payloads map[string]PayloadFunc // custom payload builders
}

// New creates an Extension that POSTs lifecycle events to url.
func New(url string, opts ...Option) *Extension {
	h := &Extension{
		url:    url,
		client: &http.Client{Timeout: DefaultTimeout},
		logger: slog.Default(),
		enabled: map[string]bool{
			EventJobCompleted: true,
			EventJobFailed:    true,
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name implements ext.Extension.
func (h *Extension) Name() string { return "webhook" }

// envelope is the wire format POSTed to the endpoint.
type envelope struct {
	Type      string `json:"type"`
	Timestamp string `json:"ts"`
	Data      any    `json:"data"`
}

// ── Job lifecycle hooks ─────────────────────────────

// OnJobEnqueued implements ext.JobEnqueued.
func (h *Extension) OnJobEnqueued(ctx context.Context, j *job.Job) error {
	return h.send(ctx, EventJobEnqueued, newJobPayload(j))
}

// OnJobStarted implements ext.JobStarted.
func (h *Extension) OnJobStarted(ctx context.Context, j *job.Job) error {
	return h.send(ctx, EventJobStarted, newJobPayload(j))
}

// OnJobCompleted implements ext.JobCompleted.
func (h *Extension) OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error {
	return h.send(ctx, EventJobCompleted, &jobCompletedPayload{
		jobPayload: *newJobPayload(j),
		ElapsedMs:  elapsed.Milliseconds(),
		Rejection:  j.Rejection,
	})
}

// OnJobFailed implements ext.JobFailed.
func (h *Extension) OnJobFailed(ctx context.Context, j *job.Job, jobErr error) error {
	return h.send(ctx, EventJobFailed, &jobFailedPayload{
		jobPayload: *newJobPayload(j),
		Error:      jobErr.Error(),
	})
}

// OnJobRetrying implements ext.JobRetrying.
func (h *Extension) OnJobRetrying(ctx context.Context, j *job.Job, attempt int, nextRunAt time.Time) error {
	return h.send(ctx, EventJobRetrying, &jobRetryingPayload{
		jobPayload: *newJobPayload(j),
		Attempt:    attempt,
		NextRunAt:  nextRunAt.Format(time.RFC3339),
	})
}

// OnJobCancelled implements ext.JobCancelled.
func (h *Extension) OnJobCancelled(ctx context.Context, j *job.Job) error {
	return h.send(ctx, EventJobCancelled, newJobPayload(j))
}

// OnDocumentSaved implements ext.DocumentSaved.
func (h *Extension) OnDocumentSaved(ctx context.Context, j *job.Job, doc *document.Document) error {
	return h.send(ctx, EventDocumentSaved, &documentPayload{
		DocumentID: doc.ID,
		JobID:      j.ID.String(),
		Status:     string(doc.Status),
	})
}

// ── Internal helpers ────────────────────────────────

// send delivers one event with a single attempt. Delivery errors are
// logged and swallowed so a dead endpoint never stalls the pipeline.
func (h *Extension) send(ctx context.Context, eventType string, defaultData any) error {
	if h.enabled != nil && !h.enabled[eventType] {
		return nil
	}

	data := defaultData
	if fn, ok := h.payloads[eventType]; ok {
		custom, err := fn(defaultData)
		if err != nil {
			return err
		}
		data = custom
	}

	body, err := json.Marshal(envelope{
		Type:      eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("webhook: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if len(h.secret) > 0 {
		req.Header.Set(signatureHeader, h.sign(body))
	}

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Warn("webhook delivery failed",
			slog.String("event", eventType),
			slog.String("url", h.url),
			slog.String("error", err.Error()),
		)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		h.logger.Warn("webhook delivery rejected",
			slog.String("event", eventType),
			slog.String("url", h.url),
			slog.Int("status", resp.StatusCode),
		)
	}
	return nil
}

// sign computes the hex HMAC-SHA256 of the body.
func (h *Extension) sign(body []byte) string {
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature header value against a received body using
// the given secret. Intended for webhook consumers.
func Verify(secret, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(signature))
}

// ── Default payload types ───────────────────────────

type jobPayload struct {
	JobID          string `json:"job_id"`
	DocumentID     string `json:"document_id"`
	DocumentTypeID string `json:"document_type_id"`
	BatchID        string `json:"batch_id,omitempty"`
	State          string `json:"state"`
	UserID         string `json:"user_id,omitempty"`
}

func newJobPayload(j *job.Job) *jobPayload {
	return &jobPayload{
		JobID:          j.ID.String(),
		DocumentID:     j.DocumentID,
		DocumentTypeID: j.DocumentTypeID,
		BatchID:        j.BatchID.String(),
		State:          string(j.State),
		UserID:         j.UserID,
	}
}

type jobCompletedPayload struct {
	jobPayload
	ElapsedMs int64  `json:"elapsed_ms"`
	Rejection string `json:"rejection,omitempty"`
}

type jobFailedPayload struct {
	jobPayload
	Error string `json:"error"`
}

type jobRetryingPayload struct {
	jobPayload
	Attempt   int    `json:"attempt"`
	NextRunAt string `json:"next_run_at"`
}

type documentPayload struct {
	DocumentID string `json:"document_id"`
	JobID      string `json:"job_id"`
	Status     string `json:"status"`
}
