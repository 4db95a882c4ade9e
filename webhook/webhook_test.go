package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/docpipe/docpipe/document"
	"github.com/docpipe/docpipe/id"
	"github.com/docpipe/docpipe/job"
)

// capture records webhook deliveries for assertions.
type capture struct {
	mu       sync.Mutex
	requests []capturedRequest
	status   int
}

type capturedRequest struct {
	body      []byte
	signature string
}

func (c *capture) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.requests = append(c.requests, capturedRequest{
			body:      body,
			signature: r.Header.Get("X-Docpipe-Signature"),
		})
		c.mu.Unlock()
		status := c.status
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
	}
}

func (c *capture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

func (c *capture) last(t *testing.T) capturedRequest {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.requests) == 0 {
		t.Fatal("no requests captured")
	}
	return c.requests[len(c.requests)-1]
}

func testJob() *job.Job {
	return &job.Job{
		ID:             id.JobForDocument("doc-wh"),
		DocumentID:     "doc-wh",
		DocumentTypeID: "invoice",
		BatchID:        id.NewBatchID(),
		State:          job.StateCompleted,
		UserID:         "u-1",
	}
}

func TestDefaultEvents(t *testing.T) {
	c := &capture{}
	srv := httptest.NewServer(c.handler())
	defer srv.Close()

	h := New(srv.URL)
	ctx := context.Background()
	j := testJob()

	// Enqueued is not in the default set — no delivery.
	if err := h.OnJobEnqueued(ctx, j); err != nil {
		t.Fatalf("OnJobEnqueued: %v", err)
	}
	if c.count() != 0 {
		t.Fatalf("expected 0 deliveries for enqueued, got %d", c.count())
	}

	// Completed is in the default set.
	if err := h.OnJobCompleted(ctx, j, 2*time.Second); err != nil {
		t.Fatalf("OnJobCompleted: %v", err)
	}
	if c.count() != 1 {
		t.Fatalf("expected 1 delivery, got %d", c.count())
	}

	var env struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(c.last(t).body, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Type != EventJobCompleted {
		t.Errorf("Type = %q, want %q", env.Type, EventJobCompleted)
	}

	var data jobCompletedPayload
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if data.JobID != "procdoc_doc-wh" || data.DocumentID != "doc-wh" {
		t.Errorf("unexpected payload: %+v", data)
	}
	if data.ElapsedMs != 2000 {
		t.Errorf("ElapsedMs = %d, want 2000", data.ElapsedMs)
	}
}

func TestCompletedWithRejection(t *testing.T) {
	c := &capture{}
	srv := httptest.NewServer(c.handler())
	defer srv.Close()

	h := New(srv.URL)
	j := testJob()
	j.Rejection = "document is a receipt, not an invoice"

	if err := h.OnJobCompleted(context.Background(), j, time.Second); err != nil {
		t.Fatalf("OnJobCompleted: %v", err)
	}

	var env struct {
		Data jobCompletedPayload `json:"data"`
	}
	if err := json.Unmarshal(c.last(t).body, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Data.Rejection != "document is a receipt, not an invoice" {
		t.Errorf("Rejection = %q", env.Data.Rejection)
	}
}

func TestWithEventsRestricts(t *testing.T) {
	c := &capture{}
	srv := httptest.NewServer(c.handler())
	defer srv.Close()

	h := New(srv.URL, WithEvents(EventJobStarted))
	ctx := context.Background()
	j := testJob()

	if err := h.OnJobCompleted(ctx, j, time.Second); err != nil {
		t.Fatalf("OnJobCompleted: %v", err)
	}
	if c.count() != 0 {
		t.Fatal("completed should be disabled")
	}

	if err := h.OnJobStarted(ctx, j); err != nil {
		t.Fatalf("OnJobStarted: %v", err)
	}
	if c.count() != 1 {
		t.Fatalf("expected 1 delivery, got %d", c.count())
	}
}

func TestSignature(t *testing.T) {
	c := &capture{}
	srv := httptest.NewServer(c.handler())
	defer srv.Close()

	h := New(srv.URL, WithSecret("s3cret"))
	if err := h.OnJobCompleted(context.Background(), testJob(), time.Second); err != nil {
		t.Fatalf("OnJobCompleted: %v", err)
	}

	req := c.last(t)
	if req.signature == "" {
		t.Fatal("expected signature header")
	}
	if !Verify([]byte("s3cret"), req.body, req.signature) {
		t.Error("signature did not verify")
	}
	if Verify([]byte("wrong"), req.body, req.signature) {
		t.Error("signature verified with wrong secret")
	}
}

func TestNoSignatureWithoutSecret(t *testing.T) {
	c := &capture{}
	srv := httptest.NewServer(c.handler())
	defer srv.Close()

	h := New(srv.URL)
	if err := h.OnJobFailed(context.Background(), testJob(), errors.New("boom")); err != nil {
		t.Fatalf("OnJobFailed: %v", err)
	}
	if c.last(t).signature != "" {
		t.Error("expected no signature header without secret")
	}
}

func TestServerErrorSwallowed(t *testing.T) {
	c := &capture{status: http.StatusInternalServerError}
	srv := httptest.NewServer(c.handler())
	defer srv.Close()

	h := New(srv.URL)
	if err := h.OnJobCompleted(context.Background(), testJob(), time.Second); err != nil {
		t.Fatalf("delivery error should be swallowed, got %v", err)
	}
	// Exactly one attempt, no retries.
	if c.count() != 1 {
		t.Fatalf("expected exactly 1 attempt, got %d", c.count())
	}
}

func TestDeadEndpointSwallowed(t *testing.T) {
	// Closed server: connection refused.
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	h := New(url)
	if err := h.OnJobCompleted(context.Background(), testJob(), time.Second); err != nil {
		t.Fatalf("connection error should be swallowed, got %v", err)
	}
}

func TestCustomPayloadFunc(t *testing.T) {
	c := &capture{}
	srv := httptest.NewServer(c.handler())
	defer srv.Close()

	h := New(srv.URL, WithPayloadFunc(EventJobCompleted, func(args any) (any, error) {
		base := args.(*jobCompletedPayload)
		return map[string]string{"doc": base.DocumentID}, nil
	}))

	if err := h.OnJobCompleted(context.Background(), testJob(), time.Second); err != nil {
		t.Fatalf("OnJobCompleted: %v", err)
	}

	var env struct {
		Data map[string]string `json:"data"`
	}
	if err := json.Unmarshal(c.last(t).body, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Data["doc"] != "doc-wh" {
		t.Errorf("custom payload = %v", env.Data)
	}
}

func TestDocumentSavedPayload(t *testing.T) {
	c := &capture{}
	srv := httptest.NewServer(c.handler())
	defer srv.Close()

	h := New(srv.URL, WithAllEvents())
	doc := &document.Document{ID: "doc-wh", Status: document.StatusProcessed}

	if err := h.OnDocumentSaved(context.Background(), testJob(), doc); err != nil {
		t.Fatalf("OnDocumentSaved: %v", err)
	}

	var env struct {
		Type string          `json:"type"`
		Data documentPayload `json:"data"`
	}
	if err := json.Unmarshal(c.last(t).body, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Type != EventDocumentSaved {
		t.Errorf("Type = %q", env.Type)
	}
	if env.Data.Status != string(document.StatusProcessed) {
		t.Errorf("Status = %q", env.Data.Status)
	}
}
