package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/docpipe/docpipe/id"
	"github.com/docpipe/docpipe/job"
)

// SubmitRequest asks the server to enqueue extraction jobs for a set
// of documents.
type SubmitRequest struct {
	DocumentIDs    []string        `json:"document_ids"`
	DocumentTypeID string          `json:"document_type_id"`
	Schema         json.RawMessage `json:"schema,omitempty"`
	OverrideModel  string          `json:"override_model,omitempty"`
	BatchID        string          `json:"batch_id,omitempty"`
	Streaming      bool            `json:"streaming,omitempty"`
	SkipValidation bool            `json:"skip_validation,omitempty"`
}

// SubmitResult is the server's response to a submission.
type SubmitResult struct {
	JobIDs     []id.JobID `json:"job_ids"`
	BatchID    id.BatchID `json:"batch_id"`
	TotalCount int        `json:"total_count"`
}

// JobStatus is the reported state of a single job. State is
// "not_found" for jobs the server no longer tracks.
type JobStatus struct {
	JobID      string       `json:"job_id"`
	DocumentID string       `json:"document_id,omitempty"`
	State      string       `json:"state"`
	Progress   job.Progress `json:"progress"`
	Attempts   int          `json:"attempts,omitempty"`
	Rejection  string       `json:"rejection,omitempty"`
	LastError  string       `json:"last_error,omitempty"`
}

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

// CancelBatchResult reports the outcome of a batch cancellation.
// Cancelled plus StillActive always equals TotalFound.
type CancelBatchResult struct {
	Cancelled   int `json:"cancelled"`
	StillActive int `json:"still_active"`
	TotalFound  int `json:"total_found"`
}

type statusResponse struct {
	Jobs    []JobStatus   `json:"jobs"`
	Summary *BatchSummary `json:"summary,omitempty"`
}

// Submit enqueues one extraction job per document. Resubmitting a
// document with a live job returns that job's id instead of an error.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	var res SubmitResult
	if err := c.do(ctx, http.MethodPost, "/v1/jobs", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Status reports the state of each requested job. Unknown ids are
// returned with state "not_found" rather than failing the call.
func (c *Client) Status(ctx context.Context, jobIDs ...string) ([]JobStatus, error) {
	if len(jobIDs) == 0 {
		return nil, fmt.Errorf("docpipe/client: no job ids")
	}
	q := url.Values{"ids": {strings.Join(jobIDs, ",")}}
	var res statusResponse
	if err := c.do(ctx, http.MethodGet, queryPath("/v1/jobs/status", q), nil, &res); err != nil {
		return nil, err
	}
	return res.Jobs, nil
}

// BatchStatus reports every job in a batch plus an aggregate summary.
func (c *Client) BatchStatus(ctx context.Context, batchID string) ([]JobStatus, *BatchSummary, error) {
	q := url.Values{"batch": {batchID}}
	var res statusResponse
	if err := c.do(ctx, http.MethodGet, queryPath("/v1/jobs/status", q), nil, &res); err != nil {
		return nil, nil, err
	}
	return res.Jobs, res.Summary, nil
}

// Cancel cancels a waiting or delayed job. Active and terminal jobs
// are refused with [ErrConflict].
func (c *Client) Cancel(ctx context.Context, jobID string) error {
	return c.do(ctx, http.MethodPost, "/v1/jobs/"+url.PathEscape(jobID)+"/cancel", nil, nil)
}

// CancelBatch cancels every still-cancellable job in a batch.
func (c *Client) CancelBatch(ctx context.Context, batchID string) (*CancelBatchResult, error) {
	var res CancelBatchResult
	path := "/v1/batches/" + url.PathEscape(batchID) + "/cancel"
	if err := c.do(ctx, http.MethodPost, path, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
