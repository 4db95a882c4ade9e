package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/docpipe/docpipe/dlq"
	"github.com/docpipe/docpipe/stream"
)

// ListFailuresOpts filters and pages the failure archive listing.
type ListFailuresOpts struct {
	Limit          int
	Offset         int
	DocumentTypeID string
	BatchID        string
}

type listFailuresResponse struct {
	Failures []*dlq.Entry `json:"failures"`
	Total    int64        `json:"total"`
}

// ListFailures returns archived failure entries plus the total count
// matching the filter.
func (c *Client) ListFailures(ctx context.Context, opts ListFailuresOpts) ([]*dlq.Entry, int64, error) {
	q := url.Values{}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}
	if opts.DocumentTypeID != "" {
		q.Set("document_type", opts.DocumentTypeID)
	}
	if opts.BatchID != "" {
		q.Set("batch", opts.BatchID)
	}

	var res listFailuresResponse
	if err := c.do(ctx, http.MethodGet, queryPath("/v1/failures", q), nil, &res); err != nil {
		return nil, 0, err
	}
	return res.Failures, res.Total, nil
}

// GetFailure returns a single archived failure entry.
func (c *Client) GetFailure(ctx context.Context, failureID string) (*dlq.Entry, error) {
	var entry dlq.Entry
	path := "/v1/failures/" + url.PathEscape(failureID)
	if err := c.do(ctx, http.MethodGet, path, nil, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ReplayFailure re-enqueues an archived failure as a fresh job and
// returns the new job's id.
func (c *Client) ReplayFailure(ctx context.Context, failureID string) (string, error) {
	var res struct {
		JobID string `json:"job_id"`
	}
	path := "/v1/failures/" + url.PathEscape(failureID) + "/replay"
	if err := c.do(ctx, http.MethodPost, path, nil, &res); err != nil {
		return "", err
	}
	return res.JobID, nil
}

// PurgeFailures removes archived failures older than before and
// returns how many were removed. A zero before purges everything.
func (c *Client) PurgeFailures(ctx context.Context, before time.Time) (int64, error) {
	q := url.Values{}
	if !before.IsZero() {
		q.Set("before", before.Format(time.RFC3339))
	}
	var res struct {
		Removed int64 `json:"removed"`
	}
	if err := c.do(ctx, http.MethodDelete, queryPath("/v1/failures", q), nil, &res); err != nil {
		return 0, err
	}
	return res.Removed, nil
}

// Stats mirrors the server's operational snapshot.
type Stats struct {
	Jobs     map[string]int64   `json:"jobs"`
	Failures int64              `json:"failures"`
	Broker   stream.BrokerStats `json:"broker"`
}

// Stats returns job counts per state, the failure archive size, and
// broker fan-out counters.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var res Stats
	if err := c.do(ctx, http.MethodGet, "/v1/stats", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
