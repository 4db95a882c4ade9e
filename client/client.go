// Package client provides a Go client for a remote docpipe server.
//
// Usage:
//
//	c := client.New("http://docpipe.internal:8080",
//	    client.WithIdentity("user-1", "Pat Doe"),
//	)
//
//	// Submit documents for extraction.
//	res, err := c.Submit(ctx, client.SubmitRequest{
//	    DocumentIDs:    []string{"doc-1", "doc-2"},
//	    DocumentTypeID: "invoice",
//	})
//
//	// Watch job progress.
//	events, err := c.StreamJobEvents(ctx, res.JobIDs[0].String())
//	for evt := range events {
//	    fmt.Printf("%s: %s\n", evt.Type, evt.Data)
//	}
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// Sentinel errors mapped from server response codes. Use errors.Is to
// branch on them.
var (
	// ErrNotFound reports that the referenced job, batch or failure
	// entry does not exist on the server.
	ErrNotFound = errors.New("docpipe/client: not found")

	// ErrForbidden reports that the caller's identity does not own the
	// referenced resource.
	ErrForbidden = errors.New("docpipe/client: forbidden")

	// ErrConflict reports that the operation conflicts with the job's
	// current state, such as cancelling an active or terminal job.
	ErrConflict = errors.New("docpipe/client: conflict")

	// ErrBadRequest reports that the server rejected the request as
	// invalid.
	ErrBadRequest = errors.New("docpipe/client: bad request")
)

// Client talks to a docpipe server over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	// Identity forwarded on every request.
	userID   string
	userName string
	elevated bool
}

// New creates a client for the server at baseURL. Without
// [WithIdentity] requests carry no principal and the server treats the
// caller as trusted, which most deployments reject at the edge.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server address this client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// apiError is the error body the server returns for non-2xx responses.
type apiError struct {
	Error string `json:"error"`
}

// do executes a JSON request and decodes the response into out when
// non-nil. Non-2xx responses are mapped back to the pipeline's sentinel
// errors where the status code identifies one.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("docpipe/client: marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("docpipe/client: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setIdentity(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("docpipe/client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-side close

	if resp.StatusCode >= 300 {
		return c.responseError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("docpipe/client: decode response: %w", err)
	}
	return nil
}

// responseError turns an error response into a sentinel-wrapped error
// so callers can branch with errors.Is.
func (c *Client) responseError(resp *http.Response) error {
	var body apiError
	msg := resp.Status
	if decodeErr := json.NewDecoder(resp.Body).Decode(&body); decodeErr == nil && body.Error != "" {
		msg = body.Error
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrBadRequest, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrForbidden, msg)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrConflict, msg)
	default:
		return fmt.Errorf("docpipe/client: server returned %d: %s", resp.StatusCode, msg)
	}
}

func (c *Client) setIdentity(req *http.Request) {
	if c.userID == "" {
		return
	}
	req.Header.Set("X-User-Id", c.userID)
	req.Header.Set("X-User-Name", c.userName)
	if c.elevated {
		req.Header.Set("X-Elevated", "true")
	}
}

func queryPath(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}
