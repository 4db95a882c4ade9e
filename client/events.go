package client

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/docpipe/docpipe/stream"
)

// StreamJobEvents opens a live event stream for a single job. The
// first event is always "connected" with the job's current state. The
// returned channel closes when ctx is cancelled, the server shuts the
// stream down, or the connection drops.
func (c *Client) StreamJobEvents(ctx context.Context, jobID string) (<-chan *stream.Event, error) {
	return c.streamEvents(ctx, "/v1/jobs/"+url.PathEscape(jobID)+"/events")
}

// StreamBatchEvents opens a live event stream covering every job in a
// batch, opening with one "connected" event per job.
func (c *Client) StreamBatchEvents(ctx context.Context, batchID string) (<-chan *stream.Event, error) {
	return c.streamEvents(ctx, "/v1/batches/"+url.PathEscape(batchID)+"/events")
}

func (c *Client) streamEvents(ctx context.Context, path string) (<-chan *stream.Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	c.setIdentity(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close() //nolint:errcheck // error path
		return nil, c.responseError(resp)
	}

	ch := make(chan *stream.Event, 16)
	go c.readEvents(ctx, resp, ch)
	return ch, nil
}

// readEvents parses the server-sent event stream and forwards decoded
// events until the stream ends.
func (c *Client) readEvents(ctx context.Context, resp *http.Response, ch chan<- *stream.Event) {
	defer close(ch)
	defer resp.Body.Close() //nolint:errcheck // read-side close

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			// Blank line terminates the event.
			if data.Len() == 0 {
				continue
			}
			var evt stream.Event
			if err := json.Unmarshal([]byte(data.String()), &evt); err != nil {
				c.logger.Warn("docpipe/client: skipping malformed event",
					"error", err,
				)
				data.Reset()
				continue
			}
			data.Reset()
			select {
			case ch <- &evt:
			case <-ctx.Done():
				return
			}
		case strings.HasPrefix(line, ":"):
			// Heartbeat comment.
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		default:
			// "event:" and "id:" fields are redundant with the payload.
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		c.logger.Warn("docpipe/client: event stream closed", "error", err)
	}
}
