package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/docpipe/docpipe/stream"
)

// streamJobEvents handles GET /v1/jobs/:jobID/events. The response is
// a Server-Sent Events feed: an initial connected event with the job's
// current state, then lifecycle events in emission order, with
// keep-alive comments on idle connections.
func (a *API) streamJobEvents(c *gin.Context) {
	sub, err := a.eng.SubscribeJob(c.Request.Context(), c.Param("jobID"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	a.serveEventStream(c, sub)
}

// streamBatchEvents handles GET /v1/batches/:batchID/events.
func (a *API) streamBatchEvents(c *gin.Context) {
	sub, err := a.eng.SubscribeBatch(c.Request.Context(), c.Param("batchID"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	a.serveEventStream(c, sub)
}

// serveEventStream pumps broker events to the client until the
// connection closes or the broker shuts the subscriber down. Broker
// cleanup is synchronous on exit: a disconnected client must not leave
// subscriptions behind.
func (a *API) serveEventStream(c *gin.Context, sub *stream.Subscriber) {
	defer a.eng.Unsubscribe(sub.ID())

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}
	setSSEHeaders(c.Writer)
	flusher.Flush()

	heartbeat := time.NewTicker(a.heartbeat)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, open := <-sub.C():
			if !open {
				// Broker shutdown.
				return
			}
			writeSSEEvent(c.Writer, evt)
			flusher.Flush()
			// Each delivery consumes a flow-control credit; replenish
			// so slow-but-alive clients keep receiving.
			sub.AddCredits(1)
		case <-heartbeat.C:
			fmt.Fprint(c.Writer, ": keep-alive\n\n")
			flusher.Flush()
		}
	}
}

func setSSEHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

func writeSSEEvent(w http.ResponseWriter, evt *stream.Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, data)
}
