package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docpipe/docpipe/job"
	"github.com/docpipe/docpipe/stream"
)

// StatsResponse is the GET /v1/stats payload.
type StatsResponse struct {
	Jobs     map[string]int64   `json:"jobs"`
	Failures int64              `json:"failures"`
	Broker   stream.BrokerStats `json:"broker"`
}

// stats handles GET /v1/stats: job counts by state, archived failure
// count, and stream broker metrics.
func (a *API) stats(c *gin.Context) {
	ctx := c.Request.Context()

	states := []job.State{
		job.StateWaiting, job.StateDelayed, job.StateActive,
		job.StateCompleted, job.StateFailed, job.StateCancelled,
	}
	counts := make(map[string]int64, len(states))
	for _, state := range states {
		n, err := a.eng.Store().CountJobs(ctx, job.CountOpts{State: state})
		if err != nil {
			a.writeError(c, err)
			return
		}
		counts[string(state)] = n
	}

	failures, err := a.eng.DLQ().DLQStore().CountDLQ(ctx)
	if err != nil {
		a.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, StatsResponse{
		Jobs:     counts,
		Failures: failures,
		Broker:   a.eng.Broker().Stats(),
	})
}
