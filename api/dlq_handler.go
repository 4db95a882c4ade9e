package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/docpipe/docpipe/dlq"
	"github.com/docpipe/docpipe/id"
)

// listFailures handles GET /v1/failures. Supports ?limit=, ?offset=,
// ?document_type=, and ?batch= filters; newest failures first.
func (a *API) listFailures(c *gin.Context) {
	opts := dlq.ListOpts{
		DocumentTypeID: c.Query("document_type"),
		BatchID:        c.Query("batch"),
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		opts.Limit = n
	}
	if raw := c.Query("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
			return
		}
		opts.Offset = n
	}

	entries, err := a.eng.DLQ().DLQStore().ListDLQ(c.Request.Context(), opts)
	if err != nil {
		a.writeError(c, err)
		return
	}
	count, err := a.eng.DLQ().DLQStore().CountDLQ(c.Request.Context())
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"failures": entries, "total": count})
}

// getFailure handles GET /v1/failures/:failureID.
func (a *API) getFailure(c *gin.Context) {
	failureID, err := id.ParseFailureID(c.Param("failureID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid failure id"})
		return
	}
	entry, err := a.eng.DLQ().DLQStore().GetDLQ(c.Request.Context(), failureID)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// replayFailure handles POST /v1/failures/:failureID/replay. The
// document is resubmitted as a fresh waiting job with attempts reset.
func (a *API) replayFailure(c *gin.Context) {
	failureID, err := id.ParseFailureID(c.Param("failureID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid failure id"})
		return
	}
	j, err := a.eng.DLQ().Replay(c.Request.Context(), failureID)
	if err != nil {
		if j == nil {
			a.writeError(c, err)
			return
		}
		// The job was enqueued but the archive entry could not be
		// marked; the replay itself succeeded.
		a.logger.Warn("failure entry not marked as replayed",
			slog.String("failure_id", failureID.String()),
			slog.String("error", err.Error()),
		)
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": j.ID})
}

// purgeFailures handles DELETE /v1/failures?before=<RFC3339>. Without
// a cutoff, every archived failure is removed.
func (a *API) purgeFailures(c *gin.Context) {
	before := time.Now().UTC()
	if raw := c.Query("before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before timestamp, want RFC3339"})
			return
		}
		before = t
	}
	removed, err := a.eng.DLQ().DLQStore().PurgeDLQ(c.Request.Context(), before)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}
