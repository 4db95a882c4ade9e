package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/docpipe/docpipe/engine"
)

// SubmitJobsRequest is the POST /v1/jobs payload.
type SubmitJobsRequest struct {
	DocumentIDs    []string        `json:"document_ids"`
	DocumentTypeID string          `json:"document_type_id"`
	Schema         json.RawMessage `json:"schema,omitempty"`
	OverrideModel  string          `json:"override_model,omitempty"`
	BatchID        string          `json:"batch_id,omitempty"`
	Streaming      bool            `json:"streaming,omitempty"`
	SkipValidation bool            `json:"skip_validation,omitempty"`
}

// submitJobs handles POST /v1/jobs. Returns 202: processing is
// asynchronous and the result arrives via status polling or the SSE
// event feed.
func (a *API) submitJobs(c *gin.Context) {
	var req SubmitJobsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := a.eng.Submit(c.Request.Context(), engine.SubmitRequest{
		DocumentIDs:    req.DocumentIDs,
		DocumentTypeID: req.DocumentTypeID,
		Schema:         req.Schema,
		OverrideModel:  req.OverrideModel,
		BatchID:        req.BatchID,
		Streaming:      req.Streaming,
		SkipValidation: req.SkipValidation,
	})
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, res)
}

// JobStatusResponse is the GET /v1/jobs/status payload.
type JobStatusResponse struct {
	Jobs    []engine.JobStatus   `json:"jobs"`
	Summary *engine.BatchSummary `json:"summary,omitempty"`
}

// jobStatus handles GET /v1/jobs/status. Accepts either ?ids=a,b,c or
// ?batch=<batchID>; the batch form additionally returns a summary.
func (a *API) jobStatus(c *gin.Context) {
	if batchID := c.Query("batch"); batchID != "" {
		statuses, summary, err := a.eng.BatchStatus(c.Request.Context(), batchID)
		if err != nil {
			a.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, JobStatusResponse{Jobs: statuses, Summary: summary})
		return
	}

	raw := c.Query("ids")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ids or batch query parameter is required"})
		return
	}
	statuses, err := a.eng.Status(c.Request.Context(), strings.Split(raw, ","))
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, JobStatusResponse{Jobs: statuses})
}

// cancelJob handles POST /v1/jobs/:jobID/cancel.
func (a *API) cancelJob(c *gin.Context) {
	if err := a.eng.Cancel(c.Request.Context(), c.Param("jobID")); err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

// cancelBatch handles POST /v1/batches/:batchID/cancel.
func (a *API) cancelBatch(c *gin.Context) {
	res, err := a.eng.CancelBatch(c.Request.Context(), c.Param("batchID"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
