// Package api exposes the pipeline over HTTP using gin: job submission,
// status queries, cancellation, failure-archive management, and live
// SSE event feeds.
//
// Caller identity arrives via the X-User-Id / X-User-Name headers,
// which the principal middleware turns into an auth.Principal. Requests
// without identity headers are treated as trusted internal callers;
// put an authenticating proxy in front if that is not the deployment
// model.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/docpipe/docpipe"
	"github.com/docpipe/docpipe/auth"
	"github.com/docpipe/docpipe/engine"
)

// DefaultHeartbeatInterval is how often idle SSE connections emit a
// keep-alive comment.
const DefaultHeartbeatInterval = 15 * time.Second

// API wires all HTTP handlers for the pipeline.
type API struct {
	eng       *engine.Engine
	logger    *slog.Logger
	heartbeat time.Duration
}

// Option configures an API.
type Option func(*API)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) { a.logger = l }
}

// WithHeartbeatInterval sets the SSE keep-alive interval.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(a *API) { a.heartbeat = d }
}

// New creates an API from an Engine.
func New(eng *engine.Engine, opts ...Option) *API {
	a := &API{
		eng:       eng,
		logger:    slog.Default(),
		heartbeat: DefaultHeartbeatInterval,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Router returns a fully assembled gin engine with all routes.
func (a *API) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	a.RegisterRoutes(&r.RouterGroup)
	return r
}

// RegisterRoutes registers all pipeline routes into the given group.
func (a *API) RegisterRoutes(root *gin.RouterGroup) {
	g := root.Group("/v1", a.principalMiddleware())

	g.POST("/jobs", a.submitJobs)
	g.GET("/jobs/status", a.jobStatus)
	g.POST("/jobs/:jobID/cancel", a.cancelJob)
	g.GET("/jobs/:jobID/events", a.streamJobEvents)

	g.POST("/batches/:batchID/cancel", a.cancelBatch)
	g.GET("/batches/:batchID/events", a.streamBatchEvents)

	g.GET("/failures", a.listFailures)
	g.GET("/failures/:failureID", a.getFailure)
	g.POST("/failures/:failureID/replay", a.replayFailure)
	g.DELETE("/failures", a.purgeFailures)

	g.GET("/stats", a.stats)
}

// principalMiddleware lifts caller identity from request headers into
// the context so the engine's ownership checks see it.
func (a *API) principalMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-Id")
		userName := c.GetHeader("X-User-Name")
		if userID != "" || userName != "" {
			p := auth.Principal{
				UserID:   userID,
				UserName: userName,
				Elevated: c.GetHeader("X-Elevated") == "true",
			}
			ctx := auth.WithPrincipal(c.Request.Context(), p)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

// writeError maps pipeline errors to HTTP status codes.
func (a *API) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, docpipe.ErrNoDocuments),
		errors.Is(err, docpipe.ErrNoSchema),
		errors.Is(err, docpipe.ErrNoSubmitter),
		errors.Is(err, docpipe.ErrInvalidSchema):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, docpipe.ErrJobNotFound),
		errors.Is(err, docpipe.ErrBatchNotFound),
		errors.Is(err, docpipe.ErrTypeNotFound),
		errors.Is(err, docpipe.ErrFailureNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, docpipe.ErrNotAuthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, docpipe.ErrJobActive),
		errors.Is(err, docpipe.ErrJobTerminal),
		errors.Is(err, docpipe.ErrJobAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		a.logger.Error("request failed",
			slog.String("path", c.FullPath()),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
