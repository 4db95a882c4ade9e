package middleware

import (
	"context"

	"github.com/docpipe/docpipe/auth"
	"github.com/docpipe/docpipe/job"
)

// Principal returns middleware that restores the submitting user's
// identity from the job's UserID/UserName fields into the context.
// This ensures handlers see the same auth.Principal as the original
// submission caller.
func Principal() Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		ctx = auth.Restore(ctx, j.UserID, j.UserName)
		return next(ctx)
	}
}
