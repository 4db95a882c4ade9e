package middleware

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/docpipe/docpipe/job"
)

// Timeout bounds each execution by the job's Timeout, which Submit
// seeds from Config.ExtractTimeout. A model call that hangs past the
// deadline sees its context cancelled with a cause naming the budget,
// and the attempt is treated like any other retryable failure.
func Timeout(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		if j.Timeout <= 0 {
			return next(ctx)
		}

		cause := fmt.Errorf("extraction exceeded %s budget", j.Timeout)
		ctx, cancel := context.WithTimeoutCause(ctx, j.Timeout, cause)
		defer cancel()

		err := next(ctx)
		if err != nil && context.Cause(ctx) == cause {
			logger.Warn("extraction deadline exceeded",
				slog.String("job_id", j.ID.String()),
				slog.Duration("timeout", j.Timeout),
			)
		}
		return err
	}
}
