package job

import "time"

// Options configures per-job behavior at enqueue time.
type Options struct {
	// MaxAttempts is the execution attempt ceiling before terminal failure.
	MaxAttempts int

	// Timeout is the upper bound on a single extraction call.
	Timeout time.Duration

	// RunAt schedules the job for future execution. Zero means immediate.
	RunAt time.Time

	// Streaming enables fine-grained partial-progress updates.
	Streaming bool

	// SkipValidation skips the pre-extraction content check.
	SkipValidation bool

	// Model overrides the document type's extraction model.
	Model string
}

// DefaultOptions returns Options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxAttempts: 3,
		Timeout:     2 * time.Minute,
	}
}

// Option is a functional option for configuring a job at enqueue time.
type Option func(*Options)

// WithMaxAttempts sets the execution attempt ceiling.
func WithMaxAttempts(n int) Option {
	return func(o *Options) { o.MaxAttempts = n }
}

// WithTimeout sets the upper bound on a single extraction call.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

// WithRunAt schedules the job for execution at a specific time.
func WithRunAt(t time.Time) Option {
	return func(o *Options) { o.RunAt = t }
}

// WithStreaming enables streaming partial-progress updates.
func WithStreaming(enabled bool) Option {
	return func(o *Options) { o.Streaming = enabled }
}

// WithSkipValidation skips the pre-extraction content check.
func WithSkipValidation(skip bool) Option {
	return func(o *Options) { o.SkipValidation = skip }
}

// WithModel overrides the extraction model for the job.
func WithModel(model string) Option {
	return func(o *Options) { o.Model = model }
}
