package docpipe

import "time"

// Config holds configuration for the Pipeline.
type Config struct {
	// Concurrency is the number of worker slots. It bounds simultaneous
	// calls to the extraction collaborator.
	Concurrency int

	// PollInterval is how often idle worker slots poll for new jobs.
	PollInterval time.Duration

	// MaxAttempts is the execution attempt ceiling per job. A job that
	// fails MaxAttempts times becomes terminally failed.
	MaxAttempts int

	// RetryBaseDelay is the initial backoff delay after the first failed
	// attempt. The delay doubles on each subsequent attempt.
	RetryBaseDelay time.Duration

	// ExtractTimeout is the upper bound on a single extraction call.
	// Exceeding it is an infrastructure failure eligible for retry.
	ExtractTimeout time.Duration

	// HeartbeatInterval is how often running jobs send heartbeats and how
	// often stream connections emit keep-alives.
	HeartbeatInterval time.Duration

	// StaleJobThreshold is how long before an active job without a
	// heartbeat is considered orphaned and returned to the queue.
	StaleJobThreshold time.Duration

	// RetentionTTL is how long terminal jobs are kept before the store's
	// retention policy evicts them. Zero keeps them indefinitely.
	RetentionTTL time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:       4,
		PollInterval:      1 * time.Second,
		MaxAttempts:       3,
		RetryBaseDelay:    2 * time.Second,
		ExtractTimeout:    2 * time.Minute,
		HeartbeatInterval: 10 * time.Second,
		StaleJobThreshold: 30 * time.Second,
		RetentionTTL:      24 * time.Hour,
		ShutdownTimeout:   30 * time.Second,
	}
}
