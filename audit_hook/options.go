package audithook

import "log/slog"

// Option configures an Extension.
type Option func(*Extension)

// WithActions restricts auditing to the named actions. Without this
// option every action is recorded.
func WithActions(actions ...string) Option {
	return func(e *Extension) {
		e.enabled = make(map[string]bool, len(actions))
		for _, a := range actions {
			e.enabled[a] = true
		}
	}
}

// WithLogger sets the logger used when the recorder itself fails.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extension) {
		if logger != nil {
			e.logger = logger
		}
	}
}
