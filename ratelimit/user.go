package ratelimit

import (
	"fmt"

	"golang.org/x/time/rate"
)

// UserConfig defines rate limits and concurrency for a specific user
// on a specific document type, identified by the job's UserID.
type UserConfig struct {
	// Type is the document type this config applies to.
	Type string

	// UserID is the user identifier (typically job.UserID).
	UserID string

	// RateLimit is the sustained extractions per second for this user.
	RateLimit float64

	// RateBurst is the burst size for the user's rate limiter.
	RateBurst int

	// MaxConcurrency limits simultaneous jobs for this user on this
	// type. Zero means no user-specific concurrency limit.
	MaxConcurrency int
}

// userState tracks runtime state for a single type+user pair.
type userState struct {
	limiter        *rate.Limiter
	maxConcurrency int
	active         int
}

// userKey builds the map key for a type+user pair.
func userKey(docType, userID string) string {
	return fmt.Sprintf("%s:%s", docType, userID)
}

// SetUserConfig configures rate limits and concurrency for a specific
// user on a specific document type. Calling this multiple times for the
// same type+user replaces the previous configuration.
func (m *Manager) SetUserConfig(cfg UserConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := userKey(cfg.Type, cfg.UserID)
	existing := m.users[key]

	us := &userState{
		maxConcurrency: cfg.MaxConcurrency,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		us.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	// Preserve current active count if reconfiguring.
	if existing != nil {
		us.active = existing.active
	}
	m.users[key] = us
}

// UserActiveCount returns the current number of active jobs for a
// type+user pair.
func (m *Manager) UserActiveCount(docType, userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if us := m.users[userKey(docType, userID)]; us != nil {
		return us.active
	}
	return 0
}
