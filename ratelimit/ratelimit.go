package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Config defines per-document-type dispatch limits.
type Config struct {
	// Type is the document type identifier (matches job.DocumentTypeID).
	Type string

	// MaxConcurrency limits how many jobs of this type may run
	// simultaneously across the local worker pool. Zero means no
	// type-specific limit (pool-wide concurrency still applies).
	MaxConcurrency int

	// RateLimit is the maximum sustained extractions per second that
	// may be dispatched for this type. Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the burst size for the token-bucket rate limiter.
	// Defaults to 1 if RateLimit is set but RateBurst is zero.
	RateBurst int
}

// typeState tracks runtime state for a single document type.
type typeState struct {
	config  Config
	limiter *rate.Limiter
	active  int
}

// Manager controls per-type and per-user rate limiting and concurrency.
// It is safe for concurrent use.
type Manager struct {
	mu    sync.Mutex
	types map[string]*typeState
	users map[string]*userState
}

// NewManager creates a Manager with the given type configurations.
// Types not listed here have no limits.
func NewManager(configs ...Config) *Manager {
	m := &Manager{
		types: make(map[string]*typeState, len(configs)),
		users: make(map[string]*userState),
	}
	for _, cfg := range configs {
		m.types[cfg.Type] = newTypeState(cfg)
	}
	return m
}

func newTypeState(cfg Config) *typeState {
	ts := &typeState{config: cfg}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		ts.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return ts
}

// Acquire checks rate limits and concurrency for the given document
// type and user. If the job is allowed to proceed it increments the
// active counter and returns true. The caller MUST call Release when
// the job completes.
func (m *Manager) Acquire(docType, userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Check type-level constraints.
	ts := m.types[docType]
	if ts != nil {
		if ts.limiter != nil && !ts.limiter.Allow() {
			return false
		}
		if ts.config.MaxConcurrency > 0 && ts.active >= ts.config.MaxConcurrency {
			return false
		}
	}

	// Check user-level constraints.
	if userID != "" {
		us := m.users[userKey(docType, userID)]
		if us != nil {
			if us.limiter != nil && !us.limiter.Allow() {
				return false
			}
			if us.maxConcurrency > 0 && us.active >= us.maxConcurrency {
				return false
			}
			us.active++
		}
	}

	// Increment type active count.
	if ts != nil {
		ts.active++
	}

	return true
}

// Release decrements the active job count for the type and user.
func (m *Manager) Release(docType, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ts := m.types[docType]; ts != nil && ts.active > 0 {
		ts.active--
	}

	if userID != "" {
		if us := m.users[userKey(docType, userID)]; us != nil && us.active > 0 {
			us.active--
		}
	}
}

// SetTypeConfig dynamically updates (or creates) a type configuration.
func (m *Manager) SetTypeConfig(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.types[cfg.Type]
	ts := newTypeState(cfg)

	// Preserve current active count if reconfiguring.
	if existing != nil {
		ts.active = existing.active
	}
	m.types[cfg.Type] = ts
}

// ActiveCount returns the current number of active jobs for a type.
func (m *Manager) ActiveCount(docType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ts := m.types[docType]; ts != nil {
		return ts.active
	}
	return 0
}
