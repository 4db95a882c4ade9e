package docpipe

import (
	"context"
	"log/slog"
)

// Option configures a Pipeline.
type Option func(*Pipeline) error

// Storer is the minimal store interface held by the Pipeline. It covers
// lifecycle operations only; the full job.Store contract is used in the
// subsystem layers that don't create import cycles.
type Storer interface {
	Ping(ctx context.Context) error
	Close() error
}

// poolRunner is an internal interface for worker pool lifecycle.
type poolRunner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// extensionEmitter is an internal interface for extension lifecycle events.
type extensionEmitter interface {
	EmitShutdown(ctx context.Context)
}

// Pipeline is the central coordinator for document-extraction job
// processing. Create one with New() and functional options; use
// engine.Build to wire the worker pool, stream broker, and collaborators
// on top of it.
type Pipeline struct {
	config     Config
	logger     *slog.Logger
	store      Storer
	extensions extensionEmitter
	pool       poolRunner

	// started tracks whether Start has been called.
	started bool
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Logger returns the pipeline's logger.
func (p *Pipeline) Logger() *slog.Logger { return p.logger }

// Store returns the pipeline's store.
func (p *Pipeline) Store() Storer { return p.store }

// Config returns a copy of the pipeline's configuration.
func (p *Pipeline) Config() Config { return p.config }

// SetPool sets the worker pool (called by the engine package).
func (p *Pipeline) SetPool(r poolRunner) { p.pool = r }

// SetExtensions sets the extension emitter (called by the engine package).
func (p *Pipeline) SetExtensions(e extensionEmitter) { p.extensions = e }

// Start begins job processing. It is idempotent: the engine calls it
// lazily on the first submission.
func (p *Pipeline) Start(ctx context.Context) error {
	if p.pool == nil {
		return ErrNoStore
	}
	if err := p.pool.Start(ctx); err != nil {
		return err
	}
	p.started = true
	return nil
}

// Stop gracefully shuts down the pipeline.
func (p *Pipeline) Stop(ctx context.Context) error {
	if p.pool != nil && p.started {
		if err := p.pool.Stop(ctx); err != nil {
			p.logger.Error("pool stop error", "error", err)
		}
	}
	if p.extensions != nil {
		p.extensions.EmitShutdown(ctx)
	}
	if p.store != nil {
		return p.store.Close()
	}
	return nil
}

// WithConcurrency sets the number of worker slots.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) error {
		p.config.Concurrency = n
		return nil
	}
}

// WithConfig replaces the full configuration.
func WithConfig(cfg Config) Option {
	return func(p *Pipeline) error {
		p.config = cfg
		return nil
	}
}

// WithMaxAttempts sets the execution attempt ceiling per job.
func WithMaxAttempts(n int) Option {
	return func(p *Pipeline) error {
		p.config.MaxAttempts = n
		return nil
	}
}

// WithLogger sets the structured logger for the pipeline.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) error {
		p.logger = l
		return nil
	}
}

// WithStore sets the persistence backend for the pipeline.
// The store must implement Storer at minimum; typically it is a
// store/memory or store/redis Store implementing job.Store as well.
func WithStore(s Storer) Option {
	return func(p *Pipeline) error {
		p.store = s
		return nil
	}
}
