package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/docpipe/docpipe/ext"
	"github.com/docpipe/docpipe/id"
	"github.com/docpipe/docpipe/job"
)

// Limiter controls per-document-type and per-user pacing. The worker
// pool calls Acquire before executing a dequeued job and Release after
// execution completes.
type Limiter interface {
	// Acquire checks rate limits and concurrency for the type/user
	// combination. Returns true if the job is allowed to proceed.
	Acquire(docType, userID string) bool
	// Release decrements the active count for the type/user pair.
	Release(docType, userID string)
}

// Pool manages a set of concurrent worker slots that poll for due jobs
// and execute them through the Executor.
type Pool struct {
	store        job.Store
	executor     *Executor
	extensions   *ext.Registry
	concurrency  int
	pollInterval time.Duration
	workerID     id.WorkerID
	logger       *slog.Logger

	// Heartbeat / reaper / retention configuration.
	heartbeatInterval time.Duration
	staleJobThreshold time.Duration
	retentionTTL      time.Duration
	sweepInterval     time.Duration

	// Rate limiter (optional).
	limiter Limiter

	stopCh     chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
	activeJobs map[string]context.CancelFunc
	activeMu   sync.Mutex
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolConcurrency sets the number of concurrent worker slots.
func WithPoolConcurrency(n int) PoolOption {
	return func(p *Pool) { p.concurrency = n }
}

// WithPollInterval sets how often idle slots poll for new jobs.
func WithPollInterval(d time.Duration) PoolOption {
	return func(p *Pool) { p.pollInterval = d }
}

// WithHeartbeatInterval sets how often the pool sends heartbeats for
// active jobs. A zero value disables heartbeats.
func WithHeartbeatInterval(d time.Duration) PoolOption {
	return func(p *Pool) { p.heartbeatInterval = d }
}

// WithStaleJobThreshold sets the threshold after which active jobs
// without a heartbeat are considered orphaned and requeued. A zero
// value disables the reaper.
func WithStaleJobThreshold(d time.Duration) PoolOption {
	return func(p *Pool) { p.staleJobThreshold = d }
}

// WithRetention sets how long terminal jobs stay queryable before the
// sweeper evicts them. A zero TTL disables the sweeper.
func WithRetention(ttl, interval time.Duration) PoolOption {
	return func(p *Pool) {
		p.retentionTTL = ttl
		p.sweepInterval = interval
	}
}

// WithLimiter sets the rate limiter consulted before each execution.
func WithLimiter(l Limiter) PoolOption {
	return func(p *Pool) { p.limiter = l }
}

// NewPool creates a worker pool.
func NewPool(
	store job.Store,
	executor *Executor,
	extensions *ext.Registry,
	logger *slog.Logger,
	opts ...PoolOption,
) *Pool {
	p := &Pool{
		store:         store,
		executor:      executor,
		extensions:    extensions,
		concurrency:   4,
		pollInterval:  time.Second,
		sweepInterval: time.Minute,
		workerID:      id.NewWorkerID(),
		logger:        logger,
		stopCh:        make(chan struct{}),
		activeJobs:    make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WorkerID returns the pool's unique worker identifier.
func (p *Pool) WorkerID() id.WorkerID { return p.workerID }

// Start launches the worker slots. It returns immediately and is
// idempotent.
func (p *Pool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true
	// A fresh stop channel each run, so the pool can start again after
	// a Stop closed the previous one.
	p.stopCh = make(chan struct{})

	p.logger.Info("worker pool starting",
		slog.String("worker_id", p.workerID.String()),
		slog.Int("concurrency", p.concurrency),
	)

	for range p.concurrency {
		p.wg.Add(1)
		go p.dequeueLoop()
	}

	if p.heartbeatInterval > 0 {
		p.wg.Add(1)
		go p.heartbeatLoop()
	}

	if p.staleJobThreshold > 0 {
		p.wg.Add(1)
		go p.reaperLoop()
	}

	if p.retentionTTL > 0 {
		p.wg.Add(1)
		go p.sweepLoop()
	}

	return nil
}

// Stop signals all slots to stop and waits for them to finish.
// If the context has a deadline, active jobs are cancelled when time
// runs out.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	stopCh := p.stopCh
	p.mu.Unlock()

	p.logger.Info("worker pool stopping", slog.String("worker_id", p.workerID.String()))

	close(stopCh)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out, cancelling active jobs")
		p.cancelActiveJobs()
		p.wg.Wait()
	}

	return nil
}

// dequeueLoop is run by each worker slot.
func (p *Pool) dequeueLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		jobs, err := p.store.DequeueJobs(context.Background(), 1)
		if err != nil {
			p.logger.Error("dequeue error", slog.String("error", err.Error()))
			p.sleep()
			continue
		}

		if len(jobs) == 0 {
			p.sleep()
			continue
		}

		j := jobs[0]

		// Check type/user rate limit and concurrency.
		if p.limiter != nil && !p.limiter.Acquire(j.DocumentTypeID, j.UserID) {
			// Rate limited — return the job to the queue with a small delay.
			j.State = job.StateWaiting
			j.RunAt = time.Now().UTC().Add(p.pollInterval)
			j.WorkerID = id.WorkerID{}
			j.StartedAt = nil
			j.HeartbeatAt = nil
			if updateErr := p.store.UpdateJob(context.Background(), j); updateErr != nil {
				p.logger.Error("failed to requeue rate-limited job",
					slog.String("job_id", j.ID.String()),
					slog.String("error", updateErr.Error()),
				)
			}
			p.sleep()
			continue
		}

		j.WorkerID = p.workerID
		p.extensions.EmitJobStarted(context.Background(), j)

		ctx, cancel := context.WithCancel(context.Background())
		p.trackJob(j.ID.String(), cancel)

		if execErr := p.executor.Execute(ctx, j); execErr != nil {
			p.logger.Debug("job execution failed",
				slog.String("job_id", j.ID.String()),
				slog.String("document_id", j.DocumentID),
				slog.String("error", execErr.Error()),
			)
		}

		p.untrackJob(j.ID.String())
		cancel()

		if p.limiter != nil {
			p.limiter.Release(j.DocumentTypeID, j.UserID)
		}
	}
}

// heartbeatLoop periodically sends heartbeats for all active jobs.
func (p *Pool) heartbeatLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.sendHeartbeats()
		}
	}
}

func (p *Pool) sendHeartbeats() {
	p.activeMu.Lock()
	jobIDs := make([]string, 0, len(p.activeJobs))
	for jobID := range p.activeJobs {
		jobIDs = append(jobIDs, jobID)
	}
	p.activeMu.Unlock()

	for _, jobIDStr := range jobIDs {
		parsedID, parseErr := id.ParseJobID(jobIDStr)
		if parseErr != nil {
			p.logger.Warn("heartbeat: invalid job id", slog.String("job_id", jobIDStr))
			continue
		}
		if err := p.store.HeartbeatJob(context.Background(), parsedID, p.workerID); err != nil {
			p.logger.Warn("heartbeat failed",
				slog.String("job_id", jobIDStr),
				slog.String("error", err.Error()),
			)
		}
	}
}

// reaperLoop periodically requeues orphaned jobs whose heartbeat has
// expired.
func (p *Pool) reaperLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.staleJobThreshold)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.reapStaleJobs()
		}
	}
}

func (p *Pool) reapStaleJobs() {
	stale, err := p.store.ReapStaleJobs(context.Background(), p.staleJobThreshold)
	if err != nil {
		p.logger.Error("reap stale jobs error", slog.String("error", err.Error()))
		return
	}

	for _, j := range stale {
		j.State = job.StateWaiting
		j.RunAt = time.Now().UTC()
		j.WorkerID = id.WorkerID{} // Clear the worker assignment.
		j.HeartbeatAt = nil
		j.StartedAt = nil

		if updateErr := p.store.UpdateJob(context.Background(), j); updateErr != nil {
			p.logger.Error("reap: failed to requeue stale job",
				slog.String("job_id", j.ID.String()),
				slog.String("error", updateErr.Error()),
			)
			continue
		}

		p.logger.Info("requeued stale job",
			slog.String("job_id", j.ID.String()),
			slog.String("document_id", j.DocumentID),
		)
	}
}

// sweepLoop periodically evicts terminal jobs older than the retention
// window.
func (p *Pool) sweepLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			swept, err := p.store.SweepTerminalJobs(context.Background(), p.retentionTTL)
			if err != nil {
				p.logger.Error("retention sweep error", slog.String("error", err.Error()))
				continue
			}
			if swept > 0 {
				p.logger.Debug("retention sweep evicted terminal jobs", slog.Int64("count", swept))
			}
		}
	}
}

func (p *Pool) sleep() {
	select {
	case <-time.After(p.pollInterval):
	case <-p.stopCh:
	}
}

func (p *Pool) trackJob(jobID string, cancel context.CancelFunc) {
	p.activeMu.Lock()
	p.activeJobs[jobID] = cancel
	p.activeMu.Unlock()
}

func (p *Pool) untrackJob(jobID string) {
	p.activeMu.Lock()
	delete(p.activeJobs, jobID)
	p.activeMu.Unlock()
}

func (p *Pool) cancelActiveJobs() {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	for jobID, cancel := range p.activeJobs {
		p.logger.Warn("cancelling active job", slog.String("job_id", jobID))
		cancel()
	}
}
