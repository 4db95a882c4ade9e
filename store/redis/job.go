package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/docpipe/docpipe"
	"github.com/docpipe/docpipe/id"
	"github.com/docpipe/docpipe/job"
)

// EnqueueJob stores the job as a Hash and adds it to the due-queue
// Sorted Set. A live job under the same ID yields ErrJobAlreadyExists;
// a terminal one is replaced wholesale.
func (s *Store) EnqueueJob(ctx context.Context, j *job.Job) error {
	jID := j.ID.String()
	key := jobKey(jID)

	state, err := s.client.HGet(ctx, key, "state").Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("docpipe/redis: enqueue check state: %w", err)
	}
	if err == nil && !job.State(state).Terminal() {
		return docpipe.ErrJobAlreadyExists
	}

	pipe := s.client.TxPipeline()
	// Del first so stale fields from a replaced terminal job don't leak
	// into the fresh record.
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, jobToMap(j))
	pipe.SAdd(ctx, jobIDsKey, jID)
	pipe.ZAdd(ctx, queueKey, goredis.Z{Score: runScore(j.RunAt), Member: jID})
	if !j.BatchID.IsNil() {
		pipe.SAdd(ctx, batchKey(j.BatchID.String()), jID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("docpipe/redis: enqueue job: %w", err)
	}
	return nil
}

// DequeueJobs atomically claims up to limit due jobs. The ZRem result
// arbitrates between competing pollers: whoever removes the queue
// member owns the job.
func (s *Store) DequeueJobs(ctx context.Context, limit int) ([]*job.Job, error) {
	now := time.Now().UTC()

	ids, err := s.client.ZRangeByScore(ctx, queueKey, &goredis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatFloat(runScore(now), 'f', -1, 64),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("docpipe/redis: dequeue zrangebyscore: %w", err)
	}

	var jobs []*job.Job
	for _, jID := range ids {
		removed, remErr := s.client.ZRem(ctx, queueKey, jID).Result()
		if remErr != nil {
			return nil, fmt.Errorf("docpipe/redis: dequeue claim: %w", remErr)
		}
		if removed == 0 {
			continue // another poller claimed it first
		}

		key := jobKey(jID)
		ts := now.Format(time.RFC3339Nano)
		_, setErr := s.client.HSet(ctx, key,
			"state", string(job.StateActive),
			"started_at", ts,
			"heartbeat_at", ts,
			"updated_at", ts,
		).Result()
		if setErr != nil {
			return nil, fmt.Errorf("docpipe/redis: dequeue update: %w", setErr)
		}

		j, getErr := s.getJobByKey(ctx, key)
		if getErr != nil {
			return nil, getErr
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return s.getJobByKey(ctx, jobKey(jobID.String()))
}

// UpdateJob persists changes to an existing job and keeps the due queue
// in sync: waiting and delayed jobs are (re)scored by RunAt, everything
// else leaves the queue.
func (s *Store) UpdateJob(ctx context.Context, j *job.Job) error {
	jID := j.ID.String()
	key := jobKey(jID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("docpipe/redis: update job exists: %w", err)
	}
	if exists == 0 {
		return docpipe.ErrJobNotFound
	}

	fields := jobToMap(j)
	fields["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	switch j.State {
	case job.StateWaiting, job.StateDelayed:
		pipe.ZAdd(ctx, queueKey, goredis.Z{Score: runScore(j.RunAt), Member: jID})
	default:
		pipe.ZRem(ctx, queueKey, jID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("docpipe/redis: update job: %w", err)
	}
	return nil
}

// UpdateProgress overwrites the progress snapshot without touching the
// rest of the record.
func (s *Store) UpdateProgress(ctx context.Context, jobID id.JobID, p job.Progress) error {
	key := jobKey(jobID.String())

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("docpipe/redis: update progress exists: %w", err)
	}
	if exists == 0 {
		return docpipe.ErrJobNotFound
	}

	_, err = s.client.HSet(ctx, key,
		"progress", marshalJSON(p),
		"updated_at", time.Now().UTC().Format(time.RFC3339Nano),
	).Result()
	if err != nil {
		return fmt.Errorf("docpipe/redis: update progress: %w", err)
	}
	return nil
}

// CancelJob transitions a waiting or delayed job to cancelled and
// removes it from the due queue.
func (s *Store) CancelJob(ctx context.Context, jobID id.JobID) error {
	jID := jobID.String()
	key := jobKey(jID)

	state, err := s.client.HGet(ctx, key, "state").Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return docpipe.ErrJobNotFound
		}
		return fmt.Errorf("docpipe/redis: cancel job get state: %w", err)
	}

	st := job.State(state)
	if st == job.StateActive {
		return docpipe.ErrJobActive
	}
	if st.Terminal() {
		return docpipe.ErrJobTerminal
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key,
		"state", string(job.StateCancelled),
		"completed_at", now,
		"updated_at", now,
	)
	pipe.ZRem(ctx, queueKey, jID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("docpipe/redis: cancel job: %w", err)
	}
	return nil
}

// ListJobsByBatch returns all jobs sharing a batch identifier.
func (s *Store) ListJobsByBatch(ctx context.Context, batchID id.BatchID) ([]*job.Job, error) {
	ids, err := s.client.SMembers(ctx, batchKey(batchID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("docpipe/redis: list batch smembers: %w", err)
	}

	jobs := make([]*job.Job, 0, len(ids))
	for _, jID := range ids {
		j, getErr := s.getJobByKey(ctx, jobKey(jID))
		if getErr != nil {
			continue // swept or deleted since indexing
		}
		jobs = append(jobs, j)
	}

	sort.Slice(jobs, func(i, k int) bool {
		return jobs[i].CreatedAt.Before(jobs[k].CreatedAt)
	})
	return jobs, nil
}

// ListJobsByState returns jobs matching the given state.
func (s *Store) ListJobsByState(ctx context.Context, state job.State, opts job.ListOpts) ([]*job.Job, error) {
	ids, err := s.client.SMembers(ctx, jobIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("docpipe/redis: list jobs smembers: %w", err)
	}

	jobs := make([]*job.Job, 0, len(ids))
	for _, jID := range ids {
		j, getErr := s.getJobByKey(ctx, jobKey(jID))
		if getErr != nil {
			continue // skip missing
		}
		if j.State != state {
			continue
		}
		jobs = append(jobs, j)
	}

	sort.Slice(jobs, func(i, k int) bool {
		return jobs[i].CreatedAt.Before(jobs[k].CreatedAt)
	})

	// Apply offset/limit.
	if opts.Offset > 0 && opts.Offset < len(jobs) {
		jobs = jobs[opts.Offset:]
	} else if opts.Offset >= len(jobs) && opts.Offset > 0 {
		return nil, nil
	}
	if opts.Limit > 0 && opts.Limit < len(jobs) {
		jobs = jobs[:opts.Limit]
	}
	return jobs, nil
}

// HeartbeatJob updates the heartbeat timestamp for an active job.
func (s *Store) HeartbeatJob(ctx context.Context, jobID id.JobID, workerID id.WorkerID) error {
	key := jobKey(jobID.String())
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("docpipe/redis: heartbeat exists: %w", err)
	}
	if exists == 0 {
		return docpipe.ErrJobNotFound
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.client.HSet(ctx, key,
		"heartbeat_at", now,
		"worker_id", workerID.String(),
		"updated_at", now,
	).Result()
	if err != nil {
		return fmt.Errorf("docpipe/redis: heartbeat job: %w", err)
	}
	return nil
}

// ReapStaleJobs returns active jobs whose last heartbeat is older than
// the threshold.
func (s *Store) ReapStaleJobs(ctx context.Context, threshold time.Duration) ([]*job.Job, error) {
	cutoff := time.Now().UTC().Add(-threshold)

	ids, err := s.client.SMembers(ctx, jobIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("docpipe/redis: reap smembers: %w", err)
	}

	var stale []*job.Job
	for _, jID := range ids {
		j, getErr := s.getJobByKey(ctx, jobKey(jID))
		if getErr != nil {
			continue
		}
		if j.State != job.StateActive {
			continue
		}
		if j.HeartbeatAt != nil && j.HeartbeatAt.Before(cutoff) {
			stale = append(stale, j)
		}
	}
	return stale, nil
}

// SweepTerminalJobs evicts terminal jobs whose completion is older than
// the retention window.
func (s *Store) SweepTerminalJobs(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)

	ids, err := s.client.SMembers(ctx, jobIDsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("docpipe/redis: sweep smembers: %w", err)
	}

	var swept int64
	for _, jID := range ids {
		j, getErr := s.getJobByKey(ctx, jobKey(jID))
		if getErr != nil {
			continue
		}
		if !j.State.Terminal() {
			continue
		}
		if j.CompletedAt == nil || !j.CompletedAt.Before(cutoff) {
			continue
		}

		pipe := s.client.TxPipeline()
		pipe.Del(ctx, jobKey(jID))
		pipe.SRem(ctx, jobIDsKey, jID)
		if !j.BatchID.IsNil() {
			pipe.SRem(ctx, batchKey(j.BatchID.String()), jID)
		}
		if _, pErr := pipe.Exec(ctx); pErr != nil {
			return swept, fmt.Errorf("docpipe/redis: sweep del: %w", pErr)
		}
		swept++
	}
	return swept, nil
}

// CountJobs returns the number of jobs matching the given options.
func (s *Store) CountJobs(ctx context.Context, opts job.CountOpts) (int64, error) {
	ids, err := s.client.SMembers(ctx, jobIDsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("docpipe/redis: count smembers: %w", err)
	}

	var count int64
	for _, jID := range ids {
		j, getErr := s.getJobByKey(ctx, jobKey(jID))
		if getErr != nil {
			continue
		}
		if opts.State != "" && j.State != opts.State {
			continue
		}
		if !opts.BatchID.IsNil() && j.BatchID.String() != opts.BatchID.String() {
			continue
		}
		count++
	}
	return count, nil
}

// DeleteJob removes a job by ID.
func (s *Store) DeleteJob(ctx context.Context, jobID id.JobID) error {
	jID := jobID.String()
	key := jobKey(jID)

	// Get batch before deleting to clean up the batch index.
	batch, err := s.client.HGet(ctx, key, "batch_id").Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return docpipe.ErrJobNotFound
		}
		return fmt.Errorf("docpipe/redis: delete job get batch: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, jobIDsKey, jID)
	pipe.ZRem(ctx, queueKey, jID)
	if batch != "" {
		pipe.SRem(ctx, batchKey(batch), jID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("docpipe/redis: delete job: %w", err)
	}
	return nil
}

// ── helpers ──

// runScore converts a run time into a sorted-set score.
// Lower score = due earlier.
func runScore(runAt time.Time) float64 {
	return float64(runAt.UnixMilli())
}

func jobToMap(j *job.Job) map[string]interface{} {
	m := map[string]interface{}{
		"id":               j.ID.String(),
		"document_id":      j.DocumentID,
		"document_type_id": j.DocumentTypeID,
		"batch_id":         j.BatchID.String(),
		"schema_snapshot":  string(j.SchemaSnapshot),
		"model":            j.Model,
		"user_id":          j.UserID,
		"user_name":        j.UserName,
		"streaming":        strconv.FormatBool(j.Streaming),
		"skip_validation":  strconv.FormatBool(j.SkipValidation),
		"state":            string(j.State),
		"progress":         marshalJSON(j.Progress),
		"attempts":         strconv.Itoa(j.Attempts),
		"max_attempts":     strconv.Itoa(j.MaxAttempts),
		"rejection":        j.Rejection,
		"last_error":       j.LastError,
		"worker_id":        j.WorkerID.String(),
		"run_at":           j.RunAt.Format(time.RFC3339Nano),
		"timeout":          strconv.FormatInt(int64(j.Timeout), 10),
		"created_at":       j.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":       j.UpdatedAt.Format(time.RFC3339Nano),
	}
	if j.StartedAt != nil {
		m["started_at"] = j.StartedAt.Format(time.RFC3339Nano)
	}
	if j.CompletedAt != nil {
		m["completed_at"] = j.CompletedAt.Format(time.RFC3339Nano)
	}
	if j.HeartbeatAt != nil {
		m["heartbeat_at"] = j.HeartbeatAt.Format(time.RFC3339Nano)
	}
	return m
}

func (s *Store) getJobByKey(ctx context.Context, key string) (*job.Job, error) {
	vals, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("docpipe/redis: get job: %w", err)
	}
	if len(vals) == 0 {
		return nil, docpipe.ErrJobNotFound
	}
	return mapToJob(vals)
}

func mapToJob(m map[string]string) (*job.Job, error) {
	jID, err := id.ParseJobID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("docpipe/redis: parse job id: %w", err)
	}

	attempts, _ := strconv.Atoi(m["attempts"])           //nolint:errcheck // best-effort parse from trusted Redis data
	maxAttempts, _ := strconv.Atoi(m["max_attempts"])    //nolint:errcheck // best-effort parse from trusted Redis data
	streaming, _ := strconv.ParseBool(m["streaming"])    //nolint:errcheck // best-effort parse from trusted Redis data
	skipVal, _ := strconv.ParseBool(m["skip_validation"]) //nolint:errcheck // best-effort parse from trusted Redis data
	timeout, _ := strconv.ParseInt(m["timeout"], 10, 64) //nolint:errcheck // best-effort parse from trusted Redis data

	runAt, _ := time.Parse(time.RFC3339Nano, m["run_at"])         //nolint:errcheck // best-effort parse from trusted Redis data
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"]) //nolint:errcheck // best-effort parse from trusted Redis data
	updatedAt, _ := time.Parse(time.RFC3339Nano, m["updated_at"]) //nolint:errcheck // best-effort parse from trusted Redis data

	var progress job.Progress
	if v := m["progress"]; v != "" {
		_ = json.Unmarshal([]byte(v), &progress) //nolint:errcheck // best-effort parse from trusted Redis data
	}

	j := &job.Job{
		Entity: docpipe.Entity{
			CreatedAt: createdAt,
			UpdatedAt: updatedAt,
		},
		ID:             jID,
		DocumentID:     m["document_id"],
		DocumentTypeID: m["document_type_id"],
		SchemaSnapshot: []byte(m["schema_snapshot"]),
		Model:          m["model"],
		UserID:         m["user_id"],
		UserName:       m["user_name"],
		Streaming:      streaming,
		SkipValidation: skipVal,
		State:          job.State(m["state"]),
		Progress:       progress,
		Attempts:       attempts,
		MaxAttempts:    maxAttempts,
		Rejection:      m["rejection"],
		LastError:      m["last_error"],
		RunAt:          runAt,
		Timeout:        time.Duration(timeout),
	}

	if v := m["batch_id"]; v != "" {
		j.BatchID, _ = id.ParseBatchID(v) //nolint:errcheck // best-effort parse from trusted Redis data
	}
	if v := m["worker_id"]; v != "" {
		j.WorkerID, _ = id.ParseWorkerID(v) //nolint:errcheck // best-effort parse from trusted Redis data
	}
	if v := m["started_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		j.StartedAt = &t
	}
	if v := m["completed_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		j.CompletedAt = &t
	}
	if v := m["heartbeat_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		j.HeartbeatAt = &t
	}

	return j, nil
}

// marshalJSON is a helper to marshal to JSON string.
func marshalJSON(v interface{}) string {
	b, _ := json.Marshal(v) //nolint:errcheck // marshal should not fail for basic types
	return string(b)
}
