package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/docpipe/docpipe"
	"github.com/docpipe/docpipe/dlq"
	"github.com/docpipe/docpipe/id"
)

// PushDLQ adds a terminal-failure entry to the archive.
func (s *Store) PushDLQ(ctx context.Context, entry *dlq.Entry) error {
	eID := entry.ID.String()
	key := failKey(eID)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, failToMap(entry))
	pipe.ZAdd(ctx, failIDsKey, goredis.Z{
		Score:  float64(entry.FailedAt.UnixMilli()),
		Member: eID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("docpipe/redis: push dlq: %w", err)
	}
	return nil
}

// ListDLQ returns archived failures matching the given options, newest
// first.
func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	ids, err := s.client.ZRevRange(ctx, failIDsKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("docpipe/redis: list dlq: %w", err)
	}

	entries := make([]*dlq.Entry, 0, len(ids))
	for _, eID := range ids {
		vals, getErr := s.client.HGetAll(ctx, failKey(eID)).Result()
		if getErr != nil || len(vals) == 0 {
			continue
		}
		e, convErr := mapToFail(vals)
		if convErr != nil {
			continue
		}
		if opts.DocumentTypeID != "" && e.DocumentTypeID != opts.DocumentTypeID {
			continue
		}
		if opts.BatchID != "" && e.BatchID != opts.BatchID {
			continue
		}
		entries = append(entries, e)
	}

	if opts.Offset > 0 && opts.Offset < len(entries) {
		entries = entries[opts.Offset:]
	} else if opts.Offset >= len(entries) && opts.Offset > 0 {
		return nil, nil
	}
	if opts.Limit > 0 && opts.Limit < len(entries) {
		entries = entries[:opts.Limit]
	}
	return entries, nil
}

// GetDLQ retrieves an archived failure by ID.
func (s *Store) GetDLQ(ctx context.Context, entryID id.FailureID) (*dlq.Entry, error) {
	key := failKey(entryID.String())
	vals, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("docpipe/redis: get dlq: %w", err)
	}
	if len(vals) == 0 {
		return nil, docpipe.ErrFailureNotFound
	}
	return mapToFail(vals)
}

// ReplayDLQ marks an archived failure as replayed.
func (s *Store) ReplayDLQ(ctx context.Context, entryID id.FailureID) error {
	key := failKey(entryID.String())
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("docpipe/redis: replay dlq exists: %w", err)
	}
	if exists == 0 {
		return docpipe.ErrFailureNotFound
	}

	_, err = s.client.HSet(ctx, key,
		"replayed_at", time.Now().UTC().Format(time.RFC3339Nano),
	).Result()
	if err != nil {
		return fmt.Errorf("docpipe/redis: replay dlq: %w", err)
	}
	return nil
}

// PurgeDLQ removes archived failures with FailedAt before the given time.
func (s *Store) PurgeDLQ(ctx context.Context, before time.Time) (int64, error) {
	max := strconv.FormatInt(before.UnixMilli()-1, 10)
	ids, err := s.client.ZRangeByScore(ctx, failIDsKey, &goredis.ZRangeBy{
		Min: "-inf",
		Max: max,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("docpipe/redis: purge dlq zrangebyscore: %w", err)
	}

	var purged int64
	for _, eID := range ids {
		pipe := s.client.TxPipeline()
		pipe.Del(ctx, failKey(eID))
		pipe.ZRem(ctx, failIDsKey, eID)
		if _, pErr := pipe.Exec(ctx); pErr != nil {
			return purged, fmt.Errorf("docpipe/redis: purge dlq del: %w", pErr)
		}
		purged++
	}
	return purged, nil
}

// CountDLQ returns the total number of archived failures.
func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	count, err := s.client.ZCard(ctx, failIDsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("docpipe/redis: count dlq: %w", err)
	}
	return count, nil
}

// ── helpers ──

func failToMap(e *dlq.Entry) map[string]interface{} {
	m := map[string]interface{}{
		"id":               e.ID.String(),
		"job_id":           e.JobID.String(),
		"document_id":      e.DocumentID,
		"document_type_id": e.DocumentTypeID,
		"batch_id":         e.BatchID,
		"schema_snapshot":  string(e.SchemaSnapshot),
		"model":            e.Model,
		"streaming":        strconv.FormatBool(e.Streaming),
		"skip_validation":  strconv.FormatBool(e.SkipValidation),
		"timeout":          strconv.FormatInt(int64(e.Timeout), 10),
		"error":            e.Error,
		"attempts":         strconv.Itoa(e.Attempts),
		"max_attempts":     strconv.Itoa(e.MaxAttempts),
		"user_id":          e.UserID,
		"user_name":        e.UserName,
		"failed_at":        e.FailedAt.Format(time.RFC3339Nano),
		"created_at":       e.CreatedAt.Format(time.RFC3339Nano),
	}
	if e.ReplayedAt != nil {
		m["replayed_at"] = e.ReplayedAt.Format(time.RFC3339Nano)
	}
	return m
}

func mapToFail(m map[string]string) (*dlq.Entry, error) {
	eID, err := id.ParseFailureID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("docpipe/redis: parse failure id: %w", err)
	}
	jobID, _ := id.ParseJobID(m["job_id"])                        //nolint:errcheck // best-effort parse from trusted Redis data
	streaming, _ := strconv.ParseBool(m["streaming"])             //nolint:errcheck // best-effort parse from trusted Redis data
	skipVal, _ := strconv.ParseBool(m["skip_validation"])         //nolint:errcheck // best-effort parse from trusted Redis data
	timeout, _ := strconv.ParseInt(m["timeout"], 10, 64)          //nolint:errcheck // best-effort parse from trusted Redis data
	attempts, _ := strconv.Atoi(m["attempts"])                    //nolint:errcheck // best-effort parse from trusted Redis data
	maxAttempts, _ := strconv.Atoi(m["max_attempts"])             //nolint:errcheck // best-effort parse from trusted Redis data
	failedAt, _ := time.Parse(time.RFC3339Nano, m["failed_at"])   //nolint:errcheck // best-effort parse from trusted Redis data
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"]) //nolint:errcheck // best-effort parse from trusted Redis data

	e := &dlq.Entry{
		ID:             eID,
		JobID:          jobID,
		DocumentID:     m["document_id"],
		DocumentTypeID: m["document_type_id"],
		BatchID:        m["batch_id"],
		SchemaSnapshot: []byte(m["schema_snapshot"]),
		Model:          m["model"],
		Streaming:      streaming,
		SkipValidation: skipVal,
		Timeout:        time.Duration(timeout),
		Error:          m["error"],
		Attempts:       attempts,
		MaxAttempts:    maxAttempts,
		UserID:         m["user_id"],
		UserName:       m["user_name"],
		FailedAt:       failedAt,
		CreatedAt:      createdAt,
	}

	if v := m["replayed_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		e.ReplayedAt = &t
	}
	return e, nil
}
