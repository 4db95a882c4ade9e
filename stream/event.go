// Package stream provides a real-time event broker for pipeline
// lifecycle events. It bridges the ext.Extension system to connected
// clients via topic-based pub/sub.
package stream

import (
	"encoding/json"
	"time"
)

// EventType identifies the kind of lifecycle event.
type EventType string

const (
	// Job events.
	EventJobEnqueued  EventType = "job.enqueued"
	EventJobStarted   EventType = "job.started"
	EventJobProgress  EventType = "job.progress"
	EventJobCompleted EventType = "job.completed"
	EventJobFailed    EventType = "job.failed"
	EventJobRetrying  EventType = "job.retrying"
	EventJobCancelled EventType = "job.cancelled"

	// Document events.
	EventDocumentSaved EventType = "document.saved"

	// Connected is sent once to a new subscriber so late joiners see
	// the current state of the job they attached to.
	EventConnected EventType = "connected"
)

// Event is the envelope sent to subscribers on a topic channel.
type Event struct {
	// Type identifies the lifecycle event.
	Type EventType `json:"type"`

	// Timestamp is when the event was emitted.
	Timestamp time.Time `json:"ts"`

	// Topic is the primary channel this event was published on.
	Topic string `json:"topic"`

	// Data is the event-specific payload.
	Data json.RawMessage `json:"data"`
}

// JobEventData is the payload for job lifecycle events.
type JobEventData struct {
	JobID      string          `json:"job_id"`
	DocumentID string          `json:"document_id"`
	BatchID    string          `json:"batch_id,omitempty"`
	State      string          `json:"state"`
	Status     string          `json:"status,omitempty"`
	Percent    int             `json:"percent,omitempty"`
	Partial    json.RawMessage `json:"partial,omitempty"`
	Rejection  string          `json:"rejection,omitempty"`
	Error      string          `json:"error,omitempty"`
	ElapsedMs  int64           `json:"elapsed_ms,omitempty"`
	Attempt    int             `json:"attempt,omitempty"`
	NextRunAt  string          `json:"next_run_at,omitempty"`
}

// DocumentEventData is the payload for document events.
type DocumentEventData struct {
	DocumentID string `json:"document_id"`
	JobID      string `json:"job_id"`
	Status     string `json:"status"`
}
