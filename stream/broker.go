package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/docpipe/docpipe/document"
	"github.com/docpipe/docpipe/ext"
	"github.com/docpipe/docpipe/job"
)

// Compile-time interface checks.
var (
	_ ext.Extension     = (*Broker)(nil)
	_ ext.JobEnqueued   = (*Broker)(nil)
	_ ext.JobStarted    = (*Broker)(nil)
	_ ext.JobProgress   = (*Broker)(nil)
	_ ext.JobCompleted  = (*Broker)(nil)
	_ ext.JobFailed     = (*Broker)(nil)
	_ ext.JobRetrying   = (*Broker)(nil)
	_ ext.JobCancelled  = (*Broker)(nil)
	_ ext.DocumentSaved = (*Broker)(nil)
	_ ext.Shutdown      = (*Broker)(nil)
)

// DefaultBufferSize is the default per-subscriber event buffer.
const DefaultBufferSize = 256

// DefaultCredits is the default initial credits for new subscribers.
const DefaultCredits int64 = 1000

// Broker is the real-time stream broker. It implements the ext.Extension
// interface to receive lifecycle events and fans them out to subscribers
// via topic-based pub/sub.
type Broker struct {
	topics *TopicRegistry
	logger *slog.Logger

	// Subscriber management.
	subscribers sync.Map // subscriberID → *Subscriber

	// Metrics.
	totalPublished atomic.Int64
	totalDropped   atomic.Int64

	// Config.
	bufferSize     int
	defaultCredits int64
}

// BrokerOption configures a Broker.
type BrokerOption func(*Broker)

// WithBufferSize sets the per-subscriber event buffer size.
func WithBufferSize(size int) BrokerOption {
	return func(b *Broker) { b.bufferSize = size }
}

// WithDefaultCredits sets the initial credits for new subscribers.
func WithDefaultCredits(credits int64) BrokerOption {
	return func(b *Broker) { b.defaultCredits = credits }
}

// NewBroker creates a new stream broker.
func NewBroker(logger *slog.Logger, opts ...BrokerOption) *Broker {
	b := &Broker{
		topics:         NewTopicRegistry(),
		logger:         logger,
		bufferSize:     DefaultBufferSize,
		defaultCredits: DefaultCredits,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name implements ext.Extension.
func (b *Broker) Name() string { return "stream-broker" }

// Topics returns the topic registry for external use (e.g., SSE handlers).
func (b *Broker) Topics() *TopicRegistry { return b.topics }

// Subscribe creates a new subscriber on the given topics.
func (b *Broker) Subscribe(subscriberID string, topics ...string) *Subscriber {
	sub := NewSubscriber(subscriberID, b.bufferSize, b.defaultCredits)
	b.subscribers.Store(subscriberID, sub)
	for _, topic := range topics {
		b.topics.Subscribe(topic, sub)
	}
	return sub
}

// SubscribeTo adds an existing subscriber to additional topics.
func (b *Broker) SubscribeTo(subscriberID string, topics ...string) {
	val, ok := b.subscribers.Load(subscriberID)
	if !ok {
		return
	}
	sub := val.(*Subscriber) //nolint:errcheck // sync.Map always stores *Subscriber
	for _, topic := range topics {
		b.topics.Subscribe(topic, sub)
	}
}

// Unsubscribe removes a subscriber from specific topics.
func (b *Broker) Unsubscribe(subscriberID string, topics ...string) {
	for _, topic := range topics {
		b.topics.Unsubscribe(topic, subscriberID)
	}
}

// RemoveSubscriber removes a subscriber from all topics and closes it.
// It returns only after the subscriber is fully detached, so callers
// can rely on no further sends once this returns.
func (b *Broker) RemoveSubscriber(subscriberID string) {
	b.topics.UnsubscribeAll(subscriberID)
	if val, ok := b.subscribers.LoadAndDelete(subscriberID); ok {
		val.(*Subscriber).Close() //nolint:errcheck // sync.Map always stores *Subscriber
	}
}

// GetSubscriber returns a subscriber by ID.
func (b *Broker) GetSubscriber(subscriberID string) (*Subscriber, bool) {
	val, ok := b.subscribers.Load(subscriberID)
	if !ok {
		return nil, false
	}
	return val.(*Subscriber), true //nolint:errcheck // sync.Map always stores *Subscriber
}

// SendConnected delivers a one-off connected event directly to a
// subscriber, carrying the current state of the job it attached to.
func (b *Broker) SendConnected(subscriberID string, j *job.Job) {
	sub, ok := b.GetSubscriber(subscriberID)
	if !ok {
		return
	}
	sub.send(&Event{
		Type:      EventConnected,
		Timestamp: time.Now().UTC(),
		Topic:     JobTopic(j.ID.String()),
		Data:      mustMarshal(jobEventData(j)),
	})
}

// Stats returns broker statistics.
func (b *Broker) Stats() BrokerStats {
	count := 0
	b.subscribers.Range(func(_, _ any) bool {
		count++
		return true
	})
	return BrokerStats{
		TopicCount:      b.topics.TopicCount(),
		SubscriberCount: count,
		TotalPublished:  b.totalPublished.Load(),
		TotalDropped:    b.totalDropped.Load(),
	}
}

// BrokerStats contains broker metrics.
type BrokerStats struct {
	TopicCount      int   `json:"topic_count"`
	SubscriberCount int   `json:"subscriber_count"`
	TotalPublished  int64 `json:"total_published"`
	TotalDropped    int64 `json:"total_dropped"`
}

// publish creates an event and broadcasts it to all matching topics.
func (b *Broker) publish(evt *Event, extra ...string) {
	topics := resolveTopics(evt, extra...)
	delivered := b.topics.Broadcast(topics, evt)
	b.totalPublished.Add(int64(delivered))
}

// mustMarshal marshals data to JSON, panicking on error (programming error).
func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic("stream: marshal event data: " + err.Error())
	}
	return data
}

// jobEventData builds the common payload for a job's lifecycle events.
func jobEventData(j *job.Job) JobEventData {
	return JobEventData{
		JobID:      j.ID.String(),
		DocumentID: j.DocumentID,
		BatchID:    j.BatchID.String(),
		State:      string(j.State),
		Status:     j.Progress.Status,
		Percent:    j.Progress.Percent,
		Rejection:  j.Rejection,
	}
}

// batchTopic returns the batch topic for a job, or "" when the job is
// not part of a batch.
func batchTopic(j *job.Job) string {
	if j.BatchID.IsNil() {
		return ""
	}
	return BatchTopic(j.BatchID.String())
}

// ── Job lifecycle hooks ─────────────────────────────

func (b *Broker) OnJobEnqueued(_ context.Context, j *job.Job) error {
	b.publish(&Event{
		Type:      EventJobEnqueued,
		Timestamp: time.Now().UTC(),
		Topic:     JobTopic(j.ID.String()),
		Data:      mustMarshal(jobEventData(j)),
	}, batchTopic(j))
	return nil
}

func (b *Broker) OnJobStarted(_ context.Context, j *job.Job) error {
	b.publish(&Event{
		Type:      EventJobStarted,
		Timestamp: time.Now().UTC(),
		Topic:     JobTopic(j.ID.String()),
		Data:      mustMarshal(jobEventData(j)),
	}, batchTopic(j))
	return nil
}

func (b *Broker) OnJobProgress(_ context.Context, j *job.Job, p job.Progress) error {
	data := jobEventData(j)
	data.Status = p.Status
	data.Percent = p.Percent
	data.Partial = p.Data
	b.publish(&Event{
		Type:      EventJobProgress,
		Timestamp: time.Now().UTC(),
		Topic:     JobTopic(j.ID.String()),
		Data:      mustMarshal(data),
	}, batchTopic(j))
	return nil
}

func (b *Broker) OnJobCompleted(_ context.Context, j *job.Job, elapsed time.Duration) error {
	data := jobEventData(j)
	data.ElapsedMs = elapsed.Milliseconds()
	b.publish(&Event{
		Type:      EventJobCompleted,
		Timestamp: time.Now().UTC(),
		Topic:     JobTopic(j.ID.String()),
		Data:      mustMarshal(data),
	}, batchTopic(j))
	return nil
}

func (b *Broker) OnJobFailed(_ context.Context, j *job.Job, jobErr error) error {
	data := jobEventData(j)
	data.Error = jobErr.Error()
	b.publish(&Event{
		Type:      EventJobFailed,
		Timestamp: time.Now().UTC(),
		Topic:     JobTopic(j.ID.String()),
		Data:      mustMarshal(data),
	}, batchTopic(j))
	return nil
}

func (b *Broker) OnJobRetrying(_ context.Context, j *job.Job, attempt int, nextRunAt time.Time) error {
	data := jobEventData(j)
	data.Attempt = attempt
	data.NextRunAt = nextRunAt.Format(time.RFC3339)
	if j.LastError != "" {
		data.Error = j.LastError
	}
	b.publish(&Event{
		Type:      EventJobRetrying,
		Timestamp: time.Now().UTC(),
		Topic:     JobTopic(j.ID.String()),
		Data:      mustMarshal(data),
	}, batchTopic(j))
	return nil
}

func (b *Broker) OnJobCancelled(_ context.Context, j *job.Job) error {
	b.publish(&Event{
		Type:      EventJobCancelled,
		Timestamp: time.Now().UTC(),
		Topic:     JobTopic(j.ID.String()),
		Data:      mustMarshal(jobEventData(j)),
	}, batchTopic(j))
	return nil
}

// ── Document hooks ──────────────────────────────────

func (b *Broker) OnDocumentSaved(_ context.Context, j *job.Job, doc *document.Document) error {
	b.publish(&Event{
		Type:      EventDocumentSaved,
		Timestamp: time.Now().UTC(),
		Topic:     JobTopic(j.ID.String()),
		Data: mustMarshal(DocumentEventData{
			DocumentID: doc.ID,
			JobID:      j.ID.String(),
			Status:     string(doc.Status),
		}),
	}, batchTopic(j))
	return nil
}

// ── Shutdown ────────────────────────────────────────

func (b *Broker) OnShutdown(_ context.Context) error {
	b.subscribers.Range(func(key, value any) bool {
		sub := value.(*Subscriber) //nolint:errcheck // sync.Map always stores *Subscriber
		sub.Close()
		b.subscribers.Delete(key)
		return true
	})
	b.logger.Info("stream broker shut down")
	return nil
}
