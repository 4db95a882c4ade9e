package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/docpipe/docpipe/id"
	"github.com/docpipe/docpipe/job"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestBrokerSubscribeAndPublish(t *testing.T) {
	t.Parallel()

	b := NewBroker(testLogger())

	sub := b.Subscribe("sub-1", TopicJobs)

	evt := &Event{
		Type:      EventJobEnqueued,
		Timestamp: time.Now().UTC(),
		Topic:     JobTopic("procdoc_doc1"),
		Data:      json.RawMessage(`{"job_id":"procdoc_doc1"}`),
	}
	b.publish(evt)

	// Event should arrive on the subscriber channel.
	select {
	case received := <-sub.C():
		if received.Type != EventJobEnqueued {
			t.Errorf("Type = %q, want %q", received.Type, EventJobEnqueued)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBrokerMultipleTopics(t *testing.T) {
	t.Parallel()

	b := NewBroker(testLogger())

	// Subscribe to firehose — should get everything.
	firehose := b.Subscribe("firehose-sub", TopicFirehose)

	// Subscribe to just jobs.
	jobsSub := b.Subscribe("jobs-sub", TopicJobs)

	// Publish a job event.
	evt := &Event{
		Type:      EventJobCompleted,
		Timestamp: time.Now().UTC(),
		Topic:     JobTopic("procdoc_doc2"),
		Data:      json.RawMessage(`{}`),
	}
	b.publish(evt)

	// Both should receive the event.
	for _, sub := range []*Subscriber{firehose, jobsSub} {
		select {
		case <-sub.C():
			// ok
		case <-time.After(time.Second):
			t.Fatalf("subscriber %s timed out", sub.ID())
		}
	}
}

func TestBrokerBatchTopic(t *testing.T) {
	t.Parallel()

	b := NewBroker(testLogger())

	// Subscribe to a specific batch.
	batchID := id.NewBatchID()
	sub := b.Subscribe("batch-sub", BatchTopic(batchID.String()))

	j := &job.Job{
		ID:         id.JobForDocument("doc1"),
		DocumentID: "doc1",
		BatchID:    batchID,
		State:      job.StateActive,
	}
	if err := b.OnJobStarted(context.Background(), j); err != nil {
		t.Fatalf("OnJobStarted: %v", err)
	}

	select {
	case received := <-sub.C():
		if received.Type != EventJobStarted {
			t.Errorf("Type = %q, want %q", received.Type, EventJobStarted)
		}
		var data JobEventData
		if err := json.Unmarshal(received.Data, &data); err != nil {
			t.Fatalf("unmarshal data: %v", err)
		}
		if data.BatchID != batchID.String() {
			t.Errorf("BatchID = %q, want %q", data.BatchID, batchID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for batch event")
	}

	// Event for a job in a different batch should NOT arrive.
	other := &job.Job{
		ID:         id.JobForDocument("doc2"),
		DocumentID: "doc2",
		BatchID:    id.NewBatchID(),
		State:      job.StateActive,
	}
	if err := b.OnJobStarted(context.Background(), other); err != nil {
		t.Fatalf("OnJobStarted: %v", err)
	}

	select {
	case <-sub.C():
		t.Fatal("should not receive event for different batch")
	case <-time.After(50 * time.Millisecond):
		// ok — no event
	}
}

func TestBrokerProgressCarriesPartial(t *testing.T) {
	t.Parallel()

	b := NewBroker(testLogger())
	sub := b.Subscribe("prog-sub", JobTopic("procdoc_doc3"))

	j := &job.Job{
		ID:         id.JobForDocument("doc3"),
		DocumentID: "doc3",
		State:      job.StateActive,
	}
	p := job.Progress{
		Status:  "extracting",
		Percent: 40,
		Data:    json.RawMessage(`{"delta":"\"invoice"}`),
	}
	if err := b.OnJobProgress(context.Background(), j, p); err != nil {
		t.Fatalf("OnJobProgress: %v", err)
	}

	select {
	case received := <-sub.C():
		var data JobEventData
		if err := json.Unmarshal(received.Data, &data); err != nil {
			t.Fatalf("unmarshal data: %v", err)
		}
		if data.Status != "extracting" || data.Percent != 40 {
			t.Errorf("got status=%q percent=%d", data.Status, data.Percent)
		}
		if len(data.Partial) == 0 {
			t.Error("expected partial payload")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for progress event")
	}
}

func TestBrokerSendConnected(t *testing.T) {
	t.Parallel()

	b := NewBroker(testLogger())
	sub := b.Subscribe("conn-sub", JobTopic("procdoc_doc4"))

	j := &job.Job{
		ID:         id.JobForDocument("doc4"),
		DocumentID: "doc4",
		State:      job.StateWaiting,
	}
	b.SendConnected("conn-sub", j)

	select {
	case received := <-sub.C():
		if received.Type != EventConnected {
			t.Errorf("Type = %q, want %q", received.Type, EventConnected)
		}
		var data JobEventData
		if err := json.Unmarshal(received.Data, &data); err != nil {
			t.Fatalf("unmarshal data: %v", err)
		}
		if data.State != string(job.StateWaiting) {
			t.Errorf("State = %q, want waiting", data.State)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for connected event")
	}
}

func TestBrokerUnsubscribe(t *testing.T) {
	t.Parallel()

	b := NewBroker(testLogger())

	sub := b.Subscribe("sub-rm", TopicFirehose)

	// Remove subscriber.
	b.RemoveSubscriber("sub-rm")

	evt := &Event{
		Type:      EventJobEnqueued,
		Timestamp: time.Now().UTC(),
		Topic:     JobTopic("procdoc_doc5"),
		Data:      json.RawMessage(`{}`),
	}
	b.publish(evt)

	// Channel should be closed.
	select {
	case _, ok := <-sub.C():
		if ok {
			t.Fatal("channel should be closed after RemoveSubscriber")
		}
	case <-time.After(100 * time.Millisecond):
		// ok
	}
}

func TestBrokerStats(t *testing.T) {
	t.Parallel()

	b := NewBroker(testLogger())

	_ = b.Subscribe("s1", TopicJobs)
	_ = b.Subscribe("s2", TopicFirehose, BatchTopic("b1"))

	stats := b.Stats()
	if stats.SubscriberCount != 2 {
		t.Errorf("SubscriberCount = %d, want 2", stats.SubscriberCount)
	}
	if stats.TopicCount < 2 {
		t.Errorf("TopicCount = %d, want >= 2", stats.TopicCount)
	}
}

func TestSubscriberCredits(t *testing.T) {
	t.Parallel()

	sub := NewSubscriber("credit-sub", 10, 2)

	evt := &Event{Type: EventJobEnqueued, Timestamp: time.Now().UTC(), Data: json.RawMessage(`{}`)}

	// Should accept 2 events (initial credits).
	if !sub.send(evt) {
		t.Fatal("first send should succeed")
	}
	if !sub.send(evt) {
		t.Fatal("second send should succeed")
	}

	// Third should fail — no credits.
	if sub.send(evt) {
		t.Fatal("third send should fail (no credits)")
	}

	// Replenish credits.
	sub.AddCredits(5)
	if sub.Credits() != 5 {
		t.Errorf("Credits = %d, want 5", sub.Credits())
	}

	if !sub.send(evt) {
		t.Fatal("send after credit replenishment should succeed")
	}
}

func TestSubscriberFilter(t *testing.T) {
	t.Parallel()

	sub := NewSubscriber("filter-sub", 10, 100)
	sub.SetFilter(func(e *Event) bool {
		return e.Type == EventJobFailed
	})

	// Should be rejected by filter.
	if sub.send(&Event{Type: EventJobCompleted, Timestamp: time.Now().UTC(), Data: json.RawMessage(`{}`)}) {
		t.Fatal("completed event should be filtered out")
	}

	// Should pass filter.
	if !sub.send(&Event{Type: EventJobFailed, Timestamp: time.Now().UTC(), Data: json.RawMessage(`{}`)}) {
		t.Fatal("failed event should pass filter")
	}
}

func TestSubscriberCloseDuringSends(t *testing.T) {
	t.Parallel()

	// Hammer send and Close from separate goroutines. A send racing the
	// channel close would panic and fail the test.
	for i := 0; i < 100; i++ {
		sub := NewSubscriber("race-sub", 1, 1_000_000)
		evt := &Event{Type: EventJobProgress, Timestamp: time.Now().UTC(), Data: json.RawMessage(`{}`)}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				sub.send(evt)
			}
		}()
		go func() {
			defer wg.Done()
			sub.Close()
		}()
		wg.Wait()

		// Sends after Close are rejected outright.
		if sub.send(evt) {
			t.Fatal("send after Close should fail")
		}
	}
}

func TestTopicValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		topic string
		valid bool
	}{
		{TopicJobs, true},
		{TopicFirehose, true},
		{"job:procdoc_doc1", true},
		{"batch:batch-abc", true},
		{"invalid", false},
		{"unknown:entity", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			err := ValidateTopic(tt.topic)
			if tt.valid && err != nil {
				t.Errorf("ValidateTopic(%q) returned error: %v", tt.topic, err)
			}
			if !tt.valid && err == nil {
				t.Errorf("ValidateTopic(%q) should return error", tt.topic)
			}
		})
	}
}

func TestTopicRegistry(t *testing.T) {
	t.Parallel()

	tr := NewTopicRegistry()

	sub1 := NewSubscriber("s1", 10, 100)
	sub2 := NewSubscriber("s2", 10, 100)

	tr.Subscribe("topic-a", sub1)
	tr.Subscribe("topic-a", sub2)
	tr.Subscribe("topic-b", sub1)

	if tr.TopicCount() != 2 {
		t.Errorf("TopicCount = %d, want 2", tr.TopicCount())
	}
	if tr.SubscriberCount("topic-a") != 2 {
		t.Errorf("SubscriberCount(topic-a) = %d, want 2", tr.SubscriberCount("topic-a"))
	}

	// Unsubscribe s2 from topic-a.
	tr.Unsubscribe("topic-a", "s2")
	if tr.SubscriberCount("topic-a") != 1 {
		t.Errorf("SubscriberCount(topic-a) = %d, want 1", tr.SubscriberCount("topic-a"))
	}

	// UnsubscribeAll for s1.
	tr.UnsubscribeAll("s1")
	if tr.TopicCount() != 0 {
		t.Errorf("TopicCount after UnsubscribeAll = %d, want 0", tr.TopicCount())
	}
}

func TestBroadcastDeduplication(t *testing.T) {
	t.Parallel()

	tr := NewTopicRegistry()
	sub := NewSubscriber("dedup-sub", 10, 100)

	// Subscribe to multiple topics.
	tr.Subscribe("topic-x", sub)
	tr.Subscribe("topic-y", sub)

	evt := &Event{Type: EventJobEnqueued, Timestamp: time.Now().UTC(), Data: json.RawMessage(`{}`)}

	delivered := tr.Broadcast([]string{"topic-x", "topic-y"}, evt)
	if delivered != 1 {
		t.Errorf("Broadcast delivered to %d subscribers, want 1 (deduplicated)", delivered)
	}
}

func TestResolveTopics(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		evt      *Event
		extra    []string
		expected []string
	}{
		{
			name:     "job event",
			evt:      &Event{Type: EventJobEnqueued, Topic: "job:procdoc_doc1"},
			expected: []string{TopicFirehose, TopicJobs, "job:procdoc_doc1"},
		},
		{
			name:     "job event with batch",
			evt:      &Event{Type: EventJobCompleted, Topic: "job:procdoc_doc1"},
			extra:    []string{"batch:b1"},
			expected: []string{TopicFirehose, TopicJobs, "job:procdoc_doc1", "batch:b1"},
		},
		{
			name:     "document event",
			evt:      &Event{Type: EventDocumentSaved, Topic: "job:procdoc_doc1"},
			expected: []string{TopicFirehose, "job:procdoc_doc1"},
		},
		{
			name:     "empty extra skipped",
			evt:      &Event{Type: EventJobStarted, Topic: "job:procdoc_doc1"},
			extra:    []string{""},
			expected: []string{TopicFirehose, TopicJobs, "job:procdoc_doc1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			topics := resolveTopics(tt.evt, tt.extra...)
			if len(topics) != len(tt.expected) {
				t.Errorf("got %d topics, want %d: %v", len(topics), len(tt.expected), topics)
				return
			}
			for i, topic := range topics {
				if topic != tt.expected[i] {
					t.Errorf("topic[%d] = %q, want %q", i, topic, tt.expected[i])
				}
			}
		})
	}
}
