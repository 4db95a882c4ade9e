package stream

import (
	"sync"
	"sync/atomic"
)

// Subscriber is one consumer of the event stream, typically backing a
// single SSE connection. Delivery is credit-gated: the consumer grants
// credits for events it is ready to write out, and the broker drops
// rather than blocks once credits or buffer run out. A slow SSE client
// therefore loses events instead of stalling job execution.
type Subscriber struct {
	id string
	ch chan *Event

	// credits is decremented per delivery; zero means the consumer has
	// not caught up and publishes are dropped.
	credits atomic.Int64

	// dropped counts events not delivered to this subscriber, for any
	// reason.
	dropped atomic.Int64

	filter func(*Event) bool

	// mu guards topics and orders sends against Close: senders hold the
	// read lock across the channel send, Close takes the write lock.
	mu     sync.RWMutex
	topics map[string]struct{}

	closed atomic.Bool
}

// NewSubscriber creates a subscriber with the given channel buffer and
// starting credit balance.
func NewSubscriber(id string, bufferSize int, initialCredits int64) *Subscriber {
	s := &Subscriber{
		id:     id,
		ch:     make(chan *Event, bufferSize),
		topics: make(map[string]struct{}),
	}
	s.credits.Store(initialCredits)
	return s
}

// ID returns the subscriber identifier.
func (s *Subscriber) ID() string { return s.id }

// C returns the read-only event channel. It is closed when the
// subscriber is removed or the broker shuts down.
func (s *Subscriber) C() <-chan *Event { return s.ch }

// AddCredits grants the subscriber capacity for n more deliveries.
// SSE writers call this after flushing each event.
func (s *Subscriber) AddCredits(n int64) { s.credits.Add(n) }

// Credits returns the remaining credit balance.
func (s *Subscriber) Credits() int64 { return s.credits.Load() }

// Dropped returns how many events this subscriber missed.
func (s *Subscriber) Dropped() int64 { return s.dropped.Load() }

// SetFilter installs a delivery predicate. Events failing the filter
// are skipped without consuming a credit. Set before subscribing to
// topics; it is not synchronized against in-flight sends.
func (s *Subscriber) SetFilter(fn func(*Event) bool) { s.filter = fn }

// Topics returns a snapshot of the subscribed topic names.
func (s *Subscriber) Topics() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.topics))
	for t := range s.topics {
		out = append(out, t)
	}
	return out
}

func (s *Subscriber) addTopic(topic string) {
	s.mu.Lock()
	s.topics[topic] = struct{}{}
	s.mu.Unlock()
}

func (s *Subscriber) removeTopic(topic string) {
	s.mu.Lock()
	delete(s.topics, topic)
	s.mu.Unlock()
}

// send delivers evt if the subscriber is open, the filter accepts it,
// a credit is available, and the buffer has room. Filter rejections
// are not counted as drops; credit and buffer exhaustion are.
func (s *Subscriber) send(evt *Event) bool {
	if s.filter != nil && !s.filter(evt) {
		return false
	}

	// Holding the read lock keeps Close from closing the channel
	// between the open check and the send below.
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed.Load() {
		return false
	}

	if !s.takeCredit() {
		s.dropped.Add(1)
		return false
	}

	select {
	case s.ch <- evt:
		return true
	default:
		// Buffer full: hand the credit back so the consumer's balance
		// stays honest.
		s.credits.Add(1)
		s.dropped.Add(1)
		return false
	}
}

// takeCredit atomically consumes one credit, failing at zero.
func (s *Subscriber) takeCredit() bool {
	for {
		cur := s.credits.Load()
		if cur <= 0 {
			return false
		}
		if s.credits.CompareAndSwap(cur, cur-1) {
			return true
		}
	}
}

// Close closes the event channel. Safe to call more than once and
// concurrently with in-flight sends.
func (s *Subscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.CompareAndSwap(false, true) {
		close(s.ch)
	}
}
