package changefeed

import (
	"context"
	"sync"
)

const subscriberBuffer = 16

// Subscription receives events for the topics it was created with.
type Subscription struct {
	C <-chan Event

	ch     chan Event
	topics []string
	broker *MemoryBroker
	once   sync.Once
}

// Close detaches the subscription. It is safe to call more than once; after it returns no
// further events are delivered and C is closed.
func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.broker.remove(s)
	})
}

// MemoryBroker delivers events within a single process.
type MemoryBroker struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
}

// NewMemoryBroker constructs an empty in-process broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{topics: make(map[string]map[*Subscription]struct{})}
}

// Subscribe registers interest in the given topics.
func (b *MemoryBroker) Subscribe(topics ...string) *Subscription {
	ch := make(chan Event, subscriberBuffer)
	sub := &Subscription{C: ch, ch: ch, topics: dedupe(topics), broker: b}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, topic := range sub.topics {
		if b.topics[topic] == nil {
			b.topics[topic] = make(map[*Subscription]struct{})
		}
		b.topics[topic][sub] = struct{}{}
	}
	return sub
}

// Publish delivers events without blocking on slow subscribers.
func (b *MemoryBroker) Publish(_ context.Context, events ...Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, event := range events {
		for sub := range b.topics[event.Topic] {
			select {
			case sub.ch <- event:
			default:
				// buffer full: a pending signal already guarantees a fresh reload
			}
		}
	}
	return nil
}

// SubscriberCount reports how many subscriptions watch topic.
func (b *MemoryBroker) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

func (b *MemoryBroker) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, topic := range sub.topics {
		if subs := b.topics[topic]; subs != nil {
			delete(subs, sub)
			if len(subs) == 0 {
				delete(b.topics, topic)
			}
		}
	}
	close(sub.ch)
}

func dedupe(topics []string) []string {
	seen := make(map[string]struct{}, len(topics))
	out := make([]string, 0, len(topics))
	for _, topic := range topics {
		if topic == "" {
			continue
		}
		if _, ok := seen[topic]; ok {
			continue
		}
		seen[topic] = struct{}{}
		out = append(out, topic)
	}
	return out
}
