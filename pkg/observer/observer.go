// Package observer implements the fabric's topic-keyed publish/subscribe
// bus: the Observer Bus that the bridge coordinator, streaming layer, and
// consensus engine use to fan events out to interested watchers.
package observer

import (
	"sync"

	"github.com/cuemby/fabric/pkg/log"
	"github.com/cuemby/fabric/pkg/metrics"
	"github.com/cuemby/fabric/pkg/types"
)

// Predicate filters events before delivery to a subscriber. A nil
// predicate matches everything.
type Predicate func(*types.Event) bool

type subscription struct {
	id     string
	topic  string
	ch     chan *types.Event
	filter Predicate
}

// Bus is a topic-keyed, copy-on-write fan-out broker. Publish never blocks
// on a slow subscriber: a subscriber whose buffer is full is evicted
// rather than allowed to stall delivery to everyone else.
type Bus struct {
	mu   sync.RWMutex
	subs map[string][]*subscription // topic -> subscriber snapshot
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]*subscription)}
}

// Subscribe registers a new subscriber on topic with the given buffer
// capacity and optional filter predicate. The returned channel is closed
// by Unsubscribe or by the bus when the subscriber is evicted.
func (b *Bus) Subscribe(id, topic string, bufferSize int, filter Predicate) <-chan *types.Event {
	ch := make(chan *types.Event, bufferSize)
	sub := &subscription{id: id, topic: topic, ch: ch, filter: filter}

	b.mu.Lock()
	defer b.mu.Unlock()
	existing := b.subs[topic]
	next := make([]*subscription, len(existing), len(existing)+1)
	copy(next, existing)
	b.subs[topic] = append(next, sub)

	metrics.SubscribersActive.WithLabelValues(topic).Inc()
	log.WithTopic(topic).Debug().Str("subscriber_id", id).Msg("subscriber registered")
	return ch
}

// Unsubscribe removes a subscriber and closes its channel. Safe to call
// more than once.
func (b *Bus) Unsubscribe(id, topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	existing := b.subs[topic]
	next := make([]*subscription, 0, len(existing))
	var removed *subscription
	for _, s := range existing {
		if s.id == id {
			removed = s
			continue
		}
		next = append(next, s)
	}
	if removed == nil {
		return
	}
	b.subs[topic] = next
	close(removed.ch)
	metrics.SubscribersActive.WithLabelValues(topic).Dec()
}

// Publish delivers event to every subscriber on its topic whose filter
// (if any) matches. Delivery is best-effort: a subscriber with a full
// buffer is evicted instead of blocking the publisher.
func (b *Bus) Publish(event *types.Event) {
	b.mu.RLock()
	snapshot := b.subs[event.Topic]
	b.mu.RUnlock()

	metrics.EventsPublishedTotal.WithLabelValues(event.Topic).Inc()

	var toEvict []string
	for _, sub := range snapshot {
		if sub.filter != nil && !sub.filter(event) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			toEvict = append(toEvict, sub.id)
		}
	}
	for _, id := range toEvict {
		metrics.SubscriberEvictionsTotal.WithLabelValues("buffer_full").Inc()
		log.WithTopic(event.Topic).Warn().Str("subscriber_id", id).Msg("evicting slow subscriber")
		b.Unsubscribe(id, event.Topic)
	}
}

// SubscriberCount returns the number of active subscribers on topic.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Close unsubscribes and closes every subscriber channel across all
// topics. Used during shutdown.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for topic, subs := range b.subs {
		for _, s := range subs {
			close(s.ch)
			metrics.SubscribersActive.WithLabelValues(topic).Dec()
		}
	}
	b.subs = make(map[string][]*subscription)
}
