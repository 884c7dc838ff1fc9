// Package streaming implements the fabric's Streaming Fan-out Services:
// the generic subscription engine shared by every domain's four call
// shapes (unary, client stream, server stream, bidirectional stream),
// built directly on pkg/observer. A subscriber's only buffer is its
// observer channel; when that buffer is full the subscriber is evicted,
// and events are not dropped in its place.
package streaming

import (
	"sync"
	"time"

	"github.com/cuemby/fabric/pkg/log"
	"github.com/cuemby/fabric/pkg/observer"
	"github.com/cuemby/fabric/pkg/types"
)

// Engine is the domain-agnostic server-stream subscription manager for
// one topic. It layers idle-subscriber eviction on top of pkg/observer's
// failure-isolated fan-out.
type Engine struct {
	topic       string
	bus         *observer.Bus
	capacity    int
	idleTimeout time.Duration
	clock       func() time.Time

	mu       sync.Mutex
	lastRead map[string]time.Time
}

// NewEngine constructs an Engine for topic, with each subscription's
// buffer bounded to capacity and evicted after idleTimeout of no reads
// (idleTimeout <= 0 disables idle eviction).
func NewEngine(topic string, bus *observer.Bus, capacity int, idleTimeout time.Duration) *Engine {
	return &Engine{
		topic:       topic,
		bus:         bus,
		capacity:    capacity,
		idleTimeout: idleTimeout,
		clock:       time.Now,
		lastRead:    make(map[string]time.Time),
	}
}

// Subscribe registers subscriberID on the engine's topic with an
// optional filter (nil matches everything).
func (e *Engine) Subscribe(subscriberID string, filter observer.Predicate) <-chan *types.Event {
	e.mu.Lock()
	e.lastRead[subscriberID] = e.clock()
	e.mu.Unlock()
	return e.bus.Subscribe(subscriberID, e.topic, e.capacity, filter)
}

// Unsubscribe removes subscriberID from the topic.
func (e *Engine) Unsubscribe(subscriberID string) {
	e.mu.Lock()
	delete(e.lastRead, subscriberID)
	e.mu.Unlock()
	e.bus.Unsubscribe(subscriberID, e.topic)
}

// Publish delivers event (whose Topic is forced to the engine's topic)
// to every current subscriber.
func (e *Engine) Publish(payload any, eventID string) {
	e.bus.Publish(&types.Event{EventID: eventID, Topic: e.topic, Payload: payload, Timestamp: e.clock()})
}

// MarkRead records that the transport layer delivered a message to
// subscriberID, resetting its idle clock. Callers should call this each
// time they successfully hand a value off the subscription channel to
// the transport.
func (e *Engine) MarkRead(subscriberID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.lastRead[subscriberID]; ok {
		e.lastRead[subscriberID] = e.clock()
	}
}

// EvictIdle unsubscribes every subscriber whose last read exceeds the
// engine's idleTimeout. It is safe to call on a ticker.
func (e *Engine) EvictIdle() {
	if e.idleTimeout <= 0 {
		return
	}
	now := e.clock()
	var stale []string
	e.mu.Lock()
	for id, last := range e.lastRead {
		if now.Sub(last) > e.idleTimeout {
			stale = append(stale, id)
		}
	}
	e.mu.Unlock()
	for _, id := range stale {
		log.WithTopic(e.topic).Warn().Str("subscriber_id", id).Msg("evicting idle subscriber")
		e.Unsubscribe(id)
	}
}

// RunIdleEviction starts a ticker loop that calls EvictIdle at interval
// until stop is closed.
func (e *Engine) RunIdleEviction(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			e.EvictIdle()
		case <-stop:
			return
		}
	}
}

// SubscriberCount reports the current number of live subscribers.
func (e *Engine) SubscriberCount() int {
	return e.bus.SubscriberCount(e.topic)
}

// PeriodicPublisher drives a ticker-based push of a server-computed
// snapshot at a per-subscription interval, for periodic-update streams.
type PeriodicPublisher struct {
	interval time.Duration
	snapshot func() (any, string)
	stop     chan struct{}
	once     sync.Once
}

// NewPeriodicPublisher builds a publisher that calls snapshot on each
// tick; snapshot returns the payload to push and an event id.
func NewPeriodicPublisher(interval time.Duration, snapshot func() (any, string)) *PeriodicPublisher {
	return &PeriodicPublisher{interval: interval, snapshot: snapshot, stop: make(chan struct{})}
}

// Run ticks until Stop is called, invoking publish with each snapshot.
func (p *PeriodicPublisher) Run(publish func(payload any, eventID string)) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			payload, eventID := p.snapshot()
			publish(payload, eventID)
		case <-p.stop:
			return
		}
	}
}

// Stop ends the publisher's ticker loop. Safe to call more than once.
func (p *PeriodicPublisher) Stop() {
	p.once.Do(func() { close(p.stop) })
}
