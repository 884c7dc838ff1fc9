/*
Package observer implements the fabric's Observer Bus: a topic-keyed,
copy-on-write publish/subscribe broker used to fan consensus, bridge, and
streaming events out to watchers without letting a slow subscriber stall
the publisher.

# Architecture

	┌──────────────────── OBSERVER BUS ─────────────────────────┐
	│  Bus.subs: topic -> []subscription (replaced wholesale     │
	│            on Subscribe/Unsubscribe, read under RLock,     │
	│            iterated lock-free)                             │
	│                                                             │
	│  Publish(event) ──RLock──> snapshot ──RUnlock──> for each   │
	│    subscriber: non-blocking send, evict on full buffer      │
	└────────────────────────────────────────────────────────────┘

# Design Patterns

Copy-on-write snapshot: Subscribe/Unsubscribe build a fresh slice under
the write lock; Publish takes a brief read lock only to grab the current
slice header, then iterates without holding any lock, so publishing never
contends with a concurrent subscribe/unsubscribe.

Failure isolation: a full subscriber buffer is evicted rather than
awaited, so one stalled watcher never slows delivery to the rest.

# See Also

  - pkg/streaming for the generic fan-out services built on this bus
  - pkg/bridge for bridge transfer status-change notifications
*/
package observer
