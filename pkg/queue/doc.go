/*
Package queue implements the fabric's Bounded Event Queue: a capacity
limited FIFO shared by producers that must never block (the bridge
coordinator's InitiateTransfer) and a single consumer goroutine that
drains it at its own pace.

# Design Patterns

Drop-newest backpressure: Offer on a full queue discards the incoming
item and reports failure rather than growing the backing slice or
blocking the caller. Callers increment a queue-specific metrics counter
on a false return so drops are observable.

Condition-variable consumer wakeup: Poll blocks on a sync.Cond rather
than spinning, so an idle consumer costs nothing between Offers.

# See Also

  - pkg/bridge for the queue-backed pending-transfer backlog
  - pkg/metrics for QueueDropsTotal
*/
package queue
