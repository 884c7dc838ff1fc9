/*
Package metrics provides Prometheus metrics collection and exposition for the
fabric.

The metrics package defines and registers every fabric metric using the
Prometheus client library, giving observability into RAFT consensus health,
bridge transfer progress, subscriber fan-out, and the ML ordering loop.
Metrics are exposed via an HTTP endpoint for scraping by Prometheus servers.

# Architecture

The fabric's metrics system follows Prometheus best practices with
instrumentation across every hard-core component:

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  │  - Automatic Go runtime metrics             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Metric Types                   │          │
	│  │                                              │          │
	│  │  Gauge: Instant values (raft term, leader)  │          │
	│  │  Counter: Monotonic increases (votes, drops)│          │
	│  │  Histogram: Distributions (apply latency)   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Metric Categories                 │          │
	│  │                                              │          │
	│  │  Raft: term, leader, log index, votes  │          │
	│  │  Bridge: transfers, votes, refunds     │          │
	│  │  Streaming: subscribers, evictions      │          │
	│  │  Queue: drops by queue name             │          │
	│  │  Ordering: batches, model updates       │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint              │          │
	│  │  - Path: /metrics                           │          │
	│  │  - Format: Prometheus text exposition       │          │
	│  │  - Handler: promhttp.Handler()              │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Metric Registry:
  - Global Prometheus DefaultRegistry
  - All metrics registered at package init
  - Thread-safe for concurrent updates

Gauge Metrics:
  - Instant value that can go up or down
  - Examples: raft term, leader status, training buffer size
  - Operations: Set, Inc, Dec, Add, Sub

Counter Metrics:
  - Monotonically increasing value
  - Examples: elections started, bridge votes, queue drops
  - Operations: Inc, Add (cannot decrease)

Histogram Metrics:
  - Distribution of observed values
  - Buckets for latency percentiles (p50, p95, p99)
  - Examples: ProposeValue apply duration, bridge transfer duration
  - Includes: sum, count, buckets

Timer Helper:
  - Convenience wrapper for timing operations
  - Start timer, observe duration to histogram
  - Supports label values for histogram vectors

# Metrics Catalog

Raft Metrics:

fabric_raft_is_leader:
  - Type: Gauge
  - Description: Whether this node is the Raft leader (1=leader, 0=follower)

fabric_raft_current_term:
  - Type: Gauge
  - Description: Current Raft term observed by this node

fabric_raft_peers_total:
  - Type: Gauge
  - Description: Total number of servers in the Raft cluster configuration

fabric_raft_last_log_index / fabric_raft_commit_index:
  - Type: Gauge
  - Description: Last log index and highest committed index

fabric_raft_elections_total:
  - Type: Counter
  - Description: Total elections started by this node

fabric_raft_apply_duration_seconds:
  - Type: Histogram
  - Description: Time for ProposeValue to reach commit

Bridge Oracle Metrics:

fabric_bridge_transfers_total{status}:
  - Type: Gauge
  - Description: Number of transitions into each status (incremented on
    every transition, never decremented)

fabric_bridge_votes_total{approved}:
  - Type: Counter
  - Description: Oracle votes received, partitioned by approve/reject

fabric_bridge_refunds_total:
  - Type: Counter
  - Description: Transfers lazily refunded on timeout

fabric_bridge_transfer_duration_seconds:
  - Type: Histogram
  - Description: Time from initiateTransfer to a terminal status

Streaming Fan-out Metrics:

fabric_subscribers_active{topic}:
  - Type: Gauge
  - Description: Currently active subscribers per topic

fabric_events_published_total{topic}:
  - Type: Counter
  - Description: Events published per topic

fabric_subscriber_evictions_total{reason}:
  - Type: Counter
  - Description: Subscribers evicted, partitioned by reason (pkg/observer
    records buffer_full; idle eviction is not counted here)

Bounded Queue Metrics:

fabric_queue_drops_total{queue}:
  - Type: Counter
  - Description: Events dropped by a full bounded queue, by queue name

ML Ordering Metrics:

fabric_ordering_batches_total:
  - Type: Counter
  - Description: Transaction batches scored and ordered

fabric_ordering_duration_seconds:
  - Type: Histogram
  - Description: Time to score and order one batch

fabric_training_buffer_size:
  - Type: Gauge
  - Description: Current occupancy of the bounded training data buffer

fabric_model_version:
  - Type: Gauge
  - Description: Currently installed model snapshot version

fabric_model_updates_total{outcome}:
  - Type: Counter
  - Description: Online-learning update attempts, partitioned by outcome
    (installed, rejected, persist_failed, malformed, empty_batch, dropped)

# Dashboards (suggested PromQL)

Raft Health:
  - Single stat: fabric_raft_is_leader
  - Time series: fabric_raft_current_term, fabric_raft_commit_index
  - Single stat: fabric_raft_peers_total

Bridge Throughput:
  - Time series: rate(fabric_bridge_votes_total[5m])
  - Heatmap: fabric_bridge_transfer_duration_seconds
  - Single stat: fabric_bridge_refunds_total

Streaming Fan-out:
  - Time series: fabric_subscribers_active by topic
  - Time series: rate(fabric_subscriber_evictions_total[5m])

Ordering Loop:
  - Time series: rate(fabric_ordering_batches_total[5m])
  - Single stat: fabric_model_version
  - Time series: fabric_training_buffer_size

# See Also

  - Prometheus documentation: https://prometheus.io/docs/
  - Prometheus client library: https://github.com/prometheus/client_golang
  - PromQL tutorial: https://prometheus.io/docs/prometheus/latest/querying/basics/
  - Histogram best practices: https://prometheus.io/docs/practices/histograms/
*/
package metrics
