package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Raft metrics
	RaftIsLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fabric_raft_is_leader",
			Help: "Whether this node is the Raft leader (1 = leader, 0 = follower)",
		},
	)

	RaftCurrentTerm = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fabric_raft_current_term",
			Help: "Current Raft term observed by this node",
		},
	)

	RaftPeersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fabric_raft_peers_total",
			Help: "Total number of servers in the Raft cluster configuration",
		},
	)

	RaftLastLogIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fabric_raft_last_log_index",
			Help: "Index of the last entry in this node's Raft log",
		},
	)

	RaftCommitIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fabric_raft_commit_index",
			Help: "Highest Raft log index known to be committed",
		},
	)

	RaftElectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fabric_raft_elections_total",
			Help: "Total number of elections this node has started",
		},
	)

	RaftApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fabric_raft_apply_duration_seconds",
			Help:    "Time taken for ProposeValue to reach commit",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Bridge oracle coordinator metrics
	BridgeTransfersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fabric_bridge_transfers_total",
			Help: "Total number of bridge transfers by status",
		},
		[]string{"status"},
	)

	BridgeVotesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fabric_bridge_votes_total",
			Help: "Total number of oracle votes received by outcome",
		},
		[]string{"approved"},
	)

	BridgeRefundsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fabric_bridge_refunds_total",
			Help: "Total number of transfers lazily refunded on timeout",
		},
	)

	BridgeTransferDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fabric_bridge_transfer_duration_seconds",
			Help:    "Time from initiateTransfer to a terminal status",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Streaming fan-out metrics
	SubscribersActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fabric_subscribers_active",
			Help: "Currently active subscribers by topic",
		},
		[]string{"topic"},
	)

	EventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fabric_events_published_total",
			Help: "Total number of events published by topic",
		},
		[]string{"topic"},
	)

	SubscriberEvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fabric_subscriber_evictions_total",
			Help: "Total number of subscribers evicted, by reason",
		},
		[]string{"reason"},
	)

	// Bounded queue metrics
	QueueDropsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fabric_queue_drops_total",
			Help: "Total number of events dropped by a full bounded queue",
		},
		[]string{"queue"},
	)

	// ML ordering & online learner metrics
	OrderingBatchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fabric_ordering_batches_total",
			Help: "Total number of transaction batches ordered",
		},
	)

	OrderingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fabric_ordering_duration_seconds",
			Help:    "Time taken to score and order one batch",
			Buckets: prometheus.DefBuckets,
		},
	)

	TrainingBufferSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fabric_training_buffer_size",
			Help: "Current number of points in the training data buffer",
		},
	)

	ModelVersion = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fabric_model_version",
			Help: "Currently installed model snapshot version",
		},
	)

	ModelUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fabric_model_updates_total",
			Help: "Total number of online-learning update attempts by outcome",
		},
		[]string{"outcome"}, // "installed", "rejected", "persist_failed", "malformed", "empty_batch" or "dropped"
	)
)

func init() {
	prometheus.MustRegister(
		RaftIsLeader,
		RaftCurrentTerm,
		RaftPeersTotal,
		RaftLastLogIndex,
		RaftCommitIndex,
		RaftElectionsTotal,
		RaftApplyDuration,
		BridgeTransfersTotal,
		BridgeVotesTotal,
		BridgeRefundsTotal,
		BridgeTransferDuration,
		SubscribersActive,
		EventsPublishedTotal,
		SubscriberEvictionsTotal,
		QueueDropsTotal,
		OrderingBatchesTotal,
		OrderingDuration,
		TrainingBufferSize,
		ModelVersion,
		ModelUpdatesTotal,
	)
}

// Handler returns the Prometheus HTTP scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a small helper for timing an operation and observing it into a
// histogram via `defer timer.ObserveDuration(...)` at the top of an
// operation.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time to a labeled histogram vec.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
