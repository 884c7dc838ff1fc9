package metrics_test

import (
	"testing"
	"time"

	"github.com/cuemby/fabric/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestTimerObserveDuration(t *testing.T) {
	timer := metrics.NewTimer()
	time.Sleep(time.Millisecond)

	require.Greater(t, timer.Duration(), time.Duration(0))

	h := prometheus.NewHistogram(prometheus.HistogramOpts{Name: "test_timer_histogram"})
	timer.ObserveDuration(h)
}

func TestTimerObserveDurationVec(t *testing.T) {
	timer := metrics.NewTimer()
	vec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "test_timer_histogram_vec"},
		[]string{"label"},
	)
	timer.ObserveDurationVec(vec, "value")
}

func TestHandlerReturnsNonNil(t *testing.T) {
	require.NotNil(t, metrics.Handler())
}

func TestMetricsRegisteredOnce(t *testing.T) {
	require.NotNil(t, metrics.RaftIsLeader)
	require.NotNil(t, metrics.BridgeTransfersTotal)
	require.NotNil(t, metrics.SubscribersActive)
	require.NotNil(t, metrics.QueueDropsTotal)
	require.NotNil(t, metrics.OrderingBatchesTotal)
}
