package ordering_test

import (
	"testing"
	"time"

	"github.com/cuemby/fabric/pkg/config"
	"github.com/cuemby/fabric/pkg/ordering"
	"github.com/cuemby/fabric/pkg/storage"
	"github.com/cuemby/fabric/pkg/types"
	"github.com/cuemby/fabric/pkg/workerpool"
	"github.com/stretchr/testify/require"
)

func newLearner(t *testing.T) *ordering.Learner {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	pool := workerpool.New(2, 4)
	t.Cleanup(pool.Stop)
	return ordering.New(store, pool, config.Default(), "router-v1")
}

func TestScoreIsPureAndOrdersByDescendingScore(t *testing.T) {
	t1 := types.PendingTransaction{TxID: "t1", Priority: 1, GasPrice: 10, Dependencies: []string{"x"}}
	t2 := types.PendingTransaction{TxID: "t2", Priority: 5, GasPrice: 500, Dependencies: nil}
	t3 := types.PendingTransaction{TxID: "t3", Priority: 3, GasPrice: 100, Dependencies: nil}

	require.Less(t, ordering.Score(t1), ordering.Score(t3))
	require.Less(t, ordering.Score(t3), ordering.Score(t2))

	// Calling twice with identical input yields an identical score.
	require.Equal(t, ordering.Score(t1), ordering.Score(t1))
}

func TestOptimizeTransactionOrderSortsDescending(t *testing.T) {
	learner := newLearner(t)
	txs := []types.PendingTransaction{
		{TxID: "t1", Priority: 1, GasPrice: 10, Dependencies: []string{"x"}},
		{TxID: "t2", Priority: 5, GasPrice: 500},
		{TxID: "t3", Priority: 3, GasPrice: 100},
	}

	result := learner.OptimizeTransactionOrder(txs)
	require.Equal(t, []string{"t2", "t3", "t1"}, result.OrderedTxIDs)
	require.GreaterOrEqual(t, result.Confidence, 0.5)
	require.LessOrEqual(t, result.Confidence, 1.0)
	require.Equal(t, 1, learner.TrainingBufferLen())
}

func TestOptimizeTransactionOrderHandlesEmptyBatch(t *testing.T) {
	learner := newLearner(t)
	result := learner.OptimizeTransactionOrder(nil)
	require.Empty(t, result.OrderedTxIDs)
	require.Equal(t, 1.0, result.Confidence)
}

func TestUpdateModelsIncrementallyIsNoOpOffInterval(t *testing.T) {
	learner := newLearner(t)
	rateBefore := learner.LearningRate()
	learner.UpdateModelsIncrementally(1, []ordering.CompletedTransaction{
		{TxID: "t1", PredictedScore: 80, ActualQuality: 0.8},
	})
	require.Equal(t, rateBefore, learner.LearningRate())
}

func TestUpdateModelsIncrementallySkipsMalformedEntriesAndStaysBounded(t *testing.T) {
	learner := newLearner(t)
	rateBefore := learner.LearningRate()
	learner.UpdateModelsIncrementally(1000, []ordering.CompletedTransaction{
		{TxID: "", PredictedScore: 10, ActualQuality: 0.1}, // malformed, skipped
		{TxID: "t1", PredictedScore: 90, ActualQuality: 0.9},
	})

	require.Eventually(t, func() bool {
		rate := learner.LearningRate()
		return rate != rateBefore && rate >= 0.001 && rate <= 0.1
	}, time.Second, 5*time.Millisecond)
}
