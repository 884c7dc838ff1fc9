/*
Package ordering implements the fabric's ML Ordering & Online Learner:
the pure score function, batch reordering, a bounded training buffer,
and an interval-gated incremental model-update loop.

# Scoring

Score is a pure function of a transaction's priority, gas price, and
dependency count — no hidden state, no I/O. OptimizeTransactionOrder
scores a whole batch, stable-sorts descending, and derives summary
statistics (avgScore, a variance-based confidence clamped to [0.5, 1.0],
and a throughput-gain estimate) in the same synchronous call.

# Training buffer

Each optimization pass appends one TrainingDataPoint to a bounded ring
buffer with oldest-drop semantics — deliberately not pkg/queue, whose
bounded-queue policy is drop-newest. A training buffer needs the
opposite: recent observations matter more than old ones once it fills.

# Online learning

UpdateModelsIncrementally is a no-op except on update-interval block
boundaries. When triggered, the batch runs on a pkg/workerpool worker so
the caller — typically an ingress RPC handler — never blocks on it.
Malformed entries are counted and skipped rather than aborting the
batch. A new ModelSnapshot is installed only if the observed accuracy
meets the configured threshold; the learning rate is adjusted by at most
5% per update and stays within [0.001, 0.1].

# See Also

  - pkg/storage for ModelSnapshot persistence
  - pkg/workerpool for the asynchronous update path
  - pkg/metrics for OrderingBatchesTotal, TrainingBufferSize, ModelVersion
*/
package ordering
