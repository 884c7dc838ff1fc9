// Package ordering implements the fabric's ML Ordering & Online Learner:
// a pure transaction-scoring function, batch reordering, and an
// interval-gated incremental model-update loop that never blocks the
// caller.
package ordering

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/cuemby/fabric/pkg/config"
	"github.com/cuemby/fabric/pkg/log"
	"github.com/cuemby/fabric/pkg/metrics"
	"github.com/cuemby/fabric/pkg/storage"
	"github.com/cuemby/fabric/pkg/types"
	"github.com/cuemby/fabric/pkg/workerpool"
	"github.com/google/uuid"
)

// Score is the pure scoring function a batch is ordered by: a weighted
// blend of priority, gas price, and dependency count, with no hidden
// state and no I/O.
func Score(tx types.PendingTransaction) float64 {
	priorityScore := float64(tx.Priority) * 10
	gasScore := float64(tx.GasPrice) / 100
	if gasScore > 50 {
		gasScore = 50
	}
	dependencyScore := 5.0
	if len(tx.Dependencies) == 0 {
		dependencyScore = 20
	}
	return 0.5*priorityScore + 0.3*gasScore + 0.2*dependencyScore
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// trainingBuffer is a bounded ring buffer with oldest-drop semantics,
// deliberately separate from pkg/queue's bounded queue, which is
// drop-newest: recent training observations matter more than old ones
// once the buffer fills.
type trainingBuffer struct {
	mu       sync.Mutex
	items    []types.TrainingDataPoint
	capacity int
}

func newTrainingBuffer(capacity int) *trainingBuffer {
	return &trainingBuffer{capacity: capacity}
}

func (b *trainingBuffer) Add(point types.TrainingDataPoint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) >= b.capacity {
		b.items = b.items[1:]
	}
	b.items = append(b.items, point)
}

func (b *trainingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Snapshot returns a copy of the buffer's current contents.
func (b *trainingBuffer) Snapshot() []types.TrainingDataPoint {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]types.TrainingDataPoint, len(b.items))
	copy(out, b.items)
	return out
}

// CompletedTransaction is one transaction whose actual post-inclusion
// outcome is known; it is the raw material UpdateModelsIncrementally
// learns from.
type CompletedTransaction struct {
	TxID           string
	PredictedScore float64
	ActualQuality  float64 // observed outcome quality, 0..1
}

// Learner is the ML Ordering & Online Learner. It holds no lock across
// any blocking call: batch scoring is pure and synchronous, while model
// updates are offloaded to a worker pool.
type Learner struct {
	store     storage.Store
	pool      *workerpool.Pool
	cfg       config.Config
	modelName string
	clock     func() time.Time

	buffer *trainingBuffer

	mu           sync.Mutex
	learningRate float64
}

// New constructs a Learner for modelName, backed by store for snapshot
// persistence and pool for asynchronous update batches.
func New(store storage.Store, pool *workerpool.Pool, cfg config.Config, modelName string) *Learner {
	learningRate := cfg.InitialLearningRate
	if learningRate <= 0 {
		learningRate = 0.01
	}
	return &Learner{
		store:        store,
		pool:         pool,
		cfg:          cfg,
		modelName:    modelName,
		clock:        time.Now,
		buffer:       newTrainingBuffer(cfg.TrainingBufferCapacity),
		learningRate: learningRate,
	}
}

// OptimizeTransactionOrder is the client-stream call shape: score every
// transaction, stable-sort descending, and summarize. A
// TrainingDataPoint is added to the in-memory training buffer (a
// synchronous, non-blocking add, never a stream round-trip) before
// returning.
func (l *Learner) OptimizeTransactionOrder(txs []types.PendingTransaction) types.OptimizationResult {
	scored := make([]types.ScoredTransaction, len(txs))
	for i, tx := range txs {
		scored[i] = types.ScoredTransaction{
			TxID:            tx.TxID,
			Priority:        tx.Priority,
			GasPrice:        tx.GasPrice,
			DependencyCount: len(tx.Dependencies),
			Score:           Score(tx),
		}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	orderedIDs := make([]string, len(scored))
	var sum float64
	for i, s := range scored {
		orderedIDs[i] = s.TxID
		sum += s.Score
	}

	var avg, confidence float64
	confidence = 1.0
	if len(scored) > 0 {
		avg = sum / float64(len(scored))
		var variance float64
		for _, s := range scored {
			d := s.Score - avg
			variance += d * d
		}
		variance /= float64(len(scored))
		divisor := l.cfg.ConfidenceVarianceDivisor
		if divisor == 0 {
			divisor = 1000
		}
		confidence = clamp(1-variance/divisor, 0.5, 1.0)
	}

	result := types.OptimizationResult{
		ResultID:                   uuid.NewString(),
		OrderedTxIDs:               orderedIDs,
		AvgScore:                  avg,
		Confidence:                 confidence,
		EstimatedThroughputGainPct: estimateThroughputGain(len(scored)),
		CreatedAt:                  l.clock(),
	}

	metrics.OrderingBatchesTotal.Inc()
	l.buffer.Add(types.TrainingDataPoint{OrderedTxIDs: orderedIDs, QualityScore: confidence, Timestamp: l.clock()})
	metrics.TrainingBufferSize.Set(float64(l.buffer.Len()))
	log.WithComponent("ordering").Info().Int("batch_size", len(scored)).Float64("avg_score", avg).Msg("batch ordered")
	return result
}

func estimateThroughputGain(batchSize int) float64 {
	if batchSize == 0 {
		return 0
	}
	return clamp(math.Log1p(float64(batchSize))*5, 0, 100)
}

// TrainingBufferLen reports the current number of buffered training
// points, for tests and diagnostics.
func (l *Learner) TrainingBufferLen() int {
	return l.buffer.Len()
}

// LearningRate returns the learner's current bounded-step learning rate.
func (l *Learner) LearningRate() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.learningRate
}

// UpdateModelsIncrementally is a no-op unless blockNumber is a multiple
// of the configured update interval. When triggered, the batch is
// processed asynchronously on the learner's worker pool; the caller
// returns immediately regardless of outcome.
func (l *Learner) UpdateModelsIncrementally(blockNumber uint64, completed []CompletedTransaction) {
	if l.cfg.ModelUpdateIntervalBlocks == 0 || blockNumber%l.cfg.ModelUpdateIntervalBlocks != 0 {
		return
	}
	batch := make([]CompletedTransaction, len(completed))
	copy(batch, completed)
	if !l.pool.TrySubmit(func() { l.processUpdate(batch) }) {
		metrics.ModelUpdatesTotal.WithLabelValues("dropped").Inc()
	}
}

func (l *Learner) processUpdate(completed []CompletedTransaction) {
	var sumSquaredError float64
	var valid int
	for _, tx := range completed {
		if tx.TxID == "" {
			metrics.ModelUpdatesTotal.WithLabelValues("malformed").Inc()
			continue
		}
		diff := clamp(tx.PredictedScore/100, 0, 1) - tx.ActualQuality
		sumSquaredError += diff * diff
		valid++
	}
	if valid == 0 {
		metrics.ModelUpdatesTotal.WithLabelValues("empty_batch").Inc()
		return
	}

	accuracy := clamp(1-sumSquaredError/float64(valid), 0, 1)

	l.mu.Lock()
	l.learningRate = l.nextLearningRate(accuracy)
	newRate := l.learningRate
	l.mu.Unlock()

	if accuracy < l.cfg.AcceptAccuracyThreshold {
		metrics.ModelUpdatesTotal.WithLabelValues("rejected").Inc()
		log.WithComponent("ordering").Warn().Float64("accuracy", accuracy).Msg("model update rejected: below acceptance threshold")
		return
	}

	latest, err := l.store.GetLatestModelSnapshot(l.modelName)
	var nextVersion uint64 = 1
	if err == nil && latest != nil {
		nextVersion = latest.Version + 1
	}

	snapshot := &types.ModelSnapshot{
		ModelName:    l.modelName,
		Version:      nextVersion,
		Accuracy:     accuracy,
		LearningRate: newRate,
		InstalledAt:  l.clock(),
	}
	if err := l.store.SaveModelSnapshot(snapshot); err != nil {
		metrics.ModelUpdatesTotal.WithLabelValues("persist_failed").Inc()
		log.WithComponent("ordering").Error().Err(err).Msg("failed to persist model snapshot")
		return
	}
	metrics.ModelUpdatesTotal.WithLabelValues("installed").Inc()
	metrics.ModelVersion.Set(float64(nextVersion))
	log.WithComponent("ordering").Info().Uint64("version", nextVersion).Float64("accuracy", accuracy).Msg("model snapshot installed")
}

// nextLearningRate derives the next learning rate from observed
// accuracy: lower accuracy nudges the rate up (learn faster), higher
// accuracy nudges it down, bounded to [0.001, 0.1] and to at most a 5%
// change from the current rate.
func (l *Learner) nextLearningRate(accuracy float64) float64 {
	direction := 1.0
	if accuracy >= l.cfg.AcceptAccuracyThreshold {
		direction = -1.0
	}
	step := l.learningRate * 0.05 * direction
	next := l.learningRate + step
	return clamp(next, 0.001, 0.1)
}
