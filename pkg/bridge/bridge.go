// Package bridge implements the fabric's Byzantine-quorum Bridge Oracle
// Coordinator: per-transfer voting rounds, supermajority detection,
// atomic status progression, and timeout-driven lazy refunds.
package bridge

import (
	"sync"
	"time"

	"github.com/cuemby/fabric/pkg/config"
	"github.com/cuemby/fabric/pkg/cryptopredicate"
	"github.com/cuemby/fabric/pkg/ferrors"
	"github.com/cuemby/fabric/pkg/log"
	"github.com/cuemby/fabric/pkg/metrics"
	"github.com/cuemby/fabric/pkg/observer"
	"github.com/cuemby/fabric/pkg/queue"
	"github.com/cuemby/fabric/pkg/statemachine"
	"github.com/cuemby/fabric/pkg/storage"
	"github.com/cuemby/fabric/pkg/types"
)

// StatusTopic is the observer bus topic status-change events are
// published on; events carry a *types.BridgeTransfer as their payload.
const StatusTopic = "bridge.status"

// InitiateTransferRequest is the field-exact message shape for
// initiating a transfer.
type InitiateTransferRequest struct {
	BridgeID       string
	SourceChain    string
	DestChain      string
	AssetAddress   string
	Amount         string
	Recipient      string
	SourceTxHash   string
	LockProof      []byte
	TimeoutSeconds int64
	OracleSet      []string
}

// VerificationResult is pushed on the verifyBridgeMessage outbound
// stream the moment consensus is first reached for a round.
type VerificationResult struct {
	BridgeID        string
	ConsensusReached bool
	ApprovedCount   int
	RejectedCount   int
}

// BatchResult is the single summary emitted when batchBridgeTransfers'
// client stream closes.
type BatchResult struct {
	Accepted  int
	Rejected  int
	FailedIDs []string
	Errors    []string
}

func legalTransitions() []statemachine.Transition[types.BridgeStatus] {
	return []statemachine.Transition[types.BridgeStatus]{
		{From: types.BridgeStatusPending, To: types.BridgeStatusRelayed},
		{From: types.BridgeStatusPending, To: types.BridgeStatusRefunded},
		{From: types.BridgeStatusRelayed, To: types.BridgeStatusExecuted},
		{From: types.BridgeStatusExecuted, To: types.BridgeStatusSettled},
		{From: types.BridgeStatusPending, To: types.BridgeStatusFailed},
		{From: types.BridgeStatusRelayed, To: types.BridgeStatusFailed},
		{From: types.BridgeStatusExecuted, To: types.BridgeStatusFailed},
	}
}

// Coordinator is the fabric's bridge oracle coordinator. Operations on
// distinct bridgeIds run fully in parallel; operations on the same
// bridgeId are serialized by a per-bridge mutex.
type Coordinator struct {
	store    storage.Store
	bus      *observer.Bus
	pending  *queue.Queue[*types.BridgeTransfer]
	verifier cryptopredicate.Verifier
	cfg      config.Config
	clock    func() time.Time

	bridgeLocksMu sync.Mutex
	bridgeLocks   map[string]*sync.Mutex

	roundsMu sync.Mutex
	rounds   map[string]*types.OracleVotingRound
}

// New constructs a Coordinator.
func New(store storage.Store, bus *observer.Bus, verifier cryptopredicate.Verifier, cfg config.Config) *Coordinator {
	return &Coordinator{
		store:       store,
		bus:         bus,
		pending:     queue.New[*types.BridgeTransfer](cfg.SubscriptionQueueCapacity),
		verifier:    verifier,
		cfg:         cfg,
		clock:       time.Now,
		bridgeLocks: make(map[string]*sync.Mutex),
		rounds:      make(map[string]*types.OracleVotingRound),
	}
}

func (c *Coordinator) lockFor(bridgeID string) *sync.Mutex {
	c.bridgeLocksMu.Lock()
	defer c.bridgeLocksMu.Unlock()
	l, ok := c.bridgeLocks[bridgeID]
	if !ok {
		l = &sync.Mutex{}
		c.bridgeLocks[bridgeID] = l
	}
	return l
}

func (c *Coordinator) roundFor(bridgeID string) *types.OracleVotingRound {
	c.roundsMu.Lock()
	defer c.roundsMu.Unlock()
	r, ok := c.rounds[bridgeID]
	if !ok {
		r = &types.OracleVotingRound{BridgeID: bridgeID, Votes: make(map[string]types.OracleVote)}
		c.rounds[bridgeID] = r
	}
	return r
}

func (c *Coordinator) publishStatus(transfer *types.BridgeTransfer) {
	c.bus.Publish(&types.Event{
		EventID:   transfer.BridgeID + "-" + transfer.Status.String(),
		Topic:     StatusTopic,
		Payload:   transfer,
		Timestamp: c.clock(),
	})
}

// InitiateTransfer records a new transfer keyed by bridgeId, derives the
// supermajority threshold, and enqueues it for pending-transfer
// consumers. Duplicate bridgeIds are rejected with AlreadyExists; the
// stored state is unchanged.
func (c *Coordinator) InitiateTransfer(req InitiateTransferRequest) (*types.BridgeTransfer, error) {
	if req.BridgeID == "" {
		return nil, ferrors.Invalid("bridgeId is required")
	}
	lock := c.lockFor(req.BridgeID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := c.store.GetBridgeTransfer(req.BridgeID); err == nil {
		return nil, ferrors.Exists("bridge transfer %s already exists", req.BridgeID)
	}

	transfer := &types.BridgeTransfer{
		BridgeID:          req.BridgeID,
		SourceChain:       req.SourceChain,
		DestChain:         req.DestChain,
		AssetRef:          req.AssetAddress,
		Amount:            req.Amount,
		Recipient:         req.Recipient,
		LockProof:         req.LockProof,
		SourceTxHash:      req.SourceTxHash,
		TimeoutSeconds:    req.TimeoutSeconds,
		CreatedAt:         c.clock(),
		UpdatedAt:         c.clock(),
		Status:            types.BridgeStatusPending,
		OracleSet:         req.OracleSet,
		OracleSetSize:     len(req.OracleSet),
		RequiredApprovals: types.RequiredApprovalsFor(len(req.OracleSet)),
	}
	if transfer.TimeoutSeconds <= 0 {
		transfer.TimeoutSeconds = c.cfg.BridgeDefaultTimeoutSeconds
	}

	if err := c.store.CreateBridgeTransfer(transfer); err != nil {
		return nil, ferrors.Unavail("failed to persist transfer: %v", err)
	}
	c.roundFor(req.BridgeID)
	if !c.pending.Offer(transfer) {
		metrics.QueueDropsTotal.WithLabelValues("bridge_pending").Inc()
	}

	metrics.BridgeTransfersTotal.WithLabelValues(transfer.Status.String()).Inc()
	log.WithBridgeID(transfer.BridgeID).Info().Msg("transfer initiated")
	c.publishStatus(transfer)
	return transfer, nil
}

// VerifyBridgeMessage records one oracle's vote (later votes from the
// same oracle overwrite earlier ones). If consensus newly becomes true,
// the transfer transitions Pending -> Relayed and a VerificationResult
// is returned for the caller to push on the outbound stream. A message
// for an unknown bridgeId is ignored, never an error.
func (c *Coordinator) VerifyBridgeMessage(bridgeID, oracleAddress string, approved bool, reason string) (*VerificationResult, error) {
	lock := c.lockFor(bridgeID)
	lock.Lock()
	defer lock.Unlock()

	transfer, err := c.store.GetBridgeTransfer(bridgeID)
	if err != nil {
		log.WithBridgeID(bridgeID).Warn().Msg("vote for unknown bridge, ignoring")
		return nil, nil
	}
	if transfer.Status.Terminal() {
		return nil, nil // refund/settlement/failure is final; ignore further votes
	}

	round := c.roundFor(bridgeID)
	wasReached := round.ConsensusReached(transfer.RequiredApprovals)
	round.Votes[oracleAddress] = types.OracleVote{Approved: approved, Reason: reason, At: c.clock()}
	metrics.BridgeVotesTotal.WithLabelValues(boolLabel(approved)).Inc()

	nowReached := round.ConsensusReached(transfer.RequiredApprovals)
	if nowReached && !wasReached && transfer.Status == types.BridgeStatusPending {
		transfer.Status = types.BridgeStatusRelayed
		transfer.UpdatedAt = c.clock()
		if err := c.store.UpdateBridgeTransfer(transfer); err != nil {
			return nil, ferrors.Unavail("failed to persist transfer: %v", err)
		}
		metrics.BridgeTransfersTotal.WithLabelValues(transfer.Status.String()).Inc()
		c.publishStatus(transfer)
		return &VerificationResult{
			BridgeID:         bridgeID,
			ConsensusReached: true,
			ApprovedCount:    round.ApprovalCount(),
			RejectedCount:    round.RejectionCount(),
		}, nil
	}
	return nil, nil
}

func boolLabel(b bool) string {
	if b {
		return "approved"
	}
	return "rejected"
}

// ExecuteBridgeCallback records an execution-confirmation approval vote
// from oracleAddress; once approvals reach the required threshold, the
// transfer transitions to Executed, destTxHash is stored, and finalized
// is set.
func (c *Coordinator) ExecuteBridgeCallback(bridgeID, oracleAddress, destTxHash string) error {
	lock := c.lockFor(bridgeID)
	lock.Lock()
	defer lock.Unlock()

	transfer, err := c.store.GetBridgeTransfer(bridgeID)
	if err != nil {
		return ferrors.NotFoundf("bridge transfer %s not found", bridgeID)
	}
	if transfer.Status.Terminal() {
		return nil // idempotent: terminal transfers ignore further callbacks
	}
	if transfer.Status != types.BridgeStatusRelayed && transfer.Status != types.BridgeStatusExecuted {
		return ferrors.Precondition("transfer %s not relayed", bridgeID)
	}

	round := c.roundFor(bridgeID)
	round.Votes[oracleAddress] = types.OracleVote{Approved: true, Reason: "Execution confirmed", At: c.clock()}

	if round.ApprovalCount() >= transfer.RequiredApprovals && transfer.Status == types.BridgeStatusRelayed {
		transfer.Status = types.BridgeStatusExecuted
		transfer.DestTxHash = destTxHash
		transfer.Finalized = true
		transfer.UpdatedAt = c.clock()
		if err := c.store.UpdateBridgeTransfer(transfer); err != nil {
			return ferrors.Unavail("failed to persist transfer: %v", err)
		}
		metrics.BridgeTransfersTotal.WithLabelValues(transfer.Status.String()).Inc()
		log.WithBridgeID(bridgeID).Info().Str("dest_tx_hash", destTxHash).Msg("transfer executed")
		c.publishStatus(transfer)
	}
	return nil
}

// ConfirmDestination transitions an Executed transfer to Settled once the
// destination chain confirms it.
func (c *Coordinator) ConfirmDestination(bridgeID string) error {
	lock := c.lockFor(bridgeID)
	lock.Lock()
	defer lock.Unlock()

	transfer, err := c.store.GetBridgeTransfer(bridgeID)
	if err != nil {
		return ferrors.NotFoundf("bridge transfer %s not found", bridgeID)
	}
	if transfer.Status.Terminal() {
		return nil
	}
	if transfer.Status != types.BridgeStatusExecuted {
		return ferrors.Precondition("transfer %s not executed", bridgeID)
	}
	transfer.Status = types.BridgeStatusSettled
	transfer.UpdatedAt = c.clock()
	if err := c.store.UpdateBridgeTransfer(transfer); err != nil {
		return ferrors.Unavail("failed to persist transfer: %v", err)
	}
	metrics.BridgeTransfersTotal.WithLabelValues(transfer.Status.String()).Inc()
	c.publishStatus(transfer)
	return nil
}

// GetBridgeTransferStatus returns the current transfer. If it is still
// Pending and has exceeded its timeout, it is lazily transitioned to
// Refunded first (idempotent: a subsequent call on an already-Refunded
// transfer returns Refunded again without further effect).
func (c *Coordinator) GetBridgeTransferStatus(bridgeID string) (*types.BridgeTransfer, error) {
	lock := c.lockFor(bridgeID)
	lock.Lock()
	defer lock.Unlock()

	transfer, err := c.store.GetBridgeTransfer(bridgeID)
	if err != nil {
		return nil, ferrors.NotFoundf("bridge transfer %s not found", bridgeID)
	}

	if transfer.Status == types.BridgeStatusPending && c.clock().Sub(transfer.CreatedAt) > time.Duration(transfer.TimeoutSeconds)*time.Second {
		transfer.Status = types.BridgeStatusRefunded
		transfer.Error = "timeout: transfer exceeded its configured timeout before settling"
		transfer.UpdatedAt = c.clock()
		if err := c.store.UpdateBridgeTransfer(transfer); err != nil {
			return nil, ferrors.Unavail("failed to persist transfer: %v", err)
		}
		metrics.BridgeTransfersTotal.WithLabelValues(transfer.Status.String()).Inc()
		metrics.BridgeRefundsTotal.Inc()
		log.WithBridgeID(bridgeID).Warn().Msg("transfer lazily refunded on timeout")
		c.publishStatus(transfer)
	}
	return transfer, nil
}

// StreamPendingBridgeTransfers returns a channel of transfers drawn from
// the pending queue, skipping entries whose SourceChain does not match
// sourceChainFilter when filter is non-empty. The caller should range
// over the channel until it closes or their own context is done.
func (c *Coordinator) StreamPendingBridgeTransfers(done <-chan struct{}, sourceChainFilter string) <-chan *types.BridgeTransfer {
	out := make(chan *types.BridgeTransfer)
	go func() {
		defer close(out)
		for {
			transfer, ok := c.pending.PollCancel(done)
			if !ok {
				return
			}
			if sourceChainFilter != "" && transfer.SourceChain != sourceChainFilter {
				continue
			}
			select {
			case out <- transfer:
			case <-done:
				return
			}
		}
	}()
	return out
}

// BatchBridgeTransfers attempts to create every request in reqs,
// accumulating a single summary rather than failing the whole batch on
// one bad request.
func (c *Coordinator) BatchBridgeTransfers(reqs []InitiateTransferRequest) BatchResult {
	var result BatchResult
	for _, req := range reqs {
		if _, err := c.InitiateTransfer(req); err != nil {
			result.Rejected++
			result.FailedIDs = append(result.FailedIDs, req.BridgeID)
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.Accepted++
	}
	return result
}

// MonitorCrossChainStatus subscribes subscriberID to every subsequent
// status transition across all bridges.
func (c *Coordinator) MonitorCrossChainStatus(subscriberID string) <-chan *types.Event {
	return c.bus.Subscribe(subscriberID, StatusTopic, c.cfg.SubscriptionQueueCapacity, nil)
}

// VerifyLockProof checks a transfer's lock proof with the coordinator's
// configured Verifier. Initiate callers may use this before calling
// InitiateTransfer to reject malformed proofs as InvalidArgument.
func (c *Coordinator) VerifyLockProof(message, proof []byte) bool {
	return c.verifier.Verify(message, proof)
}
