// Package types holds the fabric's core data model — the entities shared
// across the consensus engine, the bridge oracle coordinator, the streaming
// fan-out layer, and the ML ordering subsystem.
package types

import "time"

// NodeRole is a RAFT node's current role.
type NodeRole string

const (
	RoleFollower  NodeRole = "follower"
	RoleCandidate NodeRole = "candidate"
	RoleLeader    NodeRole = "leader"
)

// NodeIdentity is the persistent + volatile state of one RAFT node.
// currentTerm never decreases; votedFor is at most one candidate per term;
// lastApplied never exceeds commitIndex.
type NodeIdentity struct {
	NodeID      string
	Role        NodeRole
	CurrentTerm uint64
	VotedFor    string // empty if no vote cast this term
	CommitIndex uint64
	LastApplied uint64
}

// LogEntry is one RAFT replicated log record. Index is 1-based and strictly
// increasing; for any two replicas, entries sharing (Index, Term) agree on
// every preceding entry (Log Matching property).
type LogEntry struct {
	Term    uint64
	Index   uint64
	Payload []byte
}

// BridgeStatus is the lifecycle state of a cross-chain transfer.
type BridgeStatus int32

const (
	BridgeStatusUnknown  BridgeStatus = 0
	BridgeStatusPending  BridgeStatus = 1
	BridgeStatusRelayed  BridgeStatus = 2
	BridgeStatusExecuted BridgeStatus = 3
	BridgeStatusSettled  BridgeStatus = 4
	BridgeStatusRefunded BridgeStatus = 5
	BridgeStatusFailed   BridgeStatus = 6
)

func (s BridgeStatus) String() string {
	switch s {
	case BridgeStatusPending:
		return "Pending"
	case BridgeStatusRelayed:
		return "Relayed"
	case BridgeStatusExecuted:
		return "Executed"
	case BridgeStatusSettled:
		return "Settled"
	case BridgeStatusRefunded:
		return "Refunded"
	case BridgeStatusFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Terminal reports whether the status admits no further transitions.
func (s BridgeStatus) Terminal() bool {
	return s == BridgeStatusSettled || s == BridgeStatusRefunded || s == BridgeStatusFailed
}

// BridgeTransfer is one cross-chain asset transfer under oracle attestation.
type BridgeTransfer struct {
	BridgeID       string
	SourceChain    string
	DestChain      string
	AssetRef       string
	Amount         string // decimal string, never parsed as float
	Recipient      string
	LockProof      []byte
	SourceTxHash   string
	TimeoutSeconds int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Status         BridgeStatus
	DestTxHash     string
	Finalized      bool
	OracleSet      []string
	OracleSetSize  int
	RequiredApprovals int
	Error          string
}

// RequiredApprovalsFor computes the supermajority threshold for an oracle
// committee of the given size: floor(2n/3)+1.
func RequiredApprovalsFor(oracleSetSize int) int {
	return (2*oracleSetSize)/3 + 1
}

// OracleVote is one oracle's current position in a voting round. Later
// votes from the same oracle overwrite earlier ones.
type OracleVote struct {
	Approved bool
	Reason   string
	At       time.Time
}

// OracleVotingRound tracks the votes cast for one bridge transfer.
type OracleVotingRound struct {
	BridgeID string
	Votes    map[string]OracleVote // oracleAddress -> vote
}

// ApprovalCount returns the number of oracles currently voting approve.
func (r *OracleVotingRound) ApprovalCount() int {
	n := 0
	for _, v := range r.Votes {
		if v.Approved {
			n++
		}
	}
	return n
}

// RejectionCount returns the number of oracles currently voting reject.
func (r *OracleVotingRound) RejectionCount() int {
	n := 0
	for _, v := range r.Votes {
		if !v.Approved {
			n++
		}
	}
	return n
}

// ConsensusReached reports whether the approval count has reached the
// supermajority threshold.
func (r *OracleVotingRound) ConsensusReached(requiredApprovals int) bool {
	return r.ApprovalCount() >= requiredApprovals
}

// SubscriptionState is a subscription's lifecycle state.
type SubscriptionState string

const (
	SubscriptionActive  SubscriptionState = "active"
	SubscriptionClosing SubscriptionState = "closing"
	SubscriptionClosed  SubscriptionState = "closed"
)

// Event is an immutable fact published on a topic.
type Event struct {
	EventID   string
	Topic     string
	Payload   any
	Timestamp time.Time
}

// TransactionStatus is the lifecycle state of a submitted transaction.
type TransactionStatus int32

const (
	TxStatusUnknown    TransactionStatus = 0
	TxStatusPending    TransactionStatus = 1
	TxStatusValidated  TransactionStatus = 2
	TxStatusIncluded   TransactionStatus = 3
	TxStatusConfirmed  TransactionStatus = 4
	TxStatusFinalized  TransactionStatus = 5
)

func (s TransactionStatus) String() string {
	switch s {
	case TxStatusPending:
		return "Pending"
	case TxStatusValidated:
		return "Validated"
	case TxStatusIncluded:
		return "Included"
	case TxStatusConfirmed:
		return "Confirmed"
	case TxStatusFinalized:
		return "Finalized"
	default:
		return "Unknown"
	}
}

// PendingTransaction is one transaction awaiting ordering/inclusion, the
// unit the ML ordering subsystem scores and reorders.
type PendingTransaction struct {
	TxID             string
	Priority         int
	GasPrice         int64
	Dependencies     []string
	SubmittedAt      time.Time
}

// ScoredTransaction pairs a transaction with its derived ordering score.
// Score is a pure function of Priority, GasPrice and len(Dependencies).
type ScoredTransaction struct {
	TxID            string
	Priority        int
	GasPrice        int64
	DependencyCount int
	Score           float64
}

// OptimizationResult is the immutable outcome of one batch-ordering pass.
type OptimizationResult struct {
	ResultID                    string
	OrderedTxIDs                []string
	AvgScore                    float64
	Confidence                  float64
	EstimatedThroughputGainPct  float64
	CreatedAt                   time.Time
}

// TrainingDataPoint is one observation enqueued into the bounded training
// buffer after a batch is ordered.
type TrainingDataPoint struct {
	OrderedTxIDs []string
	QualityScore float64
	Timestamp    time.Time
}

// ModelSnapshot is an installed scoring-model version. For a given
// ModelName, Version strictly increases and a snapshot is installed only
// if Accuracy meets the configured acceptance threshold.
type ModelSnapshot struct {
	ModelName   string
	Version     uint64
	Weights     []byte
	Accuracy    float64
	LearningRate float64
	InstalledAt time.Time
}

// TransactionRecord is one submitted transaction's tracked lifecycle state,
// the entity the transactions streaming domain exposes.
type TransactionRecord struct {
	TxID          string
	TxHash        string
	Payload       []byte
	Signature     []byte
	Signer        string
	Nonce         int64
	Status        TransactionStatus
	BlockHash     string
	BlockHeight   uint64
	GasUsed       uint64
	Confirmations int
	Finalized     bool
	UpdatedAt     time.Time
}

// Block is a minimal produced-block record the blocks streaming domain
// pushes to subscribers as it becomes available.
type Block struct {
	Hash       string
	Height     uint64
	ParentHash string
	TxIDs      []string
	ProducedAt time.Time
}

// ValidatorStatus is one validator's current participation state, the
// entity the validators streaming domain exposes.
type ValidatorStatus struct {
	ValidatorID string
	Active      bool
	Stake       string
	LastSeenAt  time.Time
}

// Webhook is a registered delivery target for events matching EventTypes.
type Webhook struct {
	WebhookID  string
	URL        string
	EventTypes []string
	CreatedAt  time.Time
}

// WebhookDelivery is one attempted push of an event to a Webhook.
type WebhookDelivery struct {
	WebhookID   string
	EventID     string
	Attempt     int
	Delivered   bool
	DeliveredAt time.Time
}
