package streaming

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/cuemby/fabric/pkg/ferrors"
	"github.com/cuemby/fabric/pkg/log"
	"github.com/cuemby/fabric/pkg/observer"
	"github.com/cuemby/fabric/pkg/types"
	"github.com/google/uuid"
)

// TransactionsTopic is the observer bus topic transaction events publish
// on.
const TransactionsTopic = "stream.transactions"

// SubmitTransactionRequest is the field-exact submit message for a
// transaction submission.
type SubmitTransactionRequest struct {
	TxHash    string
	Payload   []byte
	Signature []byte
	Signer    string
	Nonce     int64
}

// BatchSubmitResult is the client-stream summary for BatchSubmit.
type BatchSubmitResult struct {
	Accepted int
	Rejected int
	TxIDs    []string
	Errors   []string
}

// TransactionService is the transactions streaming domain: unary submit
// and read, client-stream batch submit, server-stream live push, and a
// bidirectional per-transaction monitor.
type TransactionService struct {
	engine *Engine

	mu      sync.Mutex
	byKey   map[string]string // dedup key -> txId
	records map[string]*types.TransactionRecord
	clock   func() time.Time
}

// NewTransactionService constructs a TransactionService publishing on bus.
func NewTransactionService(bus *observer.Bus, queueCapacity int) *TransactionService {
	return &TransactionService{
		engine:  NewEngine(TransactionsTopic, bus, queueCapacity, 0),
		byKey:   make(map[string]string),
		records: make(map[string]*types.TransactionRecord),
		clock:   time.Now,
	}
}

func dedupKey(txHash string, payload []byte) string {
	h := sha256.New()
	h.Write([]byte(txHash))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// SubmitTransaction is the unary submit call. Resubmitting the same
// (txHash, payload) pair returns the original record's txId rather than
// creating a second one.
func (s *TransactionService) SubmitTransaction(req SubmitTransactionRequest) (*types.TransactionRecord, error) {
	if req.TxHash == "" || req.Signer == "" {
		return nil, ferrors.Invalid("txHash and signer are required")
	}
	key := dedupKey(req.TxHash, req.Payload)

	s.mu.Lock()
	defer s.mu.Unlock()
	if txID, ok := s.byKey[key]; ok {
		return s.records[txID], nil
	}

	record := &types.TransactionRecord{
		TxID:      uuid.NewString(),
		TxHash:    req.TxHash,
		Payload:   req.Payload,
		Signature: req.Signature,
		Signer:    req.Signer,
		Nonce:     req.Nonce,
		Status:    types.TxStatusPending,
		UpdatedAt: s.clock(),
	}
	s.byKey[key] = record.TxID
	s.records[record.TxID] = record
	s.engine.Publish(record, record.TxID)
	log.WithComponent("streaming.transactions").Info().Str("tx_id", record.TxID).Msg("transaction submitted")
	return record, nil
}

// AdvanceStatus moves a tracked transaction forward through its
// lifecycle and republishes the updated record.
func (s *TransactionService) AdvanceStatus(txID string, status types.TransactionStatus, blockHash string, blockHeight uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[txID]
	if !ok {
		return ferrors.NotFoundf("transaction %s not found", txID)
	}
	record.Status = status
	record.BlockHash = blockHash
	record.BlockHeight = blockHeight
	record.Confirmations++
	record.Finalized = status == types.TxStatusFinalized
	record.UpdatedAt = s.clock()
	s.engine.Publish(record, record.TxID)
	return nil
}

// GetTransaction is a unary point-in-time read.
func (s *TransactionService) GetTransaction(txID string) (*types.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[txID]
	if !ok {
		return nil, ferrors.NotFoundf("transaction %s not found", txID)
	}
	return record, nil
}

// BatchSubmit is the client-stream shape: every request is attempted,
// with one accumulated summary rather than failing the whole batch on a
// single bad request.
func (s *TransactionService) BatchSubmit(reqs []SubmitTransactionRequest) BatchSubmitResult {
	var result BatchSubmitResult
	for _, req := range reqs {
		record, err := s.SubmitTransaction(req)
		if err != nil {
			result.Rejected++
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.Accepted++
		result.TxIDs = append(result.TxIDs, record.TxID)
	}
	return result
}

// StreamTransactions is the server-stream shape: live push of every
// subsequent submission or status change, optionally filtered.
func (s *TransactionService) StreamTransactions(subscriberID string, filter observer.Predicate) <-chan *types.Event {
	return s.engine.Subscribe(subscriberID, filter)
}

// MonitorTransaction is the bidirectional shape: correlate an inbound
// txId query with outbound pushes scoped to that one transaction.
func (s *TransactionService) MonitorTransaction(subscriberID, txID string) <-chan *types.Event {
	filter := func(e *types.Event) bool {
		record, ok := e.Payload.(*types.TransactionRecord)
		return ok && record.TxID == txID
	}
	return s.engine.Subscribe(subscriberID, filter)
}

// Unsubscribe removes subscriberID from the transactions topic.
func (s *TransactionService) Unsubscribe(subscriberID string) {
	s.engine.Unsubscribe(subscriberID)
}
