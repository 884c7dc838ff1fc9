package storage

import (
	"github.com/cuemby/fabric/pkg/types"
)

// Store defines the interface for fabric state persistence. It is
// implemented by BoltDB-backed storage.
type Store interface {
	// Node identity
	SaveNodeIdentity(identity *types.NodeIdentity) error
	GetNodeIdentity(nodeID string) (*types.NodeIdentity, error)

	// Raft log
	AppendLogEntry(entry *types.LogEntry) error
	GetLogEntry(index uint64) (*types.LogEntry, error)
	LastLogIndex() (uint64, error)
	TruncateLogFrom(index uint64) error

	// Bridge transfers
	CreateBridgeTransfer(transfer *types.BridgeTransfer) error
	GetBridgeTransfer(bridgeID string) (*types.BridgeTransfer, error)
	UpdateBridgeTransfer(transfer *types.BridgeTransfer) error
	ListBridgeTransfersByStatus(status types.BridgeStatus) ([]*types.BridgeTransfer, error)
	ListPendingBridgeTransfers() ([]*types.BridgeTransfer, error)

	// Model snapshots
	SaveModelSnapshot(snapshot *types.ModelSnapshot) error
	GetLatestModelSnapshot(modelName string) (*types.ModelSnapshot, error)
	ListModelSnapshots(modelName string) ([]*types.ModelSnapshot, error)

	// Utility
	Close() error
}
