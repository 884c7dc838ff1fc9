package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/cuemby/fabric/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketNodeIdentity    = []byte("node_identity")
	bucketRaftLog         = []byte("raft_log")
	bucketBridgeTransfers = []byte("bridge_transfers")
	bucketModelSnapshots  = []byte("model_snapshots")
)

// BoltStore implements Store using BoltDB.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if absent) a BoltDB-backed store under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "fabric.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketNodeIdentity,
			bucketRaftLog,
			bucketBridgeTransfers,
			bucketModelSnapshots,
		}
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func encodeIndex(index uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, index)
	return key
}

func encodeSnapshotKey(modelName string, version uint64) []byte {
	key := make([]byte, len(modelName)+1+8)
	copy(key, modelName)
	key[len(modelName)] = 0
	binary.BigEndian.PutUint64(key[len(modelName)+1:], version)
	return key
}

// Node identity

func (s *BoltStore) SaveNodeIdentity(identity *types.NodeIdentity) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNodeIdentity)
		data, err := json.Marshal(identity)
		if err != nil {
			return err
		}
		return b.Put([]byte(identity.NodeID), data)
	})
}

func (s *BoltStore) GetNodeIdentity(nodeID string) (*types.NodeIdentity, error) {
	var identity types.NodeIdentity
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNodeIdentity)
		data := b.Get([]byte(nodeID))
		if data == nil {
			return fmt.Errorf("node identity not found: %s", nodeID)
		}
		return json.Unmarshal(data, &identity)
	})
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

// Raft log

func (s *BoltStore) AppendLogEntry(entry *types.LogEntry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRaftLog)
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return b.Put(encodeIndex(entry.Index), data)
	})
}

func (s *BoltStore) GetLogEntry(index uint64) (*types.LogEntry, error) {
	var entry types.LogEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRaftLog)
		data := b.Get(encodeIndex(index))
		if data == nil {
			return fmt.Errorf("log entry not found: %d", index)
		}
		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *BoltStore) LastLogIndex() (uint64, error) {
	var last uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRaftLog)
		c := b.Cursor()
		k, _ := c.Last()
		if k == nil {
			last = 0
			return nil
		}
		last = binary.BigEndian.Uint64(k)
		return nil
	})
	return last, err
}

// TruncateLogFrom deletes every entry with index >= index, used when a
// follower's log conflicts with the leader's and must be rewound.
func (s *BoltStore) TruncateLogFrom(index uint64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRaftLog)
		c := b.Cursor()
		var toDelete [][]byte
		for k, _ := c.Seek(encodeIndex(index)); k != nil; k, _ = c.Next() {
			key := make([]byte, len(k))
			copy(key, k)
			toDelete = append(toDelete, key)
		}
		for _, k := range toDelete {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// Bridge transfers

func (s *BoltStore) CreateBridgeTransfer(transfer *types.BridgeTransfer) error {
	return s.UpdateBridgeTransfer(transfer)
}

func (s *BoltStore) GetBridgeTransfer(bridgeID string) (*types.BridgeTransfer, error) {
	var transfer types.BridgeTransfer
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBridgeTransfers)
		data := b.Get([]byte(bridgeID))
		if data == nil {
			return fmt.Errorf("bridge transfer not found: %s", bridgeID)
		}
		return json.Unmarshal(data, &transfer)
	})
	if err != nil {
		return nil, err
	}
	return &transfer, nil
}

func (s *BoltStore) UpdateBridgeTransfer(transfer *types.BridgeTransfer) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBridgeTransfers)
		data, err := json.Marshal(transfer)
		if err != nil {
			return err
		}
		return b.Put([]byte(transfer.BridgeID), data)
	})
}

func (s *BoltStore) ListBridgeTransfersByStatus(status types.BridgeStatus) ([]*types.BridgeTransfer, error) {
	var matches []*types.BridgeTransfer
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBridgeTransfers)
		return b.ForEach(func(k, v []byte) error {
			var transfer types.BridgeTransfer
			if err := json.Unmarshal(v, &transfer); err != nil {
				return err
			}
			if transfer.Status == status {
				matches = append(matches, &transfer)
			}
			return nil
		})
	})
	return matches, err
}

func (s *BoltStore) ListPendingBridgeTransfers() ([]*types.BridgeTransfer, error) {
	return s.ListBridgeTransfersByStatus(types.BridgeStatusPending)
}

// Model snapshots

func (s *BoltStore) SaveModelSnapshot(snapshot *types.ModelSnapshot) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketModelSnapshots)
		data, err := json.Marshal(snapshot)
		if err != nil {
			return err
		}
		return b.Put(encodeSnapshotKey(snapshot.ModelName, snapshot.Version), data)
	})
}

func (s *BoltStore) GetLatestModelSnapshot(modelName string) (*types.ModelSnapshot, error) {
	snapshots, err := s.ListModelSnapshots(modelName)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, fmt.Errorf("no model snapshot found: %s", modelName)
	}
	latest := snapshots[0]
	for _, s := range snapshots[1:] {
		if s.Version > latest.Version {
			latest = s
		}
	}
	return latest, nil
}

func (s *BoltStore) ListModelSnapshots(modelName string) ([]*types.ModelSnapshot, error) {
	var snapshots []*types.ModelSnapshot
	prefix := append([]byte(modelName), 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketModelSnapshots)
		c := b.Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var snapshot types.ModelSnapshot
			if err := json.Unmarshal(v, &snapshot); err != nil {
				return err
			}
			snapshots = append(snapshots, &snapshot)
		}
		return nil
	})
	return snapshots, err
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}
