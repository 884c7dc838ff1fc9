/*
Package storage provides BoltDB-backed persistence for the fabric's durable
state: each node's Raft identity and replicated log, bridge transfer
records, and installed model snapshots.

# Architecture

	┌──────────────────── BOLTDB STORAGE ──────────────────────┐
	│  BoltStore                                                │
	│  - File: <dataDir>/fabric.db                              │
	│  - Buckets: node_identity, raft_log, bridge_transfers,     │
	│             model_snapshots                               │
	│  - Read: db.View()   Write: db.Update()                    │
	└────────────────────────────────────────────────────────┘

# Design Patterns

Upsert pattern: CreateBridgeTransfer and UpdateBridgeTransfer both write
through a single Put; Bridge IDs are assigned by the caller before the
first write, so there is no separate "exists" check.

Big-endian index keys: raft_log entries are keyed by an 8-byte big-endian
encoding of their index so cursor iteration returns them in index order,
and TruncateLogFrom can seek directly to the first index to discard.

Composite keys: model_snapshots are keyed by modelName + 0x00 + big-endian
version, so ListModelSnapshots can prefix-scan one model's history.

# See Also

  - pkg/raft for the Raft log and identity consumers
  - pkg/bridge for bridge transfer consumers
  - pkg/ordering for model snapshot consumers
*/
package storage
