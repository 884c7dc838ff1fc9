/*
Package types defines the fabric's shared data model: the entities that
flow between the RAFT consensus engine, the bridge oracle coordinator,
the streaming fan-out layer, and the ML ordering subsystem.

These are plain structs with no behavior beyond small derived-value helpers
(RequiredApprovalsFor, ApprovalCount, Terminal). Each owning component
enforces the invariants described on its type — callers never mutate these
structs except through that component's operations.
*/
package types
