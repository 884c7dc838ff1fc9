/*
Package bridge implements the fabric's Bridge Oracle Coordinator: the
cross-chain transfer lifecycle under Byzantine-quorum oracle attestation.

# Lifecycle

A transfer moves Pending -> Relayed -> Executed -> Settled, with Refunded
reachable only from Pending (on timeout). Failed is declared as a legal
edge from any non-terminal state, but no Coordinator operation moves a
transfer to Failed. The edges are declared as pkg/statemachine
Transition values; Coordinator
enforces them directly rather than routing every vote through a Machine,
since a transfer's state is itself derived from vote counts rather than an
externally-driven event.

# Quorum

RequiredApprovals is the supermajority threshold floor(2n/3)+1 over the
oracle set size, computed once at InitiateTransfer and never recomputed:
changing the oracle set mid-flight is out of scope. Consensus is detected
by comparing ApprovalCount against that threshold after each vote; only
the transition that first crosses the threshold fires a status change, so
replayed or late votes never re-trigger it.

# Concurrency

Operations on distinct bridgeIds run fully in parallel. Operations on the
same bridgeId serialize through a per-bridgeId sync.Mutex obtained from
lockFor, mirroring the per-entity locking pattern pkg/raft uses for its
own node state.

# Refunds

GetBridgeTransferStatus performs the timeout check lazily rather than on
a ticker: a transfer that has silently exceeded its timeout is only
discovered, and only transitioned to Refunded, the next time someone asks
about it. This keeps the coordinator free of a background sweep goroutine
per transfer while still making the refund idempotent and eventually
visible.

# See Also

  - pkg/statemachine for the transition table
  - pkg/observer for cross-chain status fan-out
  - pkg/queue for the pending-transfer backlog
  - pkg/cryptopredicate for lock-proof verification
*/
package bridge
