/*
Package raft implements the fabric's RAFT Consensus Engine: node
lifecycle management (Run, Stop, AddNode/RemoveNode, IsLeader,
ProposeValue, GetRaftStats) backed by hand-written election,
replication, and commit logic rather than a wrapped third-party RAFT
library. That algorithmic core is this repository's own deliverable,
not something any dependency could supply.

# State

Each Node holds persistent state (currentTerm, votedFor, log — all
durable via pkg/storage) and volatile state (commitIndex, lastApplied,
and, while leader, nextIndex/matchIndex per peer). Role itself is a
pkg/statemachine instance over Follower/Candidate/Leader so the legal
transitions are declared once rather than scattered across branches.

# Safety invariants

  - Election Safety: RequestVote grants at most one vote per term.
  - Leader Append-Only: a leader only appends; AppendEntries on a
    follower is the only place log truncation happens.
  - Log Matching: AppendEntries refuses unless the previous entry's
    (index, term) matches.
  - State-Machine Safety: applyCommitted advances lastApplied strictly by
    one and calls FSM.Apply exactly once per application entry
    (membership entries are not passed to the FSM).
  - A leader only commits an index by majority match count when that
    entry's term equals its own current term.

# See Also

  - pkg/statemachine for the role transition engine
  - pkg/storage for log and identity persistence
  - pkg/fabric for cluster wiring
*/
package raft
