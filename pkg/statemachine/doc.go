/*
Package statemachine implements the fabric's Versioned State Machine: a
generic engine declaring legal transitions, per-state timeouts, and
entry/exit hooks, used by the RAFT node-role lifecycle. The bridge
transfer lifecycle declares its edges as Transition values but checks
status changes inline and does not run them through a Machine.

# Design Patterns

Declarative transitions: legal moves are supplied once as a list of
(From, To) pairs at construction; Transition rejects anything not on that
list instead of trusting callers to check CanTransition first.

Optimistic versioning: Version increments on every successful
Transition, so a caller that read Current() and later wants to
compare-and-transition can detect whether another goroutine moved the
machine in between.

# See Also

  - pkg/raft for node-role transitions
  - pkg/bridge for the transfer status edge table
*/
package statemachine
