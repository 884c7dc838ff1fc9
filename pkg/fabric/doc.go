/*
Package fabric is the composition root: it constructs one node's RAFT
participant, bridge coordinator, streaming domain services, and ML
ordering learner from a single NodeConfig, following a
NewNode/Bootstrap/Shutdown lifecycle.

This package owns no cluster/container orchestration state (nodes,
services, volumes, ingress, CA) — that domain is entirely out of scope
here. One constructor takes a small config struct and opens every
collaborator (store, transport, subsystem) in dependency order, and one
Shutdown tears them down in reverse.

# See Also

  - pkg/raft, pkg/bridge, pkg/streaming, pkg/ordering for the four
    subsystems this package wires together
  - cmd/fabric for the CLI that constructs a Node
*/
package fabric
